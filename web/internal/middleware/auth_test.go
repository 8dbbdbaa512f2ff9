package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/devilmonastery/studenthistory/internal/auth"
	"github.com/devilmonastery/studenthistory/internal/config"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories/repotest"
	"github.com/devilmonastery/studenthistory/web/internal/session"
)

type recordedAccess struct {
	res *auth.Resolution
	ip  string
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []recordedAccess
}

func (f *fakeRecorder) RecordResolution(ctx context.Context, res *auth.Resolution, ip, userAgent string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, recordedAccess{res: res, ip: ip})
}

func newTestStudentAuth(t *testing.T) (*StudentAuth, *repotest.Store, *fakeRecorder) {
	t.Helper()
	store := repotest.NewStore()
	repos := store.Repositories()
	log := discardLogger()
	resolver := auth.NewResolver(
		auth.NewInitDataValidator(testBotToken),
		auth.NewTokenValidator(repos.Tokens, repos.Students, log),
		repos.TelegramLinks, repos.PendingLinks, time.Hour, log)
	recorder := &fakeRecorder{}
	codec := session.NewCookieCodec(config.Defaults().Session, []byte("0123456789abcdef0123456789abcdef"))
	return NewStudentAuth(resolver, codec, recorder, false, log), store, recorder
}

func TestStudentAuth_URLTokenSetsCookie(t *testing.T) {
	m, store, recorder := newTestStudentAuth(t)
	alice := store.AddStudent("alice", "Alice")
	store.AddToken("abc-123", alice.ID, nil)

	var got *auth.Resolution
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.ResolutionFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/student?token=abc-123", nil)
	req.RemoteAddr = "10.0.0.1:1000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !got.Authenticated() || got.Student.Slug != "alice" {
		t.Fatalf("expected alice, got %+v", got)
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.TokenCookie {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != "abc-123" {
		t.Errorf("expected access_token cookie, got %+v", cookie)
	}
	if len(recorder.records) != 1 || recorder.records[0].ip != "10.0.0.1" {
		t.Errorf("expected one access record, got %+v", recorder.records)
	}
}

func TestStudentAuth_InitDataSetsTelegramSession(t *testing.T) {
	m, store, _ := newTestStudentAuth(t)
	alice := store.AddStudent("alice", "Alice")
	store.AddLink("555", alice.ID)

	h := m.Middleware(RequireStudent(okHandler))
	req := httptest.NewRequest(http.MethodGet, "/api/student/balance", nil)
	req.Header.Set(InitDataHeader, signedInitData(555, time.Now()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	got := m.cookies.Read(replayCookies(rec))
	if got.TelegramID != "555" || !got.HasSelectedStudent || got.SelectedStudentID != alice.ID {
		t.Errorf("expected telegram session for alice, got %+v", got)
	}
}

func TestStudentAuth_DefaultedSelectionNotStored(t *testing.T) {
	m, store, _ := newTestStudentAuth(t)
	alice := store.AddStudent("alice", "Alice")
	bob := store.AddStudent("bob", "Bob")
	store.AddLink("555", alice.ID)
	store.AddLink("555", bob.ID)

	var res *auth.Resolution
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, _ = auth.ResolutionFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/student", nil)
	req.Header.Set(InitDataHeader, signedInitData(555, time.Now()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !res.Authenticated() || !res.Defaulted {
		t.Fatalf("expected a defaulted resolution, got %+v", res)
	}
	got := m.cookies.Read(replayCookies(rec))
	if got.TelegramID != "555" {
		t.Errorf("expected telegram_id cookie, got %+v", got)
	}
	if got.HasSelectedStudent {
		t.Errorf("defaulted student must not be stored as a selection, got %+v", got)
	}
}

func TestStudentAuth_ForgedTelegramSession(t *testing.T) {
	m, store, _ := newTestStudentAuth(t)
	alice := store.AddStudent("alice", "Alice")
	store.AddLink("555", alice.ID)

	var res *auth.Resolution
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, _ = auth.ResolutionFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/student", nil)
	req.AddCookie(&http.Cookie{Name: session.TelegramIDCookie, Value: "555"})
	req.AddCookie(&http.Cookie{Name: session.SelectedStudentCookie, Value: strconv.FormatInt(alice.ID, 10)})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if res.Authenticated() {
		t.Fatalf("unsigned cookies must not authenticate, got %+v", res)
	}
	if res.Reason != auth.ReasonNoCredentials {
		t.Errorf("expected %s, got %s", auth.ReasonNoCredentials, res.Reason)
	}
}

func replayCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/student", nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			req.AddCookie(c)
		}
	}
	return req
}

func TestStudentAuth_RequireStudent(t *testing.T) {
	m, _, recorder := newTestStudentAuth(t)
	h := m.Middleware(RequireStudent(okHandler))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/student/balance", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(recorder.records) != 0 {
		t.Errorf("anonymous requests must not be recorded, got %d", len(recorder.records))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/student/balance?token=nope", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(recorder.records) != 1 || recorder.records[0].res.Reason != auth.ReasonInvalidURLToken {
		t.Errorf("expected failed token access to be recorded, got %+v", recorder.records)
	}
}

func TestStudentAuth_StorageFailureDenies(t *testing.T) {
	m, store, _ := newTestStudentAuth(t)
	store.Err = context.DeadlineExceeded

	rec := httptest.NewRecorder()
	m.Middleware(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/student?token=abc", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	jwtManager := auth.NewJWTManager("signing-key", time.Hour)
	manager := session.NewManager([]byte("0123456789abcdef0123456789abcdef"), true, time.Hour, jwtManager)
	m := NewAdminAuth(manager, discardLogger())

	var claims *auth.Claims
	h := m.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ = auth.AdminClaimsFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/api/students", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for api, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin/login" {
		t.Errorf("expected redirect to login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	token, _, err := jwtManager.GenerateToken(9, "root")
	if err != nil {
		t.Fatal(err)
	}
	login := httptest.NewRecorder()
	if err := manager.SetToken(httptest.NewRequest(http.MethodPost, "/admin/login", nil), login, token); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/admin/api/students", nil)
	for _, c := range login.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || claims == nil || claims.Username != "root" {
		t.Errorf("expected admin root, got %d %+v", rec.Code, claims)
	}
}
