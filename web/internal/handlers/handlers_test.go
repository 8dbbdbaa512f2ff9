package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/devilmonastery/studenthistory/internal/auth"
	"github.com/devilmonastery/studenthistory/internal/config"
	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories/repotest"
	"github.com/devilmonastery/studenthistory/internal/domain/services"
	"github.com/devilmonastery/studenthistory/internal/infrastructure/sheets"
	"github.com/devilmonastery/studenthistory/web/internal/middleware"
	"github.com/devilmonastery/studenthistory/web/internal/render"
	"github.com/devilmonastery/studenthistory/web/internal/session"
)

const testBotToken = "123456:TEST-bot-token"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signedInitData(telegramID int64) string {
	return auth.SignInitData(testBotToken, url.Values{
		"auth_date": {strconv.FormatInt(time.Now().Unix(), 10)},
		"user":      {`{"id":` + strconv.FormatInt(telegramID, 10) + `,"first_name":"Ivan","username":"ivan"}`},
	})
}

type fakeSheet struct {
	sheet *entities.StudentSheet
	err   error
}

func (f *fakeSheet) StudentSheet(ctx context.Context, worksheet string, useCache bool) (*entities.StudentSheet, error) {
	return f.sheet, f.err
}

type fakeCache struct {
	cleared []string
}

func (f *fakeCache) Stats() sheets.Stats {
	return sheets.Stats{TotalEntries: 2, ActiveEntries: 2, CacheKeys: []string{"ivan", "maria"}, TTLSeconds: 300}
}

func (f *fakeCache) ClearCache(worksheet string) int {
	f.cleared = append(f.cleared, worksheet)
	if worksheet == "" {
		return 2
	}
	return 1
}

type fakeHealth struct{ err error }

func (f fakeHealth) HealthCheck(ctx context.Context) error { return f.err }

type testEnv struct {
	store   *repotest.Store
	cookies *session.CookieCodec
	router http.Handler
	admins *services.AdminService
	cache  *fakeCache
	health *fakeHealth
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := discardLogger()
	store := repotest.NewStore()
	repos := store.Repositories()

	templates, err := render.LoadTemplates("../../templates")
	if err != nil {
		t.Fatalf("failed to load templates: %v", err)
	}

	initData := auth.NewInitDataValidator(testBotToken)
	resolver := auth.NewResolver(
		initData,
		auth.NewTokenValidator(repos.Tokens, repos.Students, log),
		repos.TelegramLinks, repos.PendingLinks, time.Hour, log)
	cookies := session.NewCookieCodec(config.Defaults().Session, []byte("fedcba9876543210fedcba9876543210"))
	jwtManager := auth.NewJWTManager("test-signing-key", time.Hour)
	sessions := session.NewManager([]byte("0123456789abcdef0123456789abcdef"), true, time.Hour, jwtManager)

	access := services.NewAccessService(repos.AccessLogs, log)
	tokens := services.NewTokenService(repos.Tokens, repos.Students)
	studentAuth := middleware.NewStudentAuth(resolver, cookies, access, false, log)
	cache := &fakeCache{}
	health := &fakeHealth{}
	admins := services.NewAdminService(repos.Admins, jwtManager, log)

	sheet := &fakeSheet{sheet: &entities.StudentSheet{
		History: [][]string{
			{"24-Jan-25", "Урок"},
			{"22-Jan-25", "Оплата 4 урока"},
		},
		Balance: [][]string{{"7"}},
	}}

	h := New(Deps{
		Templates:      templates,
		StudentAuth:    studentAuth,
		Cookies:        cookies,
		Sessions:       sessions,
		InitData:       initData,
		Students:       services.NewStudentService(repos.Students, tokens, log),
		Links:          services.NewLinkService(repos.TelegramLinks, repos.PendingLinks, repos.Students, log),
		Tokens:         tokens,
		Access:         access,
		Admins:         admins,
		Messages:       services.NewMessageService(repos.Messages, repos.TelegramLinks, nil, log),
		History:        services.NewHistoryService(sheet, log),
		Sheets:         cache,
		DB:             health,
		BaseURL:        "https://lessons.example.com",
		InitDataMaxAge: time.Hour,
	}, log)

	router := NewRouter(h, Middlewares{
		StudentAuth: studentAuth,
		AdminAuth:   middleware.NewAdminAuth(sessions, log),
		CSRF:        middleware.NewCSRFGuard(initData, time.Hour, log),
	}, log)

	return &testEnv{store: store, cookies: cookies, router: router, admins: admins, cache: cache, health: health}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return body
}

// withCookies copies the live cookies set on rec onto req, the way a
// browser cookie jar would
func withCookies(req *http.Request, rec *httptest.ResponseRecorder) *http.Request {
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			req.AddCookie(c)
		}
	}
	return req
}

// sessionCookies decodes the student cookies set on rec
func (e *testEnv) sessionCookies(rec *httptest.ResponseRecorder) session.StudentCookies {
	return e.cookies.Read(withCookies(httptest.NewRequest(http.MethodGet, "/", nil), rec))
}

func cookieValue(rec *httptest.ResponseRecorder, name string) string {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	body := decodeBody(t, rec)
	if rec.Code != http.StatusOK || body["status"] != "ok" || body["version"] != Version {
		t.Errorf("unexpected /health %d %v", rec.Code, body)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on every response")
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected ready, got %d", rec.Code)
	}

	env.health.err = errors.New("connection refused")
	rec = env.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when the database is down, got %d", rec.Code)
	}
}

func TestTokenLink(t *testing.T) {
	env := newTestEnv(t)
	ivan := env.store.AddStudent("ivan", "Иван Петров")
	env.store.AddToken("abc-123", ivan.ID, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/t/abc-123", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/student?token=abc-123" {
		t.Fatalf("expected redirect, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if cookieValue(rec, session.TokenCookie) != "abc-123" {
		t.Error("expected access_token cookie")
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/t/unknown", nil))
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "Неверный или истекший токен") {
		t.Errorf("expected denied page, got %d", rec.Code)
	}

	logs := env.store.AccessLogs()
	if len(logs) != 2 || !logs[0].Success || logs[1].Success {
		t.Errorf("expected one success and one failure logged, got %+v", logs)
	}
}

func TestStudentPage(t *testing.T) {
	env := newTestEnv(t)
	ivan := env.store.AddStudent("ivan", "Иван Петров")
	env.store.AddToken("abc-123", ivan.ID, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/student", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without credentials, got %d", rec.Code)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/student?token=abc-123&query=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	page := rec.Body.String()
	if !strings.Contains(page, "Пт 24-янв-2025 Урок завершен") {
		t.Error("expected first lesson on the page")
	}
	if strings.Contains(page, "Оплата 4 урока") {
		t.Error("expected the limit to cut the second row")
	}
	if !strings.Contains(page, "/student?query=11") {
		t.Error("expected a link to more lessons")
	}
}

func TestIndexRedirectsResolvedStudent(t *testing.T) {
	env := newTestEnv(t)
	ivan := env.store.AddStudent("ivan", "Иван Петров")
	env.store.AddToken("abc-123", ivan.ID, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/?token=abc-123", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/student?token=abc-123" {
		t.Errorf("expected redirect keeping the token, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected landing page, got %d", rec.Code)
	}
}

func TestBalance(t *testing.T) {
	env := newTestEnv(t)
	ivan := env.store.AddStudent("ivan", "Иван Петров")
	env.store.AddToken("abc-123", ivan.ID, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/student/balance", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/student/balance?token=abc-123", nil))
	body := decodeBody(t, rec)
	if rec.Code != http.StatusOK || body["status"] != "ok" || body["balance"] != float64(7) {
		t.Errorf("unexpected balance %d %v", rec.Code, body)
	}
}

func telegramAuthRequest(telegramID int64) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/auth/telegram", nil)
	req.Header.Set(middleware.InitDataHeader, signedInitData(telegramID))
	return req
}

func TestTelegramAuth(t *testing.T) {
	env := newTestEnv(t)
	ivan := env.store.AddStudent("ivan", "Иван Петров")
	maria := env.store.AddStudent("maria", "Мария Лопес")
	env.store.AddLink("100", ivan.ID)
	env.store.AddLink("200", ivan.ID)
	env.store.AddLink("200", maria.ID)

	t.Run("single student", func(t *testing.T) {
		rec := env.do(telegramAuthRequest(100))
		body := decodeBody(t, rec)
		if rec.Code != http.StatusOK || body["redirect_url"] != "/student" {
			t.Fatalf("unexpected response %d %v", rec.Code, body)
		}
		got := env.sessionCookies(rec)
		if got.TelegramID != "100" || got.SelectedStudentID != ivan.ID {
			t.Errorf("expected telegram session for ivan, got %+v", got)
		}
	})

	t.Run("several students", func(t *testing.T) {
		rec := env.do(telegramAuthRequest(200))
		body := decodeBody(t, rec)
		students, _ := body["students"].([]interface{})
		if rec.Code != http.StatusOK || body["multiple_students"] != true || len(students) != 2 {
			t.Fatalf("unexpected response %d %v", rec.Code, body)
		}
	})

	t.Run("not linked", func(t *testing.T) {
		rec := env.do(telegramAuthRequest(300))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		if env.store.Pending("300") == nil {
			t.Error("expected a pending link for the unknown account")
		}
	})

	t.Run("csrf without credentials", func(t *testing.T) {
		rec := env.do(httptest.NewRequest(http.MethodPost, "/auth/telegram", nil))
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("missing init data", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/telegram", nil)
		req.Header.Set(middleware.RequestedWithHeader, "XMLHttpRequest")
		rec := env.do(req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestSelectStudent(t *testing.T) {
	env := newTestEnv(t)
	ivan := env.store.AddStudent("ivan", "Иван Петров")
	maria := env.store.AddStudent("maria", "Мария Лопес")
	env.store.AddLink("200", ivan.ID)
	env.store.AddLink("200", maria.ID)

	selectReq := func(slug string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/auth/select-student", strings.NewReader(`{"student_slug":"`+slug+`"}`))
		req.Header.Set(middleware.InitDataHeader, signedInitData(200))
		return req
	}

	rec := env.do(selectReq("maria"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := env.sessionCookies(rec); got.TelegramID != "200" || got.SelectedStudentID != maria.ID {
		t.Errorf("expected telegram session for maria, got %+v", got)
	}

	rec = env.do(selectReq("oleg"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for unlinked student, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/select-student", strings.NewReader(`{"student_slug":"maria"}`))
	req.Header.Set(middleware.RequestedWithHeader, "XMLHttpRequest")
	rec = env.do(req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a Telegram identity, got %d", rec.Code)
	}
}

func TestTelegramAuth_ChooserUntilSelected(t *testing.T) {
	env := newTestEnv(t)
	ivan := env.store.AddStudent("ivan", "Иван Петров")
	maria := env.store.AddStudent("maria", "Мария Лопес")
	env.store.AddLink("200", ivan.ID)
	env.store.AddLink("200", maria.ID)

	first := env.do(telegramAuthRequest(200))
	if body := decodeBody(t, first); body["multiple_students"] != true {
		t.Fatalf("expected student list on first open, got %v", body)
	}
	if got := env.sessionCookies(first); got.HasSelectedStudent {
		t.Fatalf("no student was chosen yet, got %+v", got)
	}

	second := env.do(withCookies(telegramAuthRequest(200), first))
	if body := decodeBody(t, second); body["multiple_students"] != true {
		t.Fatalf("expected student list again until the user chooses, got %v", body)
	}

	selectReq := httptest.NewRequest(http.MethodPost, "/auth/select-student", strings.NewReader(`{"student_slug":"maria"}`))
	selectReq.Header.Set(middleware.InitDataHeader, signedInitData(200))
	selected := env.do(withCookies(selectReq, second))
	if selected.Code != http.StatusOK {
		t.Fatalf("expected 200 from select-student, got %d", selected.Code)
	}

	third := env.do(withCookies(telegramAuthRequest(200), selected))
	body := decodeBody(t, third)
	if body["redirect_url"] != "/student" || body["student_id"] != float64(maria.ID) {
		t.Fatalf("expected the chosen student, got %v", body)
	}
}

func TestStudentPage_ForgedTelegramCookies(t *testing.T) {
	env := newTestEnv(t)
	ivan := env.store.AddStudent("ivan", "Иван Петров")
	env.store.AddLink("200", ivan.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/student/balance", nil)
	req.AddCookie(&http.Cookie{Name: session.TelegramIDCookie, Value: "200"})
	req.AddCookie(&http.Cookie{Name: session.SelectedStudentCookie, Value: strconv.FormatInt(ivan.ID, 10)})
	if rec := env.do(req); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unsigned telegram cookies, got %d", rec.Code)
	}

	signedIn := env.do(telegramAuthRequest(200))
	req = withCookies(httptest.NewRequest(http.MethodGet, "/api/student/balance", nil), signedIn)
	if rec := env.do(req); rec.Code != http.StatusOK {
		t.Errorf("expected 200 with signed telegram cookies, got %d", rec.Code)
	}
}

func TestLogoutClearsCookies(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set(middleware.RequestedWithHeader, "XMLHttpRequest")
	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			t.Errorf("expected cookie %s to be expired", c.Name)
		}
	}
}

// loginAdmin returns the admin session cookie
func loginAdmin(t *testing.T, env *testEnv) *http.Cookie {
	t.Helper()
	if _, err := env.admins.CreateAdmin(context.Background(), "root", "correct-horse"); err != nil {
		t.Fatalf("failed to create admin: %v", err)
	}

	form := url.Values{"username": {"root"}, "password": {"wrong-password"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := env.do(req)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "Неверный логин или пароль") {
		t.Fatalf("expected failed login, got %d", rec.Code)
	}

	form.Set("password", "correct-horse")
	req = httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = env.do(req)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin" {
		t.Fatalf("expected redirect to dashboard, got %d", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.SessionName {
			return c
		}
	}
	t.Fatal("expected admin session cookie")
	return nil
}

func adminRequest(cookie *http.Cookie, method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.AddCookie(cookie)
	req.Header.Set(middleware.RequestedWithHeader, "XMLHttpRequest")
	return req
}

func TestAdminDashboard(t *testing.T) {
	env := newTestEnv(t)
	env.store.AddStudent("ivan", "Иван Петров")

	rec := env.do(httptest.NewRequest(http.MethodGet, "/admin", nil))
	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected redirect to login, got %d", rec.Code)
	}

	cookie := loginAdmin(t, env)
	rec = env.do(adminRequest(cookie, http.MethodGet, "/admin", ""))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Иван Петров") {
		t.Errorf("expected dashboard with students, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/login", nil)
	req.AddCookie(cookie)
	rec = env.do(req)
	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected logged in admin to skip the login form, got %d", rec.Code)
	}
}

func TestAdminAPI_Students(t *testing.T) {
	env := newTestEnv(t)
	cookie := loginAdmin(t, env)

	req := httptest.NewRequest(http.MethodPost, "/admin/api/students", strings.NewReader(`{"full_name":"Oleg"}`))
	req.AddCookie(cookie)
	if rec := env.do(req); rec.Code != http.StatusForbidden {
		t.Errorf("expected CSRF rejection without header, got %d", rec.Code)
	}

	rec := env.do(adminRequest(cookie, http.MethodPost, "/admin/api/students", `{"slug":"oleg","full_name":"Олег"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = env.do(adminRequest(cookie, http.MethodPost, "/admin/api/students", `{"slug":"oleg","full_name":"Олег"}`))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate, got %d", rec.Code)
	}

	anna := env.store.AddStudent("anna", "Anna")
	rec = env.do(adminRequest(cookie, http.MethodPost, "/admin/api/students/"+strconv.FormatInt(anna.ID, 10)+"/active", `{"active":false}`))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = env.do(adminRequest(cookie, http.MethodGet, "/admin/api/students?active_only=true", ""))
	body := decodeBody(t, rec)
	if body["total"] != float64(1) {
		t.Errorf("expected one active student, got %v", body)
	}
}

func TestAdminAPI_TokensAndLinks(t *testing.T) {
	env := newTestEnv(t)
	cookie := loginAdmin(t, env)
	ivan := env.store.AddStudent("ivan", "Иван Петров")
	id := strconv.FormatInt(ivan.ID, 10)

	rec := env.do(adminRequest(cookie, http.MethodPost, "/admin/api/tokens", `{"student_id":`+id+`,"expires_in_days":30,"note":"parent"}`))
	body := decodeBody(t, rec)
	token, _ := body["token"].(map[string]interface{})
	if rec.Code != http.StatusCreated || !strings.HasPrefix(token["url"].(string), "https://lessons.example.com/t/") {
		t.Fatalf("unexpected token response %d %v", rec.Code, body)
	}
	if token["created_by"] != "root" {
		t.Errorf("expected token created by root, got %v", token["created_by"])
	}

	rec = env.do(adminRequest(cookie, http.MethodPost, "/admin/api/tokens", `{"student_id":`+id+`,"expires_in_days":-1}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative expiry, got %d", rec.Code)
	}

	rec = env.do(adminRequest(cookie, http.MethodPost, "/admin/api/links", `{"telegram_id":"555","student_id":`+id+`}`))
	body = decodeBody(t, rec)
	link, _ := body["link"].(map[string]interface{})
	if rec.Code != http.StatusCreated || link == nil {
		t.Fatalf("unexpected link response %d %v", rec.Code, body)
	}

	linkID := strconv.FormatInt(int64(link["id"].(float64)), 10)
	rec = env.do(adminRequest(cookie, http.MethodDelete, "/admin/api/links/"+linkID, ""))
	if rec.Code != http.StatusOK {
		t.Errorf("expected unlink, got %d", rec.Code)
	}
	rec = env.do(adminRequest(cookie, http.MethodDelete, "/admin/api/links/"+linkID, ""))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a removed link, got %d", rec.Code)
	}
}

func TestAdminAPI_CacheAndMessages(t *testing.T) {
	env := newTestEnv(t)
	cookie := loginAdmin(t, env)

	rec := env.do(adminRequest(cookie, http.MethodGet, "/admin/api/cache", ""))
	body := decodeBody(t, rec)
	stats, _ := body["stats"].(map[string]interface{})
	if rec.Code != http.StatusOK || stats == nil {
		t.Errorf("unexpected stats %d %v", rec.Code, body)
	}

	rec = env.do(adminRequest(cookie, http.MethodPost, "/admin/api/cache/clear", `{"worksheet":"Ivan"}`))
	body = decodeBody(t, rec)
	if body["cleared"] != float64(1) || len(env.cache.cleared) != 1 || env.cache.cleared[0] != "Ivan" {
		t.Errorf("unexpected clear %v %v", body, env.cache.cleared)
	}

	rec = env.do(adminRequest(cookie, http.MethodPost, "/admin/api/messages", `{"link_id":1,"text":"Привет"}`))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a bot, got %d", rec.Code)
	}
}

func TestAdminAPI_RequiresSession(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/admin/api/students", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}
