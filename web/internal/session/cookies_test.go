package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devilmonastery/studenthistory/internal/config"
)

var testHashKey = []byte("0123456789abcdef0123456789abcdef")

func newTestCodec() *CookieCodec {
	return NewCookieCodec(config.Defaults().Session, testHashKey)
}

func signed(t *testing.T, codec *CookieCodec, name string, value interface{}) string {
	t.Helper()
	encoded, err := codec.signer.Encode(name, value)
	if err != nil {
		t.Fatalf("failed to encode %s: %v", name, err)
	}
	return encoded
}

// replay builds a request carrying the live cookies set on rec
func replay(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/student", nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			req.AddCookie(c)
		}
	}
	return req
}

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestCookieCodec_Attributes(t *testing.T) {
	codec := newTestCodec()
	rec := httptest.NewRecorder()
	codec.SetToken(rec, "abc-123")
	if err := codec.SetTelegramSession(rec, "555", 42); err != nil {
		t.Fatalf("SetTelegramSession: %v", err)
	}

	cookies := cookiesByName(rec)
	want := map[string]int{
		TokenCookie:           int((365 * 24 * time.Hour).Seconds()),
		TelegramIDCookie:      int((24 * time.Hour).Seconds()),
		SelectedStudentCookie: int((24 * time.Hour).Seconds()),
	}

	for name, maxAge := range want {
		c, ok := cookies[name]
		if !ok {
			t.Fatalf("expected cookie %s", name)
		}
		if c.MaxAge != maxAge {
			t.Errorf("%s: expected max age %d, got %d", name, maxAge, c.MaxAge)
		}
		if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteNoneMode || c.Path != "/" {
			t.Errorf("%s: unexpected attributes %+v", name, c)
		}
	}
	if cookies[TokenCookie].Value != "abc-123" {
		t.Errorf("expected raw token value, got %q", cookies[TokenCookie].Value)
	}
	if v := cookies[TelegramIDCookie].Value; v == "555" {
		t.Error("telegram_id cookie must be signed")
	}

	got := codec.Read(replay(rec))
	wantRead := StudentCookies{Token: "abc-123", TelegramID: "555", SelectedStudentID: 42, HasSelectedStudent: true}
	if got != wantRead {
		t.Errorf("expected %+v, got %+v", wantRead, got)
	}
}

func TestCookieCodec_TelegramSessionWithoutSelection(t *testing.T) {
	codec := newTestCodec()
	rec := httptest.NewRecorder()
	if err := codec.SetTelegramSession(rec, "555", 0); err != nil {
		t.Fatalf("SetTelegramSession: %v", err)
	}

	cookies := cookiesByName(rec)
	if _, ok := cookies[TelegramIDCookie]; !ok {
		t.Error("expected telegram_id cookie")
	}
	if c, ok := cookies[SelectedStudentCookie]; !ok || c.MaxAge >= 0 {
		t.Errorf("expected selected_student_id to be expired, got %+v", c)
	}
	if got := codec.Read(replay(rec)); got.TelegramID != "555" || got.HasSelectedStudent {
		t.Errorf("unexpected read %+v", got)
	}
}

func TestCookieCodec_Read(t *testing.T) {
	codec := newTestCodec()
	other := NewCookieCodec(config.Defaults().Session, []byte("another-key-another-key-another!!"))

	tests := []struct {
		name    string
		cookies []*http.Cookie
		want    StudentCookies
	}{
		{"none", nil, StudentCookies{}},
		{"token only", []*http.Cookie{{Name: TokenCookie, Value: "abc-123"}}, StudentCookies{Token: "abc-123"}},
		{"telegram session", []*http.Cookie{
			{Name: TelegramIDCookie, Value: signed(t, codec, TelegramIDCookie, "555")},
			{Name: SelectedStudentCookie, Value: signed(t, codec, SelectedStudentCookie, int64(42))},
		}, StudentCookies{TelegramID: "555", SelectedStudentID: 42, HasSelectedStudent: true}},
		{"unsigned values are absent", []*http.Cookie{
			{Name: TelegramIDCookie, Value: "555"},
			{Name: SelectedStudentCookie, Value: "42"},
		}, StudentCookies{}},
		{"foreign key is absent", []*http.Cookie{
			{Name: TelegramIDCookie, Value: signed(t, other, TelegramIDCookie, "555")},
			{Name: SelectedStudentCookie, Value: signed(t, other, SelectedStudentCookie, int64(42))},
		}, StudentCookies{}},
		{"value moved between cookies is absent", []*http.Cookie{
			{Name: SelectedStudentCookie, Value: signed(t, codec, TelegramIDCookie, "42")},
		}, StudentCookies{}},
		{"non numeric telegram id is absent", []*http.Cookie{
			{Name: TelegramIDCookie, Value: signed(t, codec, TelegramIDCookie, "555; DROP")},
		}, StudentCookies{}},
		{"negative selection is absent", []*http.Cookie{
			{Name: SelectedStudentCookie, Value: signed(t, codec, SelectedStudentCookie, int64(-1))},
		}, StudentCookies{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/student", nil)
			for _, c := range tt.cookies {
				req.AddCookie(c)
			}
			if got := codec.Read(req); got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestIsTelegramID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"555", true},
		{"", false},
		{"-555", false},
		{"12345678901234567890", true},
		{"123456789012345678901", false},
		{"５５５", false},
	}
	for _, tt := range tests {
		if got := IsTelegramID(tt.in); got != tt.want {
			t.Errorf("IsTelegramID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCookieCodec_ClearAll(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestCodec().ClearAll(rec)

	cookies := cookiesByName(rec)
	for _, name := range []string{TokenCookie, TelegramIDCookie, SelectedStudentCookie} {
		c, ok := cookies[name]
		if !ok {
			t.Fatalf("expected %s to be cleared", name)
		}
		if c.MaxAge >= 0 || c.Value != "" {
			t.Errorf("%s: expected expired empty cookie, got %+v", name, c)
		}
		if !c.Secure || c.SameSite != http.SameSiteNoneMode {
			t.Errorf("%s: clear must keep attributes, got %+v", name, c)
		}
	}
}
