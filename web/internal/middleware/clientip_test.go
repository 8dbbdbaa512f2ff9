package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{"remote addr", "10.0.0.1:5555", nil, false, "10.0.0.1"},
		{"forwarded ignored without trust", "10.0.0.1:5555", map[string]string{"X-Forwarded-For": "1.2.3.4"}, false, "10.0.0.1"},
		{"forwarded first hop", "10.0.0.1:5555", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.2"}, true, "1.2.3.4"},
		{"real ip", "10.0.0.1:5555", map[string]string{"X-Real-IP": "5.6.7.8"}, true, "5.6.7.8"},
		{"no port", "10.0.0.1", nil, false, "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, h := range []string{"X-Content-Type-Options", "X-XSS-Protection", "Strict-Transport-Security", "Referrer-Policy", "Content-Security-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("expected %s header", h)
		}
	}
	if rec.Header().Get("Referrer-Policy") != "no-referrer" {
		t.Errorf("unexpected referrer policy %q", rec.Header().Get("Referrer-Policy"))
	}
}
