package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/devilmonastery/studenthistory/internal/auth"
	"github.com/devilmonastery/studenthistory/web/internal/session"
)

// AccessRecorder appends resolution outcomes to the access log
type AccessRecorder interface {
	RecordResolution(ctx context.Context, res *auth.Resolution, ip, userAgent string)
}

// StudentAuth resolves the student behind each request and stores the
// resolution in the request context
type StudentAuth struct {
	resolver   *auth.Resolver
	cookies    *session.CookieCodec
	access     AccessRecorder
	trustProxy bool
	logger     *slog.Logger
}

// NewStudentAuth creates the student auth middleware
func NewStudentAuth(resolver *auth.Resolver, cookies *session.CookieCodec, access AccessRecorder, trustProxy bool, logger *slog.Logger) *StudentAuth {
	return &StudentAuth{
		resolver:   resolver,
		cookies:    cookies,
		access:     access,
		trustProxy: trustProxy,
		logger:     logger.With("component", "student_auth"),
	}
}

// Signals collects the credentials carried by r
func (m *StudentAuth) Signals(r *http.Request) auth.Signals {
	c := m.cookies.Read(r)
	return auth.Signals{
		URLToken:           strings.TrimSpace(r.URL.Query().Get("token")),
		InitData:           r.Header.Get(InitDataHeader),
		CookieToken:        c.Token,
		TelegramID:         c.TelegramID,
		SelectedStudentID:  c.SelectedStudentID,
		HasSelectedStudent: c.HasSelectedStudent,
		ClientIP:           ClientIP(r, m.trustProxy),
		UserAgent:          r.UserAgent(),
	}
}

// Resolve runs the resolver for r and records the outcome. Cookies are
// refreshed when a URL token or initData resolved.
func (m *StudentAuth) Resolve(w http.ResponseWriter, r *http.Request) (*auth.Resolution, error) {
	return m.ResolveSignals(w, r, m.Signals(r))
}

// ResolveSignals is Resolve with caller supplied signals
func (m *StudentAuth) ResolveSignals(w http.ResponseWriter, r *http.Request, sig auth.Signals) (*auth.Resolution, error) {
	res, err := m.resolver.Resolve(r.Context(), sig)
	if err != nil {
		m.logger.Error("Failed to resolve credentials",
			"path", r.URL.Path,
			"client_ip", sig.ClientIP,
			"error", err)
		return nil, err
	}

	if res.Reason != auth.ReasonNoCredentials {
		m.access.RecordResolution(r.Context(), res, sig.ClientIP, sig.UserAgent)
	}

	if res.Authenticated() {
		switch {
		case sig.URLToken != "":
			m.cookies.SetToken(w, sig.URLToken)
		case sig.InitData != "" && res.TelegramUser != nil:
			// a defaulted pick among several students is not a choice
			studentID := res.Student.ID
			if res.Defaulted {
				studentID = 0
			}
			if err := m.cookies.SetTelegramSession(w, res.TelegramID, studentID); err != nil {
				m.logger.Warn("Failed to set telegram session cookies",
					"telegram_id", res.TelegramID,
					"error", err)
			}
		}
		annotateRequest(r.Context(), res.Student.Slug, string(res.Method))
	}
	return res, nil
}

// Middleware resolves every request. Unauthenticated requests pass
// through so handlers decide how to respond.
func (m *StudentAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := m.Resolve(w, r)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithResolution(r.Context(), res)))
	})
}

// RequireStudent answers 401 JSON for requests without a resolved student
func RequireStudent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := auth.ResolutionFrom(r.Context())
		if !ok || !res.Authenticated() {
			writeJSONError(w, http.StatusUnauthorized, "Требуется авторизация")
			return
		}
		next.ServeHTTP(w, r)
	})
}
