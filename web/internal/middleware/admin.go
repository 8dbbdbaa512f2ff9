package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/devilmonastery/studenthistory/internal/auth"
	"github.com/devilmonastery/studenthistory/web/internal/session"
)

// AdminAuth ensures requests carry a valid admin session
type AdminAuth struct {
	sessionManager *session.Manager
	logger         *slog.Logger
}

// NewAdminAuth creates a new admin auth middleware
func NewAdminAuth(sessionManager *session.Manager, logger *slog.Logger) *AdminAuth {
	return &AdminAuth{
		sessionManager: sessionManager,
		logger:         logger.With("component", "admin_auth"),
	}
}

// RequireAdmin stores the admin claims in the context or rejects the
// request. API calls get 401 JSON, pages are redirected to the login form.
func (m *AdminAuth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.sessionManager.GetValidatedAdmin(r)
		if err != nil {
			if !errors.Is(err, session.ErrNoToken) {
				m.logger.Debug("Rejected admin session", "error", err)
			}
			if strings.HasPrefix(r.URL.Path, "/admin/api/") {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}

		annotateRequest(r.Context(), "admin:"+claims.Username, "admin")
		next.ServeHTTP(w, r.WithContext(auth.WithAdminClaims(r.Context(), claims)))
	})
}
