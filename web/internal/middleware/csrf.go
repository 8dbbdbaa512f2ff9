package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/devilmonastery/studenthistory/internal/auth"
	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
)

// Headers consumed by the CSRF guard and the resolver
const (
	InitDataHeader      = "X-Telegram-Init-Data"
	RequestedWithHeader = "X-Requested-With"
)

// CSRFGuard rejects state-changing requests that carry neither verifiable
// Telegram initData nor the XMLHttpRequest marker header
type CSRFGuard struct {
	initData *auth.InitDataValidator
	maxAge   time.Duration
	logger   *slog.Logger
}

// NewCSRFGuard creates a CSRF guard
func NewCSRFGuard(initData *auth.InitDataValidator, maxAge time.Duration, logger *slog.Logger) *CSRFGuard {
	return &CSRFGuard{
		initData: initData,
		maxAge:   maxAge,
		logger:   logger.With("component", "csrf"),
	}
}

// Check reports whether r is allowed to change state
func (g *CSRFGuard) Check(r *http.Request) bool {
	if r.Header.Get(RequestedWithHeader) == "XMLHttpRequest" {
		return true
	}
	if raw := r.Header.Get(InitDataHeader); raw != "" && g.initData.Configured() {
		if _, err := g.initData.Validate(raw, g.maxAge); err == nil {
			return true
		}
	}
	return false
}

// Protect guards state-changing methods. Safe methods pass through.
func (g *CSRFGuard) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if !g.Check(r) {
			metrics.CSRFRejections.Inc()
			g.logger.Warn("CSRF check failed", "method", r.Method, "path", r.URL.Path)
			writeJSONError(w, http.StatusForbidden, "CSRF validation failed")
			return
		}
		next.ServeHTTP(w, r)
	})
}
