package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/devilmonastery/studenthistory/web/internal/middleware"
)

// Middlewares are the guards wired in front of the routes
type Middlewares struct {
	StudentAuth *middleware.StudentAuth
	AdminAuth   *middleware.AdminAuth
	CSRF        *middleware.CSRFGuard
	General     *middleware.RateLimiter // nil disables rate limiting
	Strict      *middleware.RateLimiter // nil disables rate limiting
	TrustProxy  bool
}

func (m Middlewares) limit(l *middleware.RateLimiter) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return l.Middleware(m.TrustProxy)
}

func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// NewRouter sets up the HTTP router with all routes and middleware
func NewRouter(h *Handler, mw Middlewares, logger *slog.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.LogRequest(logger, mw.TrustProxy))
	router.Use(middleware.SecurityHeaders)

	general := mw.limit(mw.General)
	strict := mw.limit(mw.Strict)
	resolve := mw.StudentAuth.Middleware

	// Probes (no auth, no limits)
	router.HandleFunc("/health", h.Health).Methods("GET")
	router.HandleFunc("/ready", h.Ready).Methods("GET")
	router.HandleFunc("/version", h.VersionInfo).Methods("GET")

	// Student authentication
	router.Handle("/auth/telegram", chain(http.HandlerFunc(h.TelegramAuth), strict, mw.CSRF.Protect)).Methods("POST")
	router.Handle("/auth/select-student", chain(http.HandlerFunc(h.SelectStudent), strict, mw.CSRF.Protect)).Methods("POST")
	router.Handle("/auth/logout", chain(http.HandlerFunc(h.Logout), mw.CSRF.Protect)).Methods("POST")
	router.Handle("/t/{token}", chain(http.HandlerFunc(h.TokenLink), general)).Methods("GET")

	// Student pages
	router.Handle("/", chain(http.HandlerFunc(h.Index), general, resolve)).Methods("GET")
	router.Handle("/student", chain(http.HandlerFunc(h.StudentPage), general, resolve)).Methods("GET")
	router.Handle("/api/student/balance", chain(http.HandlerFunc(h.Balance), general, resolve, middleware.RequireStudent)).Methods("GET")

	// Admin session
	router.HandleFunc("/admin/login", h.AdminLoginPage).Methods("GET")
	router.Handle("/admin/login", chain(http.HandlerFunc(h.AdminLogin), strict)).Methods("POST")
	router.Handle("/admin/logout", chain(http.HandlerFunc(h.AdminLogout), mw.CSRF.Protect)).Methods("POST")
	router.Handle("/admin", chain(http.HandlerFunc(h.AdminDashboard), general, mw.AdminAuth.RequireAdmin)).Methods("GET")

	// Admin JSON API
	api := router.PathPrefix("/admin/api").Subrouter()
	api.Use(general, mw.AdminAuth.RequireAdmin, mw.CSRF.Protect)
	api.HandleFunc("/students", h.ListStudents).Methods("GET")
	api.HandleFunc("/students", h.CreateStudent).Methods("POST")
	api.HandleFunc("/students/{id:[0-9]+}/active", h.SetStudentActive).Methods("POST")
	api.HandleFunc("/links", h.ListLinks).Methods("GET")
	api.HandleFunc("/links", h.CreateLink).Methods("POST")
	api.HandleFunc("/links/{id:[0-9]+}", h.DeleteLink).Methods("DELETE")
	api.HandleFunc("/pending", h.ListPending).Methods("GET")
	api.HandleFunc("/pending/{id:[0-9]+}/approve", h.ApprovePending).Methods("POST")
	api.HandleFunc("/pending/{id:[0-9]+}/reject", h.RejectPending).Methods("POST")
	api.HandleFunc("/tokens", h.ListTokens).Methods("GET")
	api.HandleFunc("/tokens", h.GenerateToken).Methods("POST")
	api.HandleFunc("/tokens/{id:[0-9]+}/revoke", h.RevokeToken).Methods("POST")
	api.HandleFunc("/access-logs", h.ListAccessLogs).Methods("GET")
	api.HandleFunc("/cache", h.CacheStats).Methods("GET")
	api.HandleFunc("/cache/clear", h.ClearCache).Methods("POST")
	api.HandleFunc("/messages", h.ListMessages).Methods("GET")
	api.HandleFunc("/messages", h.SendMessage).Methods("POST")

	return router
}
