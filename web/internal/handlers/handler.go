package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/devilmonastery/studenthistory/internal/auth"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
	"github.com/devilmonastery/studenthistory/internal/domain/services"
	"github.com/devilmonastery/studenthistory/internal/infrastructure/sheets"
	"github.com/devilmonastery/studenthistory/web/internal/middleware"
	"github.com/devilmonastery/studenthistory/web/internal/render"
	"github.com/devilmonastery/studenthistory/web/internal/session"
)

// SheetsCache is the admin view of the worksheet cache
type SheetsCache interface {
	Stats() sheets.Stats
	ClearCache(worksheet string) int
}

// Deps are the collaborators of the web handlers
type Deps struct {
	Templates   *render.TemplateSet
	StudentAuth *middleware.StudentAuth
	Cookies     *session.CookieCodec
	Sessions    *session.Manager
	InitData    *auth.InitDataValidator

	Students *services.StudentService
	Links    *services.LinkService
	Tokens   *services.TokenService
	Access   *services.AccessService
	Admins   *services.AdminService
	Messages *services.MessageService
	History  *services.HistoryService
	Sheets   SheetsCache // nil when Google Sheets is not configured

	DB             repositories.HealthChecker // nil skips the readiness query
	BaseURL        string
	InitDataMaxAge time.Duration
	TrustProxy     bool
}

// Handler holds dependencies for all web handlers
type Handler struct {
	Deps
	log *slog.Logger
}

// New creates a new handler with dependencies
func New(deps Deps, logger *slog.Logger) *Handler {
	return &Handler{
		Deps: deps,
		log:  logger.With(slog.String("component", "web_handler")),
	}
}

// renderTemplate renders a page with status
func (h *Handler) renderTemplate(w http.ResponseWriter, status int, name string, data interface{}) {
	if h.Templates == nil {
		http.Error(w, "Templates not loaded", http.StatusInternalServerError)
		return
	}
	h.log.Debug("rendering template", slog.String("template", name))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.Templates.Execute(w, name, data); err != nil {
		h.log.Error("template rendering failed",
			slog.String("template", name),
			slog.String("error", err.Error()))
	}
}

// renderDenied shows the generic access denied page
func (h *Handler) renderDenied(w http.ResponseWriter, status int, message string) {
	h.renderTemplate(w, status, "denied.html", map[string]interface{}{
		"Message": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// writeServiceError maps service and repository errors to HTTP statuses
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrMessageTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
	case services.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case services.IsConflict(err):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrMessengerDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

// pageFromQuery reads limit and offset query parameters
func pageFromQuery(r *http.Request) repositories.Page {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return repositories.Page{Limit: limit, Offset: offset}
}

func queryInt64(r *http.Request, key string) *int64 {
	v, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func queryString(r *http.Request, key string) *string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	return &v
}
