package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/devilmonastery/studenthistory/internal/auth"
	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
	"github.com/devilmonastery/studenthistory/internal/domain/services"
)

func (h *Handler) adminName(r *http.Request) string {
	if claims, ok := auth.AdminClaimsFrom(r.Context()); ok {
		return claims.Username
	}
	return "admin"
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

func listResponse(items interface{}, total int64) map[string]interface{} {
	return map[string]interface{}{
		"success": true,
		"items":   items,
		"total":   total,
	}
}

// ListStudents handles GET /admin/api/students
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	opts := repositories.ListStudentsOptions{
		Page:       pageFromQuery(r),
		Search:     strings.TrimSpace(r.URL.Query().Get("search")),
		ActiveOnly: r.URL.Query().Get("active_only") == "true",
	}
	students, total, err := h.Students.List(r.Context(), opts)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(students, total))
}

// CreateStudent handles POST /admin/api/students
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req services.CreateStudentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	student, err := h.Students.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.log.Info("student created",
		slog.String("slug", student.Slug),
		slog.String("admin", h.adminName(r)))
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "student": student})
}

// SetStudentActive handles POST /admin/api/students/{id}/active
func (h *Handler) SetStudentActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid student id")
		return
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.Active == nil {
		writeError(w, http.StatusBadRequest, "active is required")
		return
	}
	if err := h.Students.SetActive(r.Context(), id, *req.Active); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// ListLinks handles GET /admin/api/links
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	opts := repositories.ListTelegramLinksOptions{
		Page:       pageFromQuery(r),
		StudentID:  queryInt64(r, "student_id"),
		TelegramID: queryString(r, "telegram_id"),
	}
	links, total, err := h.Links.ListLinks(r.Context(), opts)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(links, total))
}

// CreateLink handles POST /admin/api/links
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TelegramID string `json:"telegram_id"`
		StudentID  int64  `json:"student_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	link, err := h.Links.Link(r.Context(), strings.TrimSpace(req.TelegramID), req.StudentID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "link": link})
}

// DeleteLink handles DELETE /admin/api/links/{id}
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid link id")
		return
	}
	if err := h.Links.Unlink(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// ListPending handles GET /admin/api/pending
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, total, err := h.Links.ListPending(r.Context(), pageFromQuery(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(pending, total))
}

// ApprovePending handles POST /admin/api/pending/{id}/approve
func (h *Handler) ApprovePending(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid pending id")
		return
	}
	var req struct {
		StudentID int64 `json:"student_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil || req.StudentID == 0 {
		writeError(w, http.StatusBadRequest, "student_id is required")
		return
	}
	link, err := h.Links.Approve(r.Context(), id, req.StudentID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.log.Info("pending link approved",
		slog.Int64("pending_id", id),
		slog.Int64("student_id", req.StudentID),
		slog.String("admin", h.adminName(r)))
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "link": link})
}

// RejectPending handles POST /admin/api/pending/{id}/reject
func (h *Handler) RejectPending(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid pending id")
		return
	}
	if err := h.Links.Reject(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// tokenView adds the shareable link to a token
type tokenView struct {
	*entities.AccessToken
	URL string `json:"url"`
}

// ListTokens handles GET /admin/api/tokens
func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	opts := repositories.ListTokensOptions{
		Page:       pageFromQuery(r),
		StudentID:  queryInt64(r, "student_id"),
		ActiveOnly: r.URL.Query().Get("active_only") == "true",
	}
	tokens, total, err := h.Tokens.List(r.Context(), opts)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	views := make([]tokenView, 0, len(tokens))
	for _, t := range tokens {
		views = append(views, tokenView{AccessToken: t, URL: services.AccessURL(h.BaseURL, t.Token)})
	}
	writeJSON(w, http.StatusOK, listResponse(views, total))
}

// GenerateToken handles POST /admin/api/tokens
func (h *Handler) GenerateToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StudentID     int64  `json:"student_id"`
		ExpiresInDays int    `json:"expires_in_days"`
		Note          string `json:"note"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.ExpiresInDays < 0 {
		writeError(w, http.StatusBadRequest, "expires_in_days must not be negative")
		return
	}

	token, err := h.Tokens.Generate(r.Context(), services.GenerateTokenRequest{
		StudentID: req.StudentID,
		ExpiresIn: time.Duration(req.ExpiresInDays) * 24 * time.Hour,
		CreatedBy: h.adminName(r),
		Note:      req.Note,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"token":   tokenView{AccessToken: token, URL: services.AccessURL(h.BaseURL, token.Token)},
	})
}

// RevokeToken handles POST /admin/api/tokens/{id}/revoke
func (h *Handler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid token id")
		return
	}
	if err := h.Tokens.Revoke(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// ListAccessLogs handles GET /admin/api/access-logs
func (h *Handler) ListAccessLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := repositories.ListAccessLogsOptions{
		Page:       pageFromQuery(r),
		StudentID:  queryInt64(r, "student_id"),
		IPAddress:  queryString(r, "ip"),
		FailedOnly: q.Get("failed_only") == "true",
	}
	if m := q.Get("method"); m != "" {
		method := entities.AuthMethod(m)
		opts.Method = &method
	}
	if s := q.Get("success"); s != "" {
		success, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid success filter")
			return
		}
		opts.Success = &success
	}
	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		opts.Since = &since
	}

	logs, total, err := h.Access.List(r.Context(), opts)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(logs, total))
}

// CacheStats handles GET /admin/api/cache
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.Sheets == nil {
		writeError(w, http.StatusServiceUnavailable, "Google Sheets is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stats": h.Sheets.Stats()})
}

// ClearCache handles POST /admin/api/cache/clear. An empty worksheet
// clears every entry.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if h.Sheets == nil {
		writeError(w, http.StatusServiceUnavailable, "Google Sheets is not configured")
		return
	}
	var req struct {
		Worksheet string `json:"worksheet"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
	}
	cleared := h.Sheets.ClearCache(strings.TrimSpace(req.Worksheet))
	h.log.Info("sheets cache cleared",
		slog.String("worksheet", req.Worksheet),
		slog.Int("entries", cleared),
		slog.String("admin", h.adminName(r)))
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "cleared": cleared})
}

// SendMessage handles POST /admin/api/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LinkID int64  `json:"link_id"`
		Text   string `json:"text"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	msg, err := h.Messages.Send(r.Context(), req.LinkID, req.Text, h.adminName(r))
	if err != nil {
		if errors.Is(err, services.ErrDeliveryFailed) && msg != nil {
			writeJSON(w, http.StatusBadGateway, map[string]interface{}{
				"success": false,
				"error":   "Не удалось доставить сообщение",
				"message": msg,
			})
			return
		}
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": msg})
}

// ListMessages handles GET /admin/api/messages
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	opts := repositories.ListMessagesOptions{
		Page:       pageFromQuery(r),
		TelegramID: queryString(r, "telegram_id"),
	}
	messages, total, err := h.Messages.History(r.Context(), opts)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse(messages, total))
}
