package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/devilmonastery/studenthistory/internal/auth"
	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/pkg/urlutil"
	"github.com/devilmonastery/studenthistory/web/internal/middleware"
)

type studentOption struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// TelegramAuth validates the Mini App initData header. One linked student
// redirects straight to the history page; several return the list to pick
// from.
func (h *Handler) TelegramAuth(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(middleware.InitDataHeader) == "" {
		writeError(w, http.StatusBadRequest, "Missing Telegram init data")
		return
	}
	if !h.InitData.Configured() {
		writeError(w, http.StatusServiceUnavailable, "Telegram bot not configured")
		return
	}

	// initData governs this endpoint; tokens are ignored
	sig := h.StudentAuth.Signals(r)
	sig.URLToken, sig.CookieToken = "", ""

	res, err := h.StudentAuth.ResolveSignals(w, r, sig)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if !res.Authenticated() {
		if res.Reason == auth.ReasonTelegramNotLinked {
			writeError(w, http.StatusForbidden, "Telegram account not linked to any student")
			return
		}
		writeError(w, http.StatusUnauthorized, "Invalid Telegram authentication")
		return
	}

	if len(res.Candidates) > 1 && res.Defaulted {
		options := make([]studentOption, 0, len(res.Candidates))
		for _, st := range res.Candidates {
			options = append(options, studentOption{ID: st.ID, Slug: st.Slug, Name: st.FullName})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":           true,
			"multiple_students": true,
			"students":          options,
			"telegram_id":       res.TelegramID,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"redirect_url": "/student",
		"student_id":   res.Student.ID,
		"telegram_id":  res.TelegramID,
	})
}

// SelectStudent picks one of the students linked to the caller's Telegram
// account. The account comes from initData, or from the telegram_id cookie
// when the client sends no initData.
func (h *Handler) SelectStudent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		StudentSlug string `json:"student_slug"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	body.StudentSlug = strings.TrimSpace(body.StudentSlug)
	if body.StudentSlug == "" {
		writeError(w, http.StatusBadRequest, "Missing student_slug")
		return
	}

	telegramID := ""
	if raw := r.Header.Get(middleware.InitDataHeader); raw != "" && h.InitData.Configured() {
		if user, err := h.InitData.Validate(raw, h.InitDataMaxAge); err == nil {
			telegramID = user.TelegramID
		}
	}
	if telegramID == "" {
		telegramID = h.Cookies.Read(r).TelegramID
	}
	if telegramID == "" {
		writeError(w, http.StatusUnauthorized, "Unable to determine Telegram ID. Please re-authenticate.")
		return
	}

	link, err := h.Links.SelectStudent(r.Context(), telegramID, body.StudentSlug)
	if err != nil {
		h.log.Error("student selection failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	ip := middleware.ClientIP(r, h.TrustProxy)
	entry := entities.NewAccessLog(entities.AuthMethodTelegram, telegramID).
		WithIPAddress(ip).
		WithUserAgent(r.UserAgent())

	if link == nil {
		h.Access.Record(r.Context(), entry.WithFailure("invalid_student_selection"))
		writeError(w, http.StatusForbidden, "Student not linked to this Telegram account")
		return
	}

	h.Access.Record(r.Context(), entry.WithStudent(link.StudentID))
	if err := h.Cookies.SetTelegramSession(w, telegramID, link.StudentID); err != nil {
		h.log.Error("failed to set telegram session", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"redirect_url": "/student",
		"student_id":   link.StudentID,
	})
}

// Logout clears every student cookie
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Cookies.ClearAll(w)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"redirect_url": "/",
	})
}

// TokenLink resolves a shared /t/{token} link, stores the token cookie and
// redirects to the history page with the token in the URL for iframes that
// drop cookies
func (h *Handler) TokenLink(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	base := h.StudentAuth.Signals(r)
	sig := auth.Signals{
		URLToken:  token,
		ClientIP:  base.ClientIP,
		UserAgent: base.UserAgent,
	}

	res, err := h.StudentAuth.ResolveSignals(w, r, sig)
	if err != nil {
		h.renderDenied(w, http.StatusInternalServerError, "Сервис временно недоступен")
		return
	}
	if !res.Authenticated() {
		h.renderDenied(w, http.StatusUnauthorized, "Неверный или истекший токен")
		return
	}

	http.Redirect(w, r, urlutil.StudentURL(0, token), http.StatusFound)
}
