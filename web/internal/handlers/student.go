package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/devilmonastery/studenthistory/internal/auth"
	"github.com/devilmonastery/studenthistory/internal/domain/entities"
	"github.com/devilmonastery/studenthistory/internal/domain/services"
	"github.com/devilmonastery/studenthistory/internal/pkg/urlutil"
)

// Index shows the landing page, or sends a resolved student to the
// history page
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if res, ok := auth.ResolutionFrom(r.Context()); ok && res.Authenticated() {
		token := ""
		if res.Method == entities.AuthMethodToken {
			token = r.URL.Query().Get("token")
		}
		http.Redirect(w, r, urlutil.StudentURL(0, token), http.StatusFound)
		return
	}

	h.renderTemplate(w, http.StatusOK, "index.html", map[string]interface{}{})
}

// StudentPage shows the latest lessons of the resolved student.
// ?query=N sets how many lessons to show.
func (h *Handler) StudentPage(w http.ResponseWriter, r *http.Request) {
	res, ok := auth.ResolutionFrom(r.Context())
	if !ok || !res.Authenticated() {
		h.renderDenied(w, http.StatusUnauthorized,
			"Откройте приложение из Telegram или воспользуйтесь ссылкой доступа.")
		return
	}
	student := res.Student

	limit, err := strconv.Atoi(r.URL.Query().Get("query"))
	if err != nil || limit <= 0 {
		limit = services.DefaultLessonLimit
	}

	history, err := h.History.Lessons(r.Context(), student, limit)
	if err != nil {
		h.log.Error("failed to load lesson history",
			slog.String("student", student.Slug),
			slog.String("error", err.Error()))
		http.Error(w, "Ошибка получения данных", http.StatusInternalServerError)
		return
	}

	// The switcher is only offered to Telegram sessions; a token is bound
	// to a single student
	var linked []*entities.Student
	token := ""
	switch res.Method {
	case entities.AuthMethodTelegram:
		linked, err = h.Links.ActiveStudents(r.Context(), res.TelegramID)
		if err != nil {
			h.log.Warn("failed to list linked students",
				slog.String("telegram_id", res.TelegramID),
				slog.String("error", err.Error()))
			linked = nil
		}
	case entities.AuthMethodToken:
		token = r.URL.Query().Get("token")
	}

	h.renderTemplate(w, http.StatusOK, "student.html", map[string]interface{}{
		"Name":           student.FullName,
		"Slug":           student.Slug,
		"Lessons":        history.Lessons,
		"Query":          history.Limit,
		"IsMore":         history.IsMore,
		"Token":          token,
		"LinkedStudents": linked,
	})
}

// Balance returns the remaining lesson count, read without the cache
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	res, _ := auth.ResolutionFrom(r.Context())
	writeJSON(w, http.StatusOK, h.History.Balance(r.Context(), res.Student))
}
