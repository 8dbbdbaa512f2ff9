package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/devilmonastery/studenthistory/internal/auth"
	"github.com/devilmonastery/studenthistory/internal/domain/repositories"
	"github.com/devilmonastery/studenthistory/internal/domain/services"
	"github.com/devilmonastery/studenthistory/web/internal/middleware"
)

// AdminLoginPage shows the login form
func (h *Handler) AdminLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Sessions.GetValidatedAdmin(r); err == nil {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	h.renderTemplate(w, http.StatusOK, "admin_login.html", map[string]interface{}{})
}

// AdminLogin checks the submitted credentials and starts an admin session
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	token, err := h.Admins.Login(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.renderTemplate(w, http.StatusUnauthorized, "admin_login.html", map[string]interface{}{
				"Error":    "Неверный логин или пароль",
				"Username": username,
			})
			return
		}
		h.log.Error("admin login failed", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if err := h.Sessions.SetToken(r, w, token); err != nil {
		h.log.Error("failed to save admin session", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// AdminLogout ends the admin session
func (h *Handler) AdminLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.ClearToken(r, w); err != nil {
		h.log.Error("error clearing admin session", slog.String("error", err.Error()))
	}
	if r.Header.Get(middleware.RequestedWithHeader) == "XMLHttpRequest" {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":      true,
			"redirect_url": "/admin/login",
		})
		return
	}
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

// AdminDashboard renders the overview page
func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := auth.AdminClaimsFrom(ctx)

	students, studentTotal, err := h.Students.List(ctx, repositories.ListStudentsOptions{})
	if err != nil {
		h.dashboardError(w, err)
		return
	}
	pending, pendingTotal, err := h.Links.ListPending(ctx, repositories.Page{Limit: 50})
	if err != nil {
		h.dashboardError(w, err)
		return
	}
	logs, _, err := h.Access.List(ctx, repositories.ListAccessLogsOptions{Page: repositories.Page{Limit: 50}})
	if err != nil {
		h.dashboardError(w, err)
		return
	}
	messages, _, err := h.Messages.History(ctx, repositories.ListMessagesOptions{Page: repositories.Page{Limit: 20}})
	if err != nil {
		h.dashboardError(w, err)
		return
	}

	data := map[string]interface{}{
		"Admin":        claims.Username,
		"Students":     students,
		"StudentTotal": studentTotal,
		"Pending":      pending,
		"PendingTotal": pendingTotal,
		"AccessLogs":   logs,
		"Messages":     messages,
		"Cache":        nil,
	}
	if h.Sheets != nil {
		stats := h.Sheets.Stats()
		data["Cache"] = &stats
	}
	h.renderTemplate(w, http.StatusOK, "admin.html", data)
}

func (h *Handler) dashboardError(w http.ResponseWriter, err error) {
	h.log.Error("failed to load dashboard", slog.String("error", err.Error()))
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
