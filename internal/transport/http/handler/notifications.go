package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-notification-service/internal/application/notification"
	"github.com/go-notification-service/internal/application/ownership"
	"github.com/go-notification-service/internal/transport/http/middleware"
)

type accessGuard interface {
	AuthorizeUser(caller ownership.Caller, targetUserID string) error
	AuthorizeNotification(ctx context.Context, caller ownership.Caller, notificationID string) error
}

// NotificationHandler handles the per-user notification endpoints.
type NotificationHandler struct {
	svc   notification.Service
	guard accessGuard
}

func NewNotificationHandler(svc notification.Service, guard accessGuard) *NotificationHandler {
	return &NotificationHandler{svc: svc, guard: guard}
}

// caller resolves the identity set by the auth middleware. Missing claims
// produce an empty Caller, which the guard rejects as unauthenticated.
func caller(r *http.Request) ownership.Caller {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return ownership.Caller{}
	}
	return ownership.Caller{UserID: claims.UserID, Role: claims.Role}
}

// authorizedUser runs the guard for the {userId} path parameter.
func (h *NotificationHandler) authorizedUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "userId")
	if err := h.guard.AuthorizeUser(caller(r), userID); err != nil {
		httpError(w, err)
		return "", false
	}
	return userID, true
}

func (h *NotificationHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizedUser(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListByUser(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *NotificationHandler) ListUnread(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizedUser(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListUnread(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizedUser(w, r)
	if !ok {
		return
	}
	n, err := h.svc.UnreadCount(r.Context(), userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountEnvelope{Count: n})
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.guard.AuthorizeNotification(r.Context(), caller(r), id); err != nil {
		httpError(w, err)
		return
	}
	n, err := h.svc.MarkAsRead(r.Context(), id)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizedUser(w, r)
	if !ok {
		return
	}
	if err := h.svc.MarkAllAsRead(r.Context(), userID); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
