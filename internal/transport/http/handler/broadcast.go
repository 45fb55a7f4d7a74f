package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-notification-service/internal/domain"
	"github.com/go-notification-service/internal/pkg/validate"
)

type broadcaster interface {
	CreateForAllUsers(ctx context.Context, kind domain.Kind, title, body string) domain.BroadcastResult
}

// BroadcastHandler publishes administrator announcements to every user.
type BroadcastHandler struct {
	svc broadcaster
}

func NewBroadcastHandler(svc broadcaster) *BroadcastHandler {
	return &BroadcastHandler{svc: svc}
}

func (h *BroadcastHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.BroadcastRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpError(w, err)
		return
	}
	res := h.svc.CreateForAllUsers(r.Context(), req.Kind, req.Title, req.Body)
	writeJSON(w, http.StatusOK, res)
}
