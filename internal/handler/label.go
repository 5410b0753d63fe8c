package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/plannr/internal/auth"
	"github.com/dukerupert/plannr/internal/model"
	"github.com/dukerupert/plannr/internal/store"
	ws "github.com/dukerupert/plannr/internal/websocket"
)

type LabelHandler struct {
	labels *store.LabelStore
	hub    *ws.Hub
	logger *slog.Logger
}

func NewLabelHandler(labels *store.LabelStore, hub *ws.Hub, logger *slog.Logger) *LabelHandler {
	return &LabelHandler{labels: labels, hub: hub, logger: logger}
}

type labelRequest struct {
	Name  string `json:"name" validate:"required,max=50"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

func (h *LabelHandler) List(w http.ResponseWriter, r *http.Request) {
	labels, err := h.labels.List(auth.UserID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "list labels", err)
		return
	}
	if labels == nil {
		labels = []model.Label{}
	}
	writeJSON(w, http.StatusOK, labels)
}

func (h *LabelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if !decode(w, r, &req) {
		return
	}
	userID := auth.UserID(r.Context())

	l, err := h.labels.Create(userID, strings.TrimSpace(req.Name), req.Color)
	if err != nil {
		writeStoreError(w, h.logger, "create label", err)
		return
	}
	h.hub.Publish(userID, ws.NewMessage("label", "created", l.ID))
	writeJSON(w, http.StatusCreated, l)
}

func (h *LabelHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req labelRequest
	if !decode(w, r, &req) {
		return
	}
	userID := auth.UserID(r.Context())

	l, err := h.labels.Update(userID, id, strings.TrimSpace(req.Name), req.Color)
	if err != nil {
		writeStoreError(w, h.logger, "update label", err)
		return
	}
	h.hub.Publish(userID, ws.NewMessage("label", "updated", l.ID))
	writeJSON(w, http.StatusOK, l)
}

func (h *LabelHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	userID := auth.UserID(r.Context())

	if err := h.labels.Delete(userID, id); err != nil {
		writeStoreError(w, h.logger, "delete label", err)
		return
	}
	h.hub.Publish(userID, ws.NewMessage("label", "deleted", id))
	w.WriteHeader(http.StatusNoContent)
}
