package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/plannr/internal/auth"
	"github.com/dukerupert/plannr/internal/store"
	ws "github.com/dukerupert/plannr/internal/websocket"
)

type EventHandler struct {
	events *store.EventStore
	hub    *ws.Hub
	logger *slog.Logger
}

func NewEventHandler(events *store.EventStore, hub *ws.Hub, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: events, hub: hub, logger: logger}
}

type eventRequest struct {
	Name        string  `json:"name" validate:"max=200"`
	Description string  `json:"description" validate:"max=2000"`
	StartTime   string  `json:"start_time" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndTime     *string `json:"end_time" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	LabelID     *int64  `json:"label_id" validate:"omitempty,gt=0"`
	Unconfirmed bool    `json:"unconfirmed"`
}

func (req eventRequest) input() (store.EventInput, error) {
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return store.EventInput{}, err
	}
	end, err := parseOptionalInstant(req.EndTime)
	if err != nil {
		return store.EventInput{}, err
	}
	return store.EventInput{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		StartTime:   start,
		EndTime:     end,
		LabelID:     req.LabelID,
		Unconfirmed: req.Unconfirmed,
	}, nil
}

func (h *EventHandler) parse(w http.ResponseWriter, r *http.Request) (store.EventInput, bool) {
	var req eventRequest
	if !decode(w, r, &req) {
		return store.EventInput{}, false
	}
	in, err := req.input()
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_time and end_time must be RFC3339")
		return store.EventInput{}, false
	}
	return in, true
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.parse(w, r)
	if !ok {
		return
	}
	userID := auth.UserID(r.Context())

	e, err := h.events.Create(userID, in)
	if err != nil {
		writeStoreError(w, h.logger, "create event", err)
		return
	}
	h.hub.Publish(userID, ws.NewMessage("event", "created", e.ID))
	writeJSON(w, http.StatusCreated, e)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	e, err := h.events.GetByID(auth.UserID(r.Context()), id)
	if err != nil {
		writeStoreError(w, h.logger, "get event", err)
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	in, ok := h.parse(w, r)
	if !ok {
		return
	}
	userID := auth.UserID(r.Context())

	e, err := h.events.Update(userID, id, in)
	if err != nil {
		writeStoreError(w, h.logger, "update event", err)
		return
	}
	h.hub.Publish(userID, ws.NewMessage("event", "updated", e.ID))
	writeJSON(w, http.StatusOK, e)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	userID := auth.UserID(r.Context())

	if err := h.events.Delete(userID, id); err != nil {
		writeStoreError(w, h.logger, "delete event", err)
		return
	}
	h.hub.Publish(userID, ws.NewMessage("event", "deleted", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *EventHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.setCompleted(w, r, true)
}

func (h *EventHandler) Uncomplete(w http.ResponseWriter, r *http.Request) {
	h.setCompleted(w, r, false)
}

func (h *EventHandler) setCompleted(w http.ResponseWriter, r *http.Request, completed bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	userID := auth.UserID(r.Context())

	e, err := h.events.SetCompleted(userID, id, completed)
	if err != nil {
		writeStoreError(w, h.logger, "update event", err)
		return
	}
	h.hub.Publish(userID, ws.NewMessage("event", "updated", e.ID))
	writeJSON(w, http.StatusOK, e)
}

func (h *EventHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	userID := auth.UserID(r.Context())

	e, err := h.events.Confirm(userID, id)
	if err != nil {
		writeStoreError(w, h.logger, "confirm event", err)
		return
	}
	h.hub.Publish(userID, ws.NewMessage("event", "confirmed", e.ID))
	writeJSON(w, http.StatusOK, e)
}
