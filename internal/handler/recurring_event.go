package handler

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/dukerupert/plannr/internal/auth"
	"github.com/dukerupert/plannr/internal/model"
	"github.com/dukerupert/plannr/internal/recurrence"
	"github.com/dukerupert/plannr/internal/store"
	ws "github.com/dukerupert/plannr/internal/websocket"
)

type RecurringEventHandler struct {
	recurring *store.RecurringEventStore
	hub       *ws.Hub
	logger    *slog.Logger
}

func NewRecurringEventHandler(recurring *store.RecurringEventStore, hub *ws.Hub, logger *slog.Logger) *RecurringEventHandler {
	return &RecurringEventHandler{recurring: recurring, hub: hub, logger: logger}
}

// recurringRequest is lenient so drafts can be saved half filled in.
type recurringRequest struct {
	Name        string  `json:"name" validate:"max=200"`
	Description string  `json:"description" validate:"max=2000"`
	LabelID     *int64  `json:"label_id" validate:"omitempty,gt=0"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
	StartDate   *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate     *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Rule        string  `json:"rule" validate:"max=200"`
}

type skipDayRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

type recurringResponse struct {
	model.RecurringEvent
	Rule     string       `json:"rule"`
	Summary  string       `json:"summary"`
	SkipDays []civil.Date `json:"skip_days"`
}

func newRecurringResponse(r *model.RecurringEvent) recurringResponse {
	days := make([]civil.Date, 0, len(r.SkipDays))
	for d := range r.SkipDays {
		days = append(days, d)
	}
	slices.SortFunc(days, func(a, b civil.Date) int { return a.DaysSince(b) })
	return recurringResponse{
		RecurringEvent: *r,
		Rule:           recurrence.Format(r.Rule),
		Summary:        recurrence.Describe(r.Rule),
		SkipDays:       days,
	}
}

func (h *RecurringEventHandler) parse(w http.ResponseWriter, r *http.Request) (store.RecurringInput, bool) {
	var req recurringRequest
	if !decode(w, r, &req) {
		return store.RecurringInput{}, false
	}

	in := store.RecurringInput{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		LabelID:     req.LabelID,
	}
	var err error
	if in.StartTime, err = parseOptionalClock(req.StartTime); err != nil {
		writeError(w, http.StatusBadRequest, "start_time must be HH:MM")
		return store.RecurringInput{}, false
	}
	if in.EndTime, err = parseOptionalClock(req.EndTime); err != nil {
		writeError(w, http.StatusBadRequest, "end_time must be HH:MM")
		return store.RecurringInput{}, false
	}
	if in.StartDate, err = parseOptionalDate(req.StartDate); err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return store.RecurringInput{}, false
	}
	if in.EndDate, err = parseOptionalDate(req.EndDate); err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return store.RecurringInput{}, false
	}
	if in.Rule, err = recurrence.Parse(req.Rule); err != nil {
		writeError(w, http.StatusBadRequest, "rule: "+err.Error())
		return store.RecurringInput{}, false
	}
	return in, true
}

func (h *RecurringEventHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.parse(w, r)
	if !ok {
		return
	}
	userID := auth.UserID(r.Context())

	re, err := h.recurring.Create(userID, in)
	if err != nil {
		writeStoreError(w, h.logger, "create recurring event", err)
		return
	}
	h.hub.Publish(userID, ws.NewMessage("recurring_event", "created", re.ID))
	writeJSON(w, http.StatusCreated, newRecurringResponse(re))
}

func (h *RecurringEventHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.recurring.List(auth.UserID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "list recurring events", err)
		return
	}
	out := make([]recurringResponse, 0, len(list))
	for i := range list {
		out = append(out, newRecurringResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *RecurringEventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	re, err := h.recurring.GetByID(auth.UserID(r.Context()), id)
	if err != nil {
		writeStoreError(w, h.logger, "get recurring event", err)
		return
	}
	if re == nil {
		writeError(w, http.StatusNotFound, "recurring event not found")
		return
	}
	writeJSON(w, http.StatusOK, newRecurringResponse(re))
}

func (h *RecurringEventHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	re, err := h.recurring.Update(userID, id, in)
	if err != nil {
		writeStoreError(w, h.logger, "update recurring event", err)
		return
	}
	h.hub.Publish(userID, ws.NewMessage("recurring_event", "updated", re.ID))
	writeJSON(w, http.StatusOK, newRecurringResponse(re))
}

func (h *RecurringEventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	userID := auth.UserID(r.Context())

	if err := h.recurring.Delete(userID, id); err != nil {
		writeStoreError(w, h.logger, "delete recurring event", err)
		return
	}
	h.hub.Publish(userID, ws.NewMessage("recurring_event", "deleted", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *RecurringEventHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	userID := auth.UserID(r.Context())

	re, err := h.recurring.Confirm(userID, id)
	if err != nil {
		writeStoreError(w, h.logger, "confirm recurring event", err)
		return
	}
	h.hub.Publish(userID, ws.NewMessage("recurring_event", "confirmed", re.ID))
	writeJSON(w, http.StatusOK, newRecurringResponse(re))
}

func (h *RecurringEventHandler) AddSkipDay(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req skipDayRequest
	if !decode(w, r, &req) {
		return
	}
	day, err := civil.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	userID := auth.UserID(r.Context())

	re, err := h.recurring.AddSkipDay(userID, id, day)
	if err != nil {
		writeStoreError(w, h.logger, "skip day", err)
		return
	}
	h.hub.Publish(userID, ws.NewMessage("recurring_event", "updated", re.ID))
	writeJSON(w, http.StatusOK, newRecurringResponse(re))
}

func (h *RecurringEventHandler) RemoveSkipDay(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	day, err := civil.ParseDate(r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	userID := auth.UserID(r.Context())

	re, err := h.recurring.RemoveSkipDay(userID, id, day)
	if err != nil {
		writeStoreError(w, h.logger, "restore day", err)
		return
	}
	h.hub.Publish(userID, ws.NewMessage("recurring_event", "updated", re.ID))
	writeJSON(w, http.StatusOK, newRecurringResponse(re))
}
