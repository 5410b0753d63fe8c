package handler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dukerupert/plannr/internal/auth"
	"github.com/dukerupert/plannr/internal/calendar"
	"github.com/dukerupert/plannr/internal/ics"
	"github.com/dukerupert/plannr/internal/model"
	"github.com/dukerupert/plannr/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
	maxSearchDays   = 366
)

type CalendarHandler struct {
	users     *store.UserStore
	labels    *store.LabelStore
	events    *store.EventStore
	recurring *store.RecurringEventStore
	now       func() time.Time
	logger    *slog.Logger
}

func NewCalendarHandler(users *store.UserStore, labels *store.LabelStore, events *store.EventStore, recurring *store.RecurringEventStore, now func() time.Time, logger *slog.Logger) *CalendarHandler {
	if now == nil {
		now = time.Now
	}
	return &CalendarHandler{
		users:     users,
		labels:    labels,
		events:    events,
		recurring: recurring,
		now:       now,
		logger:    logger,
	}
}

// zone loads the caller's zone, answering 500 when the stored id is broken.
func (h *CalendarHandler) zone(w http.ResponseWriter, r *http.Request) (*time.Location, bool) {
	loc, err := userZone(r)
	if err != nil {
		h.logger.Error("stored timezone does not load", "user_id", auth.UserID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "account timezone is invalid")
		return nil, false
	}
	return loc, true
}

// labelFilter parses ?label_id= and checks the label belongs to the caller.
func (h *CalendarHandler) labelFilter(w http.ResponseWriter, r *http.Request) (*int64, bool) {
	id, err := parseOptionalID(r.URL.Query().Get("label_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid label_id")
		return nil, false
	}
	if id == nil {
		return nil, true
	}
	l, err := h.labels.GetByID(auth.UserID(r.Context()), *id)
	if err != nil {
		writeStoreError(w, h.logger, "get label", err)
		return nil, false
	}
	if l == nil {
		writeError(w, http.StatusNotFound, "label not found")
		return nil, false
	}
	return id, true
}

// snapshot loads the events and active templates that can touch the local
// dates [first, last]. Both windows are widened by a day so items crossing
// midnight at either edge are seen.
func (h *CalendarHandler) snapshot(userID int64, first, last civil.Date, loc *time.Location) (*window, error) {
	from := first.AddDays(-1).In(loc)
	to := last.AddDays(2).In(loc)
	events, err := h.events.ListRange(userID, from, to)
	if err != nil {
		return nil, err
	}
	recurring, err := h.recurring.ListActive(userID, first.AddDays(-1), last)
	if err != nil {
		return nil, err
	}
	return &window{events: events, recurring: recurring}, nil
}

// View serves GET /api/calendar.
func (h *CalendarHandler) View(w http.ResponseWriter, r *http.Request) {
	loc, ok := h.zone(w, r)
	if !ok {
		return
	}

	today := h.now().In(loc)
	year, month := today.Year(), int(today.Month())
	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "year must be an integer")
			return
		}
		year = n
	}
	if v := q.Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be an integer")
			return
		}
		month = n
	}
	if err := calendar.ValidateMonth(year, month); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	labelID, ok := h.labelFilter(w, r)
	if !ok {
		return
	}

	userID := auth.UserID(r.Context())
	first, last := calendar.MonthBounds(year, time.Month(month))
	snap, err := h.snapshot(userID, first, last, loc)
	if err != nil {
		writeStoreError(w, h.logger, "load calendar", err)
		return
	}

	view, err := calendar.BuildView(calendar.ViewInput{
		Year:      year,
		Month:     month,
		Zone:      loc,
		LabelID:   labelID,
		Events:    snap.events,
		Recurring: snap.recurring,
	})
	if err != nil {
		h.logger.Error("build calendar view", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build calendar")
		return
	}
	if view.EventDates == nil {
		view.EventDates = []civil.Date{}
	}
	writeJSON(w, http.StatusOK, view)
}

type occurrencesResponse struct {
	Items      []calendar.OccurrenceRecord `json:"items"`
	NextCursor string                      `json:"next_cursor,omitempty"`
}

// Occurrences serves GET /api/occurrences: the caller's occurrences between
// two local dates, paged with an opaque cursor.
func (h *CalendarHandler) Occurrences(w http.ResponseWriter, r *http.Request) {
	loc, ok := h.zone(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	from, err := civil.ParseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	to, err := civil.ParseDate(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return
	}
	if to.DaysSince(from) > maxSearchDays {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("range must not exceed %d days", maxSearchDays))
		return
	}

	limit := defaultPageSize
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxPageSize))
			return
		}
		limit = n
	}

	var after *calendar.OccurrenceRecord
	if v := q.Get("after"); v != "" {
		c, err := decodeCursor(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		after = &c
	}

	labelID, ok := h.labelFilter(w, r)
	if !ok {
		return
	}

	userID := auth.UserID(r.Context())
	snap, err := h.snapshot(userID, from, to, loc)
	if err != nil {
		writeStoreError(w, h.logger, "load occurrences", err)
		return
	}

	records, err := calendar.Search(calendar.SearchInput{
		From:      from,
		To:        to,
		Zone:      loc,
		LabelID:   labelID,
		Events:    snap.events,
		Recurring: snap.recurring,
	})
	if err != nil {
		h.logger.Error("search occurrences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to search occurrences")
		return
	}

	writeJSON(w, http.StatusOK, page(records, after, limit))
}

// page returns up to limit records strictly after the cursor.
func page(records []calendar.OccurrenceRecord, after *calendar.OccurrenceRecord, limit int) occurrencesResponse {
	start := 0
	if after != nil {
		for start < len(records) && !after.Before(records[start]) {
			start++
		}
	}
	end := min(start+limit, len(records))

	resp := occurrencesResponse{Items: records[start:end]}
	if resp.Items == nil {
		resp.Items = []calendar.OccurrenceRecord{}
	}
	if end < len(records) {
		resp.NextCursor = encodeCursor(records[end-1])
	}
	return resp
}

// A cursor is the sort key of the last record served:
// start instant, kind, id and local date.
func encodeCursor(rec calendar.OccurrenceRecord) string {
	raw := strings.Join([]string{
		rec.Start.UTC().Format(time.RFC3339Nano),
		string(rec.Kind),
		strconv.FormatInt(rec.ID, 10),
		rec.Date.String(),
	}, "|")
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

var errBadCursor = errors.New("malformed cursor")

func decodeCursor(s string) (calendar.OccurrenceRecord, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return calendar.OccurrenceRecord{}, errBadCursor
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 4 {
		return calendar.OccurrenceRecord{}, errBadCursor
	}
	start, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return calendar.OccurrenceRecord{}, errBadCursor
	}
	kind := calendar.SourceKind(parts[1])
	if kind != calendar.KindEvent && kind != calendar.KindRecurring {
		return calendar.OccurrenceRecord{}, errBadCursor
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return calendar.OccurrenceRecord{}, errBadCursor
	}
	date, err := civil.ParseDate(parts[3])
	if err != nil {
		return calendar.OccurrenceRecord{}, errBadCursor
	}
	return calendar.OccurrenceRecord{Start: start, Kind: kind, ID: id, Date: date}, nil
}

// Export serves GET /api/calendar.ics.
func (h *CalendarHandler) Export(w http.ResponseWriter, r *http.Request) {
	loc, ok := h.zone(w, r)
	if !ok {
		return
	}
	userID := auth.UserID(r.Context())

	user, err := h.users.GetByID(userID)
	if err != nil || user == nil {
		writeStoreError(w, h.logger, "get user", orNotFound(err))
		return
	}
	events, err := h.events.List(userID)
	if err != nil {
		writeStoreError(w, h.logger, "list events", err)
		return
	}
	recurring, err := h.recurring.List(userID)
	if err != nil {
		writeStoreError(w, h.logger, "list recurring events", err)
		return
	}

	body, err := ics.Build(ics.Feed{
		Name:      user.Name,
		Zone:      loc,
		Stamp:     h.now(),
		Events:    events,
		Recurring: recurring,
	})
	if err != nil {
		h.logger.Error("build ics feed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="plannr.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

type window struct {
	events    []model.Event
	recurring []model.RecurringEvent
}

func orNotFound(err error) error {
	if err == nil {
		return store.ErrNotFound
	}
	return err
}
