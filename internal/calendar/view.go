package calendar

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dukerupert/plannr/internal/model"
	"github.com/dukerupert/plannr/internal/recurrence"
)

// ErrInvalidCalendarParams is returned for a month outside 1..12 or a year below 1.
var ErrInvalidCalendarParams = errors.New("invalid calendar parameters")

// ValidateMonth checks a year/month pair requested by a client.
func ValidateMonth(year, month int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d not in 1..12", ErrInvalidCalendarParams, month)
	}
	if year < 1 {
		return fmt.Errorf("%w: year %d must be positive", ErrInvalidCalendarParams, year)
	}
	return nil
}

// MonthBounds returns the first and last date of a month.
func MonthBounds(year int, month time.Month) (civil.Date, civil.Date) {
	first := civil.Date{Year: year, Month: month, Day: 1}
	last := civil.DateOf(time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC))
	return first, last
}

// ViewInput is the snapshot a month view is computed from. Events and
// Recurring belong to one user; LabelID, when set, has already been checked
// to belong to that user.
type ViewInput struct {
	Year      int
	Month     int
	Zone      *time.Location
	LabelID   *int64
	Events    []model.Event
	Recurring []model.RecurringEvent
}

type Stats struct {
	TotalEvents          int   `json:"total_events"`
	TotalDurationMinutes int64 `json:"total_duration_minutes"`
}

// View is a calendar month: the dates holding at least one occurrence, and
// stats over completed events when a label filter was given.
type View struct {
	EventDates []civil.Date `json:"event_dates"`
	Stats      *Stats       `json:"stats,omitempty"`
}

// BuildView computes the month view for in.
//
// An item belongs to the month when any date it spans, in the viewer's zone,
// falls inside it. Recurring occurrences contribute dates only; stats count
// completed one-off events, untimed ones with zero duration.
func BuildView(in ViewInput) (View, error) {
	if err := ValidateMonth(in.Year, in.Month); err != nil {
		return View{}, err
	}
	if in.Zone == nil {
		return View{}, fmt.Errorf("%w: no zone given", ErrUnknownZone)
	}

	first, last := MonthBounds(in.Year, time.Month(in.Month))
	inMonth := func(d civil.Date) bool {
		return !d.Before(first) && !d.After(last)
	}

	byID := make(map[int64]model.Event, len(in.Events))
	var oneOff []Occurrence
	for _, e := range in.Events {
		if e.Unconfirmed || !labelMatches(in.LabelID, e.LabelID) {
			continue
		}
		byID[e.ID] = e
		for _, d := range datesSpannedWithin(e.StartTime, e.EndTime, in.Zone, first, last) {
			oneOff = append(oneOff, Occurrence{Date: d, Source: Source{Kind: KindEvent, ID: e.ID}})
		}
	}

	var repeated []Occurrence
	for _, r := range in.Recurring {
		if !expandable(r) || !labelMatches(in.LabelID, r.LabelID) {
			continue
		}
		// Start a day early so an occurrence crossing midnight into the
		// first of the month is seen.
		for occ := range recurrence.Expand(r.Rule, paramsFor(r, first.AddDays(-1), last)) {
			for _, d := range localDatesSpanned(occ, r.StartTime, r.EndTime) {
				if inMonth(d) {
					repeated = append(repeated, Occurrence{Date: d, Source: Source{Kind: KindRecurring, ID: r.ID}})
				}
			}
		}
	}

	merged := Merge(oneOff, repeated)
	view := View{EventDates: merged.Dates}
	if in.LabelID == nil {
		return view, nil
	}

	// Whole minutes and leftover seconds are kept apart so the sum is
	// truncated once and long spans cannot overflow a Duration.
	stats := &Stats{}
	var rem time.Duration
	for _, id := range merged.EventIDs() {
		e := byID[id]
		if !e.Completed {
			continue
		}
		stats.TotalEvents++
		if e.EndTime != nil {
			d := e.EndTime.Sub(e.StartTime)
			stats.TotalDurationMinutes += int64(d / time.Minute)
			rem += d % time.Minute
		}
	}
	stats.TotalDurationMinutes += int64(rem / time.Minute)
	view.Stats = stats
	return view, nil
}

// expandable reports whether a template may produce occurrences.
func expandable(r model.RecurringEvent) bool {
	return !r.Unconfirmed && r.Rule != nil && r.StartDate != nil
}

func paramsFor(r model.RecurringEvent, from, to civil.Date) recurrence.Params {
	return recurrence.Params{
		From:         from,
		To:           to,
		PatternStart: *r.StartDate,
		PatternEnd:   r.EndDate,
		Skip:         r.SkipDays,
	}
}

func labelMatches(filter, label *int64) bool {
	if filter == nil {
		return true
	}
	return label != nil && *label == *filter
}
