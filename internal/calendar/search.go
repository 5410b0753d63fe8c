package calendar

import (
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dukerupert/plannr/internal/model"
	"github.com/dukerupert/plannr/internal/recurrence"
)

// OccurrenceRecord is one concrete occurrence in a search result.
type OccurrenceRecord struct {
	Date      civil.Date `json:"date"`
	Start     time.Time  `json:"start"`
	End       *time.Time `json:"end,omitempty"`
	Kind      SourceKind `json:"kind"`
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	LabelID   *int64     `json:"label_id,omitempty"`
	Completed bool       `json:"completed"`
}

// Before orders records by start instant, then kind, then id.
func (r OccurrenceRecord) Before(o OccurrenceRecord) bool {
	return compareRecords(r, o) < 0
}

// SearchInput is the snapshot an occurrence search runs over.
type SearchInput struct {
	From      civil.Date
	To        civil.Date
	Zone      *time.Location
	LabelID   *int64
	Events    []model.Event
	Recurring []model.RecurringEvent
}

// Search lists the occurrences that touch [From, To] in the viewer's zone,
// ordered by start instant, one-off events before recurring ones on ties,
// then by id.
func Search(in SearchInput) ([]OccurrenceRecord, error) {
	if in.Zone == nil {
		return nil, fmt.Errorf("%w: no zone given", ErrUnknownZone)
	}
	if in.To.Before(in.From) {
		return nil, nil
	}
	touches := func(first, last civil.Date) bool {
		return !first.After(in.To) && !last.Before(in.From)
	}

	var out []OccurrenceRecord
	for _, e := range in.Events {
		if e.Unconfirmed || !labelMatches(in.LabelID, e.LabelID) {
			continue
		}
		first, last := spanBounds(e.StartTime, e.EndTime, in.Zone)
		if !touches(first, last) {
			continue
		}
		out = append(out, OccurrenceRecord{
			Date:      first,
			Start:     e.StartTime,
			End:       e.EndTime,
			Kind:      KindEvent,
			ID:        e.ID,
			Name:      e.Name,
			LabelID:   e.LabelID,
			Completed: e.Completed,
		})
	}

	for _, r := range in.Recurring {
		if !expandable(r) || !labelMatches(in.LabelID, r.LabelID) {
			continue
		}
		startOfDay := civil.Time{}
		if r.StartTime != nil {
			startOfDay = *r.StartTime
		}
		for occ := range recurrence.Expand(r.Rule, paramsFor(r, in.From.AddDays(-1), in.To)) {
			spanned := localDatesSpanned(occ, r.StartTime, r.EndTime)
			if !touches(spanned[0], spanned[len(spanned)-1]) {
				continue
			}
			start, end := LocalSpan(occ, startOfDay, r.EndTime, in.Zone)
			out = append(out, OccurrenceRecord{
				Date:    occ,
				Start:   start,
				End:     end,
				Kind:    KindRecurring,
				ID:      r.ID,
				Name:    r.Name,
				LabelID: r.LabelID,
			})
		}
	}

	slices.SortFunc(out, compareRecords)
	return out, nil
}

func compareRecords(a, b OccurrenceRecord) int {
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	if c := a.Kind.rank() - b.Kind.rank(); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	switch {
	case a.Date.Before(b.Date):
		return -1
	case a.Date.After(b.Date):
		return 1
	}
	return 0
}
