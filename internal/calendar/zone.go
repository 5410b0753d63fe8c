package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"cloud.google.com/go/civil"
)

// ErrUnknownZone is returned for time zone ids that are not IANA names.
var ErrUnknownZone = errors.New("unknown time zone")

// LoadZone resolves an IANA zone id. It never falls back to a default zone.
func LoadZone(id string) (*time.Location, error) {
	id = strings.TrimSpace(id)
	if id == "" || id == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownZone, id)
	}
	loc, err := time.LoadLocation(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownZone, id)
	}
	return loc, nil
}

// DatesSpanned returns the local dates in loc covered by an instant range,
// start and end dates inclusive. A nil end yields the start's date only.
func DatesSpanned(start time.Time, end *time.Time, loc *time.Location) []civil.Date {
	return dateRange(spanBounds(start, end, loc))
}

// datesSpannedWithin is DatesSpanned clipped to [lo, hi]. It may be empty.
func datesSpannedWithin(start time.Time, end *time.Time, loc *time.Location, lo, hi civil.Date) []civil.Date {
	first, last := spanBounds(start, end, loc)
	if first.Before(lo) {
		first = lo
	}
	if last.After(hi) {
		last = hi
	}
	if last.Before(first) {
		return nil
	}
	return dateRange(first, last)
}

// spanBounds returns the first and last local dates of an instant range.
func spanBounds(start time.Time, end *time.Time, loc *time.Location) (first, last civil.Date) {
	first = civil.DateOf(start.In(loc))
	if end == nil || !end.After(start) {
		return first, first
	}
	return first, civil.DateOf(end.In(loc))
}

// LocalSpan places a zone-less time-of-day range on date in loc. A nil end
// stays nil. An end earlier than start falls on the following day.
func LocalSpan(date civil.Date, start civil.Time, end *civil.Time, loc *time.Location) (time.Time, *time.Time) {
	s := civil.DateTime{Date: date, Time: start}.In(loc)
	if end == nil {
		return s, nil
	}
	endDate := date
	if clockMinutes(*end) < clockMinutes(start) {
		endDate = date.AddDays(1)
	}
	e := civil.DateTime{Date: endDate, Time: *end}.In(loc)
	return s, &e
}

// localDatesSpanned is DatesSpanned for a recurring occurrence. The times
// are already in the viewer's zone, so no conversion is needed.
func localDatesSpanned(date civil.Date, start, end *civil.Time) []civil.Date {
	if start == nil || end == nil || clockMinutes(*end) >= clockMinutes(*start) {
		return []civil.Date{date}
	}
	return []civil.Date{date, date.AddDays(1)}
}

func clockMinutes(t civil.Time) int {
	return t.Hour*60 + t.Minute
}

func dateRange(first, last civil.Date) []civil.Date {
	out := make([]civil.Date, 0, last.DaysSince(first)+1)
	for d := first; !d.After(last); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}
