// Package ics renders a user's events as an iCalendar feed.
package ics

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/dukerupert/plannr/internal/calendar"
	"github.com/dukerupert/plannr/internal/model"
)

const (
	productID   = "-//plannr//plannr//EN"
	localLayout = "20060102T150405"
)

var uidSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://plannr.app/ics"))

// UID returns a stable identifier for an exported item.
func UID(kind calendar.SourceKind, id int64) string {
	return uuid.NewSHA1(uidSpace, []byte(string(kind)+":"+strconv.FormatInt(id, 10))).String() + "@plannr"
}

// Feed is the data one export covers. Zone is the owner's zone, used for
// the zone-less times of recurring events.
type Feed struct {
	Name      string
	Zone      *time.Location
	Stamp     time.Time
	Events    []model.Event
	Recurring []model.RecurringEvent
}

// tzid is a TZID property parameter.
type tzid string

func (z tzid) KeyValue(_ ...interface{}) (string, []string) {
	return string(ical.ParameterTzid), []string{string(z)}
}

// Build serializes the feed. Drafts are left out; confirmed recurring events
// become one VEVENT carrying RRULE and EXDATE lines.
func Build(f Feed) (string, error) {
	if f.Zone == nil {
		return "", fmt.Errorf("build feed: %w", calendar.ErrUnknownZone)
	}

	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	if f.Name != "" {
		cal.SetXWRCalName(f.Name)
	}

	for _, e := range f.Events {
		if e.Unconfirmed {
			continue
		}
		ev := cal.AddEvent(UID(calendar.KindEvent, e.ID))
		ev.SetDtStampTime(f.Stamp)
		ev.SetSummary(e.Name)
		if e.Description != "" {
			ev.SetDescription(e.Description)
		}
		ev.SetStartAt(e.StartTime)
		if e.EndTime != nil {
			ev.SetEndAt(*e.EndTime)
		}
	}

	for _, r := range f.Recurring {
		if err := addRecurring(cal, r, f.Zone, f.Stamp); err != nil {
			return "", err
		}
	}

	return cal.Serialize(), nil
}

func addRecurring(cal *ical.Calendar, r model.RecurringEvent, loc *time.Location, stamp time.Time) error {
	if r.Unconfirmed || r.StartDate == nil {
		return nil
	}
	opt, ok := ROption(r.Rule, *r.StartDate)
	if !ok {
		return nil
	}
	first, ok := firstOccurrence(r.Rule, *r.StartDate, r.EndDate)
	if !ok {
		return nil
	}

	startOfDay := civil.Time{}
	if r.StartTime != nil {
		startOfDay = *r.StartTime
	}
	start, end := calendar.LocalSpan(first, startOfDay, r.EndTime, loc)
	if r.EndDate != nil {
		until, _ := calendar.LocalSpan(*r.EndDate, startOfDay, nil, loc)
		opt.Until = until.UTC()
	}
	zone := tzid(loc.String())

	ev := cal.AddEvent(UID(calendar.KindRecurring, r.ID))
	ev.SetDtStampTime(stamp)
	ev.SetSummary(r.Name)
	if r.Description != "" {
		ev.SetDescription(r.Description)
	}
	ev.SetProperty(ical.ComponentPropertyDtStart, start.In(loc).Format(localLayout), zone)
	if end != nil {
		ev.SetProperty(ical.ComponentPropertyDtEnd, end.In(loc).Format(localLayout), zone)
	}
	ev.AddRrule(opt.RRuleString())

	skips := make([]civil.Date, 0, len(r.SkipDays))
	for d := range r.SkipDays {
		skips = append(skips, d)
	}
	slices.SortFunc(skips, func(a, b civil.Date) int { return a.DaysSince(b) })
	for _, d := range skips {
		at, _ := calendar.LocalSpan(d, startOfDay, nil, loc)
		ev.AddProperty(ical.ComponentPropertyExdate, at.In(loc).Format(localLayout), zone)
	}
	return nil
}
