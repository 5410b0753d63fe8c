package ics

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/teambition/rrule-go"

	"github.com/dukerupert/plannr/internal/recurrence"
)

var weekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// ROption converts r into rrule-go options. Weeks are counted in seven-day
// blocks from the pattern start, so WKST is set to the pattern start's
// weekday. ok is false for a nil or invalid rule.
func ROption(r recurrence.Rule, patternStart civil.Date) (opt rrule.ROption, ok bool) {
	if r == nil || !r.Valid() {
		return rrule.ROption{}, false
	}
	opt.Interval = r.Every()
	opt.Wkst = weekdays[patternStart.In(time.UTC).Weekday()]

	switch rule := r.(type) {
	case recurrence.DailyRule:
		opt.Freq = rrule.DAILY
	case recurrence.WeeklyRule:
		opt.Freq = rrule.WEEKLY
		for _, d := range rule.Days {
			opt.Byweekday = append(opt.Byweekday, weekdays[d])
		}
	case recurrence.MonthlyRule:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = append(opt.Bymonthday, rule.Days...)
	case recurrence.YearlyRule:
		opt.Freq = rrule.YEARLY
	default:
		return rrule.ROption{}, false
	}
	return opt, true
}

// firstOccurrence is the first date the rule produces on or after the
// pattern start, ignoring skip days.
func firstOccurrence(r recurrence.Rule, start civil.Date, end *civil.Date) (civil.Date, bool) {
	to := civil.Date{Year: 9999, Month: time.December, Day: 31}
	if end != nil {
		to = *end
	}
	for d := range recurrence.Expand(r, recurrence.Params{From: start, To: to, PatternStart: start, PatternEnd: end}) {
		return d, true
	}
	return civil.Date{}, false
}
