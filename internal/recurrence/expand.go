package recurrence

import (
	"iter"
	"slices"
	"time"

	"cloud.google.com/go/civil"
)

// Params bounds an expansion.
type Params struct {
	// From and To are the inclusive query window.
	From civil.Date
	To   civil.Date

	// PatternStart anchors the interval arithmetic; PatternEnd, when set,
	// is the last date the pattern is active on.
	PatternStart civil.Date
	PatternEnd   *civil.Date

	// Skip holds dates excluded from the output.
	Skip map[civil.Date]struct{}
}

// SkipSet builds the set used by Params.Skip.
func SkipSet(days ...civil.Date) map[civil.Date]struct{} {
	set := make(map[civil.Date]struct{}, len(days))
	for _, d := range days {
		set[d] = struct{}{}
	}
	return set
}

// effective intersects the query window with the pattern's active range.
func (p Params) effective() (from, to civil.Date, ok bool) {
	from, to = p.From, p.To
	if from.Before(p.PatternStart) {
		from = p.PatternStart
	}
	if p.PatternEnd != nil && p.PatternEnd.Before(to) {
		to = *p.PatternEnd
	}
	if !from.IsValid() || !to.IsValid() || to.Before(from) {
		return civil.Date{}, civil.Date{}, false
	}
	return from, to, true
}

// Expand yields the dates r occurs on within p, ascending and without
// duplicates. A nil or invalid rule, or an empty window, yields nothing.
// The sequence depends only on its inputs and may be ranged over repeatedly.
func Expand(r Rule, p Params) iter.Seq[civil.Date] {
	return func(yield func(civil.Date) bool) {
		if r == nil || !r.Valid() || !p.PatternStart.IsValid() {
			return
		}
		from, to, ok := p.effective()
		if !ok {
			return
		}

		emit := func(d civil.Date) bool {
			if _, skip := p.Skip[d]; skip {
				return true
			}
			return yield(d)
		}

		switch rule := r.(type) {
		case DailyRule:
			expandDaily(rule.Every(), p.PatternStart, from, to, emit)
		case WeeklyRule:
			expandWeekly(rule.Every(), rule.Days, p.PatternStart, from, to, emit)
		case MonthlyRule:
			expandMonthly(rule.Every(), sortedMonthDays(rule.Days), p.PatternStart, from, to, emit)
		case YearlyRule:
			expandYearly(rule.Every(), p.PatternStart, from, to, emit)
		}
	}
}

// Collect is a convenience wrapper returning the expansion as a slice.
func Collect(r Rule, p Params) []civil.Date {
	return slices.Collect(Expand(r, p))
}

// ceilMultiple returns the smallest multiple of step that is >= n, for n >= 0.
func ceilMultiple(n, step int) int {
	if r := n % step; r != 0 {
		n += step - r
	}
	return n
}

func expandDaily(step int, start, from, to civil.Date, emit func(civil.Date) bool) {
	span := to.DaysSince(start)
	for off := ceilMultiple(from.DaysSince(start), step); off <= span; off += step {
		if !emit(start.AddDays(off)) {
			return
		}
		if off > span-step {
			return
		}
	}
}

func expandWeekly(step int, days []time.Weekday, start, from, to civil.Date, emit func(civil.Date) bool) {
	var want [7]bool
	for _, wd := range days {
		want[wd] = true
	}

	lastWeek := to.DaysSince(start) / 7
	for week := ceilMultiple(from.DaysSince(start)/7, step); week <= lastWeek; week += step {
		blockStart := start.AddDays(week * 7)
		for i := 0; i < 7; i++ {
			d := blockStart.AddDays(i)
			if d.Before(from) {
				continue
			}
			if d.After(to) {
				return
			}
			if want[weekday(d)] && !emit(d) {
				return
			}
		}
		if week > lastWeek-step {
			return
		}
	}
}

func expandMonthly(step int, days []int, start, from, to civil.Date, emit func(civil.Date) bool) {
	base := monthIndex(start)
	span := monthIndex(to) - base

	for off := ceilMultiple(monthIndex(from)-base, step); off <= span; off += step {
		idx := base + off
		year, month := idx/12, time.Month(idx%12+1)
		for _, day := range days {
			d := civil.Date{Year: year, Month: month, Day: day}
			if !d.IsValid() || d.Before(from) {
				continue
			}
			if d.After(to) {
				return
			}
			if !emit(d) {
				return
			}
		}
		if off > span-step {
			return
		}
	}
}

func expandYearly(step int, start, from, to civil.Date, emit func(civil.Date) bool) {
	span := to.Year - start.Year
	for off := ceilMultiple(from.Year-start.Year, step); off <= span; off += step {
		d := civil.Date{Year: start.Year + off, Month: start.Month, Day: start.Day}
		if d.IsValid() && !d.Before(from) {
			if d.After(to) || !emit(d) {
				return
			}
		}
		if off > span-step {
			return
		}
	}
}

func monthIndex(d civil.Date) int {
	return d.Year*12 + int(d.Month) - 1
}

func weekday(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}
