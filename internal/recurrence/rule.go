package recurrence

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Freq int

const (
	Unspecified Freq = iota
	Daily
	Weekly
	Monthly
	Yearly
)

var freqNames = map[Freq]string{
	Unspecified: "UNSPECIFIED",
	Daily:       "DAILY",
	Weekly:      "WEEKLY",
	Monthly:     "MONTHLY",
	Yearly:      "YEARLY",
}

var freqFromName = map[string]Freq{
	"UNSPECIFIED": Unspecified,
	"DAILY":       Daily,
	"WEEKLY":      Weekly,
	"MONTHLY":     Monthly,
	"YEARLY":      Yearly,
}

func (f Freq) String() string {
	return freqNames[f]
}

var dayNames = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

var dayAbbrev = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

// Rule is a recurrence pattern. Its concrete type is one of DailyRule,
// WeeklyRule, MonthlyRule or YearlyRule. A nil Rule is the unspecified rule of
// a draft recurring event and never produces occurrences.
type Rule interface {
	Freq() Freq
	// Every returns the step between occurrences in units of the frequency.
	Every() int
	// Valid reports whether the rule can be expanded.
	Valid() bool
}

// DailyRule repeats every Interval days. A zero Interval means 1.
type DailyRule struct {
	Interval int
}

// WeeklyRule repeats on Days in every Interval-th week, weeks counted in
// whole seven-day blocks from the pattern start date.
type WeeklyRule struct {
	Interval int
	Days     []time.Weekday
}

// MonthlyRule repeats on the given days of month in every Interval-th month.
// Months without a given day are skipped for that day.
type MonthlyRule struct {
	Interval int
	Days     []int
}

// YearlyRule repeats on the pattern start's month and day every Interval years.
type YearlyRule struct {
	Interval int
}

// MaxInterval bounds Interval for every frequency.
const MaxInterval = 1000

func interval(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

func (r DailyRule) Freq() Freq   { return Daily }
func (r DailyRule) Every() int   { return interval(r.Interval) }
func (r DailyRule) Valid() bool  { return validEvery(r.Every()) }
func (r WeeklyRule) Freq() Freq  { return Weekly }
func (r WeeklyRule) Every() int  { return interval(r.Interval) }
func (r MonthlyRule) Freq() Freq { return Monthly }
func (r MonthlyRule) Every() int { return interval(r.Interval) }
func (r YearlyRule) Freq() Freq  { return Yearly }
func (r YearlyRule) Every() int  { return interval(r.Interval) }
func (r YearlyRule) Valid() bool { return validEvery(r.Every()) }

func validEvery(n int) bool { return n >= 1 && n <= MaxInterval }

func (r WeeklyRule) Valid() bool {
	if !validEvery(r.Every()) || len(r.Days) == 0 {
		return false
	}
	for _, d := range r.Days {
		if d < time.Sunday || d > time.Saturday {
			return false
		}
	}
	return true
}

func (r MonthlyRule) Valid() bool {
	if !validEvery(r.Every()) || len(r.Days) == 0 {
		return false
	}
	for _, d := range r.Days {
		if d < 1 || d > 31 {
			return false
		}
	}
	return true
}

// FreqOf returns the frequency of r, Unspecified for nil.
func FreqOf(r Rule) Freq {
	if r == nil {
		return Unspecified
	}
	return r.Freq()
}

// Parse parses an RRULE-style string like "FREQ=WEEKLY;BYDAY=MO,WE;INTERVAL=2".
// An empty string or FREQ=UNSPECIFIED yields a nil Rule.
func Parse(rule string) (Rule, error) {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return nil, nil
	}

	freq := Unspecified
	every := 1
	var hasFreq bool
	var byDay []time.Weekday
	var byMonthDay []int

	parts := strings.Split(rule, ";")
	for _, part := range parts {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid rule part: %q", part)
		}
		key, val := strings.ToUpper(strings.TrimSpace(kv[0])), strings.TrimSpace(kv[1])

		switch key {
		case "FREQ":
			f, ok := freqFromName[strings.ToUpper(val)]
			if !ok {
				return nil, fmt.Errorf("unknown frequency: %q", val)
			}
			freq = f
			hasFreq = true

		case "INTERVAL":
			n, err := strconv.Atoi(val)
			if err != nil || !validEvery(n) {
				return nil, fmt.Errorf("invalid interval: %q", val)
			}
			every = n

		case "BYDAY":
			for _, d := range strings.Split(val, ",") {
				wd, ok := dayNames[strings.ToUpper(strings.TrimSpace(d))]
				if !ok {
					return nil, fmt.Errorf("unknown day: %q", d)
				}
				byDay = append(byDay, wd)
			}

		case "BYMONTHDAY":
			for _, d := range strings.Split(val, ",") {
				n, err := strconv.Atoi(strings.TrimSpace(d))
				if err != nil || n < 1 || n > 31 {
					return nil, fmt.Errorf("invalid BYMONTHDAY: %q", d)
				}
				byMonthDay = append(byMonthDay, n)
			}

		default:
			return nil, fmt.Errorf("unsupported rule key: %q", key)
		}
	}

	if !hasFreq {
		return nil, fmt.Errorf("FREQ is required")
	}
	if len(byDay) > 0 && freq != Weekly {
		return nil, fmt.Errorf("BYDAY is only allowed with FREQ=WEEKLY")
	}
	if len(byMonthDay) > 0 && freq != Monthly {
		return nil, fmt.Errorf("BYMONTHDAY is only allowed with FREQ=MONTHLY")
	}

	switch freq {
	case Daily:
		return DailyRule{Interval: every}, nil
	case Weekly:
		if len(byDay) == 0 {
			return nil, fmt.Errorf("BYDAY is required for FREQ=WEEKLY")
		}
		return WeeklyRule{Interval: every, Days: sortedWeekdays(byDay)}, nil
	case Monthly:
		if len(byMonthDay) == 0 {
			return nil, fmt.Errorf("BYMONTHDAY is required for FREQ=MONTHLY")
		}
		return MonthlyRule{Interval: every, Days: sortedMonthDays(byMonthDay)}, nil
	case Yearly:
		return YearlyRule{Interval: every}, nil
	}
	return nil, nil
}

// Format serializes r back to its RRULE-style string. A nil rule formats as "".
func Format(r Rule) string {
	if r == nil {
		return ""
	}

	parts := []string{"FREQ=" + r.Freq().String()}
	if r.Every() > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", r.Every()))
	}

	switch rule := r.(type) {
	case WeeklyRule:
		var days []string
		for _, d := range sortedWeekdays(rule.Days) {
			days = append(days, dayAbbrev[d])
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	case MonthlyRule:
		var days []string
		for _, d := range sortedMonthDays(rule.Days) {
			days = append(days, strconv.Itoa(d))
		}
		parts = append(parts, "BYMONTHDAY="+strings.Join(days, ","))
	}

	return strings.Join(parts, ";")
}

// Equal reports whether a and b describe the same pattern.
func Equal(a, b Rule) bool {
	return Format(a) == Format(b)
}

// Describe returns a human-readable summary of r. It is derived from the rule
// and never parsed back.
func Describe(r Rule) string {
	if r == nil {
		return "Does not repeat yet"
	}
	n := r.Every()

	switch rule := r.(type) {
	case DailyRule:
		if n > 1 {
			return fmt.Sprintf("Repeats every %d days", n)
		}
		return "Repeats daily"
	case WeeklyRule:
		prefix := "Repeats weekly"
		if n > 1 {
			prefix = fmt.Sprintf("Repeats every %d weeks", n)
		}
		if len(rule.Days) == 0 {
			return prefix
		}
		var names []string
		for _, d := range sortedWeekdays(rule.Days) {
			names = append(names, d.String()[:3])
		}
		return prefix + " on " + strings.Join(names, ", ")
	case MonthlyRule:
		prefix := "Repeats monthly"
		if n > 1 {
			prefix = fmt.Sprintf("Repeats every %d months", n)
		}
		if len(rule.Days) == 0 {
			return prefix
		}
		var days []string
		for _, d := range sortedMonthDays(rule.Days) {
			days = append(days, strconv.Itoa(d))
		}
		return prefix + " on day " + strings.Join(days, ", ")
	case YearlyRule:
		if n > 1 {
			return fmt.Sprintf("Repeats every %d years", n)
		}
		return "Repeats yearly"
	}
	return ""
}

// sortedWeekdays returns the distinct days ordered Monday first.
func sortedWeekdays(days []time.Weekday) []time.Weekday {
	out := slices.Clone(days)
	slices.SortFunc(out, func(a, b time.Weekday) int {
		return mondayIndex(a) - mondayIndex(b)
	})
	return slices.Compact(out)
}

func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func sortedMonthDays(days []int) []int {
	out := slices.Clone(days)
	slices.Sort(out)
	return slices.Compact(out)
}
