package calendar

import (
	"slices"

	"cloud.google.com/go/civil"
)

// SourceKind tells which kind of row an occurrence came from.
type SourceKind string

const (
	KindEvent     SourceKind = "event"
	KindRecurring SourceKind = "recurring_event"
)

// rank orders kinds for tie-breaks: one-off events before recurring ones.
func (k SourceKind) rank() int {
	if k == KindEvent {
		return 0
	}
	return 1
}

// Source identifies the row an occurrence was produced from.
type Source struct {
	Kind SourceKind `json:"kind"`
	ID   int64      `json:"id"`
}

// Occurrence is one date on which a source happens.
type Occurrence struct {
	Date   civil.Date
	Source Source
}

// Merged is the union of one-off and recurring occurrences.
type Merged struct {
	// Dates holds every occupied date once, ascending.
	Dates []civil.Date
	// Sources lists the sources on each date: one-off events first, then
	// recurring events, each in input order without repeats.
	Sources map[civil.Date][]Source
}

// Merge unions two occurrence streams by date. Inputs need not be sorted.
func Merge(oneOff, recurring []Occurrence) Merged {
	a := sortedByDate(oneOff)
	b := sortedByDate(recurring)

	m := Merged{
		Dates:   make([]civil.Date, 0, len(a)+len(b)),
		Sources: make(map[civil.Date][]Source),
	}
	add := func(o Occurrence) {
		if n := len(m.Dates); n == 0 || m.Dates[n-1] != o.Date {
			m.Dates = append(m.Dates, o.Date)
		}
		if !slices.Contains(m.Sources[o.Date], o.Source) {
			m.Sources[o.Date] = append(m.Sources[o.Date], o.Source)
		}
	}

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if !b[j].Date.Before(a[i].Date) {
			add(a[i])
			i++
		} else {
			add(b[j])
			j++
		}
	}
	for ; i < len(a); i++ {
		add(a[i])
	}
	for ; j < len(b); j++ {
		add(b[j])
	}
	return m
}

// EventIDs returns the distinct one-off event ids in date order.
func (m Merged) EventIDs() []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, d := range m.Dates {
		for _, src := range m.Sources[d] {
			if src.Kind != KindEvent || seen[src.ID] {
				continue
			}
			seen[src.ID] = true
			ids = append(ids, src.ID)
		}
	}
	return ids
}

func sortedByDate(in []Occurrence) []Occurrence {
	out := slices.Clone(in)
	slices.SortStableFunc(out, func(x, y Occurrence) int {
		switch {
		case x.Date.Before(y.Date):
			return -1
		case y.Date.Before(x.Date):
			return 1
		}
		return 0
	})
	return out
}
