package model

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/dukerupert/plannr/internal/recurrence"
)

// Event is a one-off event. A nil EndTime marks an untimed event pinned to
// its start instant. Instants are stored in UTC.
type Event struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Completed   bool       `json:"completed"`
	Unconfirmed bool       `json:"unconfirmed"`
	LabelID     *int64     `json:"label_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Untimed reports whether the event has no end instant.
func (e Event) Untimed() bool {
	return e.EndTime == nil
}

// RecurringEvent is a template expanded on demand into occurrences. Its
// times of day carry no zone; they are read in the viewer's zone.
type RecurringEvent struct {
	ID          int64                   `json:"id"`
	UserID      int64                   `json:"user_id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	LabelID     *int64                  `json:"label_id"`
	StartTime   *civil.Time             `json:"start_time"`
	EndTime     *civil.Time             `json:"end_time"`
	StartDate   *civil.Date             `json:"start_date"`
	EndDate     *civil.Date             `json:"end_date"`
	Rule        recurrence.Rule         `json:"-"`
	SkipDays    map[civil.Date]struct{} `json:"-"`
	Unconfirmed bool                    `json:"unconfirmed"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// Confirmable reports whether the template has everything confirmation needs.
func (r RecurringEvent) Confirmable() bool {
	return r.StartTime != nil && r.StartDate != nil && r.LabelID != nil &&
		r.Rule != nil && r.Rule.Valid()
}
