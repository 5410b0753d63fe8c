package store

import (
	"database/sql"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/dukerupert/plannr/internal/model"
	"github.com/dukerupert/plannr/internal/recurrence"
)

// RecurringInput carries the writable fields of a recurring event. Any field
// may be missing while the template is a draft.
type RecurringInput struct {
	Name        string
	Description string
	LabelID     *int64
	StartTime   *civil.Time
	EndTime     *civil.Time
	StartDate   *civil.Date
	EndDate     *civil.Date
	Rule        recurrence.Rule
}

func (in RecurringInput) validate() error {
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return ErrInvalidDateRange
	}
	if in.Rule != nil && !in.Rule.Valid() {
		return ErrInvalidRule
	}
	return nil
}

func (in RecurringInput) confirmable() bool {
	r := model.RecurringEvent{
		StartTime: in.StartTime,
		StartDate: in.StartDate,
		LabelID:   in.LabelID,
		Rule:      in.Rule,
	}
	return r.Confirmable()
}

type RecurringEventStore struct {
	db *sql.DB
}

func NewRecurringEventStore(db *sql.DB) *RecurringEventStore {
	return &RecurringEventStore{db: db}
}

const recurringCols = `id, user_id, name, description, label_id, start_time, end_time, start_date, end_date, rule, unconfirmed, created_at, updated_at`

func scanRecurring(row scanner) (*model.RecurringEvent, error) {
	var r model.RecurringEvent
	var labelID sql.NullInt64
	var startTime, endTime, startDate, endDate sql.NullString
	var rule string
	var unconfirmed int
	err := row.Scan(&r.ID, &r.UserID, &r.Name, &r.Description, &labelID,
		&startTime, &endTime, &startDate, &endDate, &rule, &unconfirmed,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.LabelID = idPtr(labelID)
	r.Unconfirmed = unconfirmed != 0
	if r.StartTime, err = parseNullClock(startTime); err != nil {
		return nil, err
	}
	if r.EndTime, err = parseNullClock(endTime); err != nil {
		return nil, err
	}
	if r.StartDate, err = parseNullDate(startDate); err != nil {
		return nil, err
	}
	if r.EndDate, err = parseNullDate(endDate); err != nil {
		return nil, err
	}
	if r.Rule, err = recurrence.Parse(rule); err != nil {
		return nil, fmt.Errorf("recurring event %d: %w", r.ID, err)
	}
	r.SkipDays = map[civil.Date]struct{}{}
	return &r, nil
}

// Create stores a new template as a draft.
func (s *RecurringEventStore) Create(userID int64, in RecurringInput) (*model.RecurringEvent, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := checkLabel(s.db, userID, in.LabelID); err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO recurring_events (user_id, name, description, label_id, start_time, end_time, start_date, end_date, rule)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, in.Name, in.Description, nullID(in.LabelID),
		nullClock(in.StartTime), nullClock(in.EndTime), nullDate(in.StartDate), nullDate(in.EndDate),
		recurrence.Format(in.Rule),
	)
	if err != nil {
		return nil, fmt.Errorf("insert recurring event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(userID, id)
}

// GetByID returns the template with its skip days, or nil when the user does
// not own one with that id.
func (s *RecurringEventStore) GetByID(userID, id int64) (*model.RecurringEvent, error) {
	row := s.db.QueryRow(`SELECT `+recurringCols+` FROM recurring_events WHERE id = ? AND user_id = ?`, id, userID)
	r, err := scanRecurring(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recurring event: %w", err)
	}

	rows, err := s.db.Query(`SELECT day FROM recurring_event_skip_days WHERE recurring_event_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query skip days: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan skip day: %w", err)
		}
		d, err := civil.ParseDate(day)
		if err != nil {
			return nil, fmt.Errorf("parse skip day %q: %w", day, err)
		}
		r.SkipDays[d] = struct{}{}
	}
	return r, rows.Err()
}

// List returns all of the user's templates, drafts included.
func (s *RecurringEventStore) List(userID int64) ([]model.RecurringEvent, error) {
	return s.list(`SELECT `+recurringCols+` FROM recurring_events WHERE user_id = ? ORDER BY id`, userID)
}

// ListActive returns the confirmed templates whose date range touches
// [from, to].
func (s *RecurringEventStore) ListActive(userID int64, from, to civil.Date) ([]model.RecurringEvent, error) {
	return s.list(
		`SELECT `+recurringCols+` FROM recurring_events
		 WHERE user_id = ? AND unconfirmed = 0
		   AND start_date <= ? AND (end_date IS NULL OR end_date >= ?)
		 ORDER BY id`,
		userID, to.String(), from.String(),
	)
}

func (s *RecurringEventStore) list(query string, userID int64, args ...any) ([]model.RecurringEvent, error) {
	rows, err := s.db.Query(query, append([]any{userID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query recurring events: %w", err)
	}
	var out []model.RecurringEvent
	index := map[int64]int{}
	for rows.Next() {
		r, err := scanRecurring(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan recurring event: %w", err)
		}
		index[r.ID] = len(out)
		out = append(out, *r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	skips, err := s.db.Query(
		`SELECT d.recurring_event_id, d.day FROM recurring_event_skip_days d
		 JOIN recurring_events r ON r.id = d.recurring_event_id
		 WHERE r.user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query skip days: %w", err)
	}
	defer skips.Close()
	for skips.Next() {
		var id int64
		var day string
		if err := skips.Scan(&id, &day); err != nil {
			return nil, fmt.Errorf("scan skip day: %w", err)
		}
		i, ok := index[id]
		if !ok {
			continue
		}
		d, err := civil.ParseDate(day)
		if err != nil {
			return nil, fmt.Errorf("parse skip day %q: %w", day, err)
		}
		out[i].SkipDays[d] = struct{}{}
	}
	return out, skips.Err()
}

// Update replaces every writable field. A confirmed template must stay
// complete; drafts may be left partial.
func (s *RecurringEventStore) Update(userID, id int64, in RecurringInput) (*model.RecurringEvent, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	existing, err := s.GetByID(userID, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	if !existing.Unconfirmed && !in.confirmable() {
		return nil, ErrIncompleteRecurringEvent
	}
	if err := checkLabel(s.db, userID, in.LabelID); err != nil {
		return nil, err
	}

	_, err = s.db.Exec(
		`UPDATE recurring_events
		 SET name = ?, description = ?, label_id = ?, start_time = ?, end_time = ?,
		     start_date = ?, end_date = ?, rule = ?
		 WHERE id = ? AND user_id = ?`,
		in.Name, in.Description, nullID(in.LabelID),
		nullClock(in.StartTime), nullClock(in.EndTime), nullDate(in.StartDate), nullDate(in.EndDate),
		recurrence.Format(in.Rule), id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update recurring event: %w", err)
	}
	return s.GetByID(userID, id)
}

// Delete removes the template; its skip days go with it.
func (s *RecurringEventStore) Delete(userID, id int64) error {
	result, err := s.db.Exec(`DELETE FROM recurring_events WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete recurring event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Confirm promotes a draft once it has a start time, start date, label and
// a valid rule.
func (s *RecurringEventStore) Confirm(userID, id int64) (*model.RecurringEvent, error) {
	r, err := s.GetByID(userID, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	if !r.Confirmable() {
		return nil, ErrIncompleteRecurringEvent
	}
	if _, err := s.db.Exec(`UPDATE recurring_events SET unconfirmed = 0 WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("confirm recurring event: %w", err)
	}
	return s.GetByID(userID, id)
}

// AddSkipDay excludes day from the template's occurrences. Adding a day
// twice is not an error.
func (s *RecurringEventStore) AddSkipDay(userID, id int64, day civil.Date) (*model.RecurringEvent, error) {
	if err := s.owned(userID, id); err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(
		`INSERT OR IGNORE INTO recurring_event_skip_days (recurring_event_id, day) VALUES (?, ?)`,
		id, day.String(),
	); err != nil {
		return nil, fmt.Errorf("add skip day: %w", err)
	}
	return s.GetByID(userID, id)
}

// RemoveSkipDay restores day. Removing a day that was never skipped is not
// an error.
func (s *RecurringEventStore) RemoveSkipDay(userID, id int64, day civil.Date) (*model.RecurringEvent, error) {
	if err := s.owned(userID, id); err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(
		`DELETE FROM recurring_event_skip_days WHERE recurring_event_id = ? AND day = ?`,
		id, day.String(),
	); err != nil {
		return nil, fmt.Errorf("remove skip day: %w", err)
	}
	return s.GetByID(userID, id)
}

func (s *RecurringEventStore) owned(userID, id int64) error {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM recurring_events WHERE id = ? AND user_id = ?`, id, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check recurring event: %w", err)
	}
	return nil
}
