package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/plannr/internal/model"
)

// EventInput carries the writable fields of a one-off event.
type EventInput struct {
	Name        string
	Description string
	StartTime   time.Time
	EndTime     *time.Time
	LabelID     *int64
	Unconfirmed bool
}

func (in EventInput) validate() error {
	if in.EndTime != nil && !in.EndTime.After(in.StartTime) {
		return ErrInvalidEventTime
	}
	return nil
}

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

const eventCols = `id, user_id, name, description, start_time, end_time, completed, unconfirmed, label_id, created_at, updated_at`

func scanEvent(row scanner) (*model.Event, error) {
	var e model.Event
	var start string
	var end sql.NullString
	var completed, unconfirmed int
	var labelID sql.NullInt64
	err := row.Scan(&e.ID, &e.UserID, &e.Name, &e.Description, &start, &end,
		&completed, &unconfirmed, &labelID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if e.StartTime, err = parseInstant(start); err != nil {
		return nil, err
	}
	if e.EndTime, err = parseNullInstant(end); err != nil {
		return nil, err
	}
	e.Completed = completed != 0
	e.Unconfirmed = unconfirmed != 0
	e.LabelID = idPtr(labelID)
	return &e, nil
}

// checkConflict applies the start-instant rule: an untimed event may not
// share its start with any other event of the same user. Timed events are
// never checked.
func checkConflict(tx *sql.Tx, userID, excludeID int64, in EventInput) error {
	if in.EndTime != nil {
		return nil
	}
	var n int
	err := tx.QueryRow(
		`SELECT COUNT(*) FROM events WHERE user_id = ? AND start_time = ? AND id != ?`,
		userID, formatInstant(in.StartTime), excludeID,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("check conflict: %w", err)
	}
	if n > 0 {
		return ErrEventConflict
	}
	return nil
}

func (s *EventStore) Create(userID int64, in EventInput) (*model.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := checkLabel(tx, userID, in.LabelID); err != nil {
		return nil, err
	}
	if err := checkConflict(tx, userID, 0, in); err != nil {
		return nil, err
	}

	result, err := tx.Exec(
		`INSERT INTO events (user_id, name, description, start_time, end_time, unconfirmed, label_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, in.Name, in.Description, formatInstant(in.StartTime), nullInstant(in.EndTime),
		boolInt(in.Unconfirmed), nullID(in.LabelID),
	)
	if isUniqueViolation(err) {
		return nil, ErrEventConflict
	}
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(userID, id)
}

// GetByID returns the event if it exists and belongs to userID.
func (s *EventStore) GetByID(userID, id int64) (*model.Event, error) {
	row := s.db.QueryRow(`SELECT `+eventCols+` FROM events WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListRange returns the user's events that touch the instant range
// [from, to), drafts included. Untimed events match on their start alone.
func (s *EventStore) ListRange(userID int64, from, to time.Time) ([]model.Event, error) {
	rows, err := s.db.Query(
		`SELECT `+eventCols+` FROM events
		 WHERE user_id = ? AND start_time < ? AND COALESCE(end_time, start_time) >= ?
		 ORDER BY start_time, id`,
		userID, formatInstant(to), formatInstant(from),
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return collectEvents(rows)
}

// List returns every event the user owns, ordered by start.
func (s *EventStore) List(userID int64) ([]model.Event, error) {
	rows, err := s.db.Query(
		`SELECT `+eventCols+` FROM events WHERE user_id = ? ORDER BY start_time, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]model.Event, error) {
	defer rows.Close()
	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// Update replaces the writable fields. The conflict rule ignores the event
// being updated.
func (s *EventStore) Update(userID, id int64, in EventInput) (*model.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := checkLabel(tx, userID, in.LabelID); err != nil {
		return nil, err
	}
	if err := checkConflict(tx, userID, id, in); err != nil {
		return nil, err
	}

	result, err := tx.Exec(
		`UPDATE events SET name = ?, description = ?, start_time = ?, end_time = ?, label_id = ?
		 WHERE id = ? AND user_id = ?`,
		in.Name, in.Description, formatInstant(in.StartTime), nullInstant(in.EndTime), nullID(in.LabelID),
		id, userID,
	)
	if isUniqueViolation(err) {
		return nil, ErrEventConflict
	}
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(userID, id)
}

func (s *EventStore) Delete(userID, id int64) error {
	result, err := s.db.Exec(`DELETE FROM events WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *EventStore) SetCompleted(userID, id int64, completed bool) (*model.Event, error) {
	result, err := s.db.Exec(
		`UPDATE events SET completed = ? WHERE id = ? AND user_id = ?`,
		boolInt(completed), id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("set completed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetByID(userID, id)
}

// Confirm clears the draft flag so the event shows up in views and search.
func (s *EventStore) Confirm(userID, id int64) (*model.Event, error) {
	result, err := s.db.Exec(
		`UPDATE events SET unconfirmed = 0 WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("confirm event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetByID(userID, id)
}
