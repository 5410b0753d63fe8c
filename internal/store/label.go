package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/plannr/internal/model"
)

type LabelStore struct {
	db *sql.DB
}

func NewLabelStore(db *sql.DB) *LabelStore {
	return &LabelStore{db: db}
}

const labelCols = `id, user_id, name, color, is_default, created_at, updated_at`

func scanLabel(row scanner) (*model.Label, error) {
	var l model.Label
	var isDefault int
	if err := row.Scan(&l.ID, &l.UserID, &l.Name, &l.Color, &isDefault, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.IsDefault = isDefault != 0
	return &l, nil
}

func (s *LabelStore) Create(userID int64, name, color string) (*model.Label, error) {
	result, err := s.db.Exec(
		`INSERT INTO labels (user_id, name, color) VALUES (?, ?, ?)`,
		userID, name, color,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateLabel
	}
	if err != nil {
		return nil, fmt.Errorf("insert label: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(userID, id)
}

// GetByID returns the label if it exists and belongs to userID.
func (s *LabelStore) GetByID(userID, id int64) (*model.Label, error) {
	row := s.db.QueryRow(`SELECT `+labelCols+` FROM labels WHERE id = ? AND user_id = ?`, id, userID)
	l, err := scanLabel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get label: %w", err)
	}
	return l, nil
}

// Default returns the user's protected "Unlabeled" label.
func (s *LabelStore) Default(userID int64) (*model.Label, error) {
	row := s.db.QueryRow(`SELECT `+labelCols+` FROM labels WHERE user_id = ? AND is_default = 1`, userID)
	l, err := scanLabel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get default label: %w", err)
	}
	return l, nil
}

// List returns the user's labels, default label first.
func (s *LabelStore) List(userID int64) ([]model.Label, error) {
	rows, err := s.db.Query(
		`SELECT `+labelCols+` FROM labels WHERE user_id = ? ORDER BY is_default DESC, name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	var labels []model.Label
	for rows.Next() {
		l, err := scanLabel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		labels = append(labels, *l)
	}
	return labels, rows.Err()
}

func (s *LabelStore) Update(userID, id int64, name, color string) (*model.Label, error) {
	existing, err := s.GetByID(userID, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	if existing.IsDefault && name != existing.Name {
		return nil, ErrProtectedLabel
	}

	_, err = s.db.Exec(
		`UPDATE labels SET name = ?, color = ? WHERE id = ? AND user_id = ?`,
		name, color, id, userID,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateLabel
	}
	if err != nil {
		return nil, fmt.Errorf("update label: %w", err)
	}
	return s.GetByID(userID, id)
}

// Delete removes a label and moves its events and recurring events to the
// user's default label.
func (s *LabelStore) Delete(userID, id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var isDefault int
	err = tx.QueryRow(`SELECT is_default FROM labels WHERE id = ? AND user_id = ?`, id, userID).Scan(&isDefault)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get label: %w", err)
	}
	if isDefault != 0 {
		return ErrProtectedLabel
	}

	var defaultID int64
	if err := tx.QueryRow(`SELECT id FROM labels WHERE user_id = ? AND is_default = 1`, userID).Scan(&defaultID); err != nil {
		return fmt.Errorf("get default label: %w", err)
	}

	for _, table := range []string{"events", "recurring_events"} {
		if _, err := tx.Exec(
			`UPDATE `+table+` SET label_id = ? WHERE label_id = ? AND user_id = ?`,
			defaultID, id, userID,
		); err != nil {
			return fmt.Errorf("relabel %s: %w", table, err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM labels WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete label: %w", err)
	}
	return tx.Commit()
}

// checkLabel verifies that labelID, when set, belongs to userID.
func checkLabel(q interface {
	QueryRow(query string, args ...any) *sql.Row
}, userID int64, labelID *int64) error {
	if labelID == nil {
		return nil
	}
	var one int
	err := q.QueryRow(`SELECT 1 FROM labels WHERE id = ? AND user_id = ?`, *labelID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrLabelNotFound
	}
	if err != nil {
		return fmt.Errorf("check label: %w", err)
	}
	return nil
}
