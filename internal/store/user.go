package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/plannr/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(row scanner) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Timezone, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, email, name, password_hash, timezone, created_at, updated_at`

// Create inserts a user together with the user's default label.
func (s *UserStore) Create(email, name, passwordHash, timezone string) (*model.User, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow(
		`INSERT INTO users (email, name, password_hash, timezone) VALUES (?, ?, ?, ?) RETURNING id`,
		email, name, passwordHash, timezone,
	).Scan(&id)
	switch {
	case isUniqueViolation(err):
		return nil, ErrEmailTaken
	case err != nil:
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO labels (user_id, name, is_default) VALUES (?, ?, 1)`,
		id, model.DefaultLabelName,
	); err != nil {
		return nil, fmt.Errorf("insert default label: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// GetByID returns the user, or nil when there is none.
func (s *UserStore) GetByID(id int64) (*model.User, error) {
	return s.getBy("id", id)
}

// GetByEmail looks a user up by the normalized address.
func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	return s.getBy("email", email)
}

func (s *UserStore) getBy(column string, value any) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE `+column+` = ?`, value))
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get user by %s: %w", column, err)
	}
	return u, nil
}

// UpdateTimezone stores an IANA zone id the caller has already validated.
func (s *UserStore) UpdateTimezone(id int64, timezone string) (*model.User, error) {
	result, err := s.db.Exec(`UPDATE users SET timezone = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, timezone, id)
	if err != nil {
		return nil, fmt.Errorf("update timezone: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetByID(id)
}

// Delete removes the account. Labels, events and recurring events go with
// it through ON DELETE CASCADE.
func (s *UserStore) Delete(id int64) error {
	result, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
