package store

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/dukerupert/plannr/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	return NewUserStore(setupTestDB(t))
}

func TestUserCreate(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create("alice@example.com", "Alice", "hash", "America/Los_Angeles")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if u.Timezone != "America/Los_Angeles" {
		t.Errorf("timezone = %q, want America/Los_Angeles", u.Timezone)
	}
	if u.PasswordHash != "hash" {
		t.Errorf("password hash = %q, want hash", u.PasswordHash)
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
}

func TestUserCreateMakesDefaultLabel(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	ls := NewLabelStore(db)

	u, err := us.Create("alice@example.com", "Alice", "hash", "UTC")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	l, err := ls.Default(u.ID)
	if err != nil {
		t.Fatalf("default label: %v", err)
	}
	if l == nil {
		t.Fatal("expected a default label")
	}
	if l.Name != "Unlabeled" || !l.IsDefault {
		t.Errorf("label = %+v, want default Unlabeled", l)
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create("alice@example.com", "Alice", "hash", "UTC"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err := us.Create("alice@example.com", "Alice2", "hash", "UTC")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestUserGetByIDNotFound(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if u != nil {
		t.Error("expected nil for nonexistent user")
	}
}

func TestUserGetByEmail(t *testing.T) {
	us := setupUserTestDB(t)

	created, err := us.Create("alice@example.com", "Alice", "hash", "UTC")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	u, err := us.GetByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u == nil || u.ID != created.ID {
		t.Fatalf("got %+v, want user %d", u, created.ID)
	}

	missing, err := us.GetByEmail("bob@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown email")
	}
}

func TestUserUpdateTimezone(t *testing.T) {
	us := setupUserTestDB(t)

	created, err := us.Create("alice@example.com", "Alice", "hash", "UTC")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	u, err := us.UpdateTimezone(created.ID, "Europe/Berlin")
	if err != nil {
		t.Fatalf("update timezone: %v", err)
	}
	if u.Timezone != "Europe/Berlin" {
		t.Errorf("timezone = %q, want Europe/Berlin", u.Timezone)
	}

	if _, err := us.UpdateTimezone(999, "UTC"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUserDeleteCascades(t *testing.T) {
	db := setupTestDB(t)
	us := NewUserStore(db)
	ls := NewLabelStore(db)

	u, err := us.Create("alice@example.com", "Alice", "hash", "UTC")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := us.Delete(u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	labels, err := ls.List(u.ID)
	if err != nil {
		t.Fatalf("list labels: %v", err)
	}
	if len(labels) != 0 {
		t.Errorf("got %d labels after delete, want 0", len(labels))
	}
}

func TestUserDeleteNotFound(t *testing.T) {
	us := setupUserTestDB(t)

	if err := us.Delete(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
