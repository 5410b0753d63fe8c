package store

import (
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/plannr/internal/model"
)

type fixture struct {
	users     *UserStore
	labels    *LabelStore
	events    *EventStore
	recurring *RecurringEventStore
	user      *model.User
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	f := &fixture{
		users:     NewUserStore(db),
		labels:    NewLabelStore(db),
		events:    NewEventStore(db),
		recurring: NewRecurringEventStore(db),
	}
	u, err := f.users.Create("alice@example.com", "Alice", "hash", "UTC")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	f.user = u
	return f
}

func (f *fixture) otherUser(t *testing.T) *model.User {
	t.Helper()
	u, err := f.users.Create("bob@example.com", "Bob", "hash", "UTC")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) label(t *testing.T, name string) *model.Label {
	t.Helper()
	l, err := f.labels.Create(f.user.ID, name, "#336699")
	if err != nil {
		t.Fatalf("create label %q: %v", name, err)
	}
	return l
}

func TestLabelCRUD(t *testing.T) {
	f := setupFixture(t)

	work := f.label(t, "Work")
	if work.IsDefault {
		t.Error("new label must not be default")
	}

	got, err := f.labels.GetByID(f.user.ID, work.ID)
	if err != nil {
		t.Fatalf("get label: %v", err)
	}
	if got.Name != "Work" || got.Color != "#336699" {
		t.Errorf("got %+v", got)
	}

	updated, err := f.labels.Update(f.user.ID, work.ID, "Job", "#000000")
	if err != nil {
		t.Fatalf("update label: %v", err)
	}
	if updated.Name != "Job" || updated.Color != "#000000" {
		t.Errorf("updated = %+v", updated)
	}

	labels, err := f.labels.List(f.user.ID)
	if err != nil {
		t.Fatalf("list labels: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("got %d labels, want 2", len(labels))
	}
	if !labels[0].IsDefault {
		t.Error("default label should be listed first")
	}
}

func TestLabelDuplicateName(t *testing.T) {
	f := setupFixture(t)
	f.label(t, "Work")

	if _, err := f.labels.Create(f.user.ID, "Work", ""); !errors.Is(err, ErrDuplicateLabel) {
		t.Errorf("err = %v, want ErrDuplicateLabel", err)
	}

	// Another user may reuse the name.
	bob := f.otherUser(t)
	if _, err := f.labels.Create(bob.ID, "Work", ""); err != nil {
		t.Errorf("create for other user: %v", err)
	}
}

func TestLabelDefaultProtected(t *testing.T) {
	f := setupFixture(t)

	def, err := f.labels.Default(f.user.ID)
	if err != nil {
		t.Fatalf("default label: %v", err)
	}

	if _, err := f.labels.Update(f.user.ID, def.ID, "Other", ""); !errors.Is(err, ErrProtectedLabel) {
		t.Errorf("rename err = %v, want ErrProtectedLabel", err)
	}
	if _, err := f.labels.Update(f.user.ID, def.ID, def.Name, "#ff0000"); err != nil {
		t.Errorf("recolor default label: %v", err)
	}
	if err := f.labels.Delete(f.user.ID, def.ID); !errors.Is(err, ErrProtectedLabel) {
		t.Errorf("delete err = %v, want ErrProtectedLabel", err)
	}
}

func TestLabelDeleteMovesToDefault(t *testing.T) {
	f := setupFixture(t)
	work := f.label(t, "Work")

	e, err := f.events.Create(f.user.ID, EventInput{
		Name:      "Standup",
		StartTime: time.Date(2025, 7, 10, 9, 0, 0, 0, time.UTC),
		LabelID:   &work.ID,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	r, err := f.recurring.Create(f.user.ID, RecurringInput{Name: "Gym", LabelID: &work.ID})
	if err != nil {
		t.Fatalf("create recurring event: %v", err)
	}

	if err := f.labels.Delete(f.user.ID, work.ID); err != nil {
		t.Fatalf("delete label: %v", err)
	}

	def, _ := f.labels.Default(f.user.ID)
	gotEvent, _ := f.events.GetByID(f.user.ID, e.ID)
	if gotEvent.LabelID == nil || *gotEvent.LabelID != def.ID {
		t.Errorf("event label = %v, want default %d", gotEvent.LabelID, def.ID)
	}
	gotRecurring, _ := f.recurring.GetByID(f.user.ID, r.ID)
	if gotRecurring.LabelID == nil || *gotRecurring.LabelID != def.ID {
		t.Errorf("recurring label = %v, want default %d", gotRecurring.LabelID, def.ID)
	}

	if err := f.labels.Delete(f.user.ID, work.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestLabelOwnership(t *testing.T) {
	f := setupFixture(t)
	work := f.label(t, "Work")
	bob := f.otherUser(t)

	got, err := f.labels.GetByID(bob.ID, work.ID)
	if err != nil {
		t.Fatalf("get label: %v", err)
	}
	if got != nil {
		t.Error("label must not be visible to another user")
	}
	if _, err := f.labels.Update(bob.ID, work.ID, "Mine", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("update err = %v, want ErrNotFound", err)
	}
	if err := f.labels.Delete(bob.ID, work.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete err = %v, want ErrNotFound", err)
	}
}
