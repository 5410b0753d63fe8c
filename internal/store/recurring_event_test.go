package store

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dukerupert/plannr/internal/recurrence"
)

func day(year int, month time.Month, d int) civil.Date {
	return civil.Date{Year: year, Month: month, Day: d}
}

func completeInput(labelID int64) RecurringInput {
	start := civil.Time{Hour: 18}
	end := civil.Time{Hour: 19, Minute: 30}
	startDate := day(2025, 7, 2)
	return RecurringInput{
		Name:      "Climbing",
		LabelID:   &labelID,
		StartTime: &start,
		EndTime:   &end,
		StartDate: &startDate,
		Rule:      recurrence.WeeklyRule{Interval: 2, Days: []time.Weekday{time.Monday}},
	}
}

func TestRecurringCreateIsDraft(t *testing.T) {
	f := setupFixture(t)

	r, err := f.recurring.Create(f.user.ID, RecurringInput{Name: "Someday"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !r.Unconfirmed {
		t.Error("new template should be a draft")
	}
	if r.Rule != nil || r.StartDate != nil || r.StartTime != nil {
		t.Errorf("expected empty draft, got %+v", r)
	}
	if len(r.SkipDays) != 0 {
		t.Errorf("skip days = %v, want none", r.SkipDays)
	}
}

func TestRecurringRoundTrip(t *testing.T) {
	f := setupFixture(t)
	work := f.label(t, "Work")

	in := completeInput(work.ID)
	endDate := day(2025, 12, 31)
	in.EndDate = &endDate

	r, err := f.recurring.Create(f.user.ID, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !recurrence.Equal(r.Rule, in.Rule) {
		t.Errorf("rule = %v, want %v", recurrence.Format(r.Rule), recurrence.Format(in.Rule))
	}
	if *r.StartTime != *in.StartTime || *r.EndTime != *in.EndTime {
		t.Errorf("times = %v-%v, want %v-%v", r.StartTime, r.EndTime, in.StartTime, in.EndTime)
	}
	if *r.StartDate != *in.StartDate || *r.EndDate != endDate {
		t.Errorf("dates = %v..%v", r.StartDate, r.EndDate)
	}
}

func TestRecurringRejectsBadInput(t *testing.T) {
	f := setupFixture(t)

	start, end := day(2025, 7, 10), day(2025, 7, 1)
	_, err := f.recurring.Create(f.user.ID, RecurringInput{StartDate: &start, EndDate: &end})
	if !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("err = %v, want ErrInvalidDateRange", err)
	}

	_, err = f.recurring.Create(f.user.ID, RecurringInput{Rule: recurrence.WeeklyRule{}})
	if !errors.Is(err, ErrInvalidRule) {
		t.Errorf("err = %v, want ErrInvalidRule", err)
	}

	_, err = f.recurring.Create(f.user.ID, RecurringInput{Rule: recurrence.DailyRule{Interval: recurrence.MaxInterval + 1}})
	if !errors.Is(err, ErrInvalidRule) {
		t.Errorf("oversized interval: err = %v, want ErrInvalidRule", err)
	}
}

func TestRecurringConfirm(t *testing.T) {
	f := setupFixture(t)
	work := f.label(t, "Work")

	draft, err := f.recurring.Create(f.user.ID, RecurringInput{Name: "Climbing"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.recurring.Confirm(f.user.ID, draft.ID); !errors.Is(err, ErrIncompleteRecurringEvent) {
		t.Fatalf("err = %v, want ErrIncompleteRecurringEvent", err)
	}

	if _, err := f.recurring.Update(f.user.ID, draft.ID, completeInput(work.ID)); err != nil {
		t.Fatalf("update: %v", err)
	}
	r, err := f.recurring.Confirm(f.user.ID, draft.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if r.Unconfirmed {
		t.Error("expected confirmed template")
	}

	// A confirmed template cannot be emptied again.
	if _, err := f.recurring.Update(f.user.ID, draft.ID, RecurringInput{Name: "Climbing"}); !errors.Is(err, ErrIncompleteRecurringEvent) {
		t.Errorf("err = %v, want ErrIncompleteRecurringEvent", err)
	}

	if _, err := f.recurring.Confirm(f.user.ID, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRecurringSkipDays(t *testing.T) {
	f := setupFixture(t)
	work := f.label(t, "Work")

	r, err := f.recurring.Create(f.user.ID, completeInput(work.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for range 2 {
		r, err = f.recurring.AddSkipDay(f.user.ID, r.ID, day(2025, 7, 21))
		if err != nil {
			t.Fatalf("add skip day: %v", err)
		}
	}
	if _, ok := r.SkipDays[day(2025, 7, 21)]; !ok || len(r.SkipDays) != 1 {
		t.Errorf("skip days = %v, want {2025-07-21}", r.SkipDays)
	}

	r, err = f.recurring.RemoveSkipDay(f.user.ID, r.ID, day(2025, 7, 21))
	if err != nil {
		t.Fatalf("remove skip day: %v", err)
	}
	if len(r.SkipDays) != 0 {
		t.Errorf("skip days = %v, want none", r.SkipDays)
	}

	bob := f.otherUser(t)
	if _, err := f.recurring.AddSkipDay(bob.ID, r.ID, day(2025, 7, 21)); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRecurringListActive(t *testing.T) {
	f := setupFixture(t)
	work := f.label(t, "Work")

	confirm := func(in RecurringInput) int64 {
		t.Helper()
		r, err := f.recurring.Create(f.user.ID, in)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := f.recurring.Confirm(f.user.ID, r.ID); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		return r.ID
	}

	open := confirm(completeInput(work.ID))

	ended := completeInput(work.ID)
	endDate := day(2025, 7, 31)
	ended.EndDate = &endDate
	endedID := confirm(ended)

	if _, err := f.recurring.Create(f.user.ID, completeInput(work.ID)); err != nil {
		t.Fatalf("create draft: %v", err)
	}

	if _, err := f.recurring.AddSkipDay(f.user.ID, open, day(2025, 8, 4)); err != nil {
		t.Fatalf("add skip day: %v", err)
	}

	active, err := f.recurring.ListActive(f.user.ID, day(2025, 8, 1), day(2025, 8, 31))
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != open {
		t.Fatalf("active = %+v, want only %d (not ended %d)", active, open, endedID)
	}
	if _, ok := active[0].SkipDays[day(2025, 8, 4)]; !ok {
		t.Error("skip days should be loaded with the list")
	}

	all, err := f.recurring.List(f.user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d templates, want 3", len(all))
	}
}

func TestRecurringDelete(t *testing.T) {
	f := setupFixture(t)

	r, err := f.recurring.Create(f.user.ID, RecurringInput{Name: "x"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.recurring.Delete(f.user.ID, r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.recurring.Delete(f.user.ID, r.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
