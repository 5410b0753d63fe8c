package store

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a row does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken is returned when registering an email that already has an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrEventConflict is returned when an untimed event would share its start
	// instant with another event of the same user.
	ErrEventConflict = errors.New("an event already starts at this time")
	// ErrInvalidEventTime is returned when an end instant is not after the start.
	ErrInvalidEventTime = errors.New("end time must be after start time")
	// ErrInvalidDateRange is returned when a recurring event ends before it starts.
	ErrInvalidDateRange = errors.New("end date must not be before start date")
	// ErrInvalidRule is returned when storing a rule that could never expand.
	ErrInvalidRule = errors.New("invalid recurrence rule")
	// ErrLabelNotFound is returned when a referenced label is not owned by the user.
	ErrLabelNotFound = errors.New("label not found")
	// ErrDuplicateLabel is returned when a user already has a label with the name.
	ErrDuplicateLabel = errors.New("label name already in use")
	// ErrProtectedLabel is returned when renaming or deleting the default label.
	ErrProtectedLabel = errors.New("the default label cannot be changed")
	// ErrIncompleteRecurringEvent is returned when confirming a recurring event
	// that lacks a start time, start date, label or rule.
	ErrIncompleteRecurringEvent = errors.New("recurring event needs a start time, start date, label and rule")
)

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
