package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/plannr/internal/auth"
	"github.com/dukerupert/plannr/internal/calendar"
	"github.com/dukerupert/plannr/internal/store"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in validation messages.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body into dst and runs struct validation. On failure
// it writes a 400 and returns false.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be an email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "hexcolor":
		return fe.Field() + " must be a hex color"
	case "timezone":
		return fe.Field() + " must be an IANA time zone"
	case "datetime":
		return fmt.Sprintf("%s must match %s", fe.Field(), fe.Param())
	}
	return fe.Field() + " is invalid"
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// parseOptionalID parses an optional positive id query parameter.
func parseOptionalID(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid id %q", s)
	}
	return &id, nil
}

func parseOptionalInstant(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseOptionalDate(s *string) (*civil.Date, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseOptionalClock accepts "15:04" or "15:04:05" and keeps minute precision.
func parseOptionalClock(s *string) (*civil.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	v := *s
	if len(v) == len("15:04") {
		v += ":00"
	}
	t, err := civil.ParseTime(v)
	if err != nil {
		return nil, err
	}
	t.Second, t.Nanosecond = 0, 0
	return &t, nil
}

// userZone resolves the caller's stored zone. A stored zone that no longer
// loads is a server-side problem, not something to guess around.
func userZone(r *http.Request) (*time.Location, error) {
	ac, _ := auth.FromContext(r.Context())
	return calendar.LoadZone(ac.Timezone)
}

// writeStoreError maps store sentinels to statuses and logs anything else.
func writeStoreError(w http.ResponseWriter, logger *slog.Logger, action string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrEventConflict),
		errors.Is(err, store.ErrProtectedLabel),
		errors.Is(err, store.ErrDuplicateLabel),
		errors.Is(err, store.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrIncompleteRecurringEvent):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrInvalidEventTime),
		errors.Is(err, store.ErrInvalidDateRange),
		errors.Is(err, store.ErrInvalidRule),
		errors.Is(err, store.ErrLabelNotFound):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("store", "action", action, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to "+action)
	}
}
