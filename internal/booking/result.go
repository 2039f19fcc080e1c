package booking

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Outcome is the terminal classification of a commit attempt.
type Outcome string

const (
	OutcomeSuccess             Outcome = "success"
	OutcomeValidationFailed    Outcome = "validation_failed"
	OutcomeLocationWriteFailed Outcome = "location_write_failed"
	OutcomeBookingWriteFailed  Outcome = "booking_write_failed"
)

// FieldError names a draft field that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// CommitResult reports how a commit ended. BookingID is set only on success;
// OrphanedLocationID only when the booking write failed after the location was saved.
type CommitResult struct {
	Outcome            Outcome      `json:"outcome"`
	DraftID            string       `json:"draft_id"`
	CustomerID         string       `json:"customer_id,omitempty"`
	BusinessID         string       `json:"business_id,omitempty"`
	ProviderID         string       `json:"provider_id,omitempty"`
	BookingID          string       `json:"booking_id,omitempty"`
	Reference          string       `json:"reference,omitempty"`
	LocationID         string       `json:"location_id,omitempty"`
	TotalCents         int64        `json:"total_cents"`
	Fields             []FieldError `json:"fields,omitempty"`
	Cause              string       `json:"cause,omitempty"`
	OrphanedLocationID string       `json:"orphaned_location_id,omitempty"`
	Trail              []State      `json:"trail"`
	CompletedAt        time.Time    `json:"completed_at"`
}

// Succeeded reports a committed booking.
func (r CommitResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}

// FinalState is the last state reached.
func (r CommitResult) FinalState() State {
	if len(r.Trail) == 0 {
		return StateDraft
	}
	return r.Trail[len(r.Trail)-1]
}

// PersistenceError is a structured failure from a backing store. Stores that talk
// to remote backends wrap their failures in it so callers get readable causes.
type PersistenceError struct {
	Message    string
	ErrorText  string
	Hint       string
	StatusCode int
	Err        error
}

func (e *PersistenceError) Error() string {
	if text := CauseText(e); text != "" {
		return text
	}
	return "booking: persistence failure"
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// CauseText extracts a human readable cause using the fallback chain
// message, error field, hint, then raw status text.
func CauseText(err error) string {
	if err == nil {
		return ""
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return firstNonEmpty(pe.Message, pe.ErrorText, pe.Hint, statusText(pe.StatusCode), errText(pe.Err))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return firstNonEmpty(pgErr.Message, pgErr.Detail, pgErr.Hint, pgErr.Code)
	}
	return strings.TrimSpace(err.Error())
}

func statusText(code int) string {
	if code <= 0 {
		return ""
	}
	return http.StatusText(code)
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
