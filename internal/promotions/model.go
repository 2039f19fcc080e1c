package promotions

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned by stores when no promotion exists for an id.
	ErrNotFound = errors.New("promotions: not found")
	// ErrUnavailable means the promotion is missing or inactive.
	ErrUnavailable = errors.New("promotions: promotion unavailable")
	// ErrExpired means the reference time is past the end date.
	ErrExpired = errors.New("promotions: promotion expired")
	// ErrNotStarted means the reference time is before the start date.
	ErrNotStarted = errors.New("promotions: promotion not started")
	// ErrCodeMismatch means the supplied code does not match the stored code.
	ErrCodeMismatch = errors.New("promotions: promotion code mismatch")
	// ErrOutOfScope means the promotion is restricted to a service or business not in the draft.
	ErrOutOfScope = errors.New("promotions: promotion out of scope")
)

// SavingsType selects how SavingsAmount is interpreted.
type SavingsType string

const (
	// SavingsPercentage treats SavingsAmount as a percent of the subtotal.
	SavingsPercentage SavingsType = "percentage"
	// SavingsFixedAmount treats SavingsAmount as a currency amount in major units.
	SavingsFixedAmount SavingsType = "fixed_amount"
)

// ParseSavingsType normalizes stored savings type labels.
func ParseSavingsType(raw string) (SavingsType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "percentage", "percent", "pct":
		return SavingsPercentage, nil
	case "fixed_amount", "fixed", "amount":
		return SavingsFixedAmount, nil
	default:
		return "", fmt.Errorf("promotions: unknown savings type %q", raw)
	}
}

// Promotion is a discount definition. Currency amounts are major units (dollars);
// the engine converts to cents.
type Promotion struct {
	ID               string           `json:"id"`
	Code             string           `json:"promo_code"`
	SavingsType      SavingsType      `json:"savings_type"`
	SavingsAmount    decimal.Decimal  `json:"savings_amount"`
	SavingsMaxAmount *decimal.Decimal `json:"savings_max_amount,omitempty"`
	StartDate        time.Time        `json:"start_date"`
	EndDate          *time.Time       `json:"end_date,omitempty"`
	IsActive         bool             `json:"is_active"`
	ScopeServiceID   string           `json:"scope_service_id,omitempty"`
	ScopeBusinessID  string           `json:"scope_business_id,omitempty"`
}

// Ref identifies the promotion a draft wants applied.
type Ref struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// IsZero reports whether no promotion is referenced.
func (r Ref) IsZero() bool {
	return strings.TrimSpace(r.ID) == ""
}

// Scope is the part of a draft that scoped promotions are checked against.
type Scope struct {
	BusinessID string
	ServiceIDs []string
}

// Reason maps an inapplicability error to a short metric label.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrNotStarted):
		return "not_started"
	case errors.Is(err, ErrCodeMismatch):
		return "code_mismatch"
	case errors.Is(err, ErrOutOfScope):
		return "out_of_scope"
	default:
		return "lookup_failed"
	}
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
