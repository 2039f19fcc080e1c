package promotions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/service-marketplace/pkg/logging"
)

var promotionsTracer = otel.Tracer("marketplace.internal.promotions")

var hundred = decimal.NewFromInt(100)

// DegradeObserver is notified whenever a referenced promotion is dropped.
type DegradeObserver interface {
	ObservePromotionDegraded(reason string)
}

// Engine loads, validates and prices promotions.
type Engine struct {
	store    Store
	logger   *logging.Logger
	now      func() time.Time
	observer DegradeObserver
}

// NewEngine constructs an engine. A nil store makes every promotion unavailable.
func NewEngine(store Store, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the clock used when no reference time is given.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// WithObserver attaches a degrade observer (typically booking metrics).
func (e *Engine) WithObserver(observer DegradeObserver) *Engine {
	e.observer = observer
	return e
}

// Now returns the engine clock reading.
func (e *Engine) Now() time.Time {
	return e.now()
}

// Load fetches a promotion. Missing and inactive promotions return ErrUnavailable.
func (e *Engine) Load(ctx context.Context, id string) (*Promotion, error) {
	ctx, span := promotionsTracer.Start(ctx, "promotions.load")
	defer span.End()
	span.SetAttributes(attribute.String("marketplace.promotion_id", id))

	id = strings.TrimSpace(id)
	if id == "" || e.store == nil {
		return nil, ErrUnavailable
	}
	promo, err := e.store.GetPromotion(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnavailable
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "promotion lookup failed")
		return nil, fmt.Errorf("promotions: load %s: %w", id, err)
	}
	if promo == nil || !promo.IsActive {
		return nil, ErrUnavailable
	}
	return promo, nil
}

// Validate checks activity, code and date window at the reference time. A code is
// only compared when one is supplied. End dates are inclusive through 23:59:59 of
// that calendar day in the reference time's zone.
func (e *Engine) Validate(p *Promotion, suppliedCode string, at time.Time) error {
	if p == nil || !p.IsActive {
		return ErrUnavailable
	}
	if code := strings.TrimSpace(suppliedCode); code != "" && !strings.EqualFold(code, strings.TrimSpace(p.Code)) {
		return ErrCodeMismatch
	}
	if !p.StartDate.IsZero() {
		y, m, d := p.StartDate.Date()
		if at.Before(time.Date(y, m, d, 0, 0, 0, 0, at.Location())) {
			return ErrNotStarted
		}
	}
	if p.EndDate != nil {
		y, m, d := p.EndDate.Date()
		if at.After(time.Date(y, m, d, 23, 59, 59, 0, at.Location())) {
			return ErrExpired
		}
	}
	return nil
}

// CheckScope enforces service and business restrictions.
func (e *Engine) CheckScope(p *Promotion, scope Scope) error {
	if p == nil {
		return ErrUnavailable
	}
	if biz := strings.TrimSpace(p.ScopeBusinessID); biz != "" && biz != strings.TrimSpace(scope.BusinessID) {
		return ErrOutOfScope
	}
	if svc := strings.TrimSpace(p.ScopeServiceID); svc != "" {
		for _, id := range scope.ServiceIDs {
			if id == svc {
				return nil
			}
		}
		return ErrOutOfScope
	}
	return nil
}

// ComputeDiscount returns the discount in cents for a subtotal in cents. The result
// is always within [0, subtotal].
func (e *Engine) ComputeDiscount(p *Promotion, subtotalCents int64) int64 {
	return ComputeDiscount(p, subtotalCents)
}

// ComputeDiscount is the pure discount calculation used by the engine.
func ComputeDiscount(p *Promotion, subtotalCents int64) int64 {
	if p == nil || subtotalCents <= 0 {
		return 0
	}
	var discount int64
	switch p.SavingsType {
	case SavingsPercentage:
		discount = decimal.NewFromInt(subtotalCents).Mul(p.SavingsAmount).Div(hundred).Round(0).IntPart()
		if p.SavingsMaxAmount != nil {
			if maxCents := toCents(*p.SavingsMaxAmount); discount > maxCents {
				discount = maxCents
			}
		}
	case SavingsFixedAmount:
		discount = toCents(p.SavingsAmount)
	default:
		return 0
	}
	if discount < 0 {
		return 0
	}
	if discount > subtotalCents {
		return subtotalCents
	}
	return discount
}

// Resolve loads and validates a referenced promotion. A nil promotion with a non-nil
// reason means the reference degrades to no discount; the reason is never fatal.
func (e *Engine) Resolve(ctx context.Context, ref Ref, scope Scope, at time.Time) (*Promotion, error) {
	if ref.IsZero() {
		return nil, nil
	}
	if at.IsZero() {
		at = e.now()
	}
	promo, err := e.Load(ctx, ref.ID)
	if err == nil {
		err = e.Validate(promo, ref.Code, at)
	}
	if err == nil {
		err = e.CheckScope(promo, scope)
	}
	if err != nil {
		e.degrade(ref, err)
		return nil, err
	}
	return promo, nil
}

func (e *Engine) degrade(ref Ref, err error) {
	reason := Reason(err)
	if reason == "lookup_failed" {
		e.logger.Warn("promotion lookup failed; continuing without discount", "promotion_id", ref.ID, "error", err)
	} else {
		e.logger.Debug("promotion not applicable", "promotion_id", ref.ID, "reason", reason)
	}
	if e.observer != nil {
		e.observer.ObservePromotionDegraded(reason)
	}
}
