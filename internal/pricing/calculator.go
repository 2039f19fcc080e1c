// Package pricing derives booking totals from a selection and an optional promotion.
package pricing

import (
	"context"
	"time"

	"github.com/wolfman30/service-marketplace/internal/promotions"
	"github.com/wolfman30/service-marketplace/internal/selection"
)

// Summary is a computed price breakdown in cents. It is a value; recompute it
// instead of editing fields.
type Summary struct {
	SubtotalCents   int64  `json:"subtotal_cents"`
	DiscountCents   int64  `json:"discount_cents"`
	TotalCents      int64  `json:"total_cents"`
	PromotionID     string `json:"promotion_id,omitempty"`
	PromotionCode   string `json:"promotion_code,omitempty"`
	PromotionStatus string `json:"promotion_status,omitempty"`
}

// Promotion status labels reported in Summary.PromotionStatus.
const (
	StatusApplied = "applied"
)

// Calculator prices selections.
type Calculator struct {
	engine *promotions.Engine
}

// NewCalculator builds a calculator. The engine is optional; without one only
// Compute with an explicit promotion can discount.
func NewCalculator(engine *promotions.Engine) *Calculator {
	return &Calculator{engine: engine}
}

// Compute prices a selection against an already validated promotion (nil for none).
func (c *Calculator) Compute(set *selection.Set, promo *promotions.Promotion) Summary {
	subtotal := set.Subtotal()
	if subtotal < 0 {
		subtotal = 0
	}
	summary := Summary{SubtotalCents: subtotal, TotalCents: subtotal}
	if promo == nil {
		return summary
	}
	summary.DiscountCents = promotions.ComputeDiscount(promo, subtotal)
	summary.TotalCents = subtotal - summary.DiscountCents
	summary.PromotionID = promo.ID
	summary.PromotionCode = promo.Code
	summary.PromotionStatus = StatusApplied
	return summary
}

// Quote resolves a promotion reference and prices the selection. An inapplicable
// or unreachable promotion yields no discount and its reason in PromotionStatus.
func (c *Calculator) Quote(ctx context.Context, set *selection.Set, ref promotions.Ref, scope promotions.Scope, at time.Time) Summary {
	if ref.IsZero() || c.engine == nil {
		return c.Compute(set, nil)
	}
	promo, err := c.engine.Resolve(ctx, ref, scope, at)
	if err != nil || promo == nil {
		summary := c.Compute(set, nil)
		summary.PromotionID = ref.ID
		summary.PromotionStatus = promotions.Reason(err)
		return summary
	}
	return c.Compute(set, promo)
}

// ScopeFor builds the promotion scope from a business id and the selected services.
func ScopeFor(businessID string, set *selection.Set) promotions.Scope {
	scope := promotions.Scope{BusinessID: businessID}
	for _, item := range set.Services() {
		scope.ServiceIDs = append(scope.ServiceIDs, item.ID)
	}
	return scope
}
