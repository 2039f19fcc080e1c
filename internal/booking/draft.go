// Package booking validates booking drafts and commits them through a two-step
// write: the customer location first, then the booking record.
package booking

import (
	"strings"
	"time"

	"github.com/wolfman30/service-marketplace/internal/location"
	"github.com/wolfman30/service-marketplace/internal/pricing"
	"github.com/wolfman30/service-marketplace/internal/promotions"
	"github.com/wolfman30/service-marketplace/internal/selection"
	"github.com/wolfman30/service-marketplace/internal/session"
)

const (
	// DateLayout is the wire format for preferred dates.
	DateLayout = "2006-01-02"
	// TimeLayout is the wire format for preferred times.
	TimeLayout = "15:04"
)

// SubjectKind names what a flow books against.
type SubjectKind string

const (
	SubjectProvider SubjectKind = "provider"
	SubjectBusiness SubjectKind = "business"
)

// Subject is the provider or business being booked. Provider flows carry the
// provider's business as well.
type Subject struct {
	Kind       SubjectKind `json:"kind"`
	ProviderID string      `json:"provider_id,omitempty"`
	BusinessID string      `json:"business_id,omitempty"`
}

// IsZero reports whether no provider or business is set.
func (s Subject) IsZero() bool {
	return strings.TrimSpace(s.ProviderID) == "" && strings.TrimSpace(s.BusinessID) == ""
}

// Draft is the in-progress booking. It is created empty when a flow opens and
// consumed once by the coordinator.
type Draft struct {
	ID              string                `json:"id"`
	Subject         Subject               `json:"subject"`
	Items           *selection.Set        `json:"items"`
	Mode            location.DeliveryMode `json:"delivery_mode,omitempty"`
	LocationInputs  location.Inputs       `json:"location_inputs"`
	Location        location.Resolution   `json:"location"`
	ManualAddress   *location.Address     `json:"manual_address,omitempty"`
	PreferredDate   string                `json:"preferred_date,omitempty"`
	PreferredTime   string                `json:"preferred_time,omitempty"`
	Notes           string                `json:"notes,omitempty"`
	Promotion       promotions.Ref        `json:"promotion"`
	Pricing         pricing.Summary       `json:"pricing"`
	Actor           session.Actor         `json:"actor"`
	ReuseLocationID string                `json:"reuse_location_id,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// NewDraft returns an empty draft for the subject.
func NewDraft(id string, subject Subject, actor session.Actor, now time.Time) *Draft {
	return &Draft{
		ID:        id,
		Subject:   subject,
		Items:     &selection.Set{},
		Actor:     actor,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// EffectiveLocation is the resolved location with any manual entry applied.
func (d *Draft) EffectiveLocation() location.Resolution {
	return d.Location.WithManual(d.ManualAddress)
}

// PrimaryServiceID is the first selected service, used as the booking's service.
func (d *Draft) PrimaryServiceID() string {
	if services := d.Items.Services(); len(services) > 0 {
		return services[0].ID
	}
	return ""
}

// Reset clears everything but identity, subject and actor.
func (d *Draft) Reset(now time.Time) {
	*d = Draft{
		ID:        d.ID,
		Subject:   d.Subject,
		Items:     &selection.Set{},
		Actor:     d.Actor,
		CreatedAt: d.CreatedAt,
		UpdatedAt: now,
	}
}
