// Package catalog lists what a provider or business offers: services, add-ons and providers.
package catalog

import (
	"errors"

	"github.com/wolfman30/service-marketplace/internal/selection"
)

var (
	// ErrNotFound is returned when a catalog entry does not exist or is inactive.
	ErrNotFound = errors.New("catalog: not found")
	// ErrAddonNotEligible is returned when an add-on does not apply to any selected service.
	ErrAddonNotEligible = errors.New("catalog: add-on not eligible for selected services")
)

// Service is a bookable offering.
type Service struct {
	ID              string `json:"id"`
	BusinessID      string `json:"business_id"`
	ProviderID      string `json:"provider_id,omitempty"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	PriceCents      int64  `json:"price_cents"`
	DurationMinutes int    `json:"duration_minutes"`
	IsActive        bool   `json:"is_active"`
}

// Addon is an extra attached to services. An empty EligibleServiceIDs list means
// the add-on applies to every service of the business.
type Addon struct {
	ID                 string   `json:"id"`
	BusinessID         string   `json:"business_id"`
	Name               string   `json:"name"`
	PriceCents         int64    `json:"price_cents"`
	DurationMinutes    int      `json:"duration_minutes"`
	EligibleServiceIDs []string `json:"eligible_service_ids"`
	IsActive           bool     `json:"is_active"`
}

// Provider is an individual offering services on behalf of a business.
type Provider struct {
	ID          string   `json:"id"`
	BusinessID  string   `json:"business_id"`
	DisplayName string   `json:"display_name"`
	Modes       []string `json:"delivery_modes"`
	IsActive    bool     `json:"is_active"`
}

// ServiceItem converts a service into a selection item.
func ServiceItem(s Service) selection.Item {
	return selection.Item{
		Kind:            selection.KindService,
		ID:              s.ID,
		DisplayName:     s.Name,
		UnitPriceCents:  s.PriceCents,
		DurationMinutes: durationPtr(s.DurationMinutes),
	}
}

// AddonItem converts an add-on into a selection item.
func AddonItem(a Addon) selection.Item {
	return selection.Item{
		Kind:            selection.KindAddon,
		ID:              a.ID,
		DisplayName:     a.Name,
		UnitPriceCents:  a.PriceCents,
		DurationMinutes: durationPtr(a.DurationMinutes),
	}
}

// EligibleFor reports whether the add-on applies to at least one of the services.
func (a Addon) EligibleFor(serviceIDs []string) bool {
	if len(a.EligibleServiceIDs) == 0 {
		return true
	}
	for _, eligible := range a.EligibleServiceIDs {
		for _, id := range serviceIDs {
			if eligible == id {
				return true
			}
		}
	}
	return false
}

// EligibleAddons filters add-ons to those applicable to the given service.
func EligibleAddons(addons []Addon, serviceID string) []Addon {
	out := make([]Addon, 0, len(addons))
	for _, a := range addons {
		if a.EligibleFor([]string{serviceID}) {
			out = append(out, a)
		}
	}
	return out
}

// CheckAddon returns ErrAddonNotEligible when none of the selected services accept the add-on.
func CheckAddon(a Addon, set *selection.Set) error {
	var ids []string
	for _, item := range set.Services() {
		ids = append(ids, item.ID)
	}
	if len(ids) == 0 || !a.EligibleFor(ids) {
		return ErrAddonNotEligible
	}
	return nil
}

func durationPtr(minutes int) *int {
	if minutes <= 0 {
		return nil
	}
	return &minutes
}
