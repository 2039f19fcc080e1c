package location

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a location record does not exist.
	ErrNotFound = errors.New("location: not found")
	// ErrIncompleteAddress is returned when a write is attempted with missing address fields.
	ErrIncompleteAddress = errors.New("location: address is incomplete")
)

// DeliveryMode decides where the service is performed.
type DeliveryMode string

const (
	ModeMobile     DeliveryMode = "mobile"
	ModeAtBusiness DeliveryMode = "in_studio"
	ModeVirtual    DeliveryMode = "virtual"
)

// ParseDeliveryMode accepts the wire names plus a few legacy aliases.
func ParseDeliveryMode(raw string) (DeliveryMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mobile", "at_customer", "customer_location":
		return ModeMobile, nil
	case "in_studio", "in-studio", "studio", "at_business", "business_location":
		return ModeAtBusiness, nil
	case "virtual", "online":
		return ModeVirtual, nil
	default:
		return "", fmt.Errorf("location: unknown delivery mode %q", raw)
	}
}

// RequiresCustomerAddress reports whether a complete customer address must exist before commit.
func (m DeliveryMode) RequiresCustomerAddress() bool {
	return m == ModeMobile
}

// Address is a candidate service location.
type Address struct {
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country,omitempty"`
}

// Normalize trims every field.
func (a Address) Normalize() Address {
	return Address{
		AddressLine1: strings.TrimSpace(a.AddressLine1),
		AddressLine2: strings.TrimSpace(a.AddressLine2),
		City:         strings.TrimSpace(a.City),
		State:        strings.TrimSpace(a.State),
		PostalCode:   strings.TrimSpace(a.PostalCode),
		Country:      strings.TrimSpace(a.Country),
	}
}

// IsEmpty is true when no field carries data.
func (a Address) IsEmpty() bool {
	n := a.Normalize()
	return n == Address{}
}

// Complete is true when line 1, city, state and postal code are all present.
func (a Address) Complete() bool {
	return len(a.MissingFields()) == 0
}

// MissingFields lists the required fields that are blank.
func (a Address) MissingFields() []string {
	n := a.Normalize()
	var missing []string
	if n.AddressLine1 == "" {
		missing = append(missing, "address_line1")
	}
	if n.City == "" {
		missing = append(missing, "city")
	}
	if n.State == "" {
		missing = append(missing, "state")
	}
	if n.PostalCode == "" {
		missing = append(missing, "postal_code")
	}
	return missing
}

// Record is a persisted customer- or business-owned location.
type Record struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Address   Address   `json:"address"`
	IsActive  bool      `json:"is_active"`
	IsPrimary bool      `json:"is_primary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateCustomerLocationRequest describes a new customer-scoped location.
// CustomerID is empty for guest bookings.
type CreateCustomerLocationRequest struct {
	CustomerID string
	Address    Address
}

// Source names where an effective address came from.
type Source string

const (
	SourceNone           Source = ""
	SourceStoredCustomer Source = "stored_customer_location"
	SourceStoredBusiness Source = "stored_business_location"
	SourcePayload        Source = "address_payload"
	SourceQuery          Source = "address_query"
	SourceProfile        Source = "customer_profile"
	SourceManual         Source = "manual"
)
