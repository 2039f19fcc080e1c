// Package selection holds the ordered set of services and add-ons chosen for a booking.
package selection

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind distinguishes bookable services from add-ons.
type Kind string

const (
	KindService Kind = "service"
	KindAddon   Kind = "addon"
)

// ParseKind accepts the wire representation of a kind.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindService:
		return KindService, nil
	case KindAddon, "add-on", "add_on":
		return KindAddon, nil
	default:
		return "", fmt.Errorf("selection: unknown kind %q", raw)
	}
}

// Item is one chosen service or add-on. UnitPriceCents is in minor currency units.
type Item struct {
	Kind            Kind   `json:"kind"`
	ID              string `json:"id"`
	DisplayName     string `json:"display_name"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
	Quantity        int    `json:"quantity"`
	DurationMinutes *int   `json:"duration_minutes,omitempty"`
}

// LineTotalCents is unit price times quantity.
func (i Item) LineTotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

// Set is an ordered collection of items keyed by (kind, id).
// The zero value is an empty, ready-to-use set.
type Set struct {
	items []Item
}

// NewSet builds a set by adding each item in order.
func NewSet(items ...Item) *Set {
	s := &Set{}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts a candidate. A service already present is left untouched
// (services are single-instance per booking); an add-on already present
// gains one unit.
func (s *Set) Add(candidate Item) {
	if strings.TrimSpace(candidate.ID) == "" {
		return
	}
	if idx := s.indexOf(candidate.ID, candidate.Kind); idx >= 0 {
		if candidate.Kind == KindAddon {
			s.items[idx].Quantity++
		}
		return
	}
	candidate.Quantity = 1
	s.items = append(s.items, candidate)
}

// Remove takes one unit away, dropping the item once it reaches zero.
func (s *Set) Remove(id string, kind Kind) {
	idx := s.indexOf(id, kind)
	if idx < 0 {
		return
	}
	s.items[idx].Quantity--
	if s.items[idx].Quantity <= 0 {
		s.items = append(s.items[:idx], s.items[idx+1:]...)
	}
}

// QuantityOf returns 0 for absent items.
func (s *Set) QuantityOf(id string, kind Kind) int {
	idx := s.indexOf(id, kind)
	if idx < 0 {
		return 0
	}
	return s.items[idx].Quantity
}

// Contains reports whether the item is present.
func (s *Set) Contains(id string, kind Kind) bool {
	return s.indexOf(id, kind) >= 0
}

// Subtotal sums unit price times quantity over every item.
func (s *Set) Subtotal() int64 {
	if s == nil {
		return 0
	}
	var total int64
	for _, item := range s.items {
		total += item.LineTotalCents()
	}
	return total
}

// TotalDurationMinutes sums known durations, counting each unit.
func (s *Set) TotalDurationMinutes() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, item := range s.items {
		if item.DurationMinutes != nil {
			total += *item.DurationMinutes * item.Quantity
		}
	}
	return total
}

// Items returns a copy in insertion order.
func (s *Set) Items() []Item {
	if s == nil || len(s.items) == 0 {
		return nil
	}
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Services returns the selected services in insertion order.
func (s *Set) Services() []Item {
	return s.ofKind(KindService)
}

// Addons returns the selected add-ons in insertion order.
func (s *Set) Addons() []Item {
	return s.ofKind(KindAddon)
}

// Len is the number of distinct items.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// IsEmpty reports whether nothing is selected.
func (s *Set) IsEmpty() bool {
	return s.Len() == 0
}

// Clear drops every item.
func (s *Set) Clear() {
	s.items = nil
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	if s == nil {
		return &Set{}
	}
	return &Set{items: s.Items()}
}

func (s *Set) MarshalJSON() ([]byte, error) {
	items := s.Items()
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(items)
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("selection: decode set: %w", err)
	}
	s.items = s.items[:0]
	for _, item := range items {
		if strings.TrimSpace(item.ID) == "" || item.Quantity < 1 {
			continue
		}
		if s.indexOf(item.ID, item.Kind) >= 0 {
			continue
		}
		s.items = append(s.items, item)
	}
	return nil
}

func (s *Set) ofKind(kind Kind) []Item {
	if s == nil {
		return nil
	}
	var out []Item
	for _, item := range s.items {
		if item.Kind == kind {
			out = append(out, item)
		}
	}
	return out
}

func (s *Set) indexOf(id string, kind Kind) int {
	if s == nil {
		return -1
	}
	for i, item := range s.items {
		if item.ID == id && item.Kind == kind {
			return i
		}
	}
	return -1
}
