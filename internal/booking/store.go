package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/service-marketplace/internal/location"
	"github.com/wolfman30/service-marketplace/internal/selection"
)

// ErrBookingNotFound is returned when a booking id is unknown.
var ErrBookingNotFound = errors.New("booking: booking not found")

const (
	StatusPending        = "pending"
	PaymentStatusPending = "pending"
)

// Record is a persisted booking.
type Record struct {
	ID            string                `json:"id"`
	Reference     string                `json:"reference"`
	DraftID       string                `json:"draft_id"`
	CustomerID    string                `json:"customer_id,omitempty"`
	ContactName   string                `json:"contact_name"`
	ContactEmail  string                `json:"contact_email"`
	ContactPhone  string                `json:"contact_phone,omitempty"`
	ServiceID     string                `json:"service_id,omitempty"`
	ProviderID    string                `json:"provider_id,omitempty"`
	BusinessID    string                `json:"business_id,omitempty"`
	LocationID    string                `json:"location_id,omitempty"`
	Mode          location.DeliveryMode `json:"delivery_mode"`
	PreferredDate string                `json:"preferred_date"`
	PreferredTime string                `json:"preferred_time,omitempty"`
	Notes         string                `json:"notes,omitempty"`
	Items         []selection.Item      `json:"items"`
	SubtotalCents int64                 `json:"subtotal_cents"`
	DiscountCents int64                 `json:"discount_cents"`
	TotalCents    int64                 `json:"total_cents"`
	PromotionID   string                `json:"promotion_id,omitempty"`
	Status        string                `json:"status"`
	PaymentStatus string                `json:"payment_status"`
	CreatedAt     time.Time             `json:"created_at"`
}

// Store persists booking records.
type Store interface {
	CreateBooking(ctx context.Context, rec Record) (string, error)
}

// InMemoryStore keeps bookings in memory. FailWith makes every create fail.
type InMemoryStore struct {
	mu       sync.RWMutex
	bookings map[string]Record
	failWith error
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{bookings: make(map[string]Record)}
}

// FailWith makes subsequent creates return err (nil restores normal behavior).
func (s *InMemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *InMemoryStore) CreateBooking(_ context.Context, rec Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return "", s.failWith
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.bookings[rec.ID] = rec
	return rec.ID, nil
}

// Get returns a stored booking.
func (s *InMemoryStore) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.bookings[id]
	if !ok {
		return Record{}, ErrBookingNotFound
	}
	return rec, nil
}

// Count reports stored bookings.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bookings)
}
