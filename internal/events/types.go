package events

import (
	"time"

	"github.com/wolfman30/service-marketplace/internal/booking"
)

const (
	TypeBookingCommit    = "booking.commit.v1"
	TypeLocationOrphaned = "booking.location_orphaned.v1"
)

// BookingCommitV1 is emitted for every commit attempt, successful or not.
type BookingCommitV1 struct {
	DraftID            string               `json:"draft_id"`
	Outcome            string               `json:"outcome"`
	CustomerID         string               `json:"customer_id,omitempty"`
	BusinessID         string               `json:"business_id,omitempty"`
	ProviderID         string               `json:"provider_id,omitempty"`
	BookingID          string               `json:"booking_id,omitempty"`
	Reference          string               `json:"reference,omitempty"`
	LocationID         string               `json:"location_id,omitempty"`
	TotalCents         int64                `json:"total_cents"`
	Fields             []booking.FieldError `json:"fields,omitempty"`
	Cause              string               `json:"cause,omitempty"`
	OrphanedLocationID string               `json:"orphaned_location_id,omitempty"`
	CompletedAt        time.Time            `json:"completed_at"`
}

func (BookingCommitV1) EventType() string {
	return TypeBookingCommit
}

// LocationOrphanedV1 reports a customer location saved for a booking that was never written.
type LocationOrphanedV1 struct {
	DraftID    string    `json:"draft_id"`
	LocationID string    `json:"location_id"`
	CustomerID string    `json:"customer_id,omitempty"`
	Cause      string    `json:"cause,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (LocationOrphanedV1) EventType() string {
	return TypeLocationOrphaned
}

// CommitEvent converts a commit result to its event payload.
func CommitEvent(res booking.CommitResult) BookingCommitV1 {
	return BookingCommitV1{
		DraftID:            res.DraftID,
		Outcome:            string(res.Outcome),
		CustomerID:         res.CustomerID,
		BusinessID:         res.BusinessID,
		ProviderID:         res.ProviderID,
		BookingID:          res.BookingID,
		Reference:          res.Reference,
		LocationID:         res.LocationID,
		TotalCents:         res.TotalCents,
		Fields:             res.Fields,
		Cause:              res.Cause,
		OrphanedLocationID: res.OrphanedLocationID,
		CompletedAt:        res.CompletedAt,
	}
}
