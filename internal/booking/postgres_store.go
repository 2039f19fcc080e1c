package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/service-marketplace/internal/selection"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore writes bookings to the bookings table.
type PostgresStore struct {
	pool rowQuerier
}

// NewPostgresStore creates a store backed by pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

func newPostgresStoreWithExec(exec rowQuerier) *PostgresStore {
	if exec == nil {
		panic("booking: exec required")
	}
	return &PostgresStore{pool: exec}
}

// CreateBooking inserts a pending booking row and returns its id.
func (s *PostgresStore) CreateBooking(ctx context.Context, rec Record) (string, error) {
	id := uuid.New()
	if rec.ID != "" {
		parsed, err := uuid.Parse(rec.ID)
		if err != nil {
			return "", fmt.Errorf("booking: invalid booking id %q: %w", rec.ID, err)
		}
		id = parsed
	}
	items := rec.Items
	if items == nil {
		items = []selection.Item{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("booking: marshal items: %w", err)
	}
	status := rec.Status
	if status == "" {
		status = StatusPending
	}
	paymentStatus := rec.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = PaymentStatusPending
	}

	query := `
		INSERT INTO bookings (
			id, reference, draft_id, customer_id, contact_name, contact_email, contact_phone,
			service_id, provider_id, business_id, location_id, delivery_mode,
			preferred_date, preferred_time, notes, items,
			subtotal_cents, discount_cents, total_cents, promotion_id,
			status, payment_status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13::date, NULLIF($14, '')::time, $15, $16,
			$17, $18, $19, $20,
			$21, $22
		)
		RETURNING created_at
	`
	if err := s.pool.QueryRow(ctx, query,
		id,
		rec.Reference,
		rec.DraftID,
		nullableText(rec.CustomerID),
		rec.ContactName,
		rec.ContactEmail,
		nullableText(rec.ContactPhone),
		nullableText(rec.ServiceID),
		nullableText(rec.ProviderID),
		nullableText(rec.BusinessID),
		nullableText(rec.LocationID),
		string(rec.Mode),
		rec.PreferredDate,
		rec.PreferredTime,
		nullableText(rec.Notes),
		itemsJSON,
		rec.SubtotalCents,
		rec.DiscountCents,
		rec.TotalCents,
		nullableText(rec.PromotionID),
		status,
		paymentStatus,
	).Scan(&rec.CreatedAt); err != nil {
		return "", fmt.Errorf("booking: insert booking: %w", err)
	}
	return id.String(), nil
}

func nullableText(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
