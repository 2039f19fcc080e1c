package location

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists locations in the customer_locations and business_locations tables.
type PostgresStore struct {
	pool rowQuerier
	now  func() time.Time
}

// NewPostgresStore initializes a store backed by pgxpool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("location: pgx pool required")
	}
	return newPostgresStoreWithExec(pool)
}

func newPostgresStoreWithExec(exec rowQuerier) *PostgresStore {
	if exec == nil {
		panic("location: exec required")
	}
	return &PostgresStore{pool: exec, now: func() time.Time { return time.Now().UTC() }}
}

const customerLocationColumns = `
	id::text, COALESCE(customer_id, ''), address_line1, COALESCE(address_line2, ''),
	city, state, postal_code, COALESCE(country, ''), is_active, created_at`

const businessLocationColumns = `
	id::text, business_id, address_line1, COALESCE(address_line2, ''),
	city, state, postal_code, COALESCE(country, ''), is_active, is_primary, created_at`

func (s *PostgresStore) GetCustomerLocation(ctx context.Context, id string) (*Record, error) {
	locID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT` + customerLocationColumns + `
		FROM customer_locations
		WHERE id = $1`
	rec, err := scanCustomerLocation(s.pool.QueryRow(ctx, query, locID))
	if err != nil {
		return nil, fmt.Errorf("location: get customer location: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) LatestActiveCustomerLocation(ctx context.Context, customerID string) (*Record, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, ErrNotFound
	}
	query := `SELECT` + customerLocationColumns + `
		FROM customer_locations
		WHERE customer_id = $1 AND is_active
		ORDER BY created_at DESC
		LIMIT 1`
	rec, err := scanCustomerLocation(s.pool.QueryRow(ctx, query, customerID))
	if err != nil {
		return nil, fmt.Errorf("location: latest customer location: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) GetBusinessLocation(ctx context.Context, id string) (*Record, error) {
	locID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrNotFound
	}
	query := `SELECT` + businessLocationColumns + `
		FROM business_locations
		WHERE id = $1`
	rec, err := scanBusinessLocation(s.pool.QueryRow(ctx, query, locID))
	if err != nil {
		return nil, fmt.Errorf("location: get business location: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) PrimaryBusinessLocation(ctx context.Context, businessID string) (*Record, error) {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return nil, ErrNotFound
	}
	query := `SELECT` + businessLocationColumns + `
		FROM business_locations
		WHERE business_id = $1 AND is_active
		ORDER BY is_primary DESC, created_at ASC
		LIMIT 1`
	rec, err := scanBusinessLocation(s.pool.QueryRow(ctx, query, businessID))
	if err != nil {
		return nil, fmt.Errorf("location: primary business location: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) CreateCustomerLocation(ctx context.Context, req CreateCustomerLocationRequest) (*Record, error) {
	addr := req.Address.Normalize()
	if !addr.Complete() {
		return nil, ErrIncompleteAddress
	}
	id := uuid.New()
	query := `
		INSERT INTO customer_locations (id, customer_id, address_line1, address_line2, city, state, postal_code, country, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := s.pool.QueryRow(ctx, query,
		id,
		nullableText(req.CustomerID),
		addr.AddressLine1,
		nullableText(addr.AddressLine2),
		addr.City,
		addr.State,
		addr.PostalCode,
		nullableText(addr.Country),
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("location: insert customer location: %w", err)
	}
	return &Record{
		ID:        id.String(),
		OwnerID:   strings.TrimSpace(req.CustomerID),
		Address:   addr,
		IsActive:  true,
		CreatedAt: createdAt,
	}, nil
}

func scanCustomerLocation(row pgx.Row) (*Record, error) {
	var rec Record
	if err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.Address.AddressLine1,
		&rec.Address.AddressLine2,
		&rec.Address.City,
		&rec.Address.State,
		&rec.Address.PostalCode,
		&rec.Address.Country,
		&rec.IsActive,
		&rec.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func scanBusinessLocation(row pgx.Row) (*Record, error) {
	var rec Record
	if err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.Address.AddressLine1,
		&rec.Address.AddressLine2,
		&rec.Address.City,
		&rec.Address.State,
		&rec.Address.PostalCode,
		&rec.Address.Country,
		&rec.IsActive,
		&rec.IsPrimary,
		&rec.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func nullableText(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
