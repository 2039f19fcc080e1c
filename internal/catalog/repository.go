package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lib/pq"
)

// Repository reads the active catalog.
type Repository interface {
	ActiveServices(ctx context.Context, businessID, providerID string) ([]Service, error)
	ActiveAddons(ctx context.Context, businessID string) ([]Addon, error)
	ActiveProviders(ctx context.Context, businessID string) ([]Provider, error)
	GetService(ctx context.Context, id string) (*Service, error)
	GetAddon(ctx context.Context, id string) (*Addon, error)
	GetProvider(ctx context.Context, id string) (*Provider, error)
}

// SQLRepository implements Repository on database/sql.
type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	if db == nil {
		panic("catalog: sql db required")
	}
	return &SQLRepository{db: db}
}

// ActiveServices lists a business's services. A non-empty providerID narrows the
// list to that provider's services plus business-wide ones.
func (r *SQLRepository) ActiveServices(ctx context.Context, businessID, providerID string) ([]Service, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, business_id, COALESCE(provider_id, ''), name, COALESCE(description, ''),
		       price_cents, duration_minutes, is_active
		FROM services
		WHERE business_id = $1 AND is_active
		  AND ($2 = '' OR provider_id IS NULL OR provider_id = $2)
		ORDER BY name`, businessID, providerID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list services: %w", err)
	}
	defer rows.Close()

	out := []Service{}
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.BusinessID, &s.ProviderID, &s.Name, &s.Description,
			&s.PriceCents, &s.DurationMinutes, &s.IsActive); err != nil {
			return nil, fmt.Errorf("catalog: scan service: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLRepository) ActiveAddons(ctx context.Context, businessID string) ([]Addon, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, business_id, name, price_cents, duration_minutes, eligible_service_ids, is_active
		FROM addons
		WHERE business_id = $1 AND is_active
		ORDER BY name`, businessID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list addons: %w", err)
	}
	defer rows.Close()

	out := []Addon{}
	for rows.Next() {
		var a Addon
		if err := rows.Scan(&a.ID, &a.BusinessID, &a.Name, &a.PriceCents, &a.DurationMinutes,
			pq.Array(&a.EligibleServiceIDs), &a.IsActive); err != nil {
			return nil, fmt.Errorf("catalog: scan addon: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLRepository) ActiveProviders(ctx context.Context, businessID string) ([]Provider, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, business_id, display_name, delivery_modes, is_active
		FROM providers
		WHERE business_id = $1 AND is_active
		ORDER BY display_name`, businessID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list providers: %w", err)
	}
	defer rows.Close()

	out := []Provider{}
	for rows.Next() {
		var p Provider
		if err := rows.Scan(&p.ID, &p.BusinessID, &p.DisplayName, pq.Array(&p.Modes), &p.IsActive); err != nil {
			return nil, fmt.Errorf("catalog: scan provider: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLRepository) GetService(ctx context.Context, id string) (*Service, error) {
	var s Service
	err := r.db.QueryRowContext(ctx, `
		SELECT id, business_id, COALESCE(provider_id, ''), name, COALESCE(description, ''),
		       price_cents, duration_minutes, is_active
		FROM services WHERE id = $1 AND is_active`, id).Scan(
		&s.ID, &s.BusinessID, &s.ProviderID, &s.Name, &s.Description,
		&s.PriceCents, &s.DurationMinutes, &s.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get service: %w", err)
	}
	return &s, nil
}

func (r *SQLRepository) GetAddon(ctx context.Context, id string) (*Addon, error) {
	var a Addon
	err := r.db.QueryRowContext(ctx, `
		SELECT id, business_id, name, price_cents, duration_minutes, eligible_service_ids, is_active
		FROM addons WHERE id = $1 AND is_active`, id).Scan(
		&a.ID, &a.BusinessID, &a.Name, &a.PriceCents, &a.DurationMinutes,
		pq.Array(&a.EligibleServiceIDs), &a.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get addon: %w", err)
	}
	return &a, nil
}

func (r *SQLRepository) GetProvider(ctx context.Context, id string) (*Provider, error) {
	var p Provider
	err := r.db.QueryRowContext(ctx, `
		SELECT id, business_id, display_name, delivery_modes, is_active
		FROM providers WHERE id = $1 AND is_active`, id).Scan(
		&p.ID, &p.BusinessID, &p.DisplayName, pq.Array(&p.Modes), &p.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get provider: %w", err)
	}
	return &p, nil
}

// MemoryRepository is a Repository seeded in code, used in development and tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	services  map[string]Service
	addons    map[string]Addon
	providers map[string]Provider
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		services:  make(map[string]Service),
		addons:    make(map[string]Addon),
		providers: make(map[string]Provider),
	}
}

func (m *MemoryRepository) PutService(s Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[s.ID] = s
}

func (m *MemoryRepository) PutAddon(a Addon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addons[a.ID] = a
}

func (m *MemoryRepository) PutProvider(p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.ID] = p
}

func (m *MemoryRepository) ActiveServices(_ context.Context, businessID, providerID string) ([]Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Service{}
	for _, s := range m.services {
		if !s.IsActive || s.BusinessID != businessID {
			continue
		}
		if providerID != "" && s.ProviderID != "" && s.ProviderID != providerID {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryRepository) ActiveAddons(_ context.Context, businessID string) ([]Addon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Addon{}
	for _, a := range m.addons {
		if a.IsActive && a.BusinessID == businessID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryRepository) ActiveProviders(_ context.Context, businessID string) ([]Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Provider{}
	for _, p := range m.providers {
		if p.IsActive && p.BusinessID == businessID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (m *MemoryRepository) GetService(_ context.Context, id string) (*Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.services[strings.TrimSpace(id)]
	if !ok || !s.IsActive {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryRepository) GetAddon(_ context.Context, id string) (*Addon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.addons[strings.TrimSpace(id)]
	if !ok || !a.IsActive {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *MemoryRepository) GetProvider(_ context.Context, id string) (*Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[strings.TrimSpace(id)]
	if !ok || !p.IsActive {
		return nil, ErrNotFound
	}
	return &p, nil
}
