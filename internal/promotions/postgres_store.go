package promotions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore reads promotions from the promotions table.
type PostgresStore struct {
	pool rowQuerier
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("promotions: pgx pool required")
	}
	return &PostgresStore{pool: pool}
}

func newPostgresStoreWithExec(exec rowQuerier) *PostgresStore {
	if exec == nil {
		panic("promotions: exec required")
	}
	return &PostgresStore{pool: exec}
}

func (s *PostgresStore) GetPromotion(ctx context.Context, id string) (*Promotion, error) {
	promoID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrNotFound
	}
	query := `
		SELECT id::text, COALESCE(promo_code, ''), savings_type, savings_amount::text,
			COALESCE(savings_max_amount::text, ''), to_char(start_date, 'YYYY-MM-DD'),
			COALESCE(to_char(end_date, 'YYYY-MM-DD'), ''), is_active,
			COALESCE(scope_service_id, ''), COALESCE(scope_business_id, '')
		FROM promotions
		WHERE id = $1
	`
	var (
		p                              Promotion
		savingsType, amount, maxAmount string
		startDate, endDate             string
	)
	if err := s.pool.QueryRow(ctx, query, promoID).Scan(
		&p.ID,
		&p.Code,
		&savingsType,
		&amount,
		&maxAmount,
		&startDate,
		&endDate,
		&p.IsActive,
		&p.ScopeServiceID,
		&p.ScopeBusinessID,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("promotions: get promotion: %w", err)
	}

	if p.SavingsType, err = ParseSavingsType(savingsType); err != nil {
		return nil, err
	}
	if p.SavingsAmount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("promotions: parse savings amount: %w", err)
	}
	if maxAmount != "" {
		maxDec, err := decimal.NewFromString(maxAmount)
		if err != nil {
			return nil, fmt.Errorf("promotions: parse savings max amount: %w", err)
		}
		p.SavingsMaxAmount = &maxDec
	}
	if p.StartDate, err = time.Parse(dateLayout, startDate); err != nil {
		return nil, fmt.Errorf("promotions: parse start date: %w", err)
	}
	if endDate != "" {
		end, err := time.Parse(dateLayout, endDate)
		if err != nil {
			return nil, fmt.Errorf("promotions: parse end date: %w", err)
		}
		p.EndDate = &end
	}
	return &p, nil
}
