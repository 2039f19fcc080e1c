package events

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ledgerExec interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ProcessedStore is the per-consumer ledger of handled outbox events. A consumer
// claims an event before handling it and releases the claim if handling fails.
type ProcessedStore struct {
	pool ledgerExec
}

func NewProcessedStore(pool *pgxpool.Pool) *ProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &ProcessedStore{pool: pool}
}

func newProcessedStoreWithExec(exec ledgerExec) *ProcessedStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &ProcessedStore{pool: exec}
}

// Claim records eventID for consumer. It returns false when the event was
// already claimed.
func (s *ProcessedStore) Claim(ctx context.Context, consumer, eventID string) (bool, error) {
	ct, err := s.pool.Exec(ctx,
		`INSERT INTO processed_events (consumer, event_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		consumer, eventID)
	if err != nil {
		return false, fmt.Errorf("events: claim %s/%s: %w", consumer, eventID, err)
	}
	return ct.RowsAffected() == 1, nil
}

// Release drops a claim so the event can be handled again.
func (s *ProcessedStore) Release(ctx context.Context, consumer, eventID string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM processed_events WHERE consumer = $1 AND event_id = $2`,
		consumer, eventID); err != nil {
		return fmt.Errorf("events: release %s/%s: %w", consumer, eventID, err)
	}
	return nil
}

// Prune deletes ledger rows older than retention and returns how many were removed.
func (s *ProcessedStore) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	ct, err := s.pool.Exec(ctx,
		`DELETE FROM processed_events WHERE processed_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int64(retention.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("events: prune processed: %w", err)
	}
	return ct.RowsAffected(), nil
}
