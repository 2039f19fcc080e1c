package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/service-marketplace/pkg/logging"
)

const maxErrorLength = 500

// OutboxEntry is an undelivered booking event.
type OutboxEntry struct {
	ID        uuid.UUID
	Aggregate string
	Type      string
	Payload   json.RawMessage
	Attempts  int32
	CreatedAt time.Time
}

// DeliveryHandler hands an entry to whatever consumes booking events.
type DeliveryHandler interface {
	Handle(ctx context.Context, entry OutboxEntry) error
}

// DeliveryObserver records delivery attempts.
type DeliveryObserver interface {
	ObserveOutboxDelivery(eventType string, delivered bool)
}

type outboxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxStore keeps commit events in Postgres until a consumer has handled them.
type OutboxStore struct {
	pool outboxQuerier
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return &OutboxStore{pool: pool}
}

func newOutboxStoreWithExec(exec outboxQuerier) *OutboxStore {
	if exec == nil {
		panic("events: exec required")
	}
	return &OutboxStore{pool: exec}
}

// Append wraps evt in an envelope and writes it to the outbox.
func (s *OutboxStore) Append(ctx context.Context, aggregate, correlationID string, evt Event, opts ...EnvelopeOption) (Envelope, error) {
	env, err := NewEnvelope(aggregate, correlationID, evt, opts...)
	if err != nil {
		return Envelope{}, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal envelope: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO outbox (id, aggregate, event_type, payload) VALUES ($1, $2, $3, $4)`,
		env.EventID, env.Aggregate, env.EventType, data)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: append %s: %w", env.EventType, err)
	}
	return env, nil
}

// FetchPending returns the oldest undelivered entries that have failed fewer
// than maxAttempts times.
func (s *OutboxStore) FetchPending(ctx context.Context, limit, maxAttempts int32) ([]OutboxEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, aggregate, event_type, payload, attempts, created_at
		FROM outbox
		WHERE delivered_at IS NULL AND attempts < $1
		ORDER BY created_at, id
		LIMIT $2`, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var (
			entry   OutboxEntry
			payload []byte
		)
		if err := rows.Scan(&entry.ID, &entry.Aggregate, &entry.Type, &payload, &entry.Attempts, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		entry.Payload = append(json.RawMessage(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// MarkDelivered reports false when the entry was already delivered.
func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	ct, err := s.pool.Exec(ctx,
		`UPDATE outbox SET delivered_at = now() WHERE id = $1 AND delivered_at IS NULL`, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// RecordFailure counts a failed delivery and keeps the latest error for operators.
func (s *OutboxStore) RecordFailure(ctx context.Context, id uuid.UUID, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if len(msg) > maxErrorLength {
		msg = msg[:maxErrorLength]
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1 AND delivered_at IS NULL`, id, msg)
	if err != nil {
		return fmt.Errorf("events: record failure: %w", err)
	}
	return nil
}

// Deliverer polls the outbox and invokes the handler. Entries that keep failing
// are parked after maxAttempts and stay in the table for inspection.
type Deliverer struct {
	store       *OutboxStore
	handler     DeliveryHandler
	metrics     DeliveryObserver
	logger      *logging.Logger
	batchSize   int32
	maxAttempts int32
	interval    time.Duration
}

func NewDeliverer(store *OutboxStore, handler DeliveryHandler, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:       store,
		handler:     handler,
		logger:      logger,
		batchSize:   25,
		maxAttempts: 10,
		interval:    2 * time.Second,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithMaxAttempts(n int32) *Deliverer {
	if n > 0 {
		d.maxAttempts = n
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

func (d *Deliverer) WithMetrics(metrics DeliveryObserver) *Deliverer {
	d.metrics = metrics
	return d
}

// Start drains the outbox every interval until ctx is done.
func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.handler == nil {
		return
	}
	d.logger.Info("outbox deliverer started", "interval", d.interval, "batch_size", d.batchSize)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox deliverer stopped")
			return
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain delivers one batch and returns how many entries were marked delivered.
func (d *Deliverer) Drain(ctx context.Context) int {
	entries, err := d.store.FetchPending(ctx, d.batchSize, d.maxAttempts)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return 0
	}
	delivered := 0
	for _, entry := range entries {
		if err := d.handler.Handle(ctx, entry); err != nil {
			d.fail(ctx, entry, err)
			continue
		}
		ok, err := d.store.MarkDelivered(ctx, entry.ID)
		if err != nil {
			d.logger.Error("outbox mark delivered failed", "error", err, "event_id", entry.ID)
			d.observe(entry.Type, false)
			continue
		}
		if ok {
			delivered++
		}
		d.observe(entry.Type, true)
	}
	return delivered
}

func (d *Deliverer) fail(ctx context.Context, entry OutboxEntry, cause error) {
	d.observe(entry.Type, false)
	attempt := entry.Attempts + 1
	log := d.logger.With("event_id", entry.ID, "type", entry.Type, "attempt", attempt)
	if attempt >= d.maxAttempts {
		log.Error("outbox entry parked after repeated failures", "error", cause)
	} else {
		log.Warn("outbox delivery failed", "error", cause)
	}
	if err := d.store.RecordFailure(ctx, entry.ID, cause); err != nil {
		log.Error("outbox failure not recorded", "error", err)
	}
}

func (d *Deliverer) observe(eventType string, delivered bool) {
	if d.metrics != nil {
		d.metrics.ObserveOutboxDelivery(eventType, delivered)
	}
}
