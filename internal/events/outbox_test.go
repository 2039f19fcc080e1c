package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/service-marketplace/pkg/logging"
)

var outboxColumns = []string{"id", "aggregate", "event_type", "payload", "attempts", "created_at"}

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newOutboxStoreWithExec(mock)

	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(pgxmock.AnyArg(), "booking_draft:d-1", TypeBookingCommit, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	env, err := store.Append(context.Background(), "booking_draft:d-1", "d-1", BookingCommitV1{DraftID: "d-1", Outcome: "success"})
	require.NoError(t, err)
	assert.Equal(t, TypeBookingCommit, env.EventType)
	assert.Equal(t, "d-1", env.CorrelationID)

	now := time.Now().UTC()
	id := uuid.New()
	rows := pgxmock.NewRows(outboxColumns).
		AddRow(id, "booking_draft:d-1", TypeBookingCommit, []byte(`{"event_id":"x"}`), int32(2), now)
	mock.ExpectQuery("SELECT id, aggregate, event_type").WithArgs(int32(5), int32(10)).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, "booking_draft:d-1", entries[0].Aggregate)
	assert.Equal(t, int32(2), entries[0].Attempts)

	mock.ExpectExec("UPDATE outbox").WithArgs(id).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxAppendRejectsMissingAggregate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = newOutboxStoreWithExec(mock).Append(context.Background(), " ", "", BookingCommitV1{})
	assert.ErrorIs(t, err, errMissingAggregate)
	require.NoError(t, mock.ExpectationsWereMet())
}

type deliveryRecorder struct {
	delivered map[string]int
	failed    map[string]int
}

func newDeliveryRecorder() *deliveryRecorder {
	return &deliveryRecorder{delivered: map[string]int{}, failed: map[string]int{}}
}

func (r *deliveryRecorder) ObserveOutboxDelivery(eventType string, delivered bool) {
	if delivered {
		r.delivered[eventType]++
		return
	}
	r.failed[eventType]++
}

type handlerFunc func(ctx context.Context, entry OutboxEntry) error

func (f handlerFunc) Handle(ctx context.Context, entry OutboxEntry) error {
	return f(ctx, entry)
}

func TestDelivererDrainMarksOnlyHandledEntries(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	good, bad := uuid.New(), uuid.New()
	now := time.Now().UTC()
	rows := pgxmock.NewRows(outboxColumns).
		AddRow(good, "booking_draft:a", TypeBookingCommit, []byte(`{}`), int32(0), now).
		AddRow(bad, "customer_location:l", TypeLocationOrphaned, []byte(`{}`), int32(2), now)
	mock.ExpectQuery("SELECT id, aggregate, event_type").WithArgs(int32(3), int32(5)).WillReturnRows(rows)
	mock.ExpectExec("UPDATE outbox SET delivered_at").WithArgs(good).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE outbox SET attempts").WithArgs(bad, "downstream unavailable").WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	handler := handlerFunc(func(_ context.Context, entry OutboxEntry) error {
		if entry.ID == bad {
			return errors.New("downstream unavailable")
		}
		return nil
	})
	recorder := newDeliveryRecorder()
	d := NewDeliverer(newOutboxStoreWithExec(mock), handler, logging.New("error")).
		WithBatchSize(5).
		WithMaxAttempts(3).
		WithMetrics(recorder)

	assert.Equal(t, 1, d.Drain(context.Background()))
	assert.Equal(t, 1, recorder.delivered[TypeBookingCommit])
	assert.Equal(t, 1, recorder.failed[TypeLocationOrphaned])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelivererDrainSurvivesFetchError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, aggregate, event_type").WithArgs(int32(10), int32(25)).WillReturnError(errors.New("db down"))
	d := NewDeliverer(newOutboxStoreWithExec(mock), handlerFunc(func(context.Context, OutboxEntry) error { return nil }), nil)

	assert.Equal(t, 0, d.Drain(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordFailureTruncatesError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	long := strings.Repeat("x", maxErrorLength+50)
	mock.ExpectExec("UPDATE outbox SET attempts").WithArgs(id, long[:maxErrorLength]).WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, newOutboxStoreWithExec(mock).RecordFailure(context.Background(), id, errors.New(long)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelivererStartStopsWithContext(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	handler := handlerFunc(func(context.Context, OutboxEntry) error { return nil })
	d := NewDeliverer(newOutboxStoreWithExec(mock), handler, logging.New("error")).WithInterval(time.Hour)
	go func() {
		d.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliverer did not stop")
	}
}

func TestNewEnvelopeOptions(t *testing.T) {
	fixed := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	prevNow := nowFunc
	nowFunc = func() time.Time { return fixed }
	defer func() { nowFunc = prevNow }()

	id := uuid.MustParse("9a20d7d1-bf6a-4d33-bd55-5d25a816f1a8")
	env, err := NewEnvelope("booking_draft:d-1", " corr ", BookingCommitV1{DraftID: "d-1"}, WithEventID(id))
	require.NoError(t, err)
	assert.Equal(t, id, env.EventID)
	assert.Equal(t, fixed.UnixMicro(), env.TimestampMicros)
	assert.Equal(t, "corr", env.CorrelationID)

	var payload BookingCommitV1
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "d-1", payload.DraftID)

	_, err = NewEnvelope("agg", "", nil)
	assert.ErrorIs(t, err, errNilEvent)
}
