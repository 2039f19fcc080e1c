package events

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessedStoreClaim(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newProcessedStoreWithExec(mock)

	mock.ExpectExec("INSERT INTO processed_events").WithArgs("booking-log", "evt-1").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO processed_events").WithArgs("booking-log", "evt-1").WillReturnResult(pgxmock.NewResult("INSERT", 0))

	first, err := store.Claim(context.Background(), "booking-log", "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.Claim(context.Background(), "booking-log", "evt-1")
	require.NoError(t, err)
	assert.False(t, again)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessedStoreReleaseAndPrune(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newProcessedStoreWithExec(mock)

	mock.ExpectExec("DELETE FROM processed_events WHERE consumer").WithArgs("booking-log", "evt-2").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, store.Release(context.Background(), "booking-log", "evt-2"))

	mock.ExpectExec("DELETE FROM processed_events WHERE processed_at").WithArgs("172800 seconds").WillReturnResult(pgxmock.NewResult("DELETE", 4))
	n, err := store.Prune(context.Background(), 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessedStoreWrapsErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO processed_events").WithArgs("booking-log", "evt-3").WillReturnError(boom)

	_, err = newProcessedStoreWithExec(mock).Claim(context.Background(), "booking-log", "evt-3")
	assert.ErrorIs(t, err, boom)
}
