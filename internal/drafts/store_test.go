package drafts

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/service-marketplace/internal/booking"
	"github.com/wolfman30/service-marketplace/internal/location"
	"github.com/wolfman30/service-marketplace/internal/promotions"
	"github.com/wolfman30/service-marketplace/internal/selection"
	"github.com/wolfman30/service-marketplace/internal/session"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis, func()) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr, func() {
		client.Close()
		mr.Close()
	}
}

func sampleDraft() *booking.Draft {
	d := booking.NewDraft("draft-1", booking.Subject{Kind: booking.SubjectBusiness, BusinessID: "biz-1"},
		session.Actor{CustomerID: "cust-1", Email: "jane@example.com"}, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	d.Items.Add(selection.Item{Kind: selection.KindService, ID: "svc-1", UnitPriceCents: 12000})
	d.Items.Add(selection.Item{Kind: selection.KindAddon, ID: "addon-1", UnitPriceCents: 4000})
	d.Items.Add(selection.Item{Kind: selection.KindAddon, ID: "addon-1", UnitPriceCents: 4000})
	d.Mode = location.ModeMobile
	d.Location = location.Resolution{
		Mode:    location.ModeMobile,
		Address: &location.Address{AddressLine1: "1 Main", City: "Austin", State: "TX", PostalCode: "78701"},
		Source:  location.SourceQuery,
	}
	d.Promotion = promotions.Ref{ID: "promo-1", Code: "SAVE"}
	return d
}

func TestRedisStoreRoundTrip(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisStore(client, 10*time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleDraft()))

	assert.Equal(t, 10*time.Minute, mr.TTL("booking:draft:draft-1"))

	got, err := store.Get(ctx, "draft-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Items.QuantityOf("addon-1", selection.KindAddon))
	assert.Equal(t, int64(20000), got.Items.Subtotal())
	assert.Equal(t, "Austin", got.Location.Address.City)
	assert.Equal(t, "SAVE", got.Promotion.Code)
	assert.Equal(t, "cust-1", got.Actor.CustomerID)
}

func TestRedisStoreExpiry(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleDraft()))

	mr.FastForward(2 * time.Minute)
	_, err := store.Get(ctx, "draft-1")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestRedisStoreDelete(t *testing.T) {
	client, _, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleDraft()))
	require.NoError(t, store.Delete(ctx, "draft-1"))

	_, err := store.Get(ctx, "draft-1")
	assert.ErrorIs(t, err, ErrDraftNotFound)
	assert.Error(t, store.Save(ctx, &booking.Draft{}))
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()
	draft := sampleDraft()
	require.NoError(t, store.Save(ctx, draft))

	draft.Items.Clear()
	got, err := store.Get(ctx, "draft-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Items.Len())
}

func TestMemoryStoreExpiry(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleDraft()))

	now = now.Add(59 * time.Second)
	_, err := store.Get(ctx, "draft-1")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = store.Get(ctx, "draft-1")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}
