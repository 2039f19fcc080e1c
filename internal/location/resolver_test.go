package location

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/service-marketplace/pkg/logging"
)

const payloadJSON = `{"address_line1":"1 Payload St","city":"Austin","state":"TX","postal_code":"78701","country":"US"}`

func newTestResolver(store Store) *Resolver {
	return NewResolver(store, logging.New("error"))
}

func TestResolvePayloadBeatsQueryWithoutMerging(t *testing.T) {
	res := newTestResolver(NewInMemoryStore()).Resolve(context.Background(), ModeMobile, Inputs{
		AddressPayload: payloadJSON,
		Query: QueryAddress{
			AddressLine1: "9 Query Ave",
			City:         "Dallas",
			State:        "TX",
			PostalCode:   "75001",
		},
	})

	require.True(t, res.Resolved())
	assert.Equal(t, SourcePayload, res.Source)
	assert.Equal(t, Address{
		AddressLine1: "1 Payload St",
		City:         "Austin",
		State:        "TX",
		PostalCode:   "78701",
		Country:      "US",
	}, *res.Address)
}

func TestResolvePartialPayloadIsNotFilledFromQuery(t *testing.T) {
	res := newTestResolver(nil).Resolve(context.Background(), ModeMobile, Inputs{
		AddressPayload: `{"address_line1":"1 Payload St"}`,
		Query:          QueryAddress{AddressLine1: "9 Query Ave", City: "Dallas", State: "TX", PostalCode: "75001"},
	})

	require.True(t, res.Resolved())
	assert.Equal(t, SourcePayload, res.Source)
	assert.Equal(t, "", res.Address.City)
	assert.False(t, res.Address.Complete())
}

func TestResolveStoredCustomerReferenceWins(t *testing.T) {
	store := NewInMemoryStore()
	store.PutCustomerLocation(Record{
		ID:       "loc-stored",
		OwnerID:  "cust-1",
		Address:  Address{AddressLine1: "5 Stored Rd", City: "Austin", State: "TX", PostalCode: "78702"},
		IsActive: true,
	})

	res := newTestResolver(store).Resolve(context.Background(), ModeMobile, Inputs{
		CustomerLocationID: "loc-stored",
		AddressPayload:     payloadJSON,
		CustomerID:         "cust-1",
	})

	assert.Equal(t, SourceStoredCustomer, res.Source)
	assert.Equal(t, "loc-stored", res.LocationID)
	assert.Equal(t, "5 Stored Rd", res.Address.AddressLine1)
}

func TestResolveMissingReferenceStaysUnresolved(t *testing.T) {
	store := NewInMemoryStore()
	store.PutCustomerLocation(Record{ID: "profile", OwnerID: "cust-1", IsActive: true,
		Address: Address{AddressLine1: "Profile", City: "A", State: "TX", PostalCode: "1"}})

	res := newTestResolver(store).Resolve(context.Background(), ModeMobile, Inputs{
		CustomerLocationID: "does-not-exist",
		AddressPayload:     payloadJSON,
		Query:              QueryAddress{AddressLine1: "9 Query Ave", City: "Dallas", State: "TX", PostalCode: "75001"},
		CustomerID:         "cust-1",
	})

	assert.False(t, res.Resolved())
	assert.Empty(t, res.Source)
	assert.Equal(t, ModeMobile, res.Mode)

	manual := res.WithManual(&Address{AddressLine1: "5 Fix St", City: "Dallas", State: "TX", PostalCode: "75001"})
	assert.True(t, manual.Resolved())
}

func TestResolveMissingBusinessReferenceFallsBackToPrimary(t *testing.T) {
	store := NewInMemoryStore()
	store.PutBusinessLocation(Record{ID: "b-primary", OwnerID: "biz-1", IsActive: true, IsPrimary: true,
		Address: Address{AddressLine1: "Primary", City: "A", State: "TX", PostalCode: "1"}})

	res := newTestResolver(store).Resolve(context.Background(), ModeAtBusiness, Inputs{BusinessLocationID: "gone", BusinessID: "biz-1"})
	assert.Equal(t, "b-primary", res.LocationID)
	assert.True(t, res.ReadOnly)
}

func TestResolveMalformedPayloadFallsThrough(t *testing.T) {
	res := newTestResolver(nil).Resolve(context.Background(), ModeMobile, Inputs{
		AddressPayload: "{not json",
		Query:          QueryAddress{AddressLine1: "9 Query Ave", City: "Dallas"},
	})

	assert.Equal(t, SourceQuery, res.Source)
}

func TestResolveProfileUsesMostRecentActive(t *testing.T) {
	store := NewInMemoryStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.PutCustomerLocation(Record{ID: "old", OwnerID: "cust-1", IsActive: true, CreatedAt: base,
		Address: Address{AddressLine1: "Old", City: "A", State: "TX", PostalCode: "1"}})
	store.PutCustomerLocation(Record{ID: "new", OwnerID: "cust-1", IsActive: true, CreatedAt: base.Add(time.Hour),
		Address: Address{AddressLine1: "New", City: "A", State: "TX", PostalCode: "1"}})
	store.PutCustomerLocation(Record{ID: "inactive", OwnerID: "cust-1", IsActive: false, CreatedAt: base.Add(2 * time.Hour),
		Address: Address{AddressLine1: "Inactive", City: "A", State: "TX", PostalCode: "1"}})
	store.PutCustomerLocation(Record{ID: "other", OwnerID: "cust-2", IsActive: true, CreatedAt: base.Add(3 * time.Hour),
		Address: Address{AddressLine1: "Other", City: "A", State: "TX", PostalCode: "1"}})

	res := newTestResolver(store).Resolve(context.Background(), ModeMobile, Inputs{CustomerID: "cust-1"})

	assert.Equal(t, SourceProfile, res.Source)
	assert.Equal(t, "new", res.LocationID)
}

func TestResolveMobileUnresolvedWithoutSources(t *testing.T) {
	res := newTestResolver(NewInMemoryStore()).Resolve(context.Background(), ModeMobile, Inputs{})
	assert.False(t, res.Resolved())
	assert.Equal(t, ModeMobile, res.Mode)
}

func TestResolveBusinessUsesReferenceThenPrimary(t *testing.T) {
	store := NewInMemoryStore()
	store.PutBusinessLocation(Record{ID: "b-secondary", OwnerID: "biz-1", IsActive: true,
		Address: Address{AddressLine1: "Secondary", City: "A", State: "TX", PostalCode: "1"}})
	store.PutBusinessLocation(Record{ID: "b-primary", OwnerID: "biz-1", IsActive: true, IsPrimary: true,
		Address: Address{AddressLine1: "Primary", City: "A", State: "TX", PostalCode: "1"}})
	resolver := newTestResolver(store)

	byRef := resolver.Resolve(context.Background(), ModeAtBusiness, Inputs{BusinessLocationID: "b-secondary", BusinessID: "biz-1"})
	assert.Equal(t, "b-secondary", byRef.LocationID)
	assert.True(t, byRef.ReadOnly)

	byBusiness := resolver.Resolve(context.Background(), ModeAtBusiness, Inputs{BusinessID: "biz-1", AddressPayload: payloadJSON})
	assert.Equal(t, "b-primary", byBusiness.LocationID)
	assert.Equal(t, SourceStoredBusiness, byBusiness.Source)
}

func TestResolveBusinessIgnoresManualEdits(t *testing.T) {
	store := NewInMemoryStore()
	store.PutBusinessLocation(Record{ID: "b-1", OwnerID: "biz-1", IsActive: true, IsPrimary: true,
		Address: Address{AddressLine1: "Studio", City: "A", State: "TX", PostalCode: "1"}})

	res := newTestResolver(store).Resolve(context.Background(), ModeAtBusiness, Inputs{BusinessID: "biz-1"})
	edited := res.WithManual(&Address{AddressLine1: "Somewhere else"})

	assert.Equal(t, "Studio", edited.Address.AddressLine1)
	assert.Equal(t, "b-1", edited.LocationID)
}

func TestResolveVirtualNeedsNoAddress(t *testing.T) {
	res := newTestResolver(NewInMemoryStore()).Resolve(context.Background(), ModeVirtual, Inputs{AddressPayload: payloadJSON})
	assert.False(t, res.Resolved())

	withManual := res.WithManual(&Address{AddressLine1: "x"})
	assert.False(t, withManual.Resolved())
}

func TestManualInputReplacesResolvedAddress(t *testing.T) {
	res := newTestResolver(nil).Resolve(context.Background(), ModeMobile, Inputs{AddressPayload: payloadJSON})

	manual := &Address{AddressLine1: " 7 Manual Ln ", City: "Houston", State: "TX", PostalCode: "77001"}
	edited := res.WithManual(manual)

	assert.Equal(t, SourceManual, edited.Source)
	assert.Equal(t, "7 Manual Ln", edited.Address.AddressLine1)
	assert.Equal(t, "", edited.Address.Country, "manual edits must not inherit payload fields")

	assert.Equal(t, res, res.WithManual(&Address{AddressLine1: "   "}))
}

type failingStore struct {
	*InMemoryStore
}

func (failingStore) GetCustomerLocation(context.Context, string) (*Record, error) {
	return nil, errors.New("connection reset")
}

func (failingStore) LatestActiveCustomerLocation(context.Context, string) (*Record, error) {
	return nil, errors.New("connection reset")
}

func TestResolveLookupFailureLeavesUnresolved(t *testing.T) {
	res := newTestResolver(failingStore{NewInMemoryStore()}).Resolve(context.Background(), ModeMobile, Inputs{
		CustomerLocationID: "loc-1",
		CustomerID:         "cust-1",
	})
	assert.False(t, res.Resolved())
}

func TestParseDeliveryMode(t *testing.T) {
	tests := map[string]DeliveryMode{
		"mobile":    ModeMobile,
		"In-Studio": ModeAtBusiness,
		"virtual":   ModeVirtual,
		"online":    ModeVirtual,
	}
	for raw, want := range tests {
		got, err := ParseDeliveryMode(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
	_, err := ParseDeliveryMode("drone")
	assert.Error(t, err)
}

func TestAddressMissingFields(t *testing.T) {
	addr := Address{AddressLine1: "1 Main", City: " ", State: "TX"}
	assert.Equal(t, []string{"city", "postal_code"}, addr.MissingFields())
	assert.False(t, addr.Complete())
	assert.True(t, Address{Country: " "}.IsEmpty())
}
