package location

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/service-marketplace/pkg/logging"
)

var locationTracer = otel.Tracer("marketplace.internal.location")

// QueryAddress holds discrete address parameters supplied individually by the previous screen.
type QueryAddress struct {
	AddressLine1 string `json:"address_line1,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
}

func (q QueryAddress) address() Address {
	return Address{
		AddressLine1: q.AddressLine1,
		City:         q.City,
		State:        q.State,
		PostalCode:   q.PostalCode,
	}.Normalize()
}

// Inputs are the raw, possibly conflicting candidate sources available when a flow opens.
type Inputs struct {
	CustomerLocationID string       `json:"customer_location_id,omitempty"`
	BusinessLocationID string       `json:"business_location_id,omitempty"`
	BusinessID         string       `json:"business_id,omitempty"`
	AddressPayload     string       `json:"address_payload,omitempty"`
	Query              QueryAddress `json:"query,omitempty"`
	CustomerID         string       `json:"customer_id,omitempty"`
}

// Resolution is the single effective location for a delivery mode.
type Resolution struct {
	Mode       DeliveryMode `json:"mode"`
	Address    *Address     `json:"address,omitempty"`
	Source     Source       `json:"source,omitempty"`
	LocationID string       `json:"location_id,omitempty"`
	ReadOnly   bool         `json:"read_only,omitempty"`
}

// Resolved reports whether an address was found.
func (r Resolution) Resolved() bool {
	return r.Address != nil
}

// WithManual applies user-entered address data. Non-empty manual input replaces the
// resolved address wholesale; read-only and virtual resolutions ignore it.
func (r Resolution) WithManual(manual *Address) Resolution {
	if manual == nil || manual.IsEmpty() || r.ReadOnly || r.Mode == ModeVirtual {
		return r
	}
	addr := manual.Normalize()
	return Resolution{
		Mode:    r.Mode,
		Address: &addr,
		Source:  SourceManual,
	}
}

// Resolver picks exactly one effective location from the candidate sources.
type Resolver struct {
	store  Store
	logger *logging.Logger
}

// NewResolver constructs a resolver. A nil store disables stored lookups.
func NewResolver(store Store, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve applies the precedence order for the given mode. Lookup failures are logged
// and leave the location unresolved rather than returning an error. A customer
// location reference that cannot be loaded is not replaced by a lower source.
func (r *Resolver) Resolve(ctx context.Context, mode DeliveryMode, in Inputs) Resolution {
	ctx, span := locationTracer.Start(ctx, "location.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("marketplace.delivery_mode", string(mode)))

	var res Resolution
	switch mode {
	case ModeVirtual:
		res = Resolution{Mode: ModeVirtual}
	case ModeAtBusiness:
		res = r.resolveBusiness(ctx, in)
	case ModeMobile:
		res = r.resolveCustomer(ctx, in)
	default:
		res = Resolution{Mode: mode}
	}
	span.SetAttributes(
		attribute.String("marketplace.location_source", string(res.Source)),
		attribute.Bool("marketplace.location_resolved", res.Resolved()),
	)
	return res
}

func (r *Resolver) resolveBusiness(ctx context.Context, in Inputs) Resolution {
	res := Resolution{Mode: ModeAtBusiness, ReadOnly: true}
	if r.store == nil {
		return res
	}
	if id := strings.TrimSpace(in.BusinessLocationID); id != "" {
		if rec := r.lookup(ctx, "business_location", id, r.store.GetBusinessLocation); rec != nil {
			return fromRecord(res, rec, SourceStoredBusiness)
		}
	}
	if businessID := strings.TrimSpace(in.BusinessID); businessID != "" {
		if rec := r.lookup(ctx, "business_primary_location", businessID, r.store.PrimaryBusinessLocation); rec != nil {
			return fromRecord(res, rec, SourceStoredBusiness)
		}
	}
	return res
}

func (r *Resolver) resolveCustomer(ctx context.Context, in Inputs) Resolution {
	res := Resolution{Mode: ModeMobile}

	// An explicit reference that cannot be loaded stays unresolved; commit reports it.
	if id := strings.TrimSpace(in.CustomerLocationID); id != "" {
		if r.store != nil {
			if rec := r.lookup(ctx, "customer_location", id, r.store.GetCustomerLocation); rec != nil {
				return fromRecord(res, rec, SourceStoredCustomer)
			}
		}
		return res
	}

	if addr, ok := r.decodePayload(in.AddressPayload); ok {
		res.Address = &addr
		res.Source = SourcePayload
		return res
	}

	if addr := in.Query.address(); addr.AddressLine1 != "" {
		res.Address = &addr
		res.Source = SourceQuery
		return res
	}

	if customerID := strings.TrimSpace(in.CustomerID); customerID != "" && r.store != nil {
		if rec := r.lookup(ctx, "customer_profile_location", customerID, r.store.LatestActiveCustomerLocation); rec != nil {
			return fromRecord(res, rec, SourceProfile)
		}
	}
	return res
}

func (r *Resolver) decodePayload(raw string) (Address, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Address{}, false
	}
	var addr Address
	if err := json.Unmarshal([]byte(raw), &addr); err != nil {
		r.logger.Warn("ignoring malformed address payload", "error", err)
		return Address{}, false
	}
	addr = addr.Normalize()
	if addr.AddressLine1 == "" {
		return Address{}, false
	}
	return addr, true
}

func (r *Resolver) lookup(ctx context.Context, kind, key string, fetch func(context.Context, string) (*Record, error)) *Record {
	rec, err := fetch(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.logger.Debug("location lookup miss", "kind", kind, "key", key)
		} else {
			r.logger.Warn("location lookup failed", "kind", kind, "key", key, "error", err)
		}
		return nil
	}
	if rec == nil {
		return nil
	}
	return rec
}

func fromRecord(res Resolution, rec *Record, source Source) Resolution {
	addr := rec.Address.Normalize()
	res.Address = &addr
	res.Source = source
	res.LocationID = rec.ID
	return res
}
