package bookingflow

import (
	"context"

	"github.com/wolfman30/service-marketplace/internal/booking"
	"github.com/wolfman30/service-marketplace/internal/location"
	"github.com/wolfman30/service-marketplace/internal/promotions"
	"github.com/wolfman30/service-marketplace/internal/session"
)

// OpenOptions are the optional inputs a flow can open with.
type OpenOptions struct {
	Mode      location.DeliveryMode
	Inputs    location.Inputs
	Promotion promotions.Ref
}

// ProviderFlow books a single provider.
type ProviderFlow struct {
	*Service
}

func NewProviderFlow(svc *Service) *ProviderFlow {
	return &ProviderFlow{Service: svc}
}

// Open starts a draft against the provider. The provider's business is looked up.
func (f *ProviderFlow) Open(ctx context.Context, providerID string, actor session.Actor, opts OpenOptions) (*booking.Draft, error) {
	return f.Service.Open(ctx, OpenRequest{
		Subject:   booking.Subject{Kind: booking.SubjectProvider, ProviderID: providerID},
		Actor:     actor,
		Mode:      opts.Mode,
		Inputs:    opts.Inputs,
		Promotion: opts.Promotion,
	})
}

// BusinessFlow books a business without naming a provider.
type BusinessFlow struct {
	*Service
}

func NewBusinessFlow(svc *Service) *BusinessFlow {
	return &BusinessFlow{Service: svc}
}

// Open starts a draft against the business.
func (f *BusinessFlow) Open(ctx context.Context, businessID string, actor session.Actor, opts OpenOptions) (*booking.Draft, error) {
	return f.Service.Open(ctx, OpenRequest{
		Subject:   booking.Subject{Kind: booking.SubjectBusiness, BusinessID: businessID},
		Actor:     actor,
		Mode:      opts.Mode,
		Inputs:    opts.Inputs,
		Promotion: opts.Promotion,
	})
}
