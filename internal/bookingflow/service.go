// Package bookingflow drives a booking draft from flow open to submit. Provider and
// business flows are thin adapters over one Service.
package bookingflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/service-marketplace/internal/booking"
	"github.com/wolfman30/service-marketplace/internal/catalog"
	"github.com/wolfman30/service-marketplace/internal/drafts"
	"github.com/wolfman30/service-marketplace/internal/location"
	"github.com/wolfman30/service-marketplace/internal/pricing"
	"github.com/wolfman30/service-marketplace/internal/promotions"
	"github.com/wolfman30/service-marketplace/internal/selection"
	"github.com/wolfman30/service-marketplace/internal/session"
	"github.com/wolfman30/service-marketplace/pkg/logging"
)

var flowTracer = otel.Tracer("marketplace.internal.bookingflow")

const submitLockPrefix = "submit:"

var (
	// ErrInvalidInput wraps malformed request values.
	ErrInvalidInput = errors.New("bookingflow: invalid input")
	// ErrSubjectMismatch means a catalog item belongs to another business or provider.
	ErrSubjectMismatch = errors.New("bookingflow: item does not belong to this booking subject")
	// ErrForbidden means the caller does not own the draft.
	ErrForbidden = errors.New("bookingflow: draft belongs to another customer")
)

// Committer commits drafts; *booking.Coordinator implements it.
type Committer interface {
	Commit(ctx context.Context, d *booking.Draft) (booking.CommitResult, error)
}

// OpenRequest starts a flow.
type OpenRequest struct {
	Subject   booking.Subject
	Actor     session.Actor
	Mode      location.DeliveryMode
	Inputs    location.Inputs
	Promotion promotions.Ref
}

// Service exposes the draft operations shared by every flow.
type Service struct {
	drafts    drafts.Store
	catalog   catalog.Repository
	resolver  *location.Resolver
	pricing   *pricing.Calculator
	committer Committer
	guard     booking.CommitGuard
	logger    *logging.Logger
	now       func() time.Time
	tz        *time.Location
	newID     func() string
}

// NewService wires the flow collaborators.
func NewService(store drafts.Store, repo catalog.Repository, resolver *location.Resolver, calc *pricing.Calculator, committer Committer, logger *logging.Logger) *Service {
	if store == nil {
		panic("bookingflow: draft store required")
	}
	if repo == nil {
		panic("bookingflow: catalog required")
	}
	if committer == nil {
		panic("bookingflow: committer required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if resolver == nil {
		resolver = location.NewResolver(nil, logger)
	}
	if calc == nil {
		calc = pricing.NewCalculator(nil)
	}
	return &Service{
		drafts:    store,
		catalog:   repo,
		resolver:  resolver,
		pricing:   calc,
		committer: committer,
		guard:     booking.NewLocalGuard(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		tz:        time.UTC,
		newID:     uuid.NewString,
	}
}

// WithClock overrides the clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// WithGuard sets the guard held for the whole of Submit. Submissions are keyed
// apart from the coordinator's own commit lock, so one guard can serve both.
func (s *Service) WithGuard(guard booking.CommitGuard) *Service {
	if guard != nil {
		s.guard = guard
	}
	return s
}

// WithTimezone sets the zone promotion end dates are evaluated in.
func (s *Service) WithTimezone(tz *time.Location) *Service {
	if tz != nil {
		s.tz = tz
	}
	return s
}

// Open creates an empty draft for the subject and resolves the initial location.
func (s *Service) Open(ctx context.Context, req OpenRequest) (*booking.Draft, error) {
	ctx, span := flowTracer.Start(ctx, "bookingflow.open")
	defer span.End()

	subject, err := s.normalizeSubject(ctx, req.Subject)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("marketplace.subject_kind", string(subject.Kind)),
		attribute.String("marketplace.business_id", subject.BusinessID),
	)

	d := booking.NewDraft(s.newID(), subject, req.Actor, s.now())
	d.LocationInputs = req.Inputs
	d.LocationInputs.BusinessID = subject.BusinessID
	d.LocationInputs.CustomerID = req.Actor.CustomerID
	d.Promotion = req.Promotion
	if req.Mode != "" {
		d.Mode = req.Mode
		d.Location = s.resolver.Resolve(ctx, d.Mode, d.LocationInputs)
	}
	s.reprice(ctx, d)
	if err := s.drafts.Save(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info("booking flow opened", "draft_id", d.ID, "subject_kind", subject.Kind, "business_id", subject.BusinessID)
	return d, nil
}

// Get returns the draft.
func (s *Service) Get(ctx context.Context, id string) (*booking.Draft, error) {
	return s.drafts.Get(ctx, id)
}

// Authorize loads the draft and checks that the actor may act on it. Drafts opened
// by an authenticated customer are private to that customer.
func (s *Service) Authorize(ctx context.Context, id string, actor session.Actor) (*booking.Draft, error) {
	d, err := s.drafts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner := d.Actor.CustomerID; owner != "" && owner != actor.CustomerID {
		return nil, ErrForbidden
	}
	return d, nil
}

// AddItem adds a catalog service or add-on to the draft.
func (s *Service) AddItem(ctx context.Context, id string, kind selection.Kind, itemID string) (*booking.Draft, error) {
	return s.mutate(ctx, id, func(d *booking.Draft) error {
		switch kind {
		case selection.KindService:
			svc, err := s.catalog.GetService(ctx, itemID)
			if err != nil {
				return err
			}
			if !belongsTo(d.Subject, svc.BusinessID, svc.ProviderID) {
				return ErrSubjectMismatch
			}
			d.Items.Add(catalog.ServiceItem(*svc))
		case selection.KindAddon:
			addon, err := s.catalog.GetAddon(ctx, itemID)
			if err != nil {
				return err
			}
			if !belongsTo(d.Subject, addon.BusinessID, "") {
				return ErrSubjectMismatch
			}
			if err := catalog.CheckAddon(*addon, d.Items); err != nil {
				return err
			}
			d.Items.Add(catalog.AddonItem(*addon))
		default:
			return fmt.Errorf("%w: unknown item kind %q", ErrInvalidInput, kind)
		}
		return nil
	})
}

// RemoveItem takes one unit of an item away.
func (s *Service) RemoveItem(ctx context.Context, id string, kind selection.Kind, itemID string) (*booking.Draft, error) {
	return s.mutate(ctx, id, func(d *booking.Draft) error {
		d.Items.Remove(itemID, kind)
		return nil
	})
}

// SetDeliveryMode switches the mode and re-resolves the location for it.
func (s *Service) SetDeliveryMode(ctx context.Context, id string, mode location.DeliveryMode) (*booking.Draft, error) {
	return s.mutate(ctx, id, func(d *booking.Draft) error {
		d.Mode = mode
		d.Location = s.resolver.Resolve(ctx, mode, d.LocationInputs)
		return nil
	})
}

// SetManualAddress records user-entered address data; nil clears it. Business
// locations ignore it.
func (s *Service) SetManualAddress(ctx context.Context, id string, addr *location.Address) (*booking.Draft, error) {
	return s.mutate(ctx, id, func(d *booking.Draft) error {
		if addr == nil || addr.IsEmpty() {
			d.ManualAddress = nil
			return nil
		}
		normalized := addr.Normalize()
		d.ManualAddress = &normalized
		return nil
	})
}

// ChangeSubject points the draft at another provider or business and re-runs
// location resolution. Items are kept only when the business is unchanged.
func (s *Service) ChangeSubject(ctx context.Context, id string, subject booking.Subject) (*booking.Draft, error) {
	return s.mutate(ctx, id, func(d *booking.Draft) error {
		next, err := s.normalizeSubject(ctx, subject)
		if err != nil {
			return err
		}
		if next.BusinessID != d.Subject.BusinessID {
			d.Items.Clear()
		}
		d.Subject = next
		d.LocationInputs.BusinessID = next.BusinessID
		d.LocationInputs.BusinessLocationID = ""
		if d.Mode != "" {
			d.Location = s.resolver.Resolve(ctx, d.Mode, d.LocationInputs)
		}
		return nil
	})
}

// ApplyPromotion references a promotion. An inapplicable promotion stays
// referenced but prices at no discount.
func (s *Service) ApplyPromotion(ctx context.Context, id string, ref promotions.Ref) (*booking.Draft, error) {
	return s.mutate(ctx, id, func(d *booking.Draft) error {
		if ref.IsZero() {
			return fmt.Errorf("%w: promotion id required", ErrInvalidInput)
		}
		d.Promotion = promotions.Ref{ID: strings.TrimSpace(ref.ID), Code: strings.TrimSpace(ref.Code)}
		return nil
	})
}

// ClearPromotion drops the promotion reference.
func (s *Service) ClearPromotion(ctx context.Context, id string) (*booking.Draft, error) {
	return s.mutate(ctx, id, func(d *booking.Draft) error {
		d.Promotion = promotions.Ref{}
		return nil
	})
}

// SetSchedule records the preferred date (YYYY-MM-DD) and optional time (HH:MM).
func (s *Service) SetSchedule(ctx context.Context, id, date, at string) (*booking.Draft, error) {
	return s.mutate(ctx, id, func(d *booking.Draft) error {
		date, at = strings.TrimSpace(date), strings.TrimSpace(at)
		if _, err := time.Parse(booking.DateLayout, date); err != nil {
			return fmt.Errorf("%w: preferred_date must be YYYY-MM-DD", ErrInvalidInput)
		}
		if at != "" {
			if _, err := time.Parse(booking.TimeLayout, at); err != nil {
				return fmt.Errorf("%w: preferred_time must be HH:MM", ErrInvalidInput)
			}
		}
		d.PreferredDate = date
		d.PreferredTime = at
		return nil
	})
}

// SetContact updates the contact details without changing the customer id.
func (s *Service) SetContact(ctx context.Context, id, name, email, phone string) (*booking.Draft, error) {
	return s.mutate(ctx, id, func(d *booking.Draft) error {
		contact := session.Guest(name, email, phone)
		d.Actor.Name = contact.Name
		d.Actor.Email = contact.Email
		d.Actor.Phone = contact.Phone
		return nil
	})
}

// SetNotes replaces the free-text notes.
func (s *Service) SetNotes(ctx context.Context, id, notes string) (*booking.Draft, error) {
	return s.mutate(ctx, id, func(d *booking.Draft) error {
		d.Notes = strings.TrimSpace(notes)
		return nil
	})
}

// Submit reprices the draft and commits it. The submit guard is held from the
// draft load until the outcome is saved, so a draft is consumed at most once.
// The draft is reset only after a successful commit; a booking-write failure
// remembers the orphaned location so a resubmission can reattach it.
func (s *Service) Submit(ctx context.Context, id string) (booking.CommitResult, error) {
	ctx, span := flowTracer.Start(ctx, "bookingflow.submit")
	defer span.End()
	span.SetAttributes(attribute.String("marketplace.draft_id", id))

	release, err := s.guard.Acquire(ctx, submitLockPrefix+id)
	if err != nil {
		span.RecordError(err)
		return booking.CommitResult{}, err
	}
	defer release()

	d, err := s.drafts.Get(ctx, id)
	if err != nil {
		return booking.CommitResult{}, err
	}
	s.reprice(ctx, d)

	res, err := s.committer.Commit(ctx, d)
	if err != nil {
		return booking.CommitResult{}, err
	}
	switch res.Outcome {
	case booking.OutcomeSuccess:
		d.Reset(s.now())
	case booking.OutcomeBookingWriteFailed:
		if res.OrphanedLocationID != "" {
			d.ReuseLocationID = res.OrphanedLocationID
		}
	}
	d.UpdatedAt = s.now()
	if err := s.drafts.Save(ctx, d); err != nil {
		if !res.Succeeded() {
			s.logger.Warn("failed to save draft after submit", "draft_id", id, "outcome", res.Outcome, "error", err)
			return res, nil
		}
		// A committed draft must not stay submittable.
		if delErr := s.drafts.Delete(ctx, id); delErr != nil {
			s.logger.Error("committed draft could not be cleared", "draft_id", id, "booking_id", res.BookingID, "save_error", err, "delete_error", delErr)
			return res, nil
		}
		s.logger.Warn("failed to reset committed draft; deleted it instead", "draft_id", id, "booking_id", res.BookingID, "error", err)
	}
	return res, nil
}

// Cancel discards the draft.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if _, err := s.drafts.Get(ctx, id); err != nil {
		return err
	}
	return s.drafts.Delete(ctx, id)
}

// Catalog lists what the subject offers, with add-ons filtered to those usable
// with at least one listed service.
func (s *Service) Catalog(ctx context.Context, subject booking.Subject) (CatalogView, error) {
	subject, err := s.normalizeSubject(ctx, subject)
	if err != nil {
		return CatalogView{}, err
	}
	services, err := s.catalog.ActiveServices(ctx, subject.BusinessID, subject.ProviderID)
	if err != nil {
		return CatalogView{}, err
	}
	addons, err := s.catalog.ActiveAddons(ctx, subject.BusinessID)
	if err != nil {
		return CatalogView{}, err
	}
	providers, err := s.catalog.ActiveProviders(ctx, subject.BusinessID)
	if err != nil {
		return CatalogView{}, err
	}
	serviceIDs := make([]string, 0, len(services))
	for _, svc := range services {
		serviceIDs = append(serviceIDs, svc.ID)
	}
	usable := make([]catalog.Addon, 0, len(addons))
	for _, a := range addons {
		if a.EligibleFor(serviceIDs) {
			usable = append(usable, a)
		}
	}
	return CatalogView{Subject: subject, Services: services, Addons: usable, Providers: providers}, nil
}

// CatalogView is the browsable catalog for a subject.
type CatalogView struct {
	Subject   booking.Subject    `json:"subject"`
	Services  []catalog.Service  `json:"services"`
	Addons    []catalog.Addon    `json:"addons"`
	Providers []catalog.Provider `json:"providers"`
}

func (s *Service) mutate(ctx context.Context, id string, fn func(*booking.Draft) error) (*booking.Draft, error) {
	d, err := s.drafts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(d); err != nil {
		return nil, err
	}
	s.reprice(ctx, d)
	d.UpdatedAt = s.now()
	if err := s.drafts.Save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) reprice(ctx context.Context, d *booking.Draft) {
	scope := pricing.ScopeFor(d.Subject.BusinessID, d.Items)
	d.Pricing = s.pricing.Quote(ctx, d.Items, d.Promotion, scope, s.now().In(s.tz))
}

// normalizeSubject fills in the provider's business for provider subjects.
func (s *Service) normalizeSubject(ctx context.Context, subject booking.Subject) (booking.Subject, error) {
	subject.ProviderID = strings.TrimSpace(subject.ProviderID)
	subject.BusinessID = strings.TrimSpace(subject.BusinessID)
	switch subject.Kind {
	case booking.SubjectProvider:
		if subject.ProviderID == "" {
			return subject, fmt.Errorf("%w: provider id required", ErrInvalidInput)
		}
		provider, err := s.catalog.GetProvider(ctx, subject.ProviderID)
		if err != nil {
			return subject, err
		}
		if subject.BusinessID != "" && subject.BusinessID != provider.BusinessID {
			return subject, ErrSubjectMismatch
		}
		subject.BusinessID = provider.BusinessID
	case booking.SubjectBusiness:
		if subject.BusinessID == "" {
			return subject, fmt.Errorf("%w: business id required", ErrInvalidInput)
		}
		subject.ProviderID = ""
	default:
		return subject, fmt.Errorf("%w: unknown subject kind %q", ErrInvalidInput, subject.Kind)
	}
	return subject, nil
}

func belongsTo(subject booking.Subject, businessID, providerID string) bool {
	if businessID != subject.BusinessID {
		return false
	}
	return providerID == "" || subject.ProviderID == "" || providerID == subject.ProviderID
}
