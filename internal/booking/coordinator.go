package booking

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/service-marketplace/internal/location"
	"github.com/wolfman30/service-marketplace/internal/pricing"
	"github.com/wolfman30/service-marketplace/pkg/logging"
)

var bookingTracer = otel.Tracer("marketplace.internal.booking")

// ErrNilDraft is returned when Commit is called without a draft.
var ErrNilDraft = errors.New("booking: draft required")

// LocationWriter is the part of the location store the coordinator writes through.
type LocationWriter interface {
	GetCustomerLocation(ctx context.Context, id string) (*location.Record, error)
	CreateCustomerLocation(ctx context.Context, req location.CreateCustomerLocationRequest) (*location.Record, error)
}

// CommitObserver records commit metrics.
type CommitObserver interface {
	ObserveCommit(outcome string, seconds float64)
	ObserveOrphanedLocation()
}

// Coordinator validates a draft and performs the location-then-booking write.
type Coordinator struct {
	locations    LocationWriter
	bookings     Store
	guard        CommitGuard
	notifier     Notifier
	metrics      CommitObserver
	logger       *logging.Logger
	now          func() time.Time
	newReference func() string
}

// NewCoordinator wires the two stores. The guard defaults to an in-process guard.
func NewCoordinator(locations LocationWriter, bookings Store, logger *logging.Logger) *Coordinator {
	if locations == nil {
		panic("booking: location store required")
	}
	if bookings == nil {
		panic("booking: booking store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator{
		locations:    locations,
		bookings:     bookings,
		guard:        NewLocalGuard(),
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		newReference: func() string { return ulid.Make().String() },
	}
}

func (c *Coordinator) WithGuard(guard CommitGuard) *Coordinator {
	if guard != nil {
		c.guard = guard
	}
	return c
}

func (c *Coordinator) WithNotifier(notifier Notifier) *Coordinator {
	c.notifier = notifier
	return c
}

func (c *Coordinator) WithMetrics(metrics CommitObserver) *Coordinator {
	c.metrics = metrics
	return c
}

func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	if now != nil {
		c.now = now
	}
	return c
}

// Validate returns every field problem with the draft. It performs no I/O.
func Validate(d *Draft) []FieldError {
	var fields []FieldError
	add := func(field, msg string) {
		fields = append(fields, FieldError{Field: field, Message: msg})
	}

	if d.Subject.IsZero() {
		add("subject", "a provider or business is required")
	}
	if strings.TrimSpace(d.Actor.Name) == "" {
		add("contact_name", "contact name is required")
	}
	if email := strings.TrimSpace(d.Actor.Email); email == "" {
		add("contact_email", "contact email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		add("contact_email", "contact email is invalid")
	}
	if date := strings.TrimSpace(d.PreferredDate); date == "" {
		add("preferred_date", "preferred date is required")
	} else if _, err := time.Parse(DateLayout, date); err != nil {
		add("preferred_date", "preferred date must be YYYY-MM-DD")
	}
	if t := strings.TrimSpace(d.PreferredTime); t != "" {
		if _, err := time.Parse(TimeLayout, t); err != nil {
			add("preferred_time", "preferred time must be HH:MM")
		}
	}
	if d.Items.IsEmpty() {
		add("items", "select at least one service or add-on")
	}
	switch d.Mode {
	case location.ModeMobile:
		loc := d.EffectiveLocation()
		if !loc.Resolved() {
			for _, field := range (location.Address{}).MissingFields() {
				add(field, "required for mobile appointments")
			}
			break
		}
		for _, field := range loc.Address.MissingFields() {
			add(field, "required for mobile appointments")
		}
	case location.ModeAtBusiness, location.ModeVirtual:
	default:
		add("delivery_mode", "delivery mode is required")
	}
	return fields
}

// Commit runs the commit state machine once. Domain failures are reported in the
// result; the error is reserved for guard contention and programming errors.
func (c *Coordinator) Commit(ctx context.Context, d *Draft) (CommitResult, error) {
	if d == nil {
		return CommitResult{}, ErrNilDraft
	}
	ctx, span := bookingTracer.Start(ctx, "booking.commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("marketplace.draft_id", d.ID),
		attribute.String("marketplace.delivery_mode", string(d.Mode)),
	)

	release, err := c.guard.Acquire(ctx, d.ID)
	if err != nil {
		span.RecordError(err)
		return CommitResult{}, err
	}
	defer release()

	started := c.now()
	res := c.commit(ctx, d)
	res.CompletedAt = c.now()

	span.SetAttributes(attribute.String("marketplace.commit_outcome", string(res.Outcome)))
	if !res.Succeeded() {
		span.SetStatus(codes.Error, string(res.Outcome))
	}
	if c.metrics != nil {
		c.metrics.ObserveCommit(string(res.Outcome), res.CompletedAt.Sub(started).Seconds())
		if res.OrphanedLocationID != "" {
			c.metrics.ObserveOrphanedLocation()
		}
	}
	c.logResult(res)
	if c.notifier != nil {
		if err := c.notifier.NotifyCommit(ctx, res); err != nil {
			c.logger.Warn("commit notification failed", "draft_id", d.ID, "outcome", res.Outcome, "error", err)
		}
	}
	return res, nil
}

func (c *Coordinator) commit(ctx context.Context, d *Draft) CommitResult {
	res := CommitResult{
		DraftID:    d.ID,
		CustomerID: d.Actor.CustomerID,
		BusinessID: d.Subject.BusinessID,
		ProviderID: d.Subject.ProviderID,
		TotalCents: d.Pricing.TotalCents,
		Trail:      []State{StateDraft},
	}

	if fields := Validate(d); len(fields) > 0 {
		res.advance(StateValidationFailed)
		res.Outcome = OutcomeValidationFailed
		res.Fields = fields
		return res
	}
	res.advance(StateValidated)

	loc := d.EffectiveLocation()
	locationID, err := c.persistLocation(ctx, d, loc)
	if err != nil {
		res.advance(StateLocationWriteFailed)
		res.Outcome = OutcomeLocationWriteFailed
		res.Cause = CauseText(err)
		return res
	}
	res.advance(StateLocationPersisted)
	res.LocationID = locationID

	rec := c.bookingRecord(d, locationID)
	bookingID, err := c.bookings.CreateBooking(ctx, rec)
	if err != nil {
		res.advance(StateBookingWriteFailed)
		res.Outcome = OutcomeBookingWriteFailed
		res.Cause = CauseText(err)
		if d.Mode == location.ModeMobile {
			res.OrphanedLocationID = locationID
		}
		return res
	}
	res.advance(StateCommitted)
	res.Outcome = OutcomeSuccess
	res.BookingID = bookingID
	res.Reference = rec.Reference
	return res
}

func (c *Coordinator) persistLocation(ctx context.Context, d *Draft, loc location.Resolution) (string, error) {
	switch d.Mode {
	case location.ModeMobile:
	case location.ModeAtBusiness:
		return loc.LocationID, nil
	default:
		return "", nil
	}

	ctx, span := bookingTracer.Start(ctx, "booking.persist_location")
	defer span.End()

	if id := c.reusableLocation(ctx, d, loc); id != "" {
		span.SetAttributes(attribute.Bool("marketplace.location_reused", true))
		return id, nil
	}
	rec, err := c.locations.CreateCustomerLocation(ctx, location.CreateCustomerLocationRequest{
		CustomerID: d.Actor.CustomerID,
		Address:    *loc.Address,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "location write failed")
		return "", err
	}
	return rec.ID, nil
}

// reusableLocation returns ReuseLocationID when it names a location owned by the
// same customer with the same address.
func (c *Coordinator) reusableLocation(ctx context.Context, d *Draft, loc location.Resolution) string {
	id := strings.TrimSpace(d.ReuseLocationID)
	if id == "" {
		return ""
	}
	rec, err := c.locations.GetCustomerLocation(ctx, id)
	if err != nil {
		c.logger.Debug("reusable location unavailable", "draft_id", d.ID, "location_id", id, "error", err)
		return ""
	}
	if rec.OwnerID != strings.TrimSpace(d.Actor.CustomerID) || rec.Address.Normalize() != loc.Address.Normalize() {
		return ""
	}
	return rec.ID
}

func (c *Coordinator) bookingRecord(d *Draft, locationID string) Record {
	return Record{
		Reference:     c.newReference(),
		DraftID:       d.ID,
		CustomerID:    strings.TrimSpace(d.Actor.CustomerID),
		ContactName:   strings.TrimSpace(d.Actor.Name),
		ContactEmail:  strings.TrimSpace(d.Actor.Email),
		ContactPhone:  strings.TrimSpace(d.Actor.Phone),
		ServiceID:     d.PrimaryServiceID(),
		ProviderID:    d.Subject.ProviderID,
		BusinessID:    d.Subject.BusinessID,
		LocationID:    locationID,
		Mode:          d.Mode,
		PreferredDate: strings.TrimSpace(d.PreferredDate),
		PreferredTime: strings.TrimSpace(d.PreferredTime),
		Notes:         strings.TrimSpace(d.Notes),
		Items:         d.Items.Items(),
		SubtotalCents: d.Pricing.SubtotalCents,
		DiscountCents: d.Pricing.DiscountCents,
		TotalCents:    d.Pricing.TotalCents,
		PromotionID:   appliedPromotionID(d),
		Status:        StatusPending,
		PaymentStatus: PaymentStatusPending,
	}
}

func appliedPromotionID(d *Draft) string {
	if d.Pricing.PromotionStatus == pricing.StatusApplied {
		return d.Pricing.PromotionID
	}
	return ""
}

func (c *Coordinator) logResult(res CommitResult) {
	switch res.Outcome {
	case OutcomeSuccess:
		c.logger.Info("booking committed", "draft_id", res.DraftID, "booking_id", res.BookingID, "location_id", res.LocationID, "total_cents", res.TotalCents)
	case OutcomeValidationFailed:
		c.logger.Info("booking draft failed validation", "draft_id", res.DraftID, "fields", len(res.Fields))
	case OutcomeBookingWriteFailed:
		c.logger.Error("booking write failed after location was saved", "draft_id", res.DraftID, "orphaned_location_id", res.OrphanedLocationID, "cause", res.Cause)
	default:
		c.logger.Error("booking commit failed", "draft_id", res.DraftID, "outcome", res.Outcome, "cause", res.Cause)
	}
}

func (r *CommitResult) advance(next State) {
	if from := r.FinalState(); !from.CanTransition(next) {
		panic("booking: illegal transition " + string(from) + " -> " + string(next))
	}
	r.Trail = append(r.Trail, next)
}
