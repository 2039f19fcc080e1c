package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wolfman30/service-marketplace/internal/booking"
	"github.com/wolfman30/service-marketplace/pkg/logging"
)

type appender interface {
	Append(ctx context.Context, aggregate, correlationID string, evt Event, opts ...EnvelopeOption) (Envelope, error)
}

// OutboxNotifier writes commit results to the outbox. It implements booking.Notifier.
type OutboxNotifier struct {
	outbox appender
}

func NewOutboxNotifier(outbox *OutboxStore) *OutboxNotifier {
	if outbox == nil {
		panic("events: outbox store required")
	}
	return &OutboxNotifier{outbox: outbox}
}

func (n *OutboxNotifier) NotifyCommit(ctx context.Context, res booking.CommitResult) error {
	aggregate := "booking_draft:" + res.DraftID
	if _, err := n.outbox.Append(ctx, aggregate, res.DraftID, CommitEvent(res), WithTimestamp(res.CompletedAt)); err != nil {
		return err
	}
	if res.OrphanedLocationID == "" {
		return nil
	}
	orphan := LocationOrphanedV1{
		DraftID:    res.DraftID,
		LocationID: res.OrphanedLocationID,
		CustomerID: res.CustomerID,
		Cause:      res.Cause,
		OccurredAt: res.CompletedAt,
	}
	if _, err := n.outbox.Append(ctx, "customer_location:"+res.OrphanedLocationID, res.DraftID, orphan, WithTimestamp(res.CompletedAt)); err != nil {
		return err
	}
	return nil
}

// LogHandler delivers outbox entries to the structured log.
type LogHandler struct {
	logger *logging.Logger
}

func NewLogHandler(logger *logging.Logger) *LogHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogHandler{logger: logger}
}

func (h *LogHandler) Handle(_ context.Context, entry OutboxEntry) error {
	var env Envelope
	if err := json.Unmarshal(entry.Payload, &env); err != nil {
		return fmt.Errorf("events: decode envelope %s: %w", entry.ID, err)
	}
	args := []any{"event_id", entry.ID, "type", entry.Type, "aggregate", entry.Aggregate, "correlation_id", env.CorrelationID}
	switch entry.Type {
	case TypeBookingCommit:
		var evt BookingCommitV1
		if err := json.Unmarshal(env.Payload, &evt); err != nil {
			return fmt.Errorf("events: decode %s: %w", entry.Type, err)
		}
		args = append(args, "outcome", evt.Outcome, "booking_id", evt.BookingID, "total_cents", evt.TotalCents)
	case TypeLocationOrphaned:
		var evt LocationOrphanedV1
		if err := json.Unmarshal(env.Payload, &evt); err != nil {
			return fmt.Errorf("events: decode %s: %w", entry.Type, err)
		}
		args = append(args, "location_id", evt.LocationID)
		h.logger.Warn("booking event", args...)
		return nil
	}
	h.logger.Info("booking event", args...)
	return nil
}

type claimLedger interface {
	Claim(ctx context.Context, consumer, eventID string) (bool, error)
	Release(ctx context.Context, consumer, eventID string) error
}

// DedupHandler claims each entry for its consumer before handing it on, so an
// entry redelivered after a failed MarkDelivered is not handled twice.
type DedupHandler struct {
	next     DeliveryHandler
	ledger   claimLedger
	consumer string
}

func NewDedupHandler(next DeliveryHandler, processed *ProcessedStore, consumer string) *DedupHandler {
	if next == nil || processed == nil {
		panic("events: handler and processed store required")
	}
	return &DedupHandler{next: next, ledger: processed, consumer: consumer}
}

func (h *DedupHandler) Handle(ctx context.Context, entry OutboxEntry) error {
	eventID := entry.ID.String()
	claimed, err := h.ledger.Claim(ctx, h.consumer, eventID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	if err := h.next.Handle(ctx, entry); err != nil {
		if releaseErr := h.ledger.Release(ctx, h.consumer, eventID); releaseErr != nil {
			return errors.Join(err, releaseErr)
		}
		return err
	}
	return nil
}
