package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/corebanking/ledgersvc/internal/core/domain"
	portsmsg "github.com/corebanking/ledgersvc/internal/core/ports/messaging"
	portsrepo "github.com/corebanking/ledgersvc/internal/core/ports/repositories"
	portssvc "github.com/corebanking/ledgersvc/internal/core/ports/services"
)

// DefaultConfirmWindow bounds the number of outstanding unconfirmed
// publishes in one drain cycle.
const DefaultConfirmWindow = 256

// settleTimeout caps how long a window of in-flight confirmations is
// awaited once publishing has stopped.
const settleTimeout = 30 * time.Second

// outboxService drains the outbox table into the broker. A row is deleted
// only after its publish confirmation; anything else leaves the row (with
// an incremented try count) for the next cycle, so no message is lost.
type outboxService struct {
	outboxRepo portsrepo.OutboxDrainSupport
	publisher  portsmsg.Publisher
	window     int
	logger     *slog.Logger
}

// NewOutboxService creates the outbox drain service. A non-positive
// confirmWindow falls back to DefaultConfirmWindow.
func NewOutboxService(outboxRepo portsrepo.OutboxDrainSupport, publisher portsmsg.Publisher, confirmWindow int, logger *slog.Logger) portssvc.OutboxSvcFacade {
	if confirmWindow <= 0 {
		confirmWindow = DefaultConfirmWindow
	}
	return &outboxService{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		window:     confirmWindow,
		logger:     logger.With(slog.String("component", "outbox_publisher")),
	}
}

var _ portssvc.OutboxSvcFacade = (*outboxService)(nil)

// inFlight pairs a published message with its pending confirmation.
type inFlight struct {
	message      domain.OutboxMessage
	confirmation portsmsg.Confirmation
}

// Drain publishes all pending messages in creation order, awaiting
// confirmations in window-sized batches.
func (s *outboxService) Drain(ctx context.Context) error {
	if err := s.publisher.EnsureOpen(ctx); err != nil {
		s.logger.Warn("Broker unavailable, outbox left intact", slog.String("error", err.Error()))
		return fmt.Errorf("failed to open broker channel: %w", err)
	}

	pending, err := s.outboxRepo.ListPendingMessages(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending outbox messages: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	window := make([]inFlight, 0, s.window)
	for _, msg := range pending {
		confirmation, err := s.publisher.Publish(ctx, msg)
		if err != nil {
			s.recordFailure(ctx, msg, err)
			continue
		}
		window = append(window, inFlight{message: msg, confirmation: confirmation})
		if len(window) >= s.window {
			s.awaitWindow(ctx, window)
			window = window[:0]
		}
	}
	s.awaitWindow(ctx, window)
	return nil
}

/// awaitWindow settles one batch of outstanding publishes: confirmed
// messages are deleted, the rest keep their rows with a bumped try count.
// Cancellation stops new publishes only; a message already on the wire is
// always settled, otherwise a shutdown mid-batch would abandon confirmed
// messages and republish them on the next start.
func (s *outboxService) awaitWindow(ctx context.Context, window []inFlight) {
	if len(window) == 0 {
		return
	}
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()
	for _, f := range window {
		acked, err := f.confirmation.Wait(settleCtx)
		if err != nil {
			s.recordFailure(settleCtx, f.message, err)
			continue
		}
		if !acked {
			s.recordFailure(settleCtx, f.message, fmt.Errorf("broker rejected publish"))
			continue
		}
		if err := s.outboxRepo.DeleteMessage(settleCtx, f.message.MessageID); err != nil {
			// The message will be republished next cycle; consumers
			// deduplicate by message id.
			s.logger.Error("Failed to delete confirmed outbox message",
				slog.String("message_id", f.message.MessageID.String()),
				slog.String("error", err.Error()))
			continue
		}
		s.logger.Info("Event published",
			slog.String("event_id", f.message.EventID.String()),
			slog.String("event_type", string(f.message.EventType)),
			slog.String("correlation_id", f.message.CorrelationID.String()),
			slog.Int("retries", f.message.TryCount),
			slog.Duration("latency", time.Since(f.message.CreatedAt)))
	}
}

func (s *outboxService) recordFailure(ctx context.Context, msg domain.OutboxMessage, cause error) {
	s.logger.Warn("Publish failed, message kept for next cycle",
		slog.String("message_id", msg.MessageID.String()),
		slog.String("event_type", string(msg.EventType)),
		slog.Int("try_count", msg.TryCount),
		slog.String("error", cause.Error()))
	if err := s.outboxRepo.IncrementTryCount(ctx, msg.MessageID); err != nil {
		s.logger.Error("Failed to increment outbox try count",
			slog.String("message_id", msg.MessageID.String()),
			slog.String("error", err.Error()))
	}
}
