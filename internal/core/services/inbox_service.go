package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/corebanking/ledgersvc/internal/apperrors"
	"github.com/corebanking/ledgersvc/internal/core/domain"
	portsmsg "github.com/corebanking/ledgersvc/internal/core/ports/messaging"
	portsrepo "github.com/corebanking/ledgersvc/internal/core/ports/repositories"
)

// Dead-letter reasons, one per validation check, in pipeline order.
const (
	ReasonMalformedBody       = "Malformed message body"
	ReasonMissingHeaders      = "Missing required headers"
	ReasonCausationMismatch   = "Causation id mismatch"
	ReasonCorrelationMismatch = "Correlation id mismatch"
	ReasonUnsupportedVersion  = "Unsupported event version"
	ReasonInvalidClientID     = "Invalid client id"
)

// inboundEnvelope is the parsed wire shape of a consumed event body.
type inboundEnvelope struct {
	EventID    uuid.UUID `json:"eventId"`
	OccurredAt time.Time `json:"occurredAt"`
	Meta       struct {
		CausationID   string `json:"causationId"`
		CorrelationID string `json:"correlationId"`
		Version       string `json:"version"`
		Source        string `json:"source"`
	} `json:"meta"`
	ClientID string `json:"clientId"`
}

// validatedMessage is the outcome of a successful validation pass.
type validatedMessage struct {
	MessageID uuid.UUID
	EventType domain.EventType
	ClientID  uuid.UUID // Set for client block/unblock events
}

// validationResult is either a validated message or the first failing
// check's reason. Validation never panics or throws; routing to the dead
// letter store is straight-line logic on this result.
type validationResult struct {
	message validatedMessage
	reason  string
}

func (r validationResult) ok() bool { return r.reason == "" }

// validateDelivery runs the fixed-order validation pipeline over one
// inbound delivery.
func validateDelivery(d portsmsg.Delivery) validationResult {
	var env inboundEnvelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		return validationResult{reason: ReasonMalformedBody}
	}

	messageID, err := uuid.Parse(d.MessageID)
	if d.Type == "" || d.CorrelationID == "" || d.CausationID == "" || err != nil {
		return validationResult{reason: ReasonMissingHeaders}
	}
	if d.CausationID != env.Meta.CausationID {
		return validationResult{reason: ReasonCausationMismatch}
	}
	if d.CorrelationID != env.Meta.CorrelationID {
		return validationResult{reason: ReasonCorrelationMismatch}
	}
	major, err := domain.ParseMajorVersion(env.Meta.Version)
	if err != nil || major > domain.SupportedMajorVersion {
		return validationResult{reason: ReasonUnsupportedVersion}
	}

	msg := validatedMessage{
		MessageID: messageID,
		EventType: domain.EventType(d.Type),
	}
	if msg.EventType.IsClientEvent() {
		clientID, err := uuid.Parse(env.ClientID)
		if err != nil || clientID == uuid.Nil {
			return validationResult{reason: ReasonInvalidClientID}
		}
		msg.ClientID = clientID
	}
	return validationResult{message: msg}
}

// ConsumerRole is one of the two independent consumer roles sharing the
// validation pipeline.
type ConsumerRole interface {
	// Name is the handler marker recorded on InboxRecord rows.
	Name() string

	// Apply performs the role-specific side effect for a validated message.
	Apply(ctx context.Context, msg validatedMessage) error
}

// auditRole logs every event it receives. Its marker is HandlerNone:
// the message was seen but no specific role completed processing.
type auditRole struct {
	logger *slog.Logger
}

// NewAuditRole creates the audit consumer role.
func NewAuditRole(logger *slog.Logger) ConsumerRole {
	return &auditRole{logger: logger.With(slog.String("component", "audit_consumer"))}
}

func (r *auditRole) Name() string { return domain.HandlerNone }

func (r *auditRole) Apply(_ context.Context, msg validatedMessage) error {
	r.logger.Info("Event received",
		slog.String("message_id", msg.MessageID.String()),
		slog.String("event_type", string(msg.EventType)))
	return nil
}

// antiFraudRole maintains the persisted blocklist from client block and
// unblock events.
type antiFraudRole struct {
	blocklist portsrepo.BlocklistRepository
	logger    *slog.Logger
}

// NewAntiFraudRole creates the anti-fraud consumer role.
func NewAntiFraudRole(blocklist portsrepo.BlocklistRepository, logger *slog.Logger) ConsumerRole {
	return &antiFraudRole{
		blocklist: blocklist,
		logger:    logger.With(slog.String("component", "antifraud_consumer")),
	}
}

func (r *antiFraudRole) Name() string { return domain.HandlerAntiFraud }

func (r *antiFraudRole) Apply(ctx context.Context, msg validatedMessage) error {
	switch msg.EventType {
	case domain.ClientBlocked:
		added, err := r.blocklist.AddToList(ctx, msg.ClientID)
		if err != nil {
			return fmt.Errorf("failed to add client %s to blocklist: %w", msg.ClientID, err)
		}
		r.logger.Info("Client blocked",
			slog.String("client_id", msg.ClientID.String()),
			slog.Bool("newly_added", added))
	case domain.ClientUnblocked:
		removed, err := r.blocklist.RemoveFromList(ctx, msg.ClientID)
		if err != nil {
			return fmt.Errorf("failed to remove client %s from blocklist: %w", msg.ClientID, err)
		}
		r.logger.Info("Client unblocked",
			slog.String("client_id", msg.ClientID.String()),
			slog.Bool("was_present", removed))
	default:
		// Routing-key bindings should make this unreachable.
		r.logger.Warn("Ignoring non-client event", slog.String("event_type", string(msg.EventType)))
	}
	return nil
}

// inboxConsumer runs the shared validation pipeline and per-role
// deduplication for one consumer role.
type inboxConsumer struct {
	inboxRepo portsrepo.InboxRepository
	role      ConsumerRole
	logger    *slog.Logger
}

// NewInboxConsumer creates the message processor for a consumer role.
func NewInboxConsumer(inboxRepo portsrepo.InboxRepository, role ConsumerRole, logger *slog.Logger) portsmsg.MessageProcessor {
	return &inboxConsumer{
		inboxRepo: inboxRepo,
		role:      role,
		logger:    logger.With(slog.String("handler", role.Name())),
	}
}

var _ portsmsg.MessageProcessor = (*inboxConsumer)(nil)

// Process validates, deduplicates, and acts on one delivery, returning the
// settlement decision for the consumer adapter.
func (c *inboxConsumer) Process(ctx context.Context, d portsmsg.Delivery) portsmsg.Decision {
	res := validateDelivery(d)
	if !res.ok() {
		// A malformed message never becomes valid by retrying.
		c.deadLetter(ctx, d, res.reason)
		return portsmsg.Ack
	}
	msg := res.message

	record, err := c.inboxRepo.FindInboxRecord(ctx, msg.MessageID)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		if err := c.role.Apply(ctx, msg); err != nil {
			return c.transientFailure(d, err)
		}
		err := c.inboxRepo.SaveInboxRecord(ctx, domain.InboxRecord{
			MessageID:   msg.MessageID,
			EventType:   string(msg.EventType),
			ProcessedAt: time.Now().UTC(),
			Handler:     c.role.Name(),
		})
		if err != nil {
			if errors.Is(err, apperrors.ErrDuplicate) {
				// A concurrent consumer won the race; the side effect
				// is idempotent, so this delivery is settled.
				return portsmsg.Ack
			}
			return c.transientFailure(d, err)
		}
		return portsmsg.Ack

	case err != nil:
		return c.transientFailure(d, err)
	}

	if record.Handler == c.role.Name() {
		// Already fully processed by this role.
		return portsmsg.Ack
	}
	if c.role.Name() == domain.HandlerNone {
		// Audit never downgrades a specific role's marker; an existing
		// record of any kind means the message was already seen.
		return portsmsg.Ack
	}

	// Seen by another role only; apply this role's action and upgrade
	// the marker.
	if err := c.role.Apply(ctx, msg); err != nil {
		return c.transientFailure(d, err)
	}
	if err := c.inboxRepo.UpdateInboxHandler(ctx, msg.MessageID, c.role.Name()); err != nil {
		return c.transientFailure(d, err)
	}
	return portsmsg.Ack
}

// deadLetter records a rejected message. A duplicate dead letter is
// logged, never re-inserted.
func (c *inboxConsumer) deadLetter(ctx context.Context, d portsmsg.Delivery, reason string) {
	var messageID uuid.UUID
	if parsed, err := uuid.Parse(d.MessageID); err == nil {
		messageID = parsed
	}
	var eventType *string
	if d.Type != "" {
		t := d.Type
		eventType = &t
	}

	letter := domain.DeadLetter{
		MessageID:  messageID,
		ReceivedAt: time.Now().UTC(),
		Handler:    c.role.Name(),
		Payload:    string(d.Body),
		EventType:  eventType,
		Error:      reason,
	}
	if err := c.inboxRepo.SaveDeadLetter(ctx, letter); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			c.logger.Warn("Duplicate dead letter ignored", slog.String("message_id", d.MessageID))
			return
		}
		c.logger.Error("Failed to save dead letter",
			slog.String("message_id", d.MessageID),
			slog.String("error", err.Error()))
		return
	}
	c.logger.Warn("Message dead-lettered",
		slog.String("message_id", d.MessageID),
		slog.String("reason", reason))
}

// transientFailure decides the settlement for an unexpected error: one
// requeue on the first delivery, a final reject after that.
func (c *inboxConsumer) transientFailure(d portsmsg.Delivery, cause error) portsmsg.Decision {
	if !d.Redelivered {
		c.logger.Warn("Transient failure, requeueing for one retry",
			slog.String("message_id", d.MessageID),
			slog.String("error", cause.Error()))
		return portsmsg.NackRequeue
	}
	c.logger.Error("Repeated failure, rejecting without requeue; manual follow-up required",
		slog.String("message_id", d.MessageID),
		slog.String("event_type", d.Type),
		slog.String("error", cause.Error()))
	return portsmsg.NackDrop
}
