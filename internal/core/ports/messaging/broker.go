package messaging

import (
	"context"

	"github.com/corebanking/ledgersvc/internal/core/domain"
)

// Confirmation is a pending publisher acknowledgement for one message.
type Confirmation interface {
	// Wait blocks until the broker confirms or rejects the publish.
	// Returns true when the broker acknowledged it.
	Wait(ctx context.Context) (bool, error)
}

// Publisher publishes outbox messages to the broker with confirmations.
type Publisher interface {
	// EnsureOpen lazily (re)establishes the connection and confirm-mode
	// channel if either is found closed.
	EnsureOpen(ctx context.Context) error

	// Publish sends one message under its event type's routing key and
	// returns the pending confirmation. Fire-and-forget until Wait.
	Publish(ctx context.Context, message domain.OutboxMessage) (Confirmation, error)
}

// Delivery is one inbound broker message, decoupled from the transport.
type Delivery struct {
	MessageID     string
	Type          string
	CorrelationID string
	CausationID   string
	Redelivered   bool
	Body          []byte
}

// Decision tells the consumer adapter how to settle a delivery.
type Decision int

const (
	// Ack settles the message permanently: processed, deduplicated, or
	// dead-lettered. A malformed message never becomes valid by retrying.
	Ack Decision = iota
	// NackRequeue returns the message for one more delivery attempt.
	NackRequeue
	// NackDrop rejects the message without requeue so a repeatedly
	// failing delivery does not loop forever.
	NackDrop
)

// MessageProcessor is implemented by the inbox consumer roles.
type MessageProcessor interface {
	Process(ctx context.Context, d Delivery) Decision
}
