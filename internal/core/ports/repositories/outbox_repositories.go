package repositories

import (
	"context"

	"github.com/corebanking/ledgersvc/internal/core/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OutboxWriter persists pending messages as part of a ledger unit of work.
type OutboxWriter interface {
	// SaveOutboxMessages appends messages inside the ledger's transaction.
	SaveOutboxMessages(ctx context.Context, tx pgx.Tx, messages []domain.OutboxMessage) error
}

// OutboxDrainSupport defines the publisher side of the outbox lifecycle.
type OutboxDrainSupport interface {
	// ListPendingMessages returns all pending messages in creation order.
	ListPendingMessages(ctx context.Context) ([]domain.OutboxMessage, error)

	// DeleteMessage removes a message after its publish was confirmed.
	DeleteMessage(ctx context.Context, messageID uuid.UUID) error

	// IncrementTryCount records a failed publish attempt, leaving the row
	// for the next drain cycle.
	IncrementTryCount(ctx context.Context, messageID uuid.UUID) error
}

// OutboxRepository combines both sides of the outbox message lifecycle.
type OutboxRepository interface {
	OutboxWriter
	OutboxDrainSupport
}
