package repositories

import (
	"context"

	"github.com/corebanking/ledgersvc/internal/core/domain"
	"github.com/google/uuid"
)

// InboxRepository tracks processed broker messages and dead letters.
// Owned exclusively by the inbox consumer.
type InboxRepository interface {
	// FindInboxRecord retrieves the processing record for a message id.
	// Returns apperrors.ErrNotFound when the message has not been seen.
	FindInboxRecord(ctx context.Context, messageID uuid.UUID) (*domain.InboxRecord, error)

	// SaveInboxRecord marks a message as processed by a handler.
	SaveInboxRecord(ctx context.Context, record domain.InboxRecord) error

	// UpdateInboxHandler upgrades the handler marker on an existing record.
	UpdateInboxHandler(ctx context.Context, messageID uuid.UUID, handler string) error

	// SaveDeadLetter appends a dead letter. Returns apperrors.ErrDuplicate
	// for a message id that was already dead-lettered.
	SaveDeadLetter(ctx context.Context, letter domain.DeadLetter) error
}

// BlocklistRepository is the persisted set of blocked owner ids. Mutated
// only by the anti-fraud consumer role; read by the ledger before
// balance-reducing operations.
type BlocklistRepository interface {
	// AddToList inserts the owner id; reports whether it was newly added.
	AddToList(ctx context.Context, ownerID uuid.UUID) (bool, error)

	// RemoveFromList deletes the owner id; reports whether it was present.
	RemoveFromList(ctx context.Context, ownerID uuid.UUID) (bool, error)

	// IsBlacklisted reports membership.
	IsBlacklisted(ctx context.Context, ownerID uuid.UUID) (bool, error)
}
