package pgsql

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corebanking/ledgersvc/internal/core/domain"
	portsrepo "github.com/corebanking/ledgersvc/internal/core/ports/repositories"
)

// PgxOutboxRepository persists outbox messages. Rows are created inside
// the ledger's transaction and deleted by the publisher after a confirmed
// publish.
type PgxOutboxRepository struct {
	BaseRepository
}

// NewOutboxRepository creates a new repository for outbox messages.
func NewOutboxRepository(pool *pgxpool.Pool) portsrepo.OutboxRepository {
	return &PgxOutboxRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.OutboxRepository = (*PgxOutboxRepository)(nil)

// SaveOutboxMessages appends messages inside the caller's transaction.
func (r *PgxOutboxRepository) SaveOutboxMessages(ctx context.Context, tx pgx.Tx, messages []domain.OutboxMessage) error {
	if len(messages) == 0 {
		return nil
	}

	query := `
		INSERT INTO outbox_messages (message_id, event_id, correlation_id, causation_id, event_type, payload, created_at, try_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	batch := &pgx.Batch{}
	for _, msg := range messages {
		batch.Queue(query,
			msg.MessageID,
			msg.EventID,
			msg.CorrelationID,
			msg.CausationID,
			msg.EventType,
			msg.Payload,
			msg.CreatedAt,
			msg.TryCount,
		)
	}

	br := tx.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to insert outbox messages: %w", err)
	}
	return nil
}

// ListPendingMessages returns all pending messages in creation order.
func (r *PgxOutboxRepository) ListPendingMessages(ctx context.Context) ([]domain.OutboxMessage, error) {
	query := `
		SELECT message_id, event_id, correlation_id, causation_id, event_type, payload, created_at, try_count
		FROM outbox_messages
		ORDER BY created_at, message_id;
	`
	rows, err := r.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending outbox messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.OutboxMessage{}
	for rows.Next() {
		var msg domain.OutboxMessage
		err := rows.Scan(
			&msg.MessageID,
			&msg.EventID,
			&msg.CorrelationID,
			&msg.CausationID,
			&msg.EventType,
			&msg.Payload,
			&msg.CreatedAt,
			&msg.TryCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating outbox message rows: %w", rows.Err())
	}
	return messages, nil
}

// DeleteMessage removes a message after its publish was confirmed.
func (r *PgxOutboxRepository) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	_, err := r.Pool.Exec(ctx, `DELETE FROM outbox_messages WHERE message_id = $1;`, messageID)
	if err != nil {
		return fmt.Errorf("failed to delete outbox message %s: %w", messageID, err)
	}
	return nil
}

// IncrementTryCount records a failed publish attempt.
func (r *PgxOutboxRepository) IncrementTryCount(ctx context.Context, messageID uuid.UUID) error {
	_, err := r.Pool.Exec(ctx, `UPDATE outbox_messages SET try_count = try_count + 1 WHERE message_id = $1;`, messageID)
	if err != nil {
		return fmt.Errorf("failed to increment try count for outbox message %s: %w", messageID, err)
	}
	return nil
}
