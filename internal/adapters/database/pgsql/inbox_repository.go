package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corebanking/ledgersvc/internal/apperrors"
	"github.com/corebanking/ledgersvc/internal/core/domain"
	portsrepo "github.com/corebanking/ledgersvc/internal/core/ports/repositories"
)

// PgxInboxRepository persists inbox records and dead letters.
type PgxInboxRepository struct {
	BaseRepository
}

// NewInboxRepository creates a new repository for inbox bookkeeping.
func NewInboxRepository(pool *pgxpool.Pool) portsrepo.InboxRepository {
	return &PgxInboxRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.InboxRepository = (*PgxInboxRepository)(nil)

// FindInboxRecord retrieves the processing record for a message id.
func (r *PgxInboxRepository) FindInboxRecord(ctx context.Context, messageID uuid.UUID) (*domain.InboxRecord, error) {
	query := `
		SELECT message_id, event_type, processed_at, handler
		FROM inbox_records
		WHERE message_id = $1;
	`
	var rec domain.InboxRecord
	err := r.Pool.QueryRow(ctx, query, messageID).Scan(
		&rec.MessageID,
		&rec.EventType,
		&rec.ProcessedAt,
		&rec.Handler,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find inbox record %s: %w", messageID, err)
	}
	return &rec, nil
}

// SaveInboxRecord marks a message as processed by a handler.
func (r *PgxInboxRepository) SaveInboxRecord(ctx context.Context, record domain.InboxRecord) error {
	query := `
		INSERT INTO inbox_records (message_id, event_type, processed_at, handler)
		VALUES ($1, $2, $3, $4);
	`
	_, err := r.Pool.Exec(ctx, query, record.MessageID, record.EventType, record.ProcessedAt, record.Handler)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: inbox record %s", apperrors.ErrDuplicate, record.MessageID)
		}
		return fmt.Errorf("failed to save inbox record %s: %w", record.MessageID, err)
	}
	return nil
}

// UpdateInboxHandler upgrades the handler marker on an existing record.
func (r *PgxInboxRepository) UpdateInboxHandler(ctx context.Context, messageID uuid.UUID, handler string) error {
	query := `UPDATE inbox_records SET handler = $2, processed_at = now() WHERE message_id = $1;`
	cmdTag, err := r.Pool.Exec(ctx, query, messageID, handler)
	if err != nil {
		return fmt.Errorf("failed to update inbox record %s: %w", messageID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: inbox record %s", apperrors.ErrNotFound, messageID)
	}
	return nil
}

// SaveDeadLetter appends a dead letter; a duplicate message id is rejected
// with ErrDuplicate so the caller can log instead of re-inserting.
func (r *PgxInboxRepository) SaveDeadLetter(ctx context.Context, letter domain.DeadLetter) error {
	query := `
		INSERT INTO dead_letters (message_id, received_at, handler, payload, event_type, error)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := r.Pool.Exec(ctx, query,
		letter.MessageID,
		letter.ReceivedAt,
		letter.Handler,
		letter.Payload,
		letter.EventType,
		letter.Error,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: dead letter %s", apperrors.ErrDuplicate, letter.MessageID)
		}
		return fmt.Errorf("failed to save dead letter %s: %w", letter.MessageID, err)
	}
	return nil
}
