package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// TransactionManager defines database transaction control shared by
// repositories that participate in multi-statement units of work.
type TransactionManager interface {
	// Begin starts a transaction at the default isolation level.
	Begin(ctx context.Context) (pgx.Tx, error)

	// BeginSerializable starts a serializable transaction. Used by the
	// interest accrual batch so a partial failure rolls back wholesale.
	BeginSerializable(ctx context.Context) (pgx.Tx, error)

	// Commit commits a transaction.
	Commit(ctx context.Context, tx pgx.Tx) error

	// Rollback rolls back a transaction. Safe to call after Commit.
	Rollback(ctx context.Context, tx pgx.Tx) error
}
