package repositories

import (
	"context"
	"time"

	"github.com/corebanking/ledgersvc/internal/core/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountReader defines read operations for account data.
type AccountReader interface {
	// FindAccountByID retrieves a specific account by its identifier.
	FindAccountByID(ctx context.Context, accountID int64) (*domain.Account, error)

	// FindAccountByIDInTx retrieves an account inside an open transaction
	// without locking the row; everyday mutations are serialized by the
	// version check at write time, not by locks.
	FindAccountByIDInTx(ctx context.Context, tx pgx.Tx, accountID int64) (*domain.Account, error)

	// ListAccountsByOwner retrieves a paginated list of an owner's accounts.
	ListAccountsByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.Account, error)
}

// AccountWriter defines write operations for account data.
type AccountWriter interface {
	// SaveAccount persists a new account inside tx and returns its assigned id.
	SaveAccount(ctx context.Context, tx pgx.Tx, account domain.Account) (int64, error)

	// UpdateAccountBalance conditionally writes a new balance inside tx.
	// Returns apperrors.ErrConflict when expectedVersion no longer matches.
	UpdateAccountBalance(ctx context.Context, tx pgx.Tx, account domain.Account, expectedVersion int64) error

	// CloseAccount conditionally stamps the close date inside tx.
	// Returns apperrors.ErrConflict when expectedVersion no longer matches.
	CloseAccount(ctx context.Context, tx pgx.Tx, accountID int64, closeDate time.Time, expectedVersion int64) error
}

// AccountAccrualSupport defines operations used by the interest accrual batch.
type AccountAccrualSupport interface {
	// ListAccrualCandidateIDs returns ids of open, interest-bearing accounts.
	// Must be called within the batch transaction.
	ListAccrualCandidateIDs(ctx context.Context, tx pgx.Tx) ([]int64, error)

	// FindAccountByIDForUpdate retrieves an account and locks its row.
	// Must be called within a transaction.
	FindAccountByIDForUpdate(ctx context.Context, tx pgx.Tx, accountID int64) (*domain.Account, error)
}

// TransactionWriter defines write operations for ledger entries.
type TransactionWriter interface {
	// SaveTransactions appends ledger entries inside tx. Entries are
	// immutable once written.
	SaveTransactions(ctx context.Context, tx pgx.Tx, transactions []domain.Transaction) error
}

// TransactionReader defines read operations for ledger entries.
type TransactionReader interface {
	// ListTransactionsByAccount retrieves a paginated list of an account's entries.
	ListTransactionsByAccount(ctx context.Context, accountID int64, limit, offset int) ([]domain.Transaction, error)
}

// LedgerRepository combines all account and ledger-entry operations with
// transaction control. The ledger service's unit of work runs through it.
type LedgerRepository interface {
	TransactionManager
	AccountReader
	AccountWriter
	AccountAccrualSupport
	TransactionWriter
	TransactionReader
}
