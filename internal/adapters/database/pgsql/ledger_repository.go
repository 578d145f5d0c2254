package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corebanking/ledgersvc/internal/apperrors"
	"github.com/corebanking/ledgersvc/internal/core/domain"
	portsrepo "github.com/corebanking/ledgersvc/internal/core/ports/repositories"
)

const accountColumns = "account_id, owner_id, account_type, currency, balance, interest_rate, open_date, close_date, version"

// PgxLedgerRepository persists accounts and ledger entries.
type PgxLedgerRepository struct {
	BaseRepository
}

// NewLedgerRepository creates a new repository for account and ledger data.
func NewLedgerRepository(pool *pgxpool.Pool) portsrepo.LedgerRepository {
	return &PgxLedgerRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.LedgerRepository = (*PgxLedgerRepository)(nil)

// scanAccount reads one account row; works for pool, tx, and rows queries.
func scanAccount(row pgx.Row) (*domain.Account, error) {
	var acc domain.Account
	err := row.Scan(
		&acc.AccountID,
		&acc.OwnerID,
		&acc.AccountType,
		&acc.Currency,
		&acc.Balance,
		&acc.InterestRate,
		&acc.OpenDate,
		&acc.CloseDate,
		&acc.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan account row: %w", err)
	}
	return &acc, nil
}

// FindAccountByID retrieves an account by its id.
func (r *PgxLedgerRepository) FindAccountByID(ctx context.Context, accountID int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1;`
	return scanAccount(r.Pool.QueryRow(ctx, query, accountID))
}

// FindAccountByIDInTx retrieves an account inside an open transaction
// without locking the row.
func (r *PgxLedgerRepository) FindAccountByIDInTx(ctx context.Context, tx pgx.Tx, accountID int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1;`
	return scanAccount(tx.QueryRow(ctx, query, accountID))
}

// FindAccountByIDForUpdate retrieves an account and locks its row.
// Must be called within a transaction.
func (r *PgxLedgerRepository) FindAccountByIDForUpdate(ctx context.Context, tx pgx.Tx, accountID int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1 FOR UPDATE;`
	return scanAccount(tx.QueryRow(ctx, query, accountID))
}

// ListAccountsByOwner retrieves a paginated list of an owner's accounts.
func (r *PgxLedgerRepository) ListAccountsByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.Account, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1 ORDER BY account_id LIMIT $2 OFFSET $3;`
	rows, err := r.Pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts for owner %s: %w", ownerID, err)
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *acc)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating account rows for owner %s: %w", ownerID, rows.Err())
	}
	return accounts, nil
}

// ListAccrualCandidateIDs returns ids of open, interest-bearing accounts.
func (r *PgxLedgerRepository) ListAccrualCandidateIDs(ctx context.Context, tx pgx.Tx) ([]int64, error) {
	query := `
		SELECT account_id FROM accounts
		WHERE close_date IS NULL AND interest_rate IS NOT NULL AND interest_rate > 0
		ORDER BY account_id;
	`
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accrual candidates: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan accrual candidate id: %w", err)
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating accrual candidate rows: %w", rows.Err())
	}
	return ids, nil
}

// SaveAccount inserts a new account and returns its assigned id.
func (r *PgxLedgerRepository) SaveAccount(ctx context.Context, tx pgx.Tx, account domain.Account) (int64, error) {
	query := `
		INSERT INTO accounts (owner_id, account_type, currency, balance, interest_rate, open_date, close_date, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
		RETURNING account_id;
	`
	var accountID int64
	err := tx.QueryRow(ctx, query,
		account.OwnerID,
		account.AccountType,
		account.Currency,
		account.Balance,
		account.InterestRate,
		account.OpenDate,
		account.CloseDate,
	).Scan(&accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to save account for owner %s: %w", account.OwnerID, err)
	}
	return accountID, nil
}

// UpdateAccountBalance writes the new balance conditionally on the version
// token. A concurrent writer surfaces as ErrConflict, never a silent retry.
func (r *PgxLedgerRepository) UpdateAccountBalance(ctx context.Context, tx pgx.Tx, account domain.Account, expectedVersion int64) error {
	query := `
		UPDATE accounts
		SET balance = $2, version = version + 1
		WHERE account_id = $1 AND version = $3;
	`
	cmdTag, err := tx.Exec(ctx, query, account.AccountID, account.Balance, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update balance for account %d: %w", account.AccountID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account %d version %d", apperrors.ErrConflict, account.AccountID, expectedVersion)
	}
	return nil
}

// CloseAccount stamps the close date conditionally on the version token.
func (r *PgxLedgerRepository) CloseAccount(ctx context.Context, tx pgx.Tx, accountID int64, closeDate time.Time, expectedVersion int64) error {
	query := `
		UPDATE accounts
		SET close_date = $2, version = version + 1
		WHERE account_id = $1 AND close_date IS NULL AND version = $3;
	`
	cmdTag, err := tx.Exec(ctx, query, accountID, closeDate, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to close account %d: %w", accountID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account %d version %d", apperrors.ErrConflict, accountID, expectedVersion)
	}
	return nil
}

// SaveTransactions appends ledger entries inside tx using a batch.
func (r *PgxLedgerRepository) SaveTransactions(ctx context.Context, tx pgx.Tx, transactions []domain.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}
	for _, txn := range transactions {
		if len(txn.Description) > domain.MaxDescriptionLength {
			return fmt.Errorf("%w: description exceeds %d characters", apperrors.ErrValidation, domain.MaxDescriptionLength)
		}
	}

	query := `
		INSERT INTO transactions (transaction_id, account_id, counterparty_account_id, amount, currency, transaction_type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	batch := &pgx.Batch{}
	for _, txn := range transactions {
		batch.Queue(query,
			txn.TransactionID,
			txn.AccountID,
			txn.CounterpartyAccountID,
			txn.Amount,
			txn.Currency,
			txn.TransactionType,
			txn.Description,
			txn.Timestamp,
		)
	}

	br := tx.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: transaction already recorded", apperrors.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert ledger entries: %w", err)
	}
	return nil
}

// ListTransactionsByAccount retrieves a paginated list of an account's
// entries, newest first.
func (r *PgxLedgerRepository) ListTransactionsByAccount(ctx context.Context, accountID int64, limit, offset int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT transaction_id, account_id, counterparty_account_id, amount, currency, transaction_type, description, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, transaction_id
		LIMIT $2 OFFSET $3;
	`
	rows, err := r.Pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for account %d: %w", accountID, err)
	}
	defer rows.Close()

	transactions := []domain.Transaction{}
	for rows.Next() {
		var txn domain.Transaction
		err := rows.Scan(
			&txn.TransactionID,
			&txn.AccountID,
			&txn.CounterpartyAccountID,
			&txn.Amount,
			&txn.Currency,
			&txn.TransactionType,
			&txn.Description,
			&txn.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		transactions = append(transactions, txn)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating transaction rows for account %d: %w", accountID, rows.Err())
	}
	return transactions, nil
}
