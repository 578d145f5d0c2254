package services

import (
	"context"

	"github.com/corebanking/ledgersvc/internal/core/domain"
	"github.com/corebanking/ledgersvc/internal/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerSvcFacade exposes the ledger operations consumed by the HTTP layer.
// Every mutation runs as one atomic unit of work that also appends the
// outbox messages describing it.
type LedgerSvcFacade interface {
	OpenAccount(ctx context.Context, ownerID uuid.UUID, req dto.OpenAccountRequest) (*domain.Account, error)
	GetAccount(ctx context.Context, accountID int64, ownerID uuid.UUID) (*domain.Account, error)
	ListAccounts(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.Account, error)
	Credit(ctx context.Context, accountID int64, ownerID uuid.UUID, amount decimal.Decimal) (*domain.Account, error)
	Debit(ctx context.Context, accountID int64, ownerID uuid.UUID, amount decimal.Decimal) (*domain.Account, error)
	Transfer(ctx context.Context, ownerID uuid.UUID, req dto.TransferRequest) error
	CloseAccount(ctx context.Context, accountID int64, ownerID uuid.UUID) error
	ListTransactions(ctx context.Context, accountID int64, ownerID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
}

// BalanceOp is the shared shape of the Credit and Debit operations.
type BalanceOp func(ctx context.Context, accountID int64, ownerID uuid.UUID, amount decimal.Decimal) (*domain.Account, error)

// InterestSvcFacade is invoked by the accrual schedule.
type InterestSvcFacade interface {
	// AccrueInterestBatch accrues interest over all eligible accounts in
	// one serializable transaction. Returns how many accounts accrued.
	AccrueInterestBatch(ctx context.Context) (int, error)
}

// OutboxSvcFacade is invoked by the drain schedule.
type OutboxSvcFacade interface {
	// Drain publishes all pending outbox messages, deleting each row only
	// after its publish is confirmed.
	Drain(ctx context.Context) error
}
