package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/corebanking/ledgersvc/internal/apperrors"
	"github.com/corebanking/ledgersvc/internal/core/domain"
	portsrepo "github.com/corebanking/ledgersvc/internal/core/ports/repositories"
	portssvc "github.com/corebanking/ledgersvc/internal/core/ports/services"
	"github.com/corebanking/ledgersvc/internal/dto"
	"github.com/corebanking/ledgersvc/internal/middleware"
)

// Business-rule violations chain to apperrors.ErrValidation so handlers
// can map them with a single errors.Is check.
var (
	ErrAmountNotPositive    = fmt.Errorf("%w: amount must be positive", apperrors.ErrValidation)
	ErrSameAccountTransfer  = fmt.Errorf("%w: transfer source and destination must differ", apperrors.ErrValidation)
	ErrAccountClosed        = fmt.Errorf("%w: account is closed", apperrors.ErrValidation)
	ErrInsufficientFunds    = fmt.Errorf("%w: insufficient funds", apperrors.ErrValidation)
	ErrNonZeroCloseBalance  = fmt.Errorf("%w: account balance must be zero to close", apperrors.ErrValidation)
	ErrUnknownAccountType   = fmt.Errorf("%w: unknown account type", apperrors.ErrValidation)
	ErrUnknownCurrency      = fmt.Errorf("%w: unknown currency", apperrors.ErrValidation)
	ErrNegativeInterestRate = fmt.Errorf("%w: interest rate must not be negative", apperrors.ErrValidation)
)

// ledgerService implements the account ledger's consistency rules. Every
// mutation is one database transaction that also appends the outbox
// messages describing it, so no observable state change goes unpublished.
type ledgerService struct {
	ledgerRepo portsrepo.LedgerRepository
	outboxRepo portsrepo.OutboxWriter
	blocklist  portsrepo.BlocklistRepository
	source     string
}

// NewLedgerService creates the ledger service.
func NewLedgerService(ledgerRepo portsrepo.LedgerRepository, outboxRepo portsrepo.OutboxWriter, blocklist portsrepo.BlocklistRepository, source string) portssvc.LedgerSvcFacade {
	return &ledgerService{
		ledgerRepo: ledgerRepo,
		outboxRepo: outboxRepo,
		blocklist:  blocklist,
		source:     source,
	}
}

var _ portssvc.LedgerSvcFacade = (*ledgerService)(nil)

// newOutboxMessage serializes an event into an outbox row ready for the
// same transaction as the mutation it describes.
func newOutboxMessage(env domain.EventEnvelope, eventType domain.EventType, event any) (domain.OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("failed to serialize %s event: %w", eventType, err)
	}
	return domain.OutboxMessage{
		MessageID:     uuid.New(),
		EventID:       env.EventID,
		CorrelationID: env.Meta.CorrelationID,
		CausationID:   env.Meta.CausationID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// OpenAccount creates a new account and emits AccountOpened.
func (s *ledgerService) OpenAccount(ctx context.Context, ownerID uuid.UUID, req dto.OpenAccountRequest) (*domain.Account, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("%w: owner id is required", apperrors.ErrValidation)
	}
	if !domain.ValidAccountType(req.AccountType) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAccountType, req.AccountType)
	}
	if !domain.ValidCurrency(req.Currency) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCurrency, req.Currency)
	}
	if req.InterestRate != nil && req.InterestRate.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrNegativeInterestRate, req.InterestRate)
	}

	now := time.Now().UTC()
	account := domain.Account{
		OwnerID:      ownerID,
		AccountType:  req.AccountType,
		Currency:     req.Currency,
		Balance:      decimal.Zero,
		InterestRate: req.InterestRate,
		OpenDate:     now,
	}

	tx, err := s.ledgerRepo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.ledgerRepo.Rollback(ctx, tx)

	accountID, err := s.ledgerRepo.SaveAccount(ctx, tx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}
	account.AccountID = accountID
	account.Version = 1

	env := domain.NewEnvelope(middleware.GetCorrelationIDFromCtx(ctx), s.source)
	msg, err := newOutboxMessage(env, domain.AccountOpened, domain.AccountOpenedEvent{
		EventEnvelope: env,
		AccountID:     accountID,
		OwnerID:       ownerID,
		AccountType:   req.AccountType,
		Currency:      req.Currency,
	})
	if err != nil {
		return nil, err
	}
	if err := s.outboxRepo.SaveOutboxMessages(ctx, tx, []domain.OutboxMessage{msg}); err != nil {
		return nil, fmt.Errorf("failed to enqueue AccountOpened event: %w", err)
	}

	if err := s.ledgerRepo.Commit(ctx, tx); err != nil {
		return nil, err
	}

	logger.Info("Account opened",
		slog.Int64("account_id", accountID),
		slog.String("owner_id", ownerID.String()),
		slog.String("account_type", string(req.AccountType)))
	return &account, nil
}

// GetAccount retrieves an account owned by the caller. An account owned by
// someone else is reported as not found.
func (s *ledgerService) GetAccount(ctx context.Context, accountID int64, ownerID uuid.UUID) (*domain.Account, error) {
	account, err := s.ledgerRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.OwnerID != ownerID {
		return nil, apperrors.ErrNotFound
	}
	return account, nil
}

// ListAccounts retrieves a page of the caller's accounts.
func (s *ledgerService) ListAccounts(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.Account, error) {
	return s.ledgerRepo.ListAccountsByOwner(ctx, ownerID, limit, offset)
}

// ListTransactions retrieves a page of ledger entries for an owned account.
func (s *ledgerService) ListTransactions(ctx context.Context, accountID int64, ownerID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	if _, err := s.GetAccount(ctx, accountID, ownerID); err != nil {
		return nil, err
	}
	return s.ledgerRepo.ListTransactionsByAccount(ctx, accountID, limit, offset)
}

// loadOwnedAccount fetches an account inside tx and enforces ownership and
// the closed-account invariant.
func (s *ledgerService) loadOwnedAccount(ctx context.Context, tx pgx.Tx, accountID int64, ownerID uuid.UUID) (*domain.Account, error) {
	account, err := s.ledgerRepo.FindAccountByIDInTx(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if account.OwnerID != ownerID {
		return nil, apperrors.ErrNotFound
	}
	if account.IsClosed() {
		return nil, fmt.Errorf("%w: account %d", ErrAccountClosed, accountID)
	}
	return account, nil
}

// Credit deposits amount into an owned account and emits MoneyCredited.
func (s *ledgerService) Credit(ctx context.Context, accountID int64, ownerID uuid.UUID, amount decimal.Decimal) (*domain.Account, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrAmountNotPositive, amount)
	}

	tx, err := s.ledgerRepo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.ledgerRepo.Rollback(ctx, tx)

	account, err := s.loadOwnedAccount(ctx, tx, accountID, ownerID)
	if err != nil {
		return nil, err
	}

	expectedVersion := account.Version
	account.Balance = account.Balance.Add(amount)
	if err := s.ledgerRepo.UpdateAccountBalance(ctx, tx, *account, expectedVersion); err != nil {
		return nil, err
	}
	account.Version++

	now := time.Now().UTC()
	entry := domain.Transaction{
		TransactionID:   uuid.New(),
		AccountID:       accountID,
		Amount:          amount,
		Currency:        account.Currency,
		TransactionType: domain.CreditEntry,
		Description:     "Deposit",
		Timestamp:       now,
	}
	if err := s.ledgerRepo.SaveTransactions(ctx, tx, []domain.Transaction{entry}); err != nil {
		return nil, err
	}

	env := domain.NewEnvelope(middleware.GetCorrelationIDFromCtx(ctx), s.source)
	msg, err := newOutboxMessage(env, domain.MoneyCredited, domain.MoneyCreditedEvent{
		EventEnvelope: env,
		AccountID:     accountID,
		OwnerID:       ownerID,
		Amount:        amount,
		Currency:      account.Currency,
	})
	if err != nil {
		return nil, err
	}
	if err := s.outboxRepo.SaveOutboxMessages(ctx, tx, []domain.OutboxMessage{msg}); err != nil {
		return nil, err
	}

	if err := s.ledgerRepo.Commit(ctx, tx); err != nil {
		return nil, err
	}

	logger.Info("Account credited", slog.Int64("account_id", accountID), slog.String("amount", amount.String()))
	return account, nil
}

// Debit withdraws amount from an owned account and emits MoneyDebited.
// Blocked owners are rejected with ErrForbidden before any state change.
func (s *ledgerService) Debit(ctx context.Context, accountID int64, ownerID uuid.UUID, amount decimal.Decimal) (*domain.Account, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrAmountNotPositive, amount)
	}

	blocked, err := s.blocklist.IsBlacklisted(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check blocklist: %w", err)
	}
	if blocked {
		logger.Warn("Debit attempt by blocked owner", slog.String("owner_id", ownerID.String()))
		return nil, fmt.Errorf("%w: owner %s is blocked", apperrors.ErrForbidden, ownerID)
	}

	tx, err := s.ledgerRepo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.ledgerRepo.Rollback(ctx, tx)

	account, err := s.loadOwnedAccount(ctx, tx, accountID, ownerID)
	if err != nil {
		return nil, err
	}

	newBalance := account.Balance.Sub(amount)
	if newBalance.IsNegative() && !account.AllowsNegativeBalance() {
		return nil, fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientFunds, account.Balance, amount)
	}

	expectedVersion := account.Version
	account.Balance = newBalance
	if err := s.ledgerRepo.UpdateAccountBalance(ctx, tx, *account, expectedVersion); err != nil {
		return nil, err
	}
	account.Version++

	entry := domain.Transaction{
		TransactionID:   uuid.New(),
		AccountID:       accountID,
		Amount:          amount,
		Currency:        account.Currency,
		TransactionType: domain.DebitEntry,
		Description:     "Withdrawal",
		Timestamp:       time.Now().UTC(),
	}
	if err := s.ledgerRepo.SaveTransactions(ctx, tx, []domain.Transaction{entry}); err != nil {
		return nil, err
	}

	env := domain.NewEnvelope(middleware.GetCorrelationIDFromCtx(ctx), s.source)
	msg, err := newOutboxMessage(env, domain.MoneyDebited, domain.MoneyDebitedEvent{
		EventEnvelope: env,
		AccountID:     accountID,
		OwnerID:       ownerID,
		Amount:        amount,
		Currency:      account.Currency,
	})
	if err != nil {
		return nil, err
	}
	if err := s.outboxRepo.SaveOutboxMessages(ctx, tx, []domain.OutboxMessage{msg}); err != nil {
		return nil, err
	}

	if err := s.ledgerRepo.Commit(ctx, tx); err != nil {
		return nil, err
	}

	logger.Info("Account debited", slog.Int64("account_id", accountID), slog.String("amount", amount.String()))
	return account, nil
}

// Transfer moves money between two accounts. The debited amount is exact;
// the credited amount is converted via the fixed currency table when the
// currencies differ. Both ledger entries and both balance changes commit
// atomically, and exactly one TransferCompleted event is emitted.
func (s *ledgerService) Transfer(ctx context.Context, ownerID uuid.UUID, req dto.TransferRequest) error {
	logger := middleware.GetLoggerFromCtx(ctx)

	if req.FromAccountID == req.ToAccountID {
		return fmt.Errorf("%w: account %d", ErrSameAccountTransfer, req.FromAccountID)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrAmountNotPositive, req.Amount)
	}

	blocked, err := s.blocklist.IsBlacklisted(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to check blocklist: %w", err)
	}
	if blocked {
		logger.Warn("Transfer attempt by blocked owner", slog.String("owner_id", ownerID.String()))
		return fmt.Errorf("%w: owner %s is blocked", apperrors.ErrForbidden, ownerID)
	}

	tx, err := s.ledgerRepo.Begin(ctx)
	if err != nil {
		return err
	}
	defer s.ledgerRepo.Rollback(ctx, tx)

	source, err := s.loadOwnedAccount(ctx, tx, req.FromAccountID, ownerID)
	if err != nil {
		return err
	}

	// Destination may belong to anyone.
	destination, err := s.ledgerRepo.FindAccountByIDInTx(ctx, tx, req.ToAccountID)
	if err != nil {
		return err
	}
	if destination.IsClosed() {
		return fmt.Errorf("%w: account %d", ErrAccountClosed, destination.AccountID)
	}

	newSourceBalance := source.Balance.Sub(req.Amount)
	if newSourceBalance.IsNegative() && !source.AllowsNegativeBalance() {
		return fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientFunds, source.Balance, req.Amount)
	}

	creditedAmount, err := domain.ConvertAmount(req.Amount, source.Currency, destination.Currency)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	sourceVersion := source.Version
	source.Balance = newSourceBalance
	if err := s.ledgerRepo.UpdateAccountBalance(ctx, tx, *source, sourceVersion); err != nil {
		return err
	}

	destinationVersion := destination.Version
	destination.Balance = destination.Balance.Add(creditedAmount)
	if err := s.ledgerRepo.UpdateAccountBalance(ctx, tx, *destination, destinationVersion); err != nil {
		return err
	}

	now := time.Now().UTC()
	description := fmt.Sprintf("Transfer from account %d to account %d", source.AccountID, destination.AccountID)
	entries := []domain.Transaction{
		{
			TransactionID:         uuid.New(),
			AccountID:             source.AccountID,
			CounterpartyAccountID: destination.AccountID,
			Amount:                req.Amount,
			Currency:              source.Currency,
			TransactionType:       domain.CreditEntry,
			Description:           description,
			Timestamp:             now,
		},
		{
			TransactionID:         uuid.New(),
			AccountID:             destination.AccountID,
			CounterpartyAccountID: source.AccountID,
			Amount:                creditedAmount,
			Currency:              destination.Currency,
			TransactionType:       domain.DebitEntry,
			Description:           description,
			Timestamp:             now,
		},
	}
	if err := s.ledgerRepo.SaveTransactions(ctx, tx, entries); err != nil {
		return err
	}

	env := domain.NewEnvelope(middleware.GetCorrelationIDFromCtx(ctx), s.source)
	msg, err := newOutboxMessage(env, domain.TransferCompleted, domain.TransferCompletedEvent{
		EventEnvelope:        env,
		SourceAccountID:      source.AccountID,
		DestinationAccountID: destination.AccountID,
		DebitedAmount:        req.Amount,
		DebitedCurrency:      source.Currency,
		CreditedAmount:       creditedAmount,
		CreditedCurrency:     destination.Currency,
	})
	if err != nil {
		return err
	}
	if err := s.outboxRepo.SaveOutboxMessages(ctx, tx, []domain.OutboxMessage{msg}); err != nil {
		return err
	}

	if err := s.ledgerRepo.Commit(ctx, tx); err != nil {
		return err
	}

	logger.Info("Transfer completed",
		slog.Int64("from_account_id", source.AccountID),
		slog.Int64("to_account_id", destination.AccountID),
		slog.String("debited", req.Amount.String()),
		slog.String("credited", creditedAmount.String()))
	return nil
}

// CloseAccount stamps the close date on an owned account with zero balance.
func (s *ledgerService) CloseAccount(ctx context.Context, accountID int64, ownerID uuid.UUID) error {
	logger := middleware.GetLoggerFromCtx(ctx)

	tx, err := s.ledgerRepo.Begin(ctx)
	if err != nil {
		return err
	}
	defer s.ledgerRepo.Rollback(ctx, tx)

	account, err := s.loadOwnedAccount(ctx, tx, accountID, ownerID)
	if err != nil {
		return err
	}
	if !account.Balance.IsZero() {
		return fmt.Errorf("%w: balance is %s", ErrNonZeroCloseBalance, account.Balance)
	}

	if err := s.ledgerRepo.CloseAccount(ctx, tx, accountID, time.Now().UTC(), account.Version); err != nil {
		return err
	}

	if err := s.ledgerRepo.Commit(ctx, tx); err != nil {
		return err
	}

	logger.Info("Account closed", slog.Int64("account_id", accountID))
	return nil
}
