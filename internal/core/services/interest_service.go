package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/corebanking/ledgersvc/internal/core/domain"
	portsrepo "github.com/corebanking/ledgersvc/internal/core/ports/repositories"
	portssvc "github.com/corebanking/ledgersvc/internal/core/ports/services"
)

// daysPerYearTimesHundred folds the /365 and /100 of the daily rate formula
// into a single divisor: balance * (rate/365)/100.
var daysPerYearTimesHundred = decimal.NewFromInt(36500)

// interestService accrues daily interest over all eligible accounts.
// The whole batch runs in one serializable transaction: a failure on any
// account rolls back every accrual, and the next scheduled run retries
// the batch wholesale.
type interestService struct {
	ledgerRepo portsrepo.LedgerRepository
	outboxRepo portsrepo.OutboxWriter
	source     string
	logger     *slog.Logger
}

// NewInterestService creates the interest accrual service.
func NewInterestService(ledgerRepo portsrepo.LedgerRepository, outboxRepo portsrepo.OutboxWriter, source string, logger *slog.Logger) portssvc.InterestSvcFacade {
	return &interestService{
		ledgerRepo: ledgerRepo,
		outboxRepo: outboxRepo,
		source:     source,
		logger:     logger.With(slog.String("component", "interest_accrual")),
	}
}

var _ portssvc.InterestSvcFacade = (*interestService)(nil)

// AccrueInterestBatch accrues interest for every eligible account and
// returns how many accounts were credited.
func (s *interestService) AccrueInterestBatch(ctx context.Context) (int, error) {
	tx, err := s.ledgerRepo.BeginSerializable(ctx)
	if err != nil {
		return 0, err
	}
	defer s.ledgerRepo.Rollback(ctx, tx)

	accountIDs, err := s.ledgerRepo.ListAccrualCandidateIDs(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("failed to list accrual candidates: %w", err)
	}

	accrued := 0
	for _, accountID := range accountIDs {
		ok, err := s.accrueOne(ctx, tx, accountID)
		if err != nil {
			s.logger.Error("Interest accrual batch aborted",
				slog.Int64("account_id", accountID),
				slog.String("error", err.Error()))
			return 0, err
		}
		if ok {
			accrued++
		}
	}

	if err := s.ledgerRepo.Commit(ctx, tx); err != nil {
		return 0, err
	}

	s.logger.Info("Interest accrual batch completed",
		slog.Int("candidates", len(accountIDs)),
		slog.Int("accrued", accrued))
	return accrued, nil
}

// accrueOne locks one account row and applies its daily interest.
// Reports false when the account is skipped.
func (s *interestService) accrueOne(ctx context.Context, tx pgx.Tx, accountID int64) (bool, error) {
	account, err := s.ledgerRepo.FindAccountByIDForUpdate(ctx, tx, accountID)
	if err != nil {
		return false, err
	}

	if account.IsClosed() || account.InterestRate == nil || !account.InterestRate.IsPositive() {
		return false, nil
	}
	// A credit account in the black owes nothing to accrue on.
	if account.AccountType == domain.Credit && account.Balance.IsPositive() {
		return false, nil
	}

	interest := account.Balance.Mul(*account.InterestRate).DivRound(daysPerYearTimesHundred, 2)
	if interest.IsZero() {
		return false, nil
	}

	expectedVersion := account.Version
	account.Balance = account.Balance.Add(interest)
	if err := s.ledgerRepo.UpdateAccountBalance(ctx, tx, *account, expectedVersion); err != nil {
		return false, err
	}

	// Interest charged on a drawn-down credit account is a debit entry,
	// so entry polarity always matches the balance movement.
	entryType := domain.CreditEntry
	if interest.IsNegative() {
		entryType = domain.DebitEntry
	}
	entry := domain.Transaction{
		TransactionID:   uuid.New(),
		AccountID:       accountID,
		Amount:          interest.Abs(),
		Currency:        account.Currency,
		TransactionType: entryType,
		Description:     "Interest accrual",
		Timestamp:       time.Now().UTC(),
	}
	if err := s.ledgerRepo.SaveTransactions(ctx, tx, []domain.Transaction{entry}); err != nil {
		return false, err
	}

	env := domain.NewEnvelope(uuid.New(), s.source)
	msg, err := newOutboxMessage(env, domain.InterestAccrued, domain.InterestAccruedEvent{
		EventEnvelope: env,
		AccountID:     accountID,
		Amount:        interest,
		Currency:      account.Currency,
	})
	if err != nil {
		return false, err
	}
	if err := s.outboxRepo.SaveOutboxMessages(ctx, tx, []domain.OutboxMessage{msg}); err != nil {
		return false, err
	}

	return true, nil
}
