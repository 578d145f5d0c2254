package dto

import (
	"time"

	"github.com/corebanking/ledgersvc/internal/core/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpenAccountRequest is the payload for creating a new account.
type OpenAccountRequest struct {
	AccountType  domain.AccountType `json:"accountType" binding:"required"`
	Currency     domain.Currency    `json:"currency" binding:"required"`
	InterestRate *decimal.Decimal   `json:"interestRate"`
}

// AmountRequest is the payload for credit and debit operations.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// TransferRequest is the payload for moving money between two accounts.
type TransferRequest struct {
	FromAccountID int64           `json:"fromAccountId" binding:"required"`
	ToAccountID   int64           `json:"toAccountId" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
}

// AccountResponse is the API representation of an account.
type AccountResponse struct {
	AccountID    int64              `json:"accountId"`
	OwnerID      uuid.UUID          `json:"ownerId"`
	AccountType  domain.AccountType `json:"accountType"`
	Currency     domain.Currency    `json:"currency"`
	Balance      decimal.Decimal    `json:"balance"`
	InterestRate *decimal.Decimal   `json:"interestRate,omitempty"`
	OpenDate     time.Time          `json:"openDate"`
	CloseDate    *time.Time         `json:"closeDate,omitempty"`
}

// ToAccountResponse maps a domain account to its API representation.
func ToAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		AccountID:    a.AccountID,
		OwnerID:      a.OwnerID,
		AccountType:  a.AccountType,
		Currency:     a.Currency,
		Balance:      a.Balance,
		InterestRate: a.InterestRate,
		OpenDate:     a.OpenDate,
		CloseDate:    a.CloseDate,
	}
}

// TransactionResponse is the API representation of a ledger entry.
type TransactionResponse struct {
	TransactionID         uuid.UUID              `json:"transactionId"`
	AccountID             int64                  `json:"accountId"`
	CounterpartyAccountID int64                  `json:"counterpartyAccountId,omitempty"`
	Amount                decimal.Decimal        `json:"amount"`
	Currency              domain.Currency        `json:"currency"`
	TransactionType       domain.TransactionType `json:"transactionType"`
	Description           string                 `json:"description"`
	Timestamp             time.Time              `json:"timestamp"`
}

// ToTransactionResponses maps domain ledger entries to their API representation.
func ToTransactionResponses(txns []domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, len(txns))
	for i, t := range txns {
		out[i] = TransactionResponse{
			TransactionID:         t.TransactionID,
			AccountID:             t.AccountID,
			CounterpartyAccountID: t.CounterpartyAccountID,
			Amount:                t.Amount,
			Currency:              t.Currency,
			TransactionType:       t.TransactionType,
			Description:           t.Description,
			Timestamp:             t.Timestamp,
		}
	}
	return out
}
