package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType indicates whether a ledger entry is a Debit or a Credit.
type TransactionType string

const (
	DebitEntry  TransactionType = "DEBIT"
	CreditEntry TransactionType = "CREDIT"
)

// MaxDescriptionLength is the upper bound for a ledger entry description.
const MaxDescriptionLength = 255

// Transaction is a single immutable ledger entry affecting one account.
// A transfer produces exactly two entries, one per account, written in
// the same unit of work as both balance updates.
type Transaction struct {
	TransactionID         uuid.UUID       `json:"transactionID"`
	AccountID             int64           `json:"accountID"`
	CounterpartyAccountID int64           `json:"counterpartyAccountID"` // 0 when none
	Amount                decimal.Decimal `json:"amount"`                // Always positive
	Currency              Currency        `json:"currency"`
	TransactionType       TransactionType `json:"transactionType"`
	Description           string          `json:"description"`
	Timestamp             time.Time       `json:"timestamp"`
}
