package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType defines the product type of an account.
type AccountType string

const (
	Checking AccountType = "checking"
	Deposit  AccountType = "deposit"
	Credit   AccountType = "credit"
)

// ValidAccountType reports whether t is one of the known account types.
func ValidAccountType(t AccountType) bool {
	switch t {
	case Checking, Deposit, Credit:
		return true
	}
	return false
}

// Account represents a bank account within the core domain.
// Version is the optimistic concurrency token: every successful write
// increments it, and every conditional write checks it.
type Account struct {
	AccountID    int64            `json:"accountID"` // Assigned by the store on creation
	OwnerID      uuid.UUID        `json:"ownerID"`
	AccountType  AccountType      `json:"accountType"`
	Currency     Currency         `json:"currency"`
	Balance      decimal.Decimal  `json:"balance"`
	InterestRate *decimal.Decimal `json:"interestRate"` // Annual %, nil when not interest-bearing
	OpenDate     time.Time        `json:"openDate"`
	CloseDate    *time.Time       `json:"closeDate"` // Non-nil means no further mutation
	Version      int64            `json:"-"`
}

// IsClosed reports whether the account has been closed.
func (a Account) IsClosed() bool {
	return a.CloseDate != nil
}

// AllowsNegativeBalance reports whether the account may be driven below zero.
// Only credit accounts may carry a negative balance.
func (a Account) AllowsNegativeBalance() bool {
	return a.AccountType == Credit
}
