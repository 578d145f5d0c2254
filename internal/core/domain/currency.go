package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is one of the supported settlement currencies.
type Currency string

const (
	RUB Currency = "rub"
	USD Currency = "usd"
	EUR Currency = "eur"
)

// ValidCurrency reports whether c is a supported currency.
func ValidCurrency(c Currency) bool {
	switch c {
	case RUB, USD, EUR:
		return true
	}
	return false
}

// rubPerUnit is the fixed conversion table: the value of one unit of each
// currency expressed in RUB. Live FX is out of scope.
var rubPerUnit = map[Currency]decimal.Decimal{
	RUB: decimal.NewFromInt(1),
	USD: decimal.NewFromInt(90),
	EUR: decimal.NewFromInt(100),
}

// ConvertAmount converts amount from one currency to another using the
// fixed table, rounded to 2 decimal places. Same-currency conversion
// returns the amount unchanged.
func ConvertAmount(amount decimal.Decimal, from, to Currency) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	fromRate, ok := rubPerUnit[from]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown currency %q", from)
	}
	toRate, ok := rubPerUnit[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown currency %q", to)
	}
	return amount.Mul(fromRate).DivRound(toRate, 2), nil
}
