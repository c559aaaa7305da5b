// Package core holds the budgeting domain types shared by every layer.
//
// Amounts are shopspring decimals so sums of many small values stay exact;
// they travel over JSON as plain numbers, matching what browser clients send.
package core

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// MaxAmount is the largest amount accepted for a single transaction or template.
var MaxAmount = decimal.NewFromInt(999999)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// ValidateAmount accepts amounts in [0, MaxAmount].
func ValidateAmount(d decimal.Decimal) error {
	if d.IsNegative() || d.GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	return nil
}

// SumExpenses adds up the amounts of the given expenses.
func SumExpenses(items []ScheduledExpense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range items {
		total = total.Add(e.Amount)
	}
	return total
}

// SumIncome adds up the amounts of the given income entries.
func SumIncome(items []ScheduledIncome) decimal.Decimal {
	total := decimal.Zero
	for _, i := range items {
		total = total.Add(i.Amount)
	}
	return total
}
