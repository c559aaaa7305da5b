// Package ledger computes running account balances from scheduled
// transactions.
package ledger

import (
	"budgetcal/internal/calendar"
	"budgetcal/internal/core"

	"github.com/shopspring/decimal"
)

// Totals summarises the flows of one month.
type Totals struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

// Opening returns the balance at the start of a month given the account's
// starting balance and the sums of everything scheduled before it.
func Opening(starting, incomeBefore, expensesBefore decimal.Decimal) decimal.Decimal {
	return starting.Add(incomeBefore).Sub(expensesBefore)
}

// DailyBalances returns the end-of-day balance for every day of the month.
// Transactions dated outside the month are ignored; the opening balance
// already accounts for earlier ones.
func DailyBalances(year, month int, opening decimal.Decimal, expenses []core.ScheduledExpense, income []core.ScheduledIncome) map[string]decimal.Decimal {
	year, month = calendar.Normalize(year, month)
	days := calendar.DaysInMonth(year, month)

	delta := make(map[string]decimal.Decimal, days)
	for _, e := range expenses {
		delta[e.ScheduledDate] = delta[e.ScheduledDate].Sub(e.Amount)
	}
	for _, i := range income {
		delta[i.ScheduledDate] = delta[i.ScheduledDate].Add(i.Amount)
	}

	balances := make(map[string]decimal.Decimal, days)
	running := opening
	for day := 1; day <= days; day++ {
		key := calendar.DateKey(year, month, day)
		running = running.Add(delta[key])
		balances[key] = running
	}
	return balances
}

// MonthTotals sums the month's income and expenses.
func MonthTotals(expenses []core.ScheduledExpense, income []core.ScheduledIncome) Totals {
	in := core.SumIncome(income)
	out := core.SumExpenses(expenses)
	return Totals{Income: in, Expenses: out, Net: in.Sub(out)}
}

// Closing returns the last day's balance, or opening for an empty map.
func Closing(year, month int, opening decimal.Decimal, balances map[string]decimal.Decimal) decimal.Decimal {
	year, month = calendar.Normalize(year, month)
	if b, ok := balances[calendar.DateKey(year, month, calendar.DaysInMonth(year, month))]; ok {
		return b
	}
	return opening
}
