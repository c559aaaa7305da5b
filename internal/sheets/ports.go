package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"budgetcal/internal/calendar"
	"budgetcal/internal/core"
	"budgetcal/internal/format"
	"budgetcal/internal/ledger"

	"github.com/shopspring/decimal"
)

// Ports for outbound adapters.
type (
	// MonthExporter writes one month of the budget calendar to an external
	// spreadsheet, replacing whatever was exported for that month before.
	MonthExporter interface {
		ExportMonth(ctx context.Context, m MonthSheet) error
	}
)

// Header is the column row above the per-day lines.
var Header = []any{"Date", "Weekday", "Income", "Expenses", "Items", "Balance"}

// Columns is the A1 column span written by an export.
const Columns = "A:F"

// MonthSheet is the exported form of a calendar month.
type MonthSheet struct {
	calendar.YearMonth
	Opening decimal.Decimal
	Closing decimal.Decimal
	Totals  ledger.Totals
	Days    []core.DayCell
}

// NewMonthSheet keeps the real days of a calendar month and drops padding.
func NewMonthSheet(m calendar.Month, opening, closing decimal.Decimal, totals ledger.Totals) MonthSheet {
	days := make([]core.DayCell, 0, len(m.Days))
	for _, d := range m.Days {
		if d.Date != "" {
			days = append(days, d)
		}
	}
	return MonthSheet{YearMonth: m.YearMonth, Opening: opening, Closing: closing, Totals: totals, Days: days}
}

// TabName is the spreadsheet tab holding the month, e.g. "2024-03".
func (m MonthSheet) TabName() string {
	return m.YearMonth.String()
}

// Rows lays the month out as a summary block, a blank line, the header and
// one line per day.
func (m MonthSheet) Rows() [][]any {
	rows := [][]any{
		{format.MonthYear(m.Year, m.Month)},
		{"Opening balance", format.Currency(m.Opening)},
		{"Income", format.Currency(m.Totals.Income)},
		{"Expenses", format.Currency(m.Totals.Expenses)},
		{"Net", format.Currency(m.Totals.Net)},
		{"Closing balance", format.Currency(m.Closing)},
		{},
		Header,
	}
	for _, d := range m.Days {
		rows = append(rows, dayRow(d))
	}
	return rows
}

func dayRow(d core.DayCell) []any {
	weekday := ""
	if t, err := time.Parse(core.DateLayout, d.Date); err == nil {
		weekday = t.Weekday().String()
	}

	var items []string
	for _, i := range d.Income {
		items = append(items, fmt.Sprintf("%s (+%s)", i.Name, format.Currency(i.Amount)))
	}
	for _, e := range d.Expenses {
		items = append(items, fmt.Sprintf("%s (-%s)", e.Name, format.Currency(e.Amount)))
	}

	return []any{
		d.Date,
		weekday,
		amountCell(core.SumIncome(d.Income)),
		amountCell(core.SumExpenses(d.Expenses)),
		strings.Join(items, "; "),
		format.Currency(d.Balance),
	}
}

// amountCell leaves days without movement blank.
func amountCell(v decimal.Decimal) string {
	if v.IsZero() {
		return ""
	}
	return format.Currency(v)
}
