// Package calendar projects a month of scheduled transactions and daily
// balances onto a Sunday-first calendar grid.
//
// Everything here is pure: functions never mutate their inputs and only
// allocate their own results, so they are safe to call from any goroutine.
// Months outside 1..12 are normalised with floor div/mod before any date is
// built, so month 13 of 2024 is January 2025 and month 0 is December 2023.
package calendar

import (
	"fmt"
	"time"

	"budgetcal/internal/core"

	"github.com/shopspring/decimal"
)

// DaysPerWeek is the width of a rendered calendar row.
const DaysPerWeek = 7

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// Normalize folds an out-of-range month into the adjacent years.
func Normalize(year, month int) (int, int) {
	m := month - 1
	year += floorDiv(m, 12)
	return year, floorMod(m, 12) + 1
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}

// FirstWeekdayOffset returns the weekday of the 1st of the month, 0 = Sunday.
func FirstWeekdayOffset(year, month int) int {
	year, month = Normalize(year, month)
	return int(time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Weekday())
}

// DaysInMonth returns the Gregorian day count of the month.
func DaysInMonth(year, month int) int {
	year, month = Normalize(year, month)
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DateKey formats a zero-padded YYYY-MM-DD key.
func DateKey(year, month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

// AdjacentMonth steps direction months away from (year, month), wrapping
// across year boundaries.
func AdjacentMonth(year, month, direction int) (int, int) {
	return Normalize(year, month+direction)
}

func PreviousMonth(year, month int) (int, int) {
	return AdjacentMonth(year, month, -1)
}

func NextMonth(year, month int) (int, int) {
	return AdjacentMonth(year, month, 1)
}

// BuildGrid returns offset padding cells followed by one cell per day of the
// month. A transaction lands in the cell whose date equals its scheduledDate
// exactly; transactions dated outside the month are not placed. Missing
// balances read as zero. The tail is not padded; see Rows.
func BuildGrid(year, month int, expenses []core.ScheduledExpense, income []core.ScheduledIncome, balances map[string]decimal.Decimal) []core.DayCell {
	year, month = Normalize(year, month)
	offset := FirstWeekdayOffset(year, month)
	days := DaysInMonth(year, month)

	expByDate := make(map[string][]core.ScheduledExpense)
	for _, e := range expenses {
		expByDate[e.ScheduledDate] = append(expByDate[e.ScheduledDate], e)
	}
	incByDate := make(map[string][]core.ScheduledIncome)
	for _, i := range income {
		incByDate[i.ScheduledDate] = append(incByDate[i.ScheduledDate], i)
	}

	cells := make([]core.DayCell, 0, offset+days)
	for i := 0; i < offset; i++ {
		cells = append(cells, paddingCell())
	}

	for day := 1; day <= days; day++ {
		key := DateKey(year, month, day)

		dayExpenses := expByDate[key]
		if dayExpenses == nil {
			dayExpenses = []core.ScheduledExpense{}
		}
		dayIncome := incByDate[key]
		if dayIncome == nil {
			dayIncome = []core.ScheduledIncome{}
		}
		balance, ok := balances[key]
		if !ok {
			balance = decimal.Zero
		}

		cells = append(cells, core.DayCell{
			Date:      key,
			Expenses:  dayExpenses,
			Income:    dayIncome,
			Balance:   balance,
			DayNumber: day,
		})
	}

	return cells
}

func paddingCell() core.DayCell {
	return core.DayCell{
		Expenses: []core.ScheduledExpense{},
		Income:   []core.ScheduledIncome{},
		Balance:  decimal.Zero,
	}
}

// Rows splits a grid into weeks, padding the last week to full width.
func Rows(cells []core.DayCell) [][]core.DayCell {
	var rows [][]core.DayCell
	for start := 0; start < len(cells); start += DaysPerWeek {
		end := min(start+DaysPerWeek, len(cells))
		row := make([]core.DayCell, 0, DaysPerWeek)
		row = append(row, cells[start:end]...)
		for len(row) < DaysPerWeek {
			row = append(row, paddingCell())
		}
		rows = append(rows, row)
	}
	return rows
}

// Month bundles a grid with its navigation neighbours.
type Month struct {
	YearMonth
	Offset   int            `json:"offset"`
	Days     []core.DayCell `json:"days"`
	Previous YearMonth      `json:"previous"`
	Next     YearMonth      `json:"next"`
}

// NewMonth builds the grid for (year, month) from a monthly dataset.
func NewMonth(year, month int, data core.MonthlyBudget) Month {
	year, month = Normalize(year, month)
	py, pm := PreviousMonth(year, month)
	ny, nm := NextMonth(year, month)
	return Month{
		YearMonth: YearMonth{Year: year, Month: month},
		Offset:    FirstWeekdayOffset(year, month),
		Days:      BuildGrid(year, month, data.Expenses, data.Income, data.DailyBalances),
		Previous:  YearMonth{Year: py, Month: pm},
		Next:      YearMonth{Year: ny, Month: nm},
	}
}
