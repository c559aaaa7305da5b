package core

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the canonical YYYY-MM-DD date key.
const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

// ParseDateKey parses a YYYY-MM-DD key as a UTC midnight.
func ParseDateKey(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDateKey returns the date portion of t as YYYY-MM-DD.
func FormatDateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// YearMonthOf returns the year and month encoded in a valid date key.
func YearMonthOf(dateKey string) (int, int, error) {
	t, err := ParseDateKey(dateKey)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), int(t.Month()), nil
}

// SetDate moves the expense to dateKey and keeps the denormalised
// year/month fields in step.
func (e *ScheduledExpense) SetDate(dateKey string) error {
	y, m, err := YearMonthOf(dateKey)
	if err != nil {
		return err
	}
	e.ScheduledDate, e.YearValue, e.MonthValue = dateKey, y, m
	return nil
}

// SetDate is the income counterpart of ScheduledExpense.SetDate.
func (i *ScheduledIncome) SetDate(dateKey string) error {
	y, m, err := YearMonthOf(dateKey)
	if err != nil {
		return err
	}
	i.ScheduledDate, i.YearValue, i.MonthValue = dateKey, y, m
	return nil
}
