package core

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Monthly  RecurrenceType = "MONTHLY"
	Weekly   RecurrenceType = "WEEKLY"
	BiWeekly RecurrenceType = "BI_WEEKLY"
	OneTime  RecurrenceType = "ONE_TIME"
)

const (
	KindExpense TemplateKind = "EXPENSE"
	KindIncome  TemplateKind = "INCOME"
)

// MaxNameLength bounds template and transaction names.
const MaxNameLength = 50

type (
	RecurrenceType string

	// TemplateKind says whether instances of a template are expenses or income.
	TemplateKind string

	ExpenseTemplate struct {
		ID                int64           `json:"id"`
		Name              string          `json:"name"`
		Amount            decimal.Decimal `json:"amount"`
		RecurrenceType    RecurrenceType  `json:"recurrenceType"`
		DayOfMonth        *int            `json:"dayOfMonth,omitempty"`
		DayOfWeek         *int            `json:"dayOfWeek,omitempty"`
		BiWeeklyStartDate string          `json:"biWeeklyStartDate,omitempty"`
		Kind              TemplateKind    `json:"kind"`
		Active            bool            `json:"active"`
	}

	ScheduledExpense struct {
		ID            int64            `json:"id"`
		Name          string           `json:"name"`
		Amount        decimal.Decimal  `json:"amount"`
		ScheduledDate string           `json:"scheduledDate"`
		YearValue     int              `json:"yearValue"`
		MonthValue    int              `json:"monthValue"`
		Template      *ExpenseTemplate `json:"template,omitempty"`
	}

	ScheduledIncome struct {
		ID            int64           `json:"id"`
		Name          string          `json:"name"`
		Amount        decimal.Decimal `json:"amount"`
		ScheduledDate string          `json:"scheduledDate"`
		YearValue     int             `json:"yearValue"`
		MonthValue    int             `json:"monthValue"`
	}

	Account struct {
		ID              int64           `json:"id"`
		Name            string          `json:"name"`
		StartingBalance decimal.Decimal `json:"startingBalance"`
	}

	// MonthlyBudget is the dataset the calendar is built from.
	MonthlyBudget struct {
		Expenses      []ScheduledExpense         `json:"expenses"`
		Income        []ScheduledIncome          `json:"income"`
		DailyBalances map[string]decimal.Decimal `json:"dailyBalances"`
	}

	// DayCell is one square of the month grid. Padding cells have an empty
	// Date and DayNumber 0.
	DayCell struct {
		Date      string             `json:"date"`
		Expenses  []ScheduledExpense `json:"expenses"`
		Income    []ScheduledIncome  `json:"income"`
		Balance   decimal.Decimal    `json:"balance"`
		DayNumber int                `json:"dayNumber"`
	}
)

var (
	ErrEmptyName         = errors.New("empty name")
	ErrNameTooLong       = errors.New("name too long (max 50 characters)")
	ErrInvalidRecurrence = errors.New("invalid recurrence type")
	ErrInvalidKind       = errors.New("invalid template kind")
	ErrInvalidDayOfMonth = errors.New("dayOfMonth must be between 1 and 31")
	ErrInvalidDayOfWeek  = errors.New("dayOfWeek must be between 0 and 6")
)

// IsPadding reports whether the cell only fills the grid before day 1.
func (c DayCell) IsPadding() bool {
	return c.Date == ""
}

func (r RecurrenceType) IsValid() bool {
	switch r {
	case Monthly, Weekly, BiWeekly, OneTime:
		return true
	default:
		return false
	}
}

func (k TemplateKind) IsValid() bool {
	return k == KindExpense || k == KindIncome
}

func validateName(name string) error {
	if len(strings.TrimSpace(name)) == 0 {
		return ErrEmptyName
	}
	if len([]rune(name)) > MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// Normalize fills defaults left out by older clients.
func (t *ExpenseTemplate) Normalize() {
	t.Name = strings.TrimSpace(t.Name)
	if t.Kind == "" {
		t.Kind = KindExpense
	}
}

func (t ExpenseTemplate) Validate() error {
	if err := validateName(t.Name); err != nil {
		return err
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	if !t.Kind.IsValid() {
		return ErrInvalidKind
	}

	switch t.RecurrenceType {
	case Monthly:
		if t.DayOfMonth == nil || *t.DayOfMonth < 1 || *t.DayOfMonth > 31 {
			return ErrInvalidDayOfMonth
		}
	case Weekly:
		if t.DayOfWeek == nil || *t.DayOfWeek < 0 || *t.DayOfWeek > 6 {
			return ErrInvalidDayOfWeek
		}
	case BiWeekly:
		if _, err := ParseDateKey(t.BiWeeklyStartDate); err != nil {
			return errors.New("invalid biWeeklyStartDate: " + err.Error())
		}
	case OneTime:
	default:
		return ErrInvalidRecurrence
	}
	return nil
}

func (e ScheduledExpense) Validate() error {
	return validateTransaction(e.Name, e.Amount, e.ScheduledDate)
}

func (i ScheduledIncome) Validate() error {
	return validateTransaction(i.Name, i.Amount, i.ScheduledDate)
}

func validateTransaction(name string, amount decimal.Decimal, date string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if _, err := ParseDateKey(date); err != nil {
		return err
	}
	return nil
}
