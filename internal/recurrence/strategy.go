// Package recurrence expands expense templates into the dates they fall on.
//
// Each recurrence type has its own OccurrenceRule; the registry maps the
// type tag to the rule so new schedules can be added without touching callers.
package recurrence

import (
	"fmt"
	"time"

	"budgetcal/internal/calendar"
	"budgetcal/internal/core"
)

// OccurrenceRule lists the dates in (year, month) on which a template is due.
type OccurrenceRule interface {
	Occurrences(t core.ExpenseTemplate, year, month int) []string
}

// MonthlyRule fires once a month on DayOfMonth, clamped to the last day.
type MonthlyRule struct{}

func (MonthlyRule) Occurrences(t core.ExpenseTemplate, year, month int) []string {
	if t.DayOfMonth == nil {
		return nil
	}
	day := *t.DayOfMonth
	if last := calendar.DaysInMonth(year, month); day > last {
		day = last
	}
	if day < 1 {
		return nil
	}
	return []string{calendar.DateKey(year, month, day)}
}

// WeeklyRule fires on every DayOfWeek (0 = Sunday) of the month.
type WeeklyRule struct{}

func (WeeklyRule) Occurrences(t core.ExpenseTemplate, year, month int) []string {
	if t.DayOfWeek == nil || *t.DayOfWeek < 0 || *t.DayOfWeek > 6 {
		return nil
	}
	first := (*t.DayOfWeek - calendar.FirstWeekdayOffset(year, month) + 7) % 7
	var out []string
	for day := first + 1; day <= calendar.DaysInMonth(year, month); day += 7 {
		out = append(out, calendar.DateKey(year, month, day))
	}
	return out
}

// BiWeeklyRule fires every 14 days from BiWeeklyStartDate onwards.
type BiWeeklyRule struct{}

func (BiWeeklyRule) Occurrences(t core.ExpenseTemplate, year, month int) []string {
	anchor, err := core.ParseDateKey(t.BiWeeklyStartDate)
	if err != nil {
		return nil
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	if !anchor.Before(end) {
		return nil
	}

	first := anchor
	if anchor.Before(start) {
		days := int(start.Sub(anchor).Hours() / 24)
		periods := (days + 13) / 14
		first = anchor.AddDate(0, 0, periods*14)
	}

	var out []string
	for d := first; d.Before(end); d = d.AddDate(0, 0, 14) {
		out = append(out, core.FormatDateKey(d))
	}
	return out
}

// OneTimeRule never fires on its own; one-time templates are placed by hand.
type OneTimeRule struct{}

func (OneTimeRule) Occurrences(core.ExpenseTemplate, int, int) []string {
	return nil
}

var rules = map[core.RecurrenceType]OccurrenceRule{
	core.Monthly:  MonthlyRule{},
	core.Weekly:   WeeklyRule{},
	core.BiWeekly: BiWeeklyRule{},
	core.OneTime:  OneTimeRule{},
}

// GetRule returns the rule registered for a recurrence type.
func GetRule(r core.RecurrenceType) (OccurrenceRule, error) {
	rule, ok := rules[r]
	if !ok {
		return nil, fmt.Errorf("unknown recurrence type: %s", r)
	}
	return rule, nil
}

// RegisterRule installs or replaces the rule for a recurrence type.
func RegisterRule(r core.RecurrenceType, rule OccurrenceRule) {
	rules[r] = rule
}

// Occurrences returns the due dates of an active template in (year, month).
func Occurrences(t core.ExpenseTemplate, year, month int) ([]string, error) {
	if !t.Active {
		return nil, nil
	}
	rule, err := GetRule(t.RecurrenceType)
	if err != nil {
		return nil, err
	}
	year, month = calendar.Normalize(year, month)
	return rule.Occurrences(t, year, month), nil
}
