package core

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func intPtr(v int) *int { return &v }

func TestTemplateValidate(t *testing.T) {
	good := ExpenseTemplate{
		Name:           "Rent",
		Amount:         decimal.NewFromInt(1200),
		RecurrenceType: Monthly,
		DayOfMonth:     intPtr(1),
		Kind:           KindExpense,
		Active:         true,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []ExpenseTemplate{
		{Name: "", Amount: decimal.NewFromInt(1), RecurrenceType: OneTime, Kind: KindExpense},
		{Name: strings.Repeat("x", 51), Amount: decimal.NewFromInt(1), RecurrenceType: OneTime, Kind: KindExpense},
		{Name: "a", Amount: decimal.NewFromInt(-1), RecurrenceType: OneTime, Kind: KindExpense},
		{Name: "a", Amount: decimal.NewFromInt(1000000), RecurrenceType: OneTime, Kind: KindExpense},
		{Name: "a", Amount: decimal.NewFromInt(1), RecurrenceType: "DAILY", Kind: KindExpense},
		{Name: "a", Amount: decimal.NewFromInt(1), RecurrenceType: Monthly, Kind: KindExpense},
		{Name: "a", Amount: decimal.NewFromInt(1), RecurrenceType: Monthly, DayOfMonth: intPtr(32), Kind: KindExpense},
		{Name: "a", Amount: decimal.NewFromInt(1), RecurrenceType: Weekly, DayOfWeek: intPtr(7), Kind: KindExpense},
		{Name: "a", Amount: decimal.NewFromInt(1), RecurrenceType: BiWeekly, BiWeeklyStartDate: "2024-13-01", Kind: KindExpense},
		{Name: "a", Amount: decimal.NewFromInt(1), RecurrenceType: OneTime, Kind: "TRANSFER"},
	}
	for i, tpl := range bads {
		if err := tpl.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTemplateNormalizeDefaultsKind(t *testing.T) {
	tpl := ExpenseTemplate{Name: "  Salary  "}
	tpl.Normalize()
	if tpl.Kind != KindExpense || tpl.Name != "Salary" {
		t.Fatalf("unexpected normalized template: %+v", tpl)
	}
}

func TestScheduledExpenseSetDate(t *testing.T) {
	var e ScheduledExpense
	if err := e.SetDate("2024-03-15"); err != nil {
		t.Fatalf("SetDate: %v", err)
	}
	if e.YearValue != 2024 || e.MonthValue != 3 || e.ScheduledDate != "2024-03-15" {
		t.Fatalf("unexpected fields: %+v", e)
	}
	if err := e.SetDate("15/03/2024"); err == nil {
		t.Fatalf("expected error for malformed date")
	}
}

func TestAmountsMarshalAsNumbers(t *testing.T) {
	b, err := json.Marshal(ScheduledIncome{ID: 1, Name: "Pay", Amount: decimal.RequireFromString("2500.50"), ScheduledDate: "2024-03-01"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"amount":2500.5`) {
		t.Fatalf("expected numeric amount, got %s", b)
	}

	var back ScheduledIncome
	if err := json.Unmarshal([]byte(`{"amount":12.34}`), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Amount.Equal(decimal.RequireFromString("12.34")) {
		t.Fatalf("unexpected amount %s", back.Amount)
	}
}
