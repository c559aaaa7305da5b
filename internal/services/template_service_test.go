package services

import (
	"context"
	"testing"

	"budgetcal/internal/amqp"
	"budgetcal/internal/core"
	"budgetcal/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rentTemplate() core.ExpenseTemplate {
	return core.ExpenseTemplate{
		Name:           "Rent",
		Amount:         dec("1200"),
		RecurrenceType: core.Monthly,
		DayOfMonth:     intp(1),
	}
}

func expensesIn(t *testing.T, f *fixture, year, month int) []core.ScheduledExpense {
	t.Helper()
	b, err := f.budget.MonthlyBudget(context.Background(), year, month)
	require.NoError(t, err)
	return b.Expenses
}

func TestTemplateCreateMaterializesAhead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rent, err := f.templates.Create(ctx, rentTemplate())
	require.NoError(t, err)
	assert.True(t, rent.Active)
	assert.Equal(t, core.KindExpense, rent.Kind)

	march := expensesIn(t, f, 2024, 3)
	require.Len(t, march, 1)
	assert.Equal(t, "2024-03-01", march[0].ScheduledDate)
	require.NotNil(t, march[0].Template)
	assert.Equal(t, rent.ID, march[0].Template.ID)

	require.Len(t, expensesIn(t, f, 2024, 4), 1)
	assert.Empty(t, expensesIn(t, f, 2024, 5), "only one month ahead is materialized")

	n, err := f.processor.MaterializeAhead(ctx, fixedNow, 1)
	require.NoError(t, err)
	assert.Zero(t, n)

	msg := f.events.last()
	require.NotNil(t, msg)
	assert.True(t, msg.AllMonths)
	assert.Equal(t, amqp.EntityTemplate, msg.Entity)
}

func TestRecurringSkipsMovedAndDeletedInstances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.templates.Create(ctx, rentTemplate())
	require.NoError(t, err)

	march := expensesIn(t, f, 2024, 3)
	require.Len(t, march, 1)
	_, err = f.budget.MoveExpense(ctx, march[0].ID, "2024-03-05")
	require.NoError(t, err)

	april := expensesIn(t, f, 2024, 4)
	require.Len(t, april, 1)
	require.NoError(t, f.budget.DeleteExpense(ctx, april[0].ID))

	n, err := f.processor.MaterializeMonth(ctx, 2024, 3)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = f.processor.MaterializeMonth(ctx, 2024, 4)
	require.NoError(t, err)
	assert.Zero(t, n)

	march = expensesIn(t, f, 2024, 3)
	require.Len(t, march, 1)
	assert.Equal(t, "2024-03-05", march[0].ScheduledDate)
	assert.Empty(t, expensesIn(t, f, 2024, 4))

	// Month 17 of 2024 is May 2025.
	n, err = f.processor.MaterializeMonth(ctx, 2024, 17)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, expensesIn(t, f, 2025, 5), 1)
}

func TestRecurringIncomeTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.templates.Create(ctx, core.ExpenseTemplate{
		Name: "Paycheck", Amount: dec("1500"), RecurrenceType: core.BiWeekly,
		BiWeeklyStartDate: "2024-03-08", Kind: core.KindIncome,
	})
	require.NoError(t, err)

	b, err := f.budget.MonthlyBudget(ctx, 2024, 3)
	require.NoError(t, err)
	assert.Empty(t, b.Expenses)
	require.Len(t, b.Income, 2)
	assert.Equal(t, "2024-03-08", b.Income[0].ScheduledDate)
	assert.Equal(t, "2024-03-22", b.Income[1].ScheduledDate)
	assert.True(t, b.DailyBalances["2024-03-31"].Equal(dec("3000")))
}

func TestTemplateUpdatePropagation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rent, err := f.templates.Create(ctx, rentTemplate())
	require.NoError(t, err)

	changed := rentTemplate()
	changed.Amount = dec("1300")
	_, err = f.templates.Update(ctx, rent.ID, changed, true)
	require.NoError(t, err)
	assert.True(t, expensesIn(t, f, 2024, 3)[0].Amount.Equal(dec("1200")), "past instance keeps its amount")
	assert.True(t, expensesIn(t, f, 2024, 4)[0].Amount.Equal(dec("1300")))

	changed.Amount = dec("1400")
	changed.Name = "Rent (new lease)"
	updated, err := f.templates.Update(ctx, rent.ID, changed, false)
	require.NoError(t, err)
	assert.Equal(t, core.KindExpense, updated.Kind)
	assert.True(t, updated.Active)
	for _, m := range []int{3, 4} {
		e := expensesIn(t, f, 2024, m)[0]
		assert.True(t, e.Amount.Equal(dec("1400")))
		assert.Equal(t, "Rent (new lease)", e.Name)
	}

	changed.Kind = core.KindIncome
	_, err = f.templates.Update(ctx, rent.ID, changed, true)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.templates.Update(ctx, 999, rentTemplate(), true)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTemplateRescheduleReplacesFutureInstances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rent, err := f.templates.Create(ctx, rentTemplate())
	require.NoError(t, err)

	midMonth := rentTemplate()
	midMonth.DayOfMonth = intp(15)
	_, err = f.templates.Update(ctx, rent.ID, midMonth, true)
	require.NoError(t, err)

	april := expensesIn(t, f, 2024, 4)
	require.Len(t, april, 1, "the day 1 instance must not survive next to the day 15 one")
	assert.Equal(t, "2024-04-15", april[0].ScheduledDate)

	var march []string
	for _, e := range expensesIn(t, f, 2024, 3) {
		march = append(march, e.ScheduledDate)
	}
	assert.Contains(t, march, "2024-03-01", "instances before today stay")

	_, err = f.templates.Update(ctx, rent.ID, rentTemplate(), true)
	require.NoError(t, err)
	april = expensesIn(t, f, 2024, 4)
	require.Len(t, april, 1)
	assert.Equal(t, "2024-04-01", april[0].ScheduledDate, "a released date is generated again")
}

func TestTemplateDelete(t *testing.T) {
	tests := []struct {
		name          string
		deleteFuture  bool
		wantAprilRent int
	}{
		{"keep instances", false, 1},
		{"delete future instances", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			rent, err := f.templates.Create(ctx, rentTemplate())
			require.NoError(t, err)

			require.NoError(t, f.templates.Delete(ctx, rent.ID, tt.deleteFuture))

			assert.Len(t, expensesIn(t, f, 2024, 3), 1, "past instances always stay")
			assert.Len(t, expensesIn(t, f, 2024, 4), tt.wantAprilRent)

			_, err = f.templates.Get(ctx, rent.ID)
			assert.ErrorIs(t, err, storage.ErrNotFound)
			list, err := f.templates.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)
			assert.ErrorIs(t, f.templates.Delete(ctx, rent.ID, true), storage.ErrNotFound)
		})
	}
}

func TestTemplateCreateValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   core.ExpenseTemplate
		want error
	}{
		{"monthly without day", core.ExpenseTemplate{Name: "x", Amount: dec("1"), RecurrenceType: core.Monthly}, core.ErrInvalidDayOfMonth},
		{"weekly bad day", core.ExpenseTemplate{Name: "x", Amount: dec("1"), RecurrenceType: core.Weekly, DayOfWeek: intp(7)}, core.ErrInvalidDayOfWeek},
		{"unknown recurrence", core.ExpenseTemplate{Name: "x", Amount: dec("1"), RecurrenceType: "YEARLY"}, core.ErrInvalidRecurrence},
		{"bad kind", core.ExpenseTemplate{Name: "x", Amount: dec("1"), RecurrenceType: core.OneTime, Kind: "TRANSFER"}, core.ErrInvalidKind},
		{"blank name", core.ExpenseTemplate{Name: "  ", Amount: dec("1"), RecurrenceType: core.OneTime}, core.ErrEmptyName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.templates.Create(context.Background(), tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHasInstancesInMonth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rent, err := f.templates.Create(ctx, rentTemplate())
	require.NoError(t, err)

	has, err := f.templates.HasInstancesInMonth(ctx, rent.ID, 2024, 4)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = f.templates.HasInstancesInMonth(ctx, rent.ID, 2024, 16)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = f.templates.HasInstancesInMonth(ctx, 999, 2024, 4)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMaterializeReportsUnknownRecurrence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	daily, err := f.repo.CreateTemplate(ctx, core.ExpenseTemplate{
		Name: "Coffee", Amount: dec("4"), RecurrenceType: "DAILY", Kind: core.KindExpense, Active: true,
	})
	require.NoError(t, err)

	n, err := f.processor.MaterializeMonth(ctx, 2024, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "occurrences of template")
	assert.Zero(t, n)

	has, err := f.repo.HasTemplateInstances(ctx, daily.ID, 2024, 3)
	require.NoError(t, err)
	assert.False(t, has)
}
