package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"budgetcal/internal/amqp"
	"budgetcal/internal/calendar"
	"budgetcal/internal/core"
	"budgetcal/internal/services"
	"budgetcal/internal/sheets/memory"
	storemem "budgetcal/internal/storage/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

var fixedClock = calendar.ClockFunc(func() time.Time { return fixedNow })

func newBudget(t *testing.T) *services.BudgetService {
	t.Helper()
	repo := storemem.New()
	accounts := services.NewAccountService(repo, nil, nil)
	return services.NewBudgetService(repo, accounts, nil, nil)
}

func TestHandleBudgetChangedExportsNamedMonths(t *testing.T) {
	ctx := context.Background()
	budget := newBudget(t)
	_, err := budget.CreateExpense(ctx, services.NewTransaction{Name: "Rent", Amount: decimal.NewFromInt(1200), ScheduledDate: "2024-03-01"})
	require.NoError(t, err)

	out := memory.New()
	w := NewExportWorker(budget, out, fixedClock, 1)

	msg := amqp.NewBudgetChangedMessage(amqp.EntityExpense, amqp.ActionMoved, 1,
		amqp.MonthRef{Year: 2024, Month: 3},
		amqp.MonthRef{Year: 2024, Month: 15})
	require.NoError(t, w.HandleBudgetChanged(ctx, msg))

	assert.Equal(t, []string{"2024-03", "2025-03"}, out.Tabs())
	rows, ok := out.Tab("2024-03")
	require.True(t, ok)
	assert.Equal(t, []any{"Closing balance", "-$1,200"}, rows[5])
}

func TestHandleBudgetChangedAllMonths(t *testing.T) {
	out := memory.New()
	w := NewExportWorker(newBudget(t), out, fixedClock, 2)

	msg := &amqp.BudgetChangedMessage{
		Entity:    amqp.EntityAccount,
		Action:    amqp.ActionUpdated,
		AllMonths: true,
		Months:    []amqp.MonthRef{{Year: 2024, Month: 4}, {Year: 2023, Month: 12}},
	}
	require.NoError(t, w.HandleBudgetChanged(context.Background(), msg))

	assert.Equal(t, []string{"2023-12", "2024-03", "2024-04", "2024-05"}, out.Tabs())
	assert.Equal(t, 1, out.Exports("2024-04"), "duplicate months export once")
}

func TestHandleBudgetChangedReportsFailures(t *testing.T) {
	out := memory.New()
	boom := errors.New("quota exceeded")
	out.FailWith(boom)
	w := NewExportWorker(newBudget(t), out, fixedClock, 0)

	msg := amqp.NewBudgetChangedMessage(amqp.EntityIncome, amqp.ActionCreated, 9,
		amqp.MonthRef{Year: 2024, Month: 1}, amqp.MonthRef{Year: 2024, Month: 2})
	err := w.HandleBudgetChanged(context.Background(), msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

type failingSource struct {
	mu    sync.Mutex
	calls []calendar.YearMonth
}

func (s *failingSource) Calendar(_ context.Context, year, month int) (services.CalendarView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, calendar.YearMonth{Year: year, Month: month})
	if month == 1 {
		return services.CalendarView{}, errors.New("database is locked")
	}
	return services.CalendarView{Month: calendar.NewMonth(year, month, core.MonthlyBudget{})}, nil
}

func TestExportMonthsAttemptsEveryMonth(t *testing.T) {
	src := &failingSource{}
	out := memory.New()
	w := NewExportWorker(src, out, fixedClock, 0)

	err := w.ExportMonths(context.Background(), []calendar.YearMonth{
		{Year: 2024, Month: 1},
		{Year: 2024, Month: 2},
		{Year: 2023, Month: 14},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Len(t, src.calls, 2, "2023-14 is 2024-02 and is built once")
	assert.Equal(t, []string{"2024-02"}, out.Tabs())
}

func TestStartupExport(t *testing.T) {
	out := memory.New()
	w := NewExportWorker(newBudget(t), out, calendar.ClockFunc(func() time.Time {
		return time.Date(2024, 11, 30, 23, 0, 0, 0, time.UTC)
	}), 2)

	require.NoError(t, w.StartupExport(context.Background()))
	assert.Equal(t, []string{"2024-11", "2024-12", "2025-01"}, out.Tabs())
}

type countingMaterializer struct {
	calls atomic.Int32
	now   atomic.Value
	ahead atomic.Int32
	err   error
}

func (m *countingMaterializer) MaterializeAhead(_ context.Context, now time.Time, aheadMonths int) (int, error) {
	m.calls.Add(1)
	m.now.Store(now)
	m.ahead.Store(int32(aheadMonths))
	return 2, m.err
}

func TestRecurringRunnerRunOnce(t *testing.T) {
	m := &countingMaterializer{}
	r := NewRecurringRunner(m, fixedClock, time.Hour, 3)

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, fixedNow, m.now.Load())
	assert.EqualValues(t, 3, m.ahead.Load())
}

func TestRecurringRunnerTicksUntilCancelled(t *testing.T) {
	m := &countingMaterializer{err: errors.New("transient")}
	r := NewRecurringRunner(m, fixedClock, 5*time.Millisecond, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return m.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond,
		"failures must not stop the runner")
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
