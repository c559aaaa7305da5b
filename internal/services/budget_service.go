package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budgetcal/internal/amqp"
	"budgetcal/internal/calendar"
	"budgetcal/internal/core"
	"budgetcal/internal/ledger"
	"budgetcal/internal/log"
	"budgetcal/internal/storage"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// BudgetService reads monthly budgets and edits scheduled transactions.
type BudgetService struct {
	repo     storage.Repository
	accounts *AccountService
	months   *MonthCache
	events   EventPublisher
}

func NewBudgetService(repo storage.Repository, accounts *AccountService, months *MonthCache, events EventPublisher) *BudgetService {
	return &BudgetService{repo: repo, accounts: accounts, months: months, events: events}
}

// CalendarView is a month grid plus the figures shown around it.
type CalendarView struct {
	calendar.Month
	Opening decimal.Decimal `json:"openingBalance"`
	Closing decimal.Decimal `json:"closingBalance"`
	Totals  ledger.Totals   `json:"totals"`
}

// TransactionPatch carries the optional fields of a PATCH request.
type TransactionPatch struct {
	Name          *string          `json:"name,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	ScheduledDate *string          `json:"scheduledDate,omitempty"`
}

// NewTransaction is the body for creating a one-off expense or income.
type NewTransaction struct {
	Name          string          `json:"name"`
	Amount        decimal.Decimal `json:"amount"`
	ScheduledDate string          `json:"scheduledDate"`
}

// TemplateDrop is the result of placing a template on a date: exactly one
// of Expense and Income is set, depending on the template's kind.
type TemplateDrop struct {
	Expense *core.ScheduledExpense
	Income  *core.ScheduledIncome
}

// MonthlyBudget returns the month's transactions and end-of-day balances.
// Out-of-range months are normalised first.
func (s *BudgetService) MonthlyBudget(ctx context.Context, year, month int) (core.MonthlyBudget, error) {
	budget, _, err := s.load(ctx, year, month)
	return budget, err
}

func (s *BudgetService) DailyBalances(ctx context.Context, year, month int) (map[string]decimal.Decimal, error) {
	budget, err := s.MonthlyBudget(ctx, year, month)
	if err != nil {
		return nil, err
	}
	return budget.DailyBalances, nil
}

// Calendar builds the month grid with navigation and totals.
func (s *BudgetService) Calendar(ctx context.Context, year, month int) (CalendarView, error) {
	budget, opening, err := s.load(ctx, year, month)
	if err != nil {
		return CalendarView{}, err
	}
	m := calendar.NewMonth(year, month, budget)
	return CalendarView{
		Month:   m,
		Opening: opening,
		Closing: ledger.Closing(m.Year, m.Month, opening, budget.DailyBalances),
		Totals:  ledger.MonthTotals(budget.Expenses, budget.Income),
	}, nil
}

func (s *BudgetService) load(ctx context.Context, year, month int) (core.MonthlyBudget, decimal.Decimal, error) {
	year, month = calendar.Normalize(year, month)
	ym := calendar.YearMonth{Year: year, Month: month}
	first := calendar.DateKey(year, month, 1)

	if cached, ok := s.months.get(ym); ok {
		return cached, openingOf(cached, first), nil
	}
	gen := s.months.generation()

	var (
		expenses                      []core.ScheduledExpense
		income                        []core.ScheduledIncome
		starting, inBefore, outBefore decimal.Decimal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		expenses, err = s.repo.ListExpenses(gctx, year, month)
		return err
	})
	g.Go(func() (err error) {
		income, err = s.repo.ListIncome(gctx, year, month)
		return err
	})
	g.Go(func() (err error) {
		starting, err = s.accounts.StartingBalance(gctx)
		return err
	})
	g.Go(func() (err error) {
		inBefore, err = s.repo.SumIncomeBefore(gctx, first)
		return err
	})
	g.Go(func() (err error) {
		outBefore, err = s.repo.SumExpensesBefore(gctx, first)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.MonthlyBudget{}, decimal.Zero, fmt.Errorf("load month %s: %w", ym, err)
	}

	if expenses == nil {
		expenses = []core.ScheduledExpense{}
	}
	if income == nil {
		income = []core.ScheduledIncome{}
	}
	opening := ledger.Opening(starting, inBefore, outBefore)
	budget := core.MonthlyBudget{
		Expenses:      expenses,
		Income:        income,
		DailyBalances: ledger.DailyBalances(year, month, opening, expenses, income),
	}
	cached := s.months.set(ym, budget, gen)

	log.FromContext(ctx).WithComponent(log.ComponentBudget).DebugContext(ctx, "Monthly budget computed",
		log.FieldYear, year, log.FieldMonth, month,
		"expenses", len(expenses), "income", len(income), "cached", cached)
	return budget, opening, nil
}

// openingOf recovers the opening balance from a cached month: the first
// day's closing balance minus that day's net flow.
func openingOf(b core.MonthlyBudget, firstDay string) decimal.Decimal {
	opening := b.DailyBalances[firstDay]
	for _, e := range b.Expenses {
		if e.ScheduledDate == firstDay {
			opening = opening.Add(e.Amount)
		}
	}
	for _, i := range b.Income {
		if i.ScheduledDate == firstDay {
			opening = opening.Sub(i.Amount)
		}
	}
	return opening
}

// CreateExpenseFromTemplate places a template on dateKey. Income templates
// produce scheduled income, everything else a scheduled expense.
func (s *BudgetService) CreateExpenseFromTemplate(ctx context.Context, templateID int64, dateKey string) (TemplateDrop, error) {
	if _, err := core.ParseDateKey(dateKey); err != nil {
		return TemplateDrop{}, invalid(err)
	}
	t, err := s.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return TemplateDrop{}, fmt.Errorf("get template %d: %w", templateID, err)
	}

	// Manual placements keep the template link but take no origin slot, so
	// they never block the template's own schedule.
	origin := &storage.Origin{TemplateID: t.ID}

	if t.Kind == core.KindIncome {
		i := core.ScheduledIncome{Name: t.Name, Amount: t.Amount}
		if err := i.SetDate(dateKey); err != nil {
			return TemplateDrop{}, invalid(err)
		}
		created, err := s.repo.CreateIncome(ctx, i, origin)
		if err != nil {
			return TemplateDrop{}, fmt.Errorf("create income from template: %w", err)
		}
		s.changed(ctx, amqp.EntityIncome, amqp.ActionCreated, created.ID, dateKey)
		return TemplateDrop{Income: &created}, nil
	}

	e := core.ScheduledExpense{Name: t.Name, Amount: t.Amount}
	if err := e.SetDate(dateKey); err != nil {
		return TemplateDrop{}, invalid(err)
	}
	created, err := s.repo.CreateExpense(ctx, e, origin)
	if err != nil {
		return TemplateDrop{}, fmt.Errorf("create expense from template: %w", err)
	}
	s.changed(ctx, amqp.EntityExpense, amqp.ActionCreated, created.ID, dateKey)
	return TemplateDrop{Expense: &created}, nil
}

func (s *BudgetService) MoveExpense(ctx context.Context, id int64, newDate string) (core.ScheduledExpense, error) {
	if _, err := core.ParseDateKey(newDate); err != nil {
		return core.ScheduledExpense{}, invalid(err)
	}
	old, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return core.ScheduledExpense{}, err
	}
	moved, err := s.repo.MoveExpense(ctx, id, newDate)
	if err != nil {
		return core.ScheduledExpense{}, fmt.Errorf("move expense: %w", err)
	}
	s.changed(ctx, amqp.EntityExpense, amqp.ActionMoved, id, old.ScheduledDate, newDate)
	return moved, nil
}

func (s *BudgetService) MoveIncome(ctx context.Context, id int64, newDate string) (core.ScheduledIncome, error) {
	if _, err := core.ParseDateKey(newDate); err != nil {
		return core.ScheduledIncome{}, invalid(err)
	}
	old, err := s.repo.GetIncome(ctx, id)
	if err != nil {
		return core.ScheduledIncome{}, err
	}
	moved, err := s.repo.MoveIncome(ctx, id, newDate)
	if err != nil {
		return core.ScheduledIncome{}, fmt.Errorf("move income: %w", err)
	}
	s.changed(ctx, amqp.EntityIncome, amqp.ActionMoved, id, old.ScheduledDate, newDate)
	return moved, nil
}

func (s *BudgetService) CreateExpense(ctx context.Context, in NewTransaction) (core.ScheduledExpense, error) {
	e := core.ScheduledExpense{Name: in.Name, Amount: in.Amount, ScheduledDate: in.ScheduledDate}
	if err := e.Validate(); err != nil {
		return core.ScheduledExpense{}, invalid(err)
	}
	if err := e.SetDate(in.ScheduledDate); err != nil {
		return core.ScheduledExpense{}, invalid(err)
	}
	created, err := s.repo.CreateExpense(ctx, e, nil)
	if err != nil {
		return core.ScheduledExpense{}, fmt.Errorf("create expense: %w", err)
	}
	s.changed(ctx, amqp.EntityExpense, amqp.ActionCreated, created.ID, created.ScheduledDate)
	return created, nil
}

func (s *BudgetService) UpdateExpense(ctx context.Context, id int64, patch TransactionPatch) (core.ScheduledExpense, error) {
	e, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return core.ScheduledExpense{}, err
	}
	oldDate := e.ScheduledDate
	if err := applyPatch(patch, &e.Name, &e.Amount, &e.ScheduledDate); err != nil {
		return core.ScheduledExpense{}, err
	}
	if err := e.Validate(); err != nil {
		return core.ScheduledExpense{}, invalid(err)
	}
	if err := e.SetDate(e.ScheduledDate); err != nil {
		return core.ScheduledExpense{}, invalid(err)
	}
	updated, err := s.repo.UpdateExpense(ctx, e)
	if err != nil {
		return core.ScheduledExpense{}, fmt.Errorf("update expense: %w", err)
	}
	s.changed(ctx, amqp.EntityExpense, amqp.ActionUpdated, id, oldDate, updated.ScheduledDate)
	return updated, nil
}

func (s *BudgetService) DeleteExpense(ctx context.Context, id int64) error {
	e, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.changed(ctx, amqp.EntityExpense, amqp.ActionDeleted, id, e.ScheduledDate)
	return nil
}

func (s *BudgetService) CreateIncome(ctx context.Context, in NewTransaction) (core.ScheduledIncome, error) {
	i := core.ScheduledIncome{Name: in.Name, Amount: in.Amount, ScheduledDate: in.ScheduledDate}
	if err := i.Validate(); err != nil {
		return core.ScheduledIncome{}, invalid(err)
	}
	if err := i.SetDate(in.ScheduledDate); err != nil {
		return core.ScheduledIncome{}, invalid(err)
	}
	created, err := s.repo.CreateIncome(ctx, i, nil)
	if err != nil {
		return core.ScheduledIncome{}, fmt.Errorf("create income: %w", err)
	}
	s.changed(ctx, amqp.EntityIncome, amqp.ActionCreated, created.ID, created.ScheduledDate)
	return created, nil
}

func (s *BudgetService) UpdateIncome(ctx context.Context, id int64, patch TransactionPatch) (core.ScheduledIncome, error) {
	i, err := s.repo.GetIncome(ctx, id)
	if err != nil {
		return core.ScheduledIncome{}, err
	}
	oldDate := i.ScheduledDate
	if err := applyPatch(patch, &i.Name, &i.Amount, &i.ScheduledDate); err != nil {
		return core.ScheduledIncome{}, err
	}
	if err := i.Validate(); err != nil {
		return core.ScheduledIncome{}, invalid(err)
	}
	if err := i.SetDate(i.ScheduledDate); err != nil {
		return core.ScheduledIncome{}, invalid(err)
	}
	updated, err := s.repo.UpdateIncome(ctx, i)
	if err != nil {
		return core.ScheduledIncome{}, fmt.Errorf("update income: %w", err)
	}
	s.changed(ctx, amqp.EntityIncome, amqp.ActionUpdated, id, oldDate, updated.ScheduledDate)
	return updated, nil
}

func (s *BudgetService) DeleteIncome(ctx context.Context, id int64) error {
	i, err := s.repo.GetIncome(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteIncome(ctx, id); err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	s.changed(ctx, amqp.EntityIncome, amqp.ActionDeleted, id, i.ScheduledDate)
	return nil
}

var errEmptyPatch = errors.New("no fields to update")

func applyPatch(p TransactionPatch, name *string, amount *decimal.Decimal, date *string) error {
	if p.Name == nil && p.Amount == nil && p.ScheduledDate == nil {
		return invalid(errEmptyPatch)
	}
	if p.Name != nil {
		*name = *p.Name
	}
	if p.Amount != nil {
		*amount = *p.Amount
	}
	if p.ScheduledDate != nil {
		*date = *p.ScheduledDate
	}
	return nil
}

// changed invalidates the months of dates (and every later month) and
// publishes the change.
func (s *BudgetService) changed(ctx context.Context, entity, action string, id int64, dates ...string) {
	months := make([]calendar.YearMonth, 0, len(dates))
	refs := make([]amqp.MonthRef, 0, len(dates))
	for _, d := range dates {
		ym := yearMonthOf(d)
		months = append(months, ym)
		refs = append(refs, monthRef(ym))
	}
	dropped := s.months.invalidateFrom(months...)

	log.FromContext(ctx).WithComponent(log.ComponentBudget).InfoContext(ctx, "Budget changed",
		"entity", entity, "action", action, "id", id, "dates", dates, "cache_dropped", dropped)
	notify(ctx, s.events, amqp.NewBudgetChangedMessage(entity, action, id, refs...))
}

// Today's date key in the server's local time.
func today(now time.Time) string {
	return core.FormatDateKey(now)
}
