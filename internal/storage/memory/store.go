// Package memory is an in-process storage.Repository for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"budgetcal/internal/core"
	"budgetcal/internal/storage"

	"github.com/shopspring/decimal"
)

type instance struct {
	origin  *storage.Origin
	deleted bool
}

type expenseRow struct {
	instance
	e core.ScheduledExpense
}

type incomeRow struct {
	instance
	i core.ScheduledIncome
}

type templateRow struct {
	t       core.ExpenseTemplate
	deleted bool
}

type Store struct {
	mu        sync.Mutex
	nextID    int64
	account   *core.Account
	templates map[int64]*templateRow
	expenses  map[int64]*expenseRow
	income    map[int64]*incomeRow
}

var _ storage.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		templates: map[int64]*templateRow{},
		expenses:  map[int64]*expenseRow{},
		income:    map[int64]*incomeRow{},
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) GetAccount(context.Context) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return core.Account{}, fmt.Errorf("get account: %w", storage.ErrNotFound)
	}
	return *s.account, nil
}

func (s *Store) SaveAccount(_ context.Context, a core.Account) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = 1
	s.account = &a
	return a, nil
}

func (s *Store) ListTemplates(_ context.Context, activeOnly bool) ([]core.ExpenseTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.ExpenseTemplate{}
	for _, row := range s.templates {
		if row.deleted || (activeOnly && !row.t.Active) {
			continue
		}
		out = append(out, row.t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetTemplate(_ context.Context, id int64) (core.ExpenseTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.templates[id]
	if !ok || row.deleted {
		return core.ExpenseTemplate{}, fmt.Errorf("get template %d: %w", id, storage.ErrNotFound)
	}
	return row.t, nil
}

func (s *Store) CreateTemplate(_ context.Context, t core.ExpenseTemplate) (core.ExpenseTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	s.templates[t.ID] = &templateRow{t: t}
	return t, nil
}

func (s *Store) UpdateTemplate(_ context.Context, t core.ExpenseTemplate) (core.ExpenseTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.templates[t.ID]
	if !ok || row.deleted {
		return core.ExpenseTemplate{}, fmt.Errorf("update template %d: %w", t.ID, storage.ErrNotFound)
	}
	row.t = t
	return t, nil
}

func (s *Store) DeleteTemplate(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.templates[id]
	if !ok || row.deleted {
		return fmt.Errorf("delete template %d: %w", id, storage.ErrNotFound)
	}
	row.deleted = true
	row.t.Active = false
	return nil
}

// withTemplate attaches the live template back-reference. Callers hold mu.
func (s *Store) withTemplate(row *expenseRow) core.ScheduledExpense {
	e := row.e
	e.Template = nil
	if row.origin != nil {
		if t, ok := s.templates[row.origin.TemplateID]; ok && !t.deleted {
			tc := t.t
			e.Template = &tc
		}
	}
	return e
}

func (s *Store) CreateExpense(_ context.Context, e core.ScheduledExpense, origin *storage.Origin) (core.ScheduledExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if origin != nil && origin.Date != "" && s.instanceExists(origin.TemplateID, origin.Date) {
		return core.ScheduledExpense{}, fmt.Errorf("create expense: duplicate instance of template %d on %s", origin.TemplateID, origin.Date)
	}
	e.ID = s.id()
	row := &expenseRow{instance: instance{origin: copyOrigin(origin)}, e: e}
	s.expenses[e.ID] = row
	return s.withTemplate(row), nil
}

func (s *Store) GetExpense(_ context.Context, id int64) (core.ScheduledExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.expenses[id]
	if !ok || row.deleted {
		return core.ScheduledExpense{}, fmt.Errorf("get expense %d: %w", id, storage.ErrNotFound)
	}
	return s.withTemplate(row), nil
}

func (s *Store) ListExpenses(_ context.Context, year, month int) ([]core.ScheduledExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.ScheduledExpense
	for _, row := range s.expenses {
		if row.deleted || row.e.YearValue != year || row.e.MonthValue != month {
			continue
		}
		out = append(out, s.withTemplate(row))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledDate != out[j].ScheduledDate {
			return out[i].ScheduledDate < out[j].ScheduledDate
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.ScheduledExpense) (core.ScheduledExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.expenses[e.ID]
	if !ok || row.deleted {
		return core.ScheduledExpense{}, fmt.Errorf("update expense %d: %w", e.ID, storage.ErrNotFound)
	}
	row.e.Name, row.e.Amount = e.Name, e.Amount
	row.e.ScheduledDate, row.e.YearValue, row.e.MonthValue = e.ScheduledDate, e.YearValue, e.MonthValue
	return s.withTemplate(row), nil
}

func (s *Store) MoveExpense(_ context.Context, id int64, dateKey string) (core.ScheduledExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.expenses[id]
	if !ok || row.deleted {
		return core.ScheduledExpense{}, fmt.Errorf("move expense %d: %w", id, storage.ErrNotFound)
	}
	if err := row.e.SetDate(dateKey); err != nil {
		return core.ScheduledExpense{}, err
	}
	return s.withTemplate(row), nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.expenses[id]
	if !ok || row.deleted {
		return fmt.Errorf("delete expense %d: %w", id, storage.ErrNotFound)
	}
	row.deleted = true
	return nil
}

func (s *Store) SumExpensesBefore(_ context.Context, dateKey string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, row := range s.expenses {
		if !row.deleted && row.e.ScheduledDate < dateKey {
			total = total.Add(row.e.Amount)
		}
	}
	return total, nil
}

func (s *Store) CreateIncome(_ context.Context, i core.ScheduledIncome, origin *storage.Origin) (core.ScheduledIncome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if origin != nil && origin.Date != "" && s.instanceExists(origin.TemplateID, origin.Date) {
		return core.ScheduledIncome{}, fmt.Errorf("create income: duplicate instance of template %d on %s", origin.TemplateID, origin.Date)
	}
	i.ID = s.id()
	s.income[i.ID] = &incomeRow{instance: instance{origin: copyOrigin(origin)}, i: i}
	return i, nil
}

func (s *Store) GetIncome(_ context.Context, id int64) (core.ScheduledIncome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.income[id]
	if !ok || row.deleted {
		return core.ScheduledIncome{}, fmt.Errorf("get income %d: %w", id, storage.ErrNotFound)
	}
	return row.i, nil
}

func (s *Store) ListIncome(_ context.Context, year, month int) ([]core.ScheduledIncome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.ScheduledIncome
	for _, row := range s.income {
		if row.deleted || row.i.YearValue != year || row.i.MonthValue != month {
			continue
		}
		out = append(out, row.i)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].ScheduledDate != out[b].ScheduledDate {
			return out[a].ScheduledDate < out[b].ScheduledDate
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

func (s *Store) UpdateIncome(_ context.Context, i core.ScheduledIncome) (core.ScheduledIncome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.income[i.ID]
	if !ok || row.deleted {
		return core.ScheduledIncome{}, fmt.Errorf("update income %d: %w", i.ID, storage.ErrNotFound)
	}
	row.i = i
	return i, nil
}

func (s *Store) MoveIncome(_ context.Context, id int64, dateKey string) (core.ScheduledIncome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.income[id]
	if !ok || row.deleted {
		return core.ScheduledIncome{}, fmt.Errorf("move income %d: %w", id, storage.ErrNotFound)
	}
	if err := row.i.SetDate(dateKey); err != nil {
		return core.ScheduledIncome{}, err
	}
	return row.i, nil
}

func (s *Store) DeleteIncome(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.income[id]
	if !ok || row.deleted {
		return fmt.Errorf("delete income %d: %w", id, storage.ErrNotFound)
	}
	row.deleted = true
	return nil
}

func (s *Store) SumIncomeBefore(_ context.Context, dateKey string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, row := range s.income {
		if !row.deleted && row.i.ScheduledDate < dateKey {
			total = total.Add(row.i.Amount)
		}
	}
	return total, nil
}

func (s *Store) HasTemplateInstances(_ context.Context, templateID int64, year, month int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.expenses {
		if !row.deleted && row.origin != nil && row.origin.TemplateID == templateID &&
			row.e.YearValue == year && row.e.MonthValue == month {
			return true, nil
		}
	}
	for _, row := range s.income {
		if !row.deleted && row.origin != nil && row.origin.TemplateID == templateID &&
			row.i.YearValue == year && row.i.MonthValue == month {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) InstanceExists(_ context.Context, templateID int64, originDate string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instanceExists(templateID, originDate), nil
}

func (s *Store) instanceExists(templateID int64, originDate string) bool {
	match := func(o *storage.Origin) bool {
		return o != nil && o.Date != "" && o.TemplateID == templateID && o.Date == originDate
	}
	for _, row := range s.expenses {
		if match(row.origin) {
			return true
		}
	}
	for _, row := range s.income {
		if match(row.origin) {
			return true
		}
	}
	return false
}

func (s *Store) DeleteFutureInstances(_ context.Context, templateID int64, fromDate string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.expenses {
		if isFuture(row.instance, templateID, row.e.ScheduledDate, fromDate) {
			row.deleted = true
			n++
		}
	}
	for _, row := range s.income {
		if isFuture(row.instance, templateID, row.i.ScheduledDate, fromDate) {
			row.deleted = true
			n++
		}
	}
	return n, nil
}

func (s *Store) ReleaseFutureInstances(_ context.Context, templateID int64, fromDate string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	release := func(in *instance) bool {
		o := in.origin
		if o == nil || o.Date == "" || o.TemplateID != templateID || o.Date < fromDate {
			return false
		}
		in.deleted = true
		in.origin = &storage.Origin{TemplateID: templateID}
		return true
	}
	var n int64
	for _, row := range s.expenses {
		if release(&row.instance) {
			n++
		}
	}
	for _, row := range s.income {
		if release(&row.instance) {
			n++
		}
	}
	return n, nil
}

func (s *Store) UpdateFutureInstances(_ context.Context, t core.ExpenseTemplate, fromDate string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.expenses {
		if isFuture(row.instance, t.ID, row.e.ScheduledDate, fromDate) {
			row.e.Name, row.e.Amount = t.Name, t.Amount
			n++
		}
	}
	for _, row := range s.income {
		if isFuture(row.instance, t.ID, row.i.ScheduledDate, fromDate) {
			row.i.Name, row.i.Amount = t.Name, t.Amount
			n++
		}
	}
	return n, nil
}

func isFuture(in instance, templateID int64, date, fromDate string) bool {
	return !in.deleted && in.origin != nil && in.origin.TemplateID == templateID &&
		strings.Compare(date, fromDate) >= 0
}

func copyOrigin(o *storage.Origin) *storage.Origin {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}
