package storage

import (
	"context"
	"database/sql"
	"fmt"

	"budgetcal/internal/core"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a row does not exist or was soft deleted.
var ErrNotFound = fmt.Errorf("not found: %w", sql.ErrNoRows)

// Origin ties a generated transaction to the template and date it was
// generated for. The pair stays fixed when the transaction is moved so the
// template never produces it a second time. An empty Date links the
// transaction to the template without claiming a schedule slot.
type Origin struct {
	TemplateID int64
	Date       string
}

// Repository is the persistence port used by the services.
type Repository interface {
	GetAccount(ctx context.Context) (core.Account, error)
	SaveAccount(ctx context.Context, a core.Account) (core.Account, error)

	ListTemplates(ctx context.Context, activeOnly bool) ([]core.ExpenseTemplate, error)
	GetTemplate(ctx context.Context, id int64) (core.ExpenseTemplate, error)
	CreateTemplate(ctx context.Context, t core.ExpenseTemplate) (core.ExpenseTemplate, error)
	UpdateTemplate(ctx context.Context, t core.ExpenseTemplate) (core.ExpenseTemplate, error)
	DeleteTemplate(ctx context.Context, id int64) error

	CreateExpense(ctx context.Context, e core.ScheduledExpense, origin *Origin) (core.ScheduledExpense, error)
	GetExpense(ctx context.Context, id int64) (core.ScheduledExpense, error)
	ListExpenses(ctx context.Context, year, month int) ([]core.ScheduledExpense, error)
	UpdateExpense(ctx context.Context, e core.ScheduledExpense) (core.ScheduledExpense, error)
	MoveExpense(ctx context.Context, id int64, dateKey string) (core.ScheduledExpense, error)
	DeleteExpense(ctx context.Context, id int64) error
	SumExpensesBefore(ctx context.Context, dateKey string) (decimal.Decimal, error)

	CreateIncome(ctx context.Context, i core.ScheduledIncome, origin *Origin) (core.ScheduledIncome, error)
	GetIncome(ctx context.Context, id int64) (core.ScheduledIncome, error)
	ListIncome(ctx context.Context, year, month int) ([]core.ScheduledIncome, error)
	UpdateIncome(ctx context.Context, i core.ScheduledIncome) (core.ScheduledIncome, error)
	MoveIncome(ctx context.Context, id int64, dateKey string) (core.ScheduledIncome, error)
	DeleteIncome(ctx context.Context, id int64) error
	SumIncomeBefore(ctx context.Context, dateKey string) (decimal.Decimal, error)

	// HasTemplateInstances reports whether a live transaction of the template
	// is scheduled in the month.
	HasTemplateInstances(ctx context.Context, templateID int64, year, month int) (bool, error)
	// InstanceExists reports whether the template was ever materialised for
	// originDate, including instances that were later moved or deleted.
	InstanceExists(ctx context.Context, templateID int64, originDate string) (bool, error)
	// DeleteFutureInstances soft deletes live instances scheduled on or after fromDate.
	DeleteFutureInstances(ctx context.Context, templateID int64, fromDate string) (int64, error)
	// ReleaseFutureInstances soft deletes the instances generated for origin
	// dates on or after fromDate and frees those dates, so a changed schedule
	// can materialise them again.
	ReleaseFutureInstances(ctx context.Context, templateID int64, fromDate string) (int64, error)
	// UpdateFutureInstances copies name and amount onto live instances
	// scheduled on or after fromDate.
	UpdateFutureInstances(ctx context.Context, t core.ExpenseTemplate, fromDate string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
