package services

import (
	"context"
	"fmt"
	"time"

	"budgetcal/internal/amqp"
	"budgetcal/internal/calendar"
	"budgetcal/internal/core"
	"budgetcal/internal/log"
	"budgetcal/internal/recurrence"
	"budgetcal/internal/storage"
)

// RecurringProcessor turns active templates into scheduled transactions.
// Every generated transaction records its origin date, so running the
// processor again, or after the user moved or deleted an instance, creates
// nothing new for that date.
type RecurringProcessor struct {
	repo   storage.Repository
	months *MonthCache
	events EventPublisher
}

func NewRecurringProcessor(repo storage.Repository, months *MonthCache, events EventPublisher) *RecurringProcessor {
	return &RecurringProcessor{repo: repo, months: months, events: events}
}

// MaterializeAhead materialises the month containing now and the next
// aheadMonths months. It returns how many transactions were created.
func (p *RecurringProcessor) MaterializeAhead(ctx context.Context, now time.Time, aheadMonths int) (int, error) {
	if p.repo == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}
	templates, err := p.repo.ListTemplates(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("list active templates: %w", err)
	}

	year, month := now.Year(), int(now.Month())
	total := 0
	for i := 0; i <= aheadMonths; i++ {
		y, m := calendar.Normalize(year, month+i)
		n, err := p.materialize(ctx, templates, y, m)
		total += n
		if err != nil {
			return total, err
		}
	}

	log.FromContext(ctx).WithComponent(log.ComponentRecurring).InfoContext(ctx, "Recurring templates materialized",
		log.FieldCount, total,
		"templates", len(templates),
		"from", calendar.YearMonth{Year: year, Month: month}.String(),
		"ahead_months", aheadMonths)
	return total, nil
}

// MaterializeMonth creates the missing instances of every active template
// for one month.
func (p *RecurringProcessor) MaterializeMonth(ctx context.Context, year, month int) (int, error) {
	templates, err := p.repo.ListTemplates(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("list active templates: %w", err)
	}
	year, month = calendar.Normalize(year, month)
	return p.materialize(ctx, templates, year, month)
}

// MaterializeTemplate creates the missing instances of a single template
// from the month containing now through aheadMonths later.
func (p *RecurringProcessor) MaterializeTemplate(ctx context.Context, t core.ExpenseTemplate, now time.Time, aheadMonths int) (int, error) {
	total := 0
	for i := 0; i <= aheadMonths; i++ {
		y, m := calendar.Normalize(now.Year(), int(now.Month())+i)
		n, err := p.materialize(ctx, []core.ExpenseTemplate{t}, y, m)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (p *RecurringProcessor) materialize(ctx context.Context, templates []core.ExpenseTemplate, year, month int) (int, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentRecurring)
	created := 0

	for _, t := range templates {
		dates, err := recurrence.Occurrences(t, year, month)
		if err != nil {
			return created, fmt.Errorf("occurrences of template %d: %w", t.ID, err)
		}
		for _, date := range dates {
			exists, err := p.repo.InstanceExists(ctx, t.ID, date)
			if err != nil {
				return created, fmt.Errorf("check instance of template %d on %s: %w", t.ID, date, err)
			}
			if exists {
				continue
			}
			if err := p.create(ctx, t, date); err != nil {
				logger.ErrorContext(ctx, "Failed to create instance from template",
					log.FieldTemplateID, t.ID, log.FieldDate, date, log.FieldError, err)
				continue
			}
			created++
			logger.DebugContext(ctx, "Created instance from template",
				log.FieldTemplateID, t.ID, log.FieldName, t.Name, log.FieldDate, date)
		}
	}

	if created > 0 {
		ym := calendar.YearMonth{Year: year, Month: month}
		p.months.invalidateFrom(ym)
		notify(ctx, p.events, amqp.NewBudgetChangedMessage(amqp.EntityTemplate, amqp.ActionCreated, 0, monthRef(ym)))
	}
	return created, nil
}

func (p *RecurringProcessor) create(ctx context.Context, t core.ExpenseTemplate, date string) error {
	origin := &storage.Origin{TemplateID: t.ID, Date: date}
	if t.Kind == core.KindIncome {
		i := core.ScheduledIncome{Name: t.Name, Amount: t.Amount}
		if err := i.SetDate(date); err != nil {
			return err
		}
		_, err := p.repo.CreateIncome(ctx, i, origin)
		return err
	}
	e := core.ScheduledExpense{Name: t.Name, Amount: t.Amount}
	if err := e.SetDate(date); err != nil {
		return err
	}
	_, err := p.repo.CreateExpense(ctx, e, origin)
	return err
}
