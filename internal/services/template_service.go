package services

import (
	"context"
	"fmt"

	"budgetcal/internal/amqp"
	"budgetcal/internal/calendar"
	"budgetcal/internal/core"
	"budgetcal/internal/log"
	"budgetcal/internal/storage"
)

// TemplateService manages expense and income templates.
type TemplateService struct {
	repo        storage.Repository
	processor   *RecurringProcessor
	months      *MonthCache
	events      EventPublisher
	clock       calendar.Clock
	aheadMonths int
}

func NewTemplateService(repo storage.Repository, processor *RecurringProcessor, months *MonthCache, events EventPublisher, clock calendar.Clock, aheadMonths int) *TemplateService {
	if clock == nil {
		clock = calendar.SystemClock
	}
	return &TemplateService{
		repo:        repo,
		processor:   processor,
		months:      months,
		events:      events,
		clock:       clock,
		aheadMonths: aheadMonths,
	}
}

// List returns the active templates shown in the palette.
func (s *TemplateService) List(ctx context.Context) ([]core.ExpenseTemplate, error) {
	templates, err := s.repo.ListTemplates(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

func (s *TemplateService) Get(ctx context.Context, id int64) (core.ExpenseTemplate, error) {
	return s.repo.GetTemplate(ctx, id)
}

// Create stores an active template and materialises its upcoming instances.
func (s *TemplateService) Create(ctx context.Context, t core.ExpenseTemplate) (core.ExpenseTemplate, error) {
	t.ID = 0
	t.Active = true
	t.Normalize()
	if err := t.Validate(); err != nil {
		return core.ExpenseTemplate{}, invalid(err)
	}
	created, err := s.repo.CreateTemplate(ctx, t)
	if err != nil {
		return core.ExpenseTemplate{}, fmt.Errorf("create template: %w", err)
	}
	s.logger(ctx).InfoContext(ctx, "Template created",
		log.NewFields().WithTemplate(created.ID, created.Name, string(created.RecurrenceType)).ToSlice()...)

	s.materialize(ctx, created)
	notify(ctx, s.events, allMonths(amqp.EntityTemplate, amqp.ActionCreated, created.ID))
	return created, nil
}

// Update replaces the template. Live instances scheduled from today on take
// the new name and amount; with updateFutureOnly false every live instance
// does, past ones included. A schedule change always replaces the instances
// generated for today on with ones following the new rule.
func (s *TemplateService) Update(ctx context.Context, id int64, t core.ExpenseTemplate, updateFutureOnly bool) (core.ExpenseTemplate, error) {
	current, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return core.ExpenseTemplate{}, err
	}
	t.ID = id
	t.Active = current.Active
	if t.Kind == "" {
		t.Kind = current.Kind
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return core.ExpenseTemplate{}, invalid(err)
	}
	if t.Kind != current.Kind {
		return core.ExpenseTemplate{}, invalid(fmt.Errorf("%w: kind cannot change", core.ErrInvalidKind))
	}

	updated, err := s.repo.UpdateTemplate(ctx, t)
	if err != nil {
		return core.ExpenseTemplate{}, fmt.Errorf("update template: %w", err)
	}

	if scheduleChanged(current, updated) {
		released, err := s.repo.ReleaseFutureInstances(ctx, id, today(s.clock.Now()))
		if err != nil {
			return core.ExpenseTemplate{}, fmt.Errorf("release template instances: %w", err)
		}
		s.logger(ctx).InfoContext(ctx, "Template rescheduled",
			log.FieldTemplateID, id, log.FieldCount, released)
	}

	from := ""
	if updateFutureOnly {
		from = today(s.clock.Now())
	}
	n, err := s.repo.UpdateFutureInstances(ctx, updated, from)
	if err != nil {
		return core.ExpenseTemplate{}, fmt.Errorf("update template instances: %w", err)
	}
	s.logger(ctx).InfoContext(ctx, "Template updated",
		log.FieldTemplateID, id, log.FieldFromDate, from, log.FieldCount, n)

	s.materialize(ctx, updated)
	s.months.invalidateAll()
	notify(ctx, s.events, allMonths(amqp.EntityTemplate, amqp.ActionUpdated, id))
	return updated, nil
}

// Delete soft deletes the template, and with deleteFutureInstances its live
// instances scheduled from today on. Past instances always stay.
func (s *TemplateService) Delete(ctx context.Context, id int64, deleteFutureInstances bool) error {
	if err := s.repo.DeleteTemplate(ctx, id); err != nil {
		return err
	}
	var n int64
	if deleteFutureInstances {
		var err error
		n, err = s.repo.DeleteFutureInstances(ctx, id, today(s.clock.Now()))
		if err != nil {
			return fmt.Errorf("delete template instances: %w", err)
		}
	}
	s.logger(ctx).InfoContext(ctx, "Template deleted",
		log.FieldTemplateID, id, "future_instances_deleted", n)

	s.months.invalidateAll()
	notify(ctx, s.events, allMonths(amqp.EntityTemplate, amqp.ActionDeleted, id))
	return nil
}

// HasInstancesInMonth reports whether the template already has a live
// transaction in the month; the UI asks before a second drop.
func (s *TemplateService) HasInstancesInMonth(ctx context.Context, id int64, year, month int) (bool, error) {
	if _, err := s.repo.GetTemplate(ctx, id); err != nil {
		return false, err
	}
	year, month = calendar.Normalize(year, month)
	return s.repo.HasTemplateInstances(ctx, id, year, month)
}

func scheduleChanged(a, b core.ExpenseTemplate) bool {
	return a.RecurrenceType != b.RecurrenceType ||
		!sameDay(a.DayOfMonth, b.DayOfMonth) ||
		!sameDay(a.DayOfWeek, b.DayOfWeek) ||
		a.BiWeeklyStartDate != b.BiWeeklyStartDate
}

func sameDay(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *TemplateService) materialize(ctx context.Context, t core.ExpenseTemplate) {
	if s.processor == nil || !t.Active || t.RecurrenceType == core.OneTime {
		return
	}
	if _, err := s.processor.MaterializeTemplate(ctx, t, s.clock.Now(), s.aheadMonths); err != nil {
		s.logger(ctx).WarnContext(ctx, "Failed to materialize template",
			log.FieldTemplateID, t.ID, log.FieldError, err)
	}
}

func (s *TemplateService) logger(ctx context.Context) *log.Logger {
	return log.FromContext(ctx).WithComponent(log.ComponentTemplate)
}
