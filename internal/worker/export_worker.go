package worker

import (
	"context"
	"errors"
	"fmt"

	"budgetcal/internal/amqp"
	"budgetcal/internal/calendar"
	"budgetcal/internal/log"
	"budgetcal/internal/services"
	"budgetcal/internal/sheets"
)

// MonthSource builds the calendar view of a month from current state.
type MonthSource interface {
	Calendar(ctx context.Context, year, month int) (services.CalendarView, error)
}

// ExportWorker keeps the spreadsheet copy of the budget in step with
// BudgetChanged events.
type ExportWorker struct {
	months      MonthSource
	exporter    sheets.MonthExporter
	clock       calendar.Clock
	aheadMonths int
}

func NewExportWorker(months MonthSource, exporter sheets.MonthExporter, clock calendar.Clock, aheadMonths int) *ExportWorker {
	if clock == nil {
		clock = calendar.SystemClock
	}
	return &ExportWorker{months: months, exporter: exporter, clock: clock, aheadMonths: aheadMonths}
}

// HandleBudgetChanged re-exports every month the change touched. A change
// that carries forward into all later months re-exports the current month
// and the months ahead, plus any month the message names explicitly.
// Returning an error requeues the message.
func (w *ExportWorker) HandleBudgetChanged(ctx context.Context, msg *amqp.BudgetChangedMessage) error {
	logger := log.FromContext(ctx).WithComponent(log.ComponentWorker)
	logger.InfoContext(ctx, "Processing budget changed message",
		"entity", msg.Entity,
		"action", msg.Action,
		"id", msg.ID,
		"all_months", msg.AllMonths)

	months := make([]calendar.YearMonth, 0, len(msg.Months))
	for _, m := range msg.Months {
		months = append(months, calendar.YearMonth{Year: m.Year, Month: m.Month})
	}
	if msg.AllMonths {
		months = append(months, w.window()...)
	}

	if err := w.ExportMonths(ctx, months); err != nil {
		return fmt.Errorf("export months for %s %s: %w", msg.Entity, msg.Action, err)
	}
	return nil
}

// ExportMonths rebuilds and exports each distinct month. Every month is
// attempted; the errors of the failed ones are joined.
func (w *ExportWorker) ExportMonths(ctx context.Context, months []calendar.YearMonth) error {
	logger := log.FromContext(ctx).WithComponent(log.ComponentWorker)
	seen := make(map[calendar.YearMonth]struct{}, len(months))
	var errs []error
	exported := 0

	for _, ym := range months {
		y, m := calendar.Normalize(ym.Year, ym.Month)
		ym = calendar.YearMonth{Year: y, Month: m}
		if _, dup := seen[ym]; dup {
			continue
		}
		seen[ym] = struct{}{}

		if err := w.exportMonth(ctx, ym); err != nil {
			logger.ErrorContext(ctx, "Failed to export month",
				log.FieldSheet, ym.String(),
				log.FieldError, err)
			errs = append(errs, err)
			continue
		}
		exported++
	}

	logger.InfoContext(ctx, "Months exported",
		log.FieldCount, exported,
		"failed", len(errs))
	return errors.Join(errs...)
}

// StartupExport exports the current month and the months ahead so a fresh
// spreadsheet, or one that missed events while the worker was down, catches up.
func (w *ExportWorker) StartupExport(ctx context.Context) error {
	return w.ExportMonths(ctx, w.window())
}

func (w *ExportWorker) exportMonth(ctx context.Context, ym calendar.YearMonth) error {
	view, err := w.months.Calendar(ctx, ym.Year, ym.Month)
	if err != nil {
		return fmt.Errorf("build calendar %s: %w", ym, err)
	}
	sheet := sheets.NewMonthSheet(view.Month, view.Opening, view.Closing, view.Totals)
	if err := w.exporter.ExportMonth(ctx, sheet); err != nil {
		return fmt.Errorf("export %s: %w", ym, err)
	}
	return nil
}

func (w *ExportWorker) window() []calendar.YearMonth {
	year, month := calendar.CurrentYearMonth(w.clock)
	out := make([]calendar.YearMonth, 0, w.aheadMonths+1)
	for i := 0; i <= w.aheadMonths; i++ {
		y, m := calendar.AdjacentMonth(year, month, i)
		out = append(out, calendar.YearMonth{Year: y, Month: m})
	}
	return out
}
