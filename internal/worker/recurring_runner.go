package worker

import (
	"context"
	"time"

	"budgetcal/internal/calendar"
	"budgetcal/internal/log"
)

// Materializer creates the missing instances of recurring templates.
type Materializer interface {
	MaterializeAhead(ctx context.Context, now time.Time, aheadMonths int) (int, error)
}

// RecurringRunner materialises recurring templates on startup and then on a
// fixed interval.
type RecurringRunner struct {
	processor   Materializer
	clock       calendar.Clock
	interval    time.Duration
	aheadMonths int
}

func NewRecurringRunner(processor Materializer, clock calendar.Clock, interval time.Duration, aheadMonths int) *RecurringRunner {
	if clock == nil {
		clock = calendar.SystemClock
	}
	return &RecurringRunner{processor: processor, clock: clock, interval: interval, aheadMonths: aheadMonths}
}

// RunOnce materialises the current month and the months ahead.
func (r *RecurringRunner) RunOnce(ctx context.Context) (int, error) {
	return r.processor.MaterializeAhead(ctx, r.clock.Now(), r.aheadMonths)
}

// Run blocks until ctx is done. Failures are logged and retried on the next
// tick.
func (r *RecurringRunner) Run(ctx context.Context) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentRecurring)
	logger.InfoContext(ctx, "Recurring template processor configured",
		"interval", r.interval,
		"ahead_months", r.aheadMonths)

	r.tick(ctx, logger)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "Recurring template processor stopped")
			return
		case <-ticker.C:
			r.tick(ctx, logger)
		}
	}
}

func (r *RecurringRunner) tick(ctx context.Context, logger *log.Logger) {
	count, err := r.RunOnce(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Recurring processing failed",
			log.FieldOperation, log.OpMaterialize,
			log.FieldError, err)
		return
	}
	logger.InfoContext(ctx, "Recurring processing complete",
		log.FieldCount, count,
		"next_check", r.clock.Now().Add(r.interval).Format("15:04:05"))
}
