package services

import (
	"context"
	"errors"
	"fmt"

	"budgetcal/internal/amqp"
	"budgetcal/internal/calendar"
	"budgetcal/internal/log"
)

// ErrInvalidInput marks errors caused by the caller's data rather than by
// the system. The HTTP layer maps it to 422.
var ErrInvalidInput = errors.New("invalid input")

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

// EventPublisher sends BudgetChanged events. *amqp.Client implements it.
type EventPublisher interface {
	PublishBudgetChanged(ctx context.Context, msg *amqp.BudgetChangedMessage) error
}

// notify publishes best-effort: the change is already stored, so a broker
// failure is logged and swallowed.
func notify(ctx context.Context, pub EventPublisher, msg *amqp.BudgetChangedMessage) {
	if pub == nil {
		return
	}
	if err := pub.PublishBudgetChanged(ctx, msg); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Failed to publish budget change",
			log.FieldError, err,
			"entity", msg.Entity,
			"action", msg.Action,
			"id", msg.ID)
	}
}

func monthRef(ym calendar.YearMonth) amqp.MonthRef {
	return amqp.MonthRef{Year: ym.Year, Month: ym.Month}
}

func allMonths(entity, action string, id int64) *amqp.BudgetChangedMessage {
	msg := amqp.NewBudgetChangedMessage(entity, action, id)
	msg.AllMonths = true
	return msg
}
