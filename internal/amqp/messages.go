package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entities that can change.
const (
	EntityExpense  = "expense"
	EntityIncome   = "income"
	EntityTemplate = "template"
	EntityAccount  = "account"
)

// Actions applied to an entity.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionMoved   = "moved"
	ActionDeleted = "deleted"
)

// MonthRef names a calendar month touched by a change.
type MonthRef struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (m MonthRef) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// BudgetChangedMessage tells consumers which months must be recomputed.
// It carries identifiers only; consumers read current state from storage.
// AllMonths is set when the change carries forward into every later month,
// such as a new starting balance or a template edit.
type BudgetChangedMessage struct {
	Entity    string     `json:"entity"`
	Action    string     `json:"action"`
	ID        int64      `json:"id"`
	Months    []MonthRef `json:"months,omitempty"`
	AllMonths bool       `json:"allMonths,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

func NewBudgetChangedMessage(entity, action string, id int64, months ...MonthRef) *BudgetChangedMessage {
	return &BudgetChangedMessage{
		Entity:    entity,
		Action:    action,
		ID:        id,
		Months:    dedupeMonths(months),
		Timestamp: time.Now(),
	}
}

func (m *BudgetChangedMessage) Validate() error {
	if m.Entity == "" || m.Action == "" {
		return fmt.Errorf("message missing entity or action")
	}
	if len(m.Months) == 0 && !m.AllMonths {
		return fmt.Errorf("message names no months")
	}
	return nil
}

func (m *BudgetChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetChangedMessageFromJSON(data []byte) (*BudgetChangedMessage, error) {
	var msg BudgetChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func dedupeMonths(in []MonthRef) []MonthRef {
	seen := make(map[MonthRef]struct{}, len(in))
	out := make([]MonthRef, 0, len(in))
	for _, m := range in {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
