package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"expensetracker/internal/core"
)

const EventExpenseCreated = "expense.created"

// ExpenseCreatedMessage carries a fully persisted expense so consumers never
// need to read back from the store.
type ExpenseCreatedMessage struct {
	Event     string       `json:"event"`
	Expense   core.Expense `json:"expense"`
	Timestamp time.Time    `json:"timestamp"`
}

func NewExpenseCreatedMessage(e core.Expense) *ExpenseCreatedMessage {
	return &ExpenseCreatedMessage{
		Event:     EventExpenseCreated,
		Expense:   e,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ExpenseCreatedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseCreatedMessageFromJSON decodes a message and rejects ones without
// an expense ID.
func ExpenseCreatedMessageFromJSON(data []byte) (*ExpenseCreatedMessage, error) {
	var msg ExpenseCreatedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Expense.ID == "" {
		return nil, errors.New("message has no expense id")
	}
	return &msg, nil
}
