package amqp

import (
	"encoding/json"
	"time"

	"dues/internal/core"
)

// Routing keys on the topic exchange.
const (
	RoutingPaymentRecorded = "payment.recorded"
	RoutingExpenseDeleted  = "expense.deleted"
	RoutingDueReminder     = "due.reminder"
)

// PaymentRecordedMessage announces that an occurrence of an expense was paid.
type PaymentRecordedMessage struct {
	PaymentID        int64     `json:"payment_id"`
	Expense          string    `json:"expense"`
	PaidAt           time.Time `json:"paid_at"`
	DueDateOfExpense time.Time `json:"due_date_of_expense"`
	Timestamp        time.Time `json:"timestamp"`
}

func NewPaymentRecordedMessage(p core.Payment) *PaymentRecordedMessage {
	return &PaymentRecordedMessage{
		PaymentID:        p.ID,
		Expense:          p.ExpenseName,
		PaidAt:           p.PaidAt,
		DueDateOfExpense: p.DueDateOfExpense,
		Timestamp:        time.Now(),
	}
}

type ExpenseDeletedMessage struct {
	Expense   string    `json:"expense"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseDeletedMessage(name string) *ExpenseDeletedMessage {
	return &ExpenseDeletedMessage{Expense: name, Timestamp: time.Now()}
}

// DueReminderMessage carries one unpaid row that is close to or past its due date.
type DueReminderMessage struct {
	Expense     string    `json:"expense"`
	Periodicity string    `json:"periodicity"`
	NextDue     time.Time `json:"next_due"`
	DaysLeft    int       `json:"days_left"`
	Severity    string    `json:"severity"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewDueReminderMessage(r core.Row) *DueReminderMessage {
	return &DueReminderMessage{
		Expense:     r.Expense.Name,
		Periodicity: r.Expense.Periodicity.String(),
		NextDue:     r.NextDue.UTC(),
		DaysLeft:    r.DaysLeft,
		Severity:    r.Severity().String(),
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DueReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DueReminderMessageFromJSON decodes a reminder published by the notifier.
func DueReminderMessageFromJSON(data []byte) (*DueReminderMessage, error) {
	var msg DueReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
