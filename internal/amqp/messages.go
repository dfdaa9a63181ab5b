package amqp

import (
	"encoding/json"
	"time"

	"grana/internal/core"
)

// Entity kinds carried in change messages.
const (
	KindExpense  = "expense"
	KindIncome   = "income"
	KindPlan     = "plan_category"
	KindCard     = "card"
)

// Change actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	ActionPaid    = "paid"
)

// EntityChangeMessage is a lightweight notification that an entity
// collection changed. Consumers refetch from storage; the message only
// says what moved and which year's derived views are stale.
type EntityChangeMessage struct {
	Kind      string    `json:"kind"`
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Year      int       `json:"year"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntityChangeMessage(kind, id, action string, year int) *EntityChangeMessage {
	return &EntityChangeMessage{
		Kind:      kind,
		ID:        id,
		Action:    action,
		Year:      year,
		Timestamp: time.Now(),
	}
}

func (m *EntityChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func EntityChangeMessageFromJSON(data []byte) (*EntityChangeMessage, error) {
	var msg EntityChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DueAlertMessage announces an unpaid installment approaching its due
// date. It carries everything a notifier needs to render the alert
// without a storage round trip.
type DueAlertMessage struct {
	InstallmentID string       `json:"installment_id"`
	ExpenseID     string       `json:"expense_id"`
	ExpenseName   string       `json:"expense_name"`
	AmountCents   int64        `json:"amount_cents"`
	DueDate       string       `json:"due_date"` // YYYY-MM-DD
	DaysRemaining int          `json:"days_remaining"`
	Urgency       core.Urgency `json:"urgency"`
	Timestamp     time.Time    `json:"timestamp"`
}

func NewDueAlertMessage(item core.DueInstallment) *DueAlertMessage {
	return &DueAlertMessage{
		InstallmentID: item.ID,
		ExpenseID:     item.ExpenseID,
		ExpenseName:   item.ExpenseName,
		AmountCents:   item.Amount.Cents,
		DueDate:       item.DueDate.Format("2006-01-02"),
		DaysRemaining: item.DaysRemaining,
		Urgency:       item.Urgency,
		Timestamp:     time.Now(),
	}
}

func (m *DueAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DueAlertMessageFromJSON(data []byte) (*DueAlertMessage, error) {
	var msg DueAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
