package amqp

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"grana/internal/core"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"connection closed", errors.New("connection closed"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"handler failure", errors.New("export report: spreadsheet not found"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestDueAlertMessageFromItem(t *testing.T) {
	item := core.DueInstallment{
		Installment: core.Installment{
			ID:        "inst-1",
			ExpenseID: "exp-1",
			Amount:    core.Money{Cents: 40000},
			DueDate:   core.NewDate(2025, 1, 22),
		},
		ExpenseName:   "notebook",
		DaysRemaining: 2,
		Urgency:       core.UrgencyCritical,
	}
	msg := NewDueAlertMessage(item)
	if msg.DueDate != "2025-01-22" {
		t.Errorf("due date = %q", msg.DueDate)
	}
	if msg.Urgency != core.UrgencyCritical || msg.DaysRemaining != 2 || msg.AmountCents != 40000 {
		t.Errorf("message fields: %+v", msg)
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := DueAlertMessageFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.InstallmentID != "inst-1" || back.ExpenseName != "notebook" {
		t.Errorf("round trip: %+v", back)
	}
}
