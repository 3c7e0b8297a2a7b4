package amqp

import (
	"testing"
	"time"
)

func TestNewTransactionEventMessage(t *testing.T) {
	msg := NewTransactionEventMessage("tx-1", "store-1", ActionCreated)

	if msg.TransactionID != "tx-1" {
		t.Errorf("TransactionID = %q, want %q", msg.TransactionID, "tx-1")
	}
	if msg.StoreID != "store-1" {
		t.Errorf("StoreID = %q, want %q", msg.StoreID, "store-1")
	}
	if msg.Action != ActionCreated {
		t.Errorf("Action = %q, want %q", msg.Action, ActionCreated)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
}

func TestTransactionEventMessageJSON(t *testing.T) {
	msg := &TransactionEventMessage{
		TransactionID: "tx-42",
		StoreID:       "store-7",
		Action:        ActionDeleted,
		Timestamp:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := TransactionEventMessageFromJSON(body)
	if err != nil {
		t.Fatalf("TransactionEventMessageFromJSON() error = %v", err)
	}
	if parsed.TransactionID != msg.TransactionID {
		t.Errorf("TransactionID = %q, want %q", parsed.TransactionID, msg.TransactionID)
	}
	if parsed.Action != msg.Action {
		t.Errorf("Action = %q, want %q", parsed.Action, msg.Action)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestTransactionEventMessageValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"transaction_id": 42}`},
		{"missing id", `{"store_id": "s", "action": "created"}`},
		{"unknown action", `{"transaction_id": "tx", "action": "updated"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := TransactionEventMessageFromJSON([]byte(tt.body)); err == nil {
				t.Errorf("TransactionEventMessageFromJSON(%s) expected error", tt.body)
			}
		})
	}
}
