package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	ActionCreated = "created"
	ActionDeleted = "deleted"
)

// TransactionEventMessage is the lightweight event published after a ledger
// write. It carries only identifiers; the worker fetches the full
// transaction from the database when it needs one.
type TransactionEventMessage struct {
	TransactionID string    `json:"transaction_id"`
	StoreID       string    `json:"store_id"`
	Action        string    `json:"action"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEventMessage(transactionID, storeID, action string) *TransactionEventMessage {
	return &TransactionEventMessage{
		TransactionID: transactionID,
		StoreID:       storeID,
		Action:        action,
		Timestamp:     time.Now().UTC(),
	}
}

func (m *TransactionEventMessage) Validate() error {
	if m.TransactionID == "" {
		return fmt.Errorf("transaction event missing transaction_id")
	}
	if m.Action != ActionCreated && m.Action != ActionDeleted {
		return fmt.Errorf("unknown transaction event action %q", m.Action)
	}
	return nil
}

func (m *TransactionEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionEventMessageFromJSON(data []byte) (*TransactionEventMessage, error) {
	var msg TransactionEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
