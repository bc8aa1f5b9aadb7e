package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"budgetwise/internal/core"
)

// EventAction names the write that produced a TransactionEvent.
type EventAction string

const (
	ActionCreated EventAction = "created"
	ActionUpdated EventAction = "updated"
	ActionDeleted EventAction = "deleted"
)

func (a EventAction) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted:
		return true
	}
	return false
}

var ErrInvalidEvent = errors.New("invalid transaction event")

// TransactionEvent is published after every successful transaction write.
// Transaction carries the stored record for created and updated events and is
// nil for deletions.
type TransactionEvent struct {
	Action        EventAction       `json:"action"`
	UserID        string            `json:"userId"`
	TransactionID string            `json:"transactionId"`
	Transaction   *core.Transaction `json:"transaction,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

func NewTransactionEvent(action EventAction, tx core.Transaction) *TransactionEvent {
	ev := &TransactionEvent{
		Action:        action,
		UserID:        tx.UserID,
		TransactionID: tx.ID,
		Timestamp:     time.Now().UTC(),
	}
	if action != ActionDeleted {
		ev.Transaction = &tx
	}
	return ev
}

func NewDeletedEvent(userID, id string) *TransactionEvent {
	return &TransactionEvent{
		Action:        ActionDeleted,
		UserID:        userID,
		TransactionID: id,
		Timestamp:     time.Now().UTC(),
	}
}

func (m *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Validate rejects events a consumer could not act on.
func (m *TransactionEvent) Validate() error {
	if !m.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidEvent, m.Action)
	}
	if m.TransactionID == "" || m.UserID == "" {
		return fmt.Errorf("%w: missing ids", ErrInvalidEvent)
	}
	if m.Action != ActionDeleted && m.Transaction == nil {
		return fmt.Errorf("%w: %s event without transaction", ErrInvalidEvent, m.Action)
	}
	return nil
}

// TransactionEventFromJSON decodes and validates an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var msg TransactionEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
