// internal/events/types.go
package events

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// EventType identifies what happened on the ledger.
type EventType string

const (
	TransactionCommitted  EventType = "transaction.committed"
	TransactionRolledBack EventType = "transaction.rolled_back"
	EpochAdvanced         EventType = "epoch.advanced"
)

// Event is implemented by everything sent through the Bus.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent carries the fields shared by every event.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.EventTime }

func newBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

// TransactionCommittedEvent публикуется после успешной записи батча
type TransactionCommittedEvent struct {
	BaseEvent
	Signature    solana.Signature
	Instructions int
	Written      []solana.PublicKey
}

// NewTransactionCommitted builds a committed event stamped with the current time.
func NewTransactionCommitted(sig solana.Signature, instructions int, written []solana.PublicKey) *TransactionCommittedEvent {
	return &TransactionCommittedEvent{
		BaseEvent:    newBase(TransactionCommitted),
		Signature:    sig,
		Instructions: instructions,
		Written:      written,
	}
}

// TransactionRolledBackEvent is emitted when an instruction fails and nothing is written.
type TransactionRolledBackEvent struct {
	BaseEvent
	Signature        solana.Signature
	InstructionIndex int
	Err              error
}

func NewTransactionRolledBack(sig solana.Signature, index int, err error) *TransactionRolledBackEvent {
	return &TransactionRolledBackEvent{
		BaseEvent:        newBase(TransactionRolledBack),
		Signature:        sig,
		InstructionIndex: index,
		Err:              err,
	}
}

// EpochAdvancedEvent fires when the clock sysvar moves to a new epoch.
type EpochAdvancedEvent struct {
	BaseEvent
	Previous uint64
	Current  uint64
}

func NewEpochAdvanced(prev, cur uint64) *EpochAdvancedEvent {
	return &EpochAdvancedEvent{BaseEvent: newBase(EpochAdvanced), Previous: prev, Current: cur}
}
