package events

import (
	"encoding/json"
	"time"

	"gambler/arena/domain/entities"

	"github.com/shopspring/decimal"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeMatchChange      EventType = "match_change"
	EventTypeMatchStateChange EventType = "match_state_change"
	EventTypeBalanceChange    EventType = "balance_change"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// Table names the record set a change event belongs to
type Table string

const (
	TableMatches      Table = "matches"
	TableParticipants Table = "match_participants"
	TableResults      Table = "match_results"
)

// Tables lists the three streams a match view listens to
var Tables = []Table{TableMatches, TableParticipants, TableResults}

// IsValid checks the table is one of the match tables
func (t Table) IsValid() bool {
	return t == TableMatches || t == TableParticipants || t == TableResults
}

// ChangeOp is the kind of row change
type ChangeOp string

const (
	OpInsert ChangeOp = "INSERT"
	OpUpdate ChangeOp = "UPDATE"
	OpDelete ChangeOp = "DELETE"
)

// ChangeEvent notifies that a record relevant to a match was inserted, updated or deleted
type ChangeEvent struct {
	MatchID    string          `json:"match_id"`
	Table      Table           `json:"table"`
	Op         ChangeOp        `json:"op"`
	Row        json.RawMessage `json:"row,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func (e ChangeEvent) Type() EventType {
	return EventTypeMatchChange
}

// NewChangeEvent marshals a row into a change event
func NewChangeEvent(matchID string, table Table, op ChangeOp, row any) ChangeEvent {
	payload, _ := json.Marshal(row)
	return ChangeEvent{
		MatchID:    matchID,
		Table:      table,
		Op:         op,
		Row:        payload,
		OccurredAt: time.Now(),
	}
}

// MatchStateChangeEvent represents a match status transition
type MatchStateChangeEvent struct {
	MatchID   string               `json:"match_id"`
	OldStatus entities.MatchStatus `json:"old_status"`
	NewStatus entities.MatchStatus `json:"new_status"`
	ActorID   string               `json:"actor_id,omitempty"`
}

func (e MatchStateChangeEvent) Type() EventType {
	return EventTypeMatchStateChange
}

// BalanceChangeEvent represents an escrow movement on a wallet
type BalanceChangeEvent struct {
	UserID          string             `json:"user_id"`
	MatchID         string             `json:"match_id,omitempty"`
	EntryType       entities.EntryType `json:"entry_type"`
	Amount          decimal.Decimal    `json:"amount"`
	AvailableBefore decimal.Decimal    `json:"available_before"`
	AvailableAfter  decimal.Decimal    `json:"available_after"`
	LockedBefore    decimal.Decimal    `json:"locked_before"`
	LockedAfter     decimal.Decimal    `json:"locked_after"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}
