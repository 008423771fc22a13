package infrastructure

import (
	"encoding/json"
	"fmt"
	"time"

	"gambler/arena/domain/events"

	"github.com/google/uuid"
)

// SourceService names this process in published envelopes
const SourceService = "arena"

// EventEnvelope wraps every event published on NATS
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes an event into an envelope
func NewEventEnvelope(event events.Event) (*EventEnvelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     time.Now().UTC(),
		SourceService: SourceService,
		Payload:       payload,
	}, nil
}

// DecodeChangeEvent reads a change event out of envelope bytes
func DecodeChangeEvent(data []byte) (events.ChangeEvent, error) {
	var envelope EventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return events.ChangeEvent{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if events.EventType(envelope.EventType) != events.EventTypeMatchChange {
		return events.ChangeEvent{}, fmt.Errorf("unexpected event type %q", envelope.EventType)
	}

	var change events.ChangeEvent
	if err := json.Unmarshal(envelope.Payload, &change); err != nil {
		return events.ChangeEvent{}, fmt.Errorf("failed to unmarshal change event: %w", err)
	}
	return change, nil
}
