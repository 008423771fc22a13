package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gambler/arena/domain/events"
	"gambler/arena/domain/interfaces"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// MatchChangeStream is the JetStream stream retaining match and wallet events
const MatchChangeStream = "match_changes"

// NATSEventPublisher publishes domain events to NATS and to local handlers
type NATSEventPublisher struct {
	client        *NATSClient
	subjectMapper *EventSubjectMapper
	localHandlers map[events.EventType][]func(context.Context, events.Event) error
	mu            sync.RWMutex
}

// NewNATSEventPublisher creates a new NATS event publisher
func NewNATSEventPublisher(client *NATSClient) *NATSEventPublisher {
	return &NATSEventPublisher{
		client:        client,
		subjectMapper: NewEventSubjectMapper(),
		localHandlers: make(map[events.EventType][]func(context.Context, events.Event) error),
	}
}

// Publish publishes a domain event to local handlers and to NATS
func (p *NATSEventPublisher) Publish(event events.Event) error {
	ctx := context.Background()

	p.mu.RLock()
	handlers := p.localHandlers[event.Type()]
	p.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			log.WithFields(log.Fields{
				"event_type": event.Type(),
				"error":      err,
			}).Error("Local event handler failed")
		}
	}

	subject := p.subjectMapper.MapEventToSubject(event)

	envelope, err := NewEventEnvelope(event)
	if err != nil {
		return err
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	if err := p.client.Publish(ctx, subject, data); err != nil {
		if isMissingStream(err) {
			log.WithField("subject", subject).Debug("No stream bound to subject")
			return nil
		}
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	log.WithFields(log.Fields{
		"event_type": event.Type(),
		"event_id":   envelope.EventID,
		"subject":    subject,
	}).Debug("Published event to NATS")

	return nil
}

// isMissingStream reports a publish that reached no stream. The stream is optional for
// core subscribers, so nothing acks the message.
func isMissingStream(err error) bool {
	return errors.Is(err, nats.ErrNoStreamResponse)
}

// RegisterLocalHandler registers a handler that runs in-process before the NATS publish
func (p *NATSEventPublisher) RegisterLocalHandler(eventType events.EventType, handler func(context.Context, events.Event) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.localHandlers[eventType] = append(p.localHandlers[eventType], handler)
}

// EnsureMatchChangeStream creates the stream retaining every published event
func (p *NATSEventPublisher) EnsureMatchChangeStream() error {
	return p.client.ensureStream(MatchChangeStream, p.subjectMapper.GetAllSubjects(), "Match changes and wallet movements")
}

var _ interfaces.EventPublisher = (*NATSEventPublisher)(nil)
