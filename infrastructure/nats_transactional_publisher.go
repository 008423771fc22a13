package infrastructure

import (
	"context"
	"sync"

	"gambler/arena/domain/events"
	"gambler/arena/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// NATSTransactionalPublisher buffers events until the owning transaction commits
type NATSTransactionalPublisher struct {
	publisher interfaces.EventPublisher
	pending   []events.Event
	mu        sync.Mutex
}

// NewNATSTransactionalPublisher creates a publisher that buffers events for one transaction
func NewNATSTransactionalPublisher(publisher interfaces.EventPublisher) *NATSTransactionalPublisher {
	return &NATSTransactionalPublisher{
		publisher: publisher,
	}
}

// Publish buffers an event
func (p *NATSTransactionalPublisher) Publish(event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, event)
	return nil
}

// Flush publishes all buffered events in order and clears the buffer
func (p *NATSTransactionalPublisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, event := range pending {
		if ctx.Err() != nil {
			log.WithField("dropped", len(pending)).Warn("Context canceled while flushing events")
			return ctx.Err()
		}
		if err := p.publisher.Publish(event); err != nil {
			// The transaction is already committed; later events still go out
			log.WithFields(log.Fields{
				"event_type": event.Type(),
				"error":      err,
			}).Error("Failed to publish event during flush")
		}
	}
	return nil
}

// Discard drops all buffered events
func (p *NATSTransactionalPublisher) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = nil
}

// PendingCount returns the number of buffered events
func (p *NATSTransactionalPublisher) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

var _ interfaces.TransactionalPublisher = (*NATSTransactionalPublisher)(nil)
