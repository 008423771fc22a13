package events

import (
	"context"
	"sync"

	"gambler/arena/domain/events"
	"gambler/arena/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// Handler is a function that handles events
type Handler func(ctx context.Context, event events.Event)

type subscriber struct {
	id      uint64
	handler Handler
}

// Bus manages event subscriptions and dispatching inside one process.
// Handlers run synchronously in subscription order so per-table change order is kept.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[events.EventType][]subscriber
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[events.EventType][]subscriber),
	}
}

// Subscribe adds a handler for a specific event type and returns a function removing it
func (b *Bus) Subscribe(eventType events.EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscriber{id: id, handler: handler})

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type on main event bus")

	return func() { b.unsubscribe(eventType, id) }
}

func (b *Bus) unsubscribe(eventType events.EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, s := range subs {
		if s.id == id {
			b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Emit publishes an event to all registered handlers
func (b *Bus) Emit(ctx context.Context, event events.Event) {
	b.mu.RLock()
	subs := make([]subscriber, len(b.handlers[event.Type()]))
	copy(subs, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(subs),
	}).Debug("Emitting event to handlers on main event bus")

	for i, s := range subs {
		b.call(ctx, s.handler, i, event)
	}
}

func (b *Bus) call(ctx context.Context, h Handler, handlerIndex int, event events.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"eventType":    event.Type(),
				"handlerIndex": handlerIndex,
				"panic":        r,
			}).Error("Event handler panicked")
		}
	}()
	h(ctx, event)
}

// Publish emits an event immediately, for callers outside a unit of work
func (b *Bus) Publish(event events.Event) error {
	b.Emit(context.Background(), event)
	return nil
}

// TransactionalBus holds pending events coupled to the Unit of Work.
// Flushes to the underlying event bus.
type TransactionalBus struct {
	real    *Bus
	mu      sync.Mutex
	pending []events.Event // stashed until Flush
}

var _ interfaces.TransactionalPublisher = (*TransactionalBus)(nil)

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
	return nil
}

// Flush is called after a successful DB commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	log.WithFields(log.Fields{
		"pendingEventCount": len(pending),
	}).Debug("Flushing pending events from transactional bus to main event bus")

	// Events outlive the transaction context
	eventCtx := context.Background()
	for _, ev := range pending {
		b.real.Emit(eventCtx, ev)
	}
	return nil
}

// Discard is called after a db rollback or to clear state
func (b *TransactionalBus) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
}
