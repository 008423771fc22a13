package events

import (
	"context"
	"sync"

	"gambler/arena/domain/events"
	"gambler/arena/domain/interfaces"
)

// ChangeChannel delivers match change events from a Bus to per match and table subscribers
type ChangeChannel struct {
	bus *Bus
}

var _ interfaces.ChangeChannel = (*ChangeChannel)(nil)

// NewChangeChannel creates a change channel over an in-process bus
func NewChangeChannel(bus *Bus) *ChangeChannel {
	return &ChangeChannel{bus: bus}
}

// Subscribe registers a handler for changes of one table of one match
func (c *ChangeChannel) Subscribe(ctx context.Context, matchID string, table events.Table, handler interfaces.ChangeHandler) (interfaces.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	remove := c.bus.Subscribe(events.EventTypeMatchChange, func(_ context.Context, event events.Event) {
		change, ok := event.(events.ChangeEvent)
		if !ok || change.MatchID != matchID || change.Table != table {
			return
		}
		handler(change)
	})
	return &busSubscription{remove: remove}, nil
}

type busSubscription struct {
	once   sync.Once
	remove func()
}

func (s *busSubscription) Unsubscribe() error {
	s.once.Do(s.remove)
	return nil
}
