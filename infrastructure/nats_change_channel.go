package infrastructure

import (
	"context"
	"fmt"
	"sync"

	"gambler/arena/domain/events"
	"gambler/arena/domain/interfaces"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// NATSChangeChannel delivers match change events from core NATS subscriptions.
// One subscription per table keeps per-table order.
type NATSChangeChannel struct {
	client        *NATSClient
	subjectMapper *EventSubjectMapper
}

// NewNATSChangeChannel creates a change channel over a connected client
func NewNATSChangeChannel(client *NATSClient) *NATSChangeChannel {
	return &NATSChangeChannel{
		client:        client,
		subjectMapper: NewEventSubjectMapper(),
	}
}

// Subscribe opens a subscription for one table of one match
func (c *NATSChangeChannel) Subscribe(ctx context.Context, matchID string, table events.Table, handler interfaces.ChangeHandler) (interfaces.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !table.IsValid() {
		return nil, fmt.Errorf("unknown table %q", table)
	}

	subject := c.subjectMapper.ChangeSubject(matchID, table)
	sub, err := c.client.Subscribe(subject, func(msg *nats.Msg) {
		change, err := DecodeChangeEvent(msg.Data)
		if err != nil {
			log.WithFields(log.Fields{
				"subject": msg.Subject,
				"error":   err,
			}).Warn("Dropping undecodable change event")
			return
		}
		handler(change)
	})
	if err != nil {
		return nil, err
	}
	return &natsSubscription{sub: sub}, nil
}

type natsSubscription struct {
	sub  *nats.Subscription
	once sync.Once
	err  error
}

// Unsubscribe closes the subscription once; later calls return the first result
func (s *natsSubscription) Unsubscribe() error {
	s.once.Do(func() {
		if err := s.sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed && err != nats.ErrBadSubscription {
			s.err = fmt.Errorf("failed to unsubscribe from %s: %w", s.sub.Subject, err)
		}
	})
	return s.err
}

var _ interfaces.ChangeChannel = (*NATSChangeChannel)(nil)
