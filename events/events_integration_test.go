package events

import (
	"context"
	"sync"
	"testing"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/events"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEventDeliveryIntegration tests the complete event flow from TransactionalBus to main Bus
func TestEventDeliveryIntegration(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	var received []events.BalanceChangeEvent
	mainBus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, event events.Event) {
		balanceEvent, ok := event.(events.BalanceChangeEvent)
		require.True(t, ok, "expected BalanceChangeEvent, got %T", event)
		received = append(received, balanceEvent)
	})

	testEvent := events.BalanceChangeEvent{
		UserID:          "user-1",
		MatchID:         "match-1",
		EntryType:       entities.EntryTypeLock,
		Amount:          decimal.NewFromInt(5),
		AvailableBefore: decimal.NewFromInt(100),
		AvailableAfter:  decimal.NewFromInt(95),
		LockedBefore:    decimal.Zero,
		LockedAfter:     decimal.NewFromInt(5),
	}

	require.NoError(t, transactionalBus.Publish(testEvent))
	assert.Empty(t, received, "events must wait for flush")

	require.NoError(t, transactionalBus.Flush(context.Background()))

	require.Len(t, received, 1)
	assert.Equal(t, testEvent.UserID, received[0].UserID)
	assert.True(t, testEvent.Amount.Equal(received[0].Amount))
}

// TestMultipleEventsDelivery tests that flushed events arrive in publish order
func TestMultipleEventsDelivery(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	var order []events.ChangeOp
	mainBus.Subscribe(events.EventTypeMatchChange, func(ctx context.Context, event events.Event) {
		order = append(order, event.(events.ChangeEvent).Op)
	})

	for _, op := range []events.ChangeOp{events.OpInsert, events.OpUpdate, events.OpDelete} {
		require.NoError(t, transactionalBus.Publish(events.ChangeEvent{MatchID: "m", Table: events.TableParticipants, Op: op}))
	}
	require.NoError(t, transactionalBus.Flush(context.Background()))

	assert.Equal(t, []events.ChangeOp{events.OpInsert, events.OpUpdate, events.OpDelete}, order)
}

// TestTransactionalBusDiscard tests that discarded events are not delivered
func TestTransactionalBusDiscard(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	delivered := false
	mainBus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, event events.Event) {
		delivered = true
	})

	require.NoError(t, transactionalBus.Publish(events.BalanceChangeEvent{UserID: "user-1"}))
	transactionalBus.Discard()
	require.NoError(t, transactionalBus.Flush(context.Background()))

	assert.False(t, delivered, "event was delivered despite being discarded")
}

func TestBus_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewBus()
	calls := 0
	bus.Subscribe(events.EventTypeMatchChange, func(ctx context.Context, event events.Event) {
		panic("boom")
	})
	bus.Subscribe(events.EventTypeMatchChange, func(ctx context.Context, event events.Event) {
		calls++
	})

	require.NoError(t, bus.Publish(events.ChangeEvent{MatchID: "m"}))
	assert.Equal(t, 1, calls)
}

func TestChangeChannel_FiltersByMatchAndTable(t *testing.T) {
	bus := NewBus()
	channel := NewChangeChannel(bus)

	var mu sync.Mutex
	var got []events.ChangeEvent
	sub, err := channel.Subscribe(context.Background(), "match-1", events.TableResults, func(e events.ChangeEvent) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
	})
	require.NoError(t, err)

	_ = bus.Publish(events.ChangeEvent{MatchID: "match-1", Table: events.TableResults, Op: events.OpInsert})
	_ = bus.Publish(events.ChangeEvent{MatchID: "match-1", Table: events.TableMatches, Op: events.OpUpdate})
	_ = bus.Publish(events.ChangeEvent{MatchID: "match-2", Table: events.TableResults, Op: events.OpInsert})

	require.Len(t, got, 1)
	assert.Equal(t, events.OpInsert, got[0].Op)

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())
	_ = bus.Publish(events.ChangeEvent{MatchID: "match-1", Table: events.TableResults, Op: events.OpUpdate})
	assert.Len(t, got, 1)
}

func TestChangeChannel_RejectsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChangeChannel(NewBus()).Subscribe(ctx, "m", events.TableMatches, func(events.ChangeEvent) {})
	assert.ErrorIs(t, err, context.Canceled)
}
