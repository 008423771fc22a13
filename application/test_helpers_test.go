package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"gambler/arena/config"
	"gambler/arena/domain/entities"
	"gambler/arena/domain/events"
	"gambler/arena/domain/interfaces"
	"gambler/arena/domain/testhelpers"
	eventbus "gambler/arena/events"

	"github.com/stretchr/testify/require"
)

// manualScheduler fires timers only when the test advances its clock
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	s       *manualScheduler
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, at: s.now + d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock and runs every timer that came due
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due []*manualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired && t.at <= s.now {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// Active counts timers that are neither stopped nor fired
func (s *manualScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// countingChannel wraps a change channel and counts live subscriptions
type countingChannel struct {
	inner interfaces.ChangeChannel

	mu           sync.Mutex
	subscribes   int
	unsubscribes int
}

func (c *countingChannel) Subscribe(ctx context.Context, matchID string, table events.Table, handler interfaces.ChangeHandler) (interfaces.Subscription, error) {
	sub, err := c.inner.Subscribe(ctx, matchID, table, handler)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.subscribes++
	c.mu.Unlock()
	return &countingSubscription{inner: sub, c: c}, nil
}

func (c *countingChannel) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribes - c.unsubscribes
}

type countingSubscription struct {
	inner interfaces.Subscription
	c     *countingChannel
	once  sync.Once
}

func (s *countingSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.c.mu.Lock()
		s.c.unsubscribes++
		s.c.mu.Unlock()
	})
	return s.inner.Unsubscribe()
}

func emitChange(bus *eventbus.Bus, matchID string, table events.Table) {
	bus.Emit(context.Background(), events.ChangeEvent{MatchID: matchID, Table: table, Op: events.OpUpdate})
}

// arena wires the match service over a memory store to an in-process bus
type arena struct {
	t         *testing.T
	factory   *testhelpers.MemoryUnitOfWorkFactory
	commands  *MatchCommands
	bus       *eventbus.Bus
	channel   *countingChannel
	scheduler *manualScheduler
	feed      *ChangeFeed
}

func newArena(t *testing.T) *arena {
	t.Helper()
	config.SetTestConfig(config.NewTestConfig())
	t.Cleanup(config.ResetConfig)

	bus := eventbus.NewBus()
	factory := testhelpers.NewMemoryUnitOfWorkFactory()
	factory.Publisher.Sink = func(e events.Event) { bus.Emit(context.Background(), e) }

	channel := &countingChannel{inner: eventbus.NewChangeChannel(bus)}
	scheduler := &manualScheduler{}
	return &arena{
		t:         t,
		factory:   factory,
		commands:  NewMatchCommands(factory),
		bus:       bus,
		channel:   channel,
		scheduler: scheduler,
		feed:      NewChangeFeed(channel, DefaultDebounceWindow, scheduler),
	}
}

func (a *arena) ledger(userID string) *LocalLedger {
	return NewLocalLedger(a.commands, StaticIdentity{UserID: userID, Admin: config.Get().IsAdmin(userID)})
}

func (a *arena) view(userID, matchID string) *MatchView {
	identity := StaticIdentity{UserID: userID, Admin: config.Get().IsAdmin(userID)}
	return NewMatchView(matchID, a.ledger(userID), identity, a.feed, nil)
}

func (a *arena) create(userID string, teamSize int, fee string, private bool) string {
	a.t.Helper()
	res, err := a.ledger(userID).CreateMatch(context.Background(), entities.CreateMatchParams{
		TeamSize:  teamSize,
		EntryFee:  testhelpers.Decimal(fee),
		Region:    "eu-west",
		IsPrivate: private,
	})
	require.NoError(a.t, err)
	require.True(a.t, res.Success, "create refused: %s", res.ReasonCode)
	return res.MatchID
}

func (a *arena) mount(v *MatchView) {
	a.t.Helper()
	require.NoError(a.t, v.Mount(context.Background()))
	a.t.Cleanup(v.Unmount)
}

// settle lets every pending debounce window elapse
func (a *arena) settle() {
	a.scheduler.Advance(DefaultDebounceWindow)
}
