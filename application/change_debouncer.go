package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gambler/arena/domain/events"
	"gambler/arena/domain/interfaces"
	"gambler/arena/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// DefaultDebounceWindow is the quiet period after the last change before a refresh fires
const DefaultDebounceWindow = 350 * time.Millisecond

// Timer is a scheduled callback that can be stopped
type Timer interface {
	Stop() bool
}

// Scheduler schedules callbacks after a delay
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ClockScheduler schedules on the wall clock
func ClockScheduler() Scheduler {
	return clockScheduler{}
}

// ChangeDebouncer merges the three change streams of one match into trailing refreshes.
// Every event restarts the quiet window; only the last event of a burst fires.
type ChangeDebouncer struct {
	matchID   string
	window    time.Duration
	scheduler Scheduler
	onFlush   func()

	mu         sync.Mutex
	subs       []interfaces.Subscription
	timer      Timer
	generation uint64
	closed     bool
	received   int
	flushes    int
}

// OpenChangeDebouncer subscribes to every match table and calls onFlush after each quiet window
func OpenChangeDebouncer(ctx context.Context, channel interfaces.ChangeChannel, matchID string, window time.Duration, scheduler Scheduler, onFlush func()) (*ChangeDebouncer, error) {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	if scheduler == nil {
		scheduler = ClockScheduler()
	}

	d := &ChangeDebouncer{
		matchID:   matchID,
		window:    window,
		scheduler: scheduler,
		onFlush:   onFlush,
	}

	for _, table := range events.Tables {
		sub, err := channel.Subscribe(ctx, matchID, table, d.handle)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("failed to subscribe to %s changes: %w", table, err)
		}
		d.mu.Lock()
		d.subs = append(d.subs, sub)
		d.mu.Unlock()
	}

	log.WithFields(log.Fields{
		"matchID": matchID,
		"window":  window,
	}).Debug("Change debouncer open")
	return d, nil
}

func (d *ChangeDebouncer) handle(event events.ChangeEvent) {
	observability.GetMetrics().RecordChangeEvent(string(event.Table))

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.received++
	if d.timer != nil {
		d.timer.Stop()
	}
	d.generation++
	gen := d.generation
	d.timer = d.scheduler.AfterFunc(d.window, func() { d.fire(gen) })
}

// fire runs the flush unless a newer event or Close superseded this timer
func (d *ChangeDebouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.closed || gen != d.generation {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.flushes++
	d.mu.Unlock()

	observability.GetMetrics().RecordDebouncedFlush()
	d.onFlush()
}

// Pending reports whether a refresh is scheduled
func (d *ChangeDebouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Counts returns the number of events received and refreshes fired
func (d *ChangeDebouncer) Counts() (received, flushes int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.received, d.flushes
}

// Close cancels the pending refresh and unsubscribes every stream. Safe to call twice.
func (d *ChangeDebouncer) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	subs := d.subs
	d.subs = nil
	d.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		log.WithFields(log.Fields{
			"matchID": d.matchID,
			"error":   err,
		}).Warn("Failed to unsubscribe change streams")
		return err
	}
	return nil
}
