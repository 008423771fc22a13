package application

import (
	"context"
	"sync"
	"time"

	"gambler/arena/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// ChangeFeed shares one debouncer per match between every interested view
type ChangeFeed struct {
	channel   interfaces.ChangeChannel
	window    time.Duration
	scheduler Scheduler

	mu      sync.Mutex
	entries map[string]*feedEntry
}

type feedEntry struct {
	debouncer *ChangeDebouncer
	listeners map[int]func()
	nextID    int
}

// NewChangeFeed creates a feed over a change channel. A nil scheduler uses the wall clock.
func NewChangeFeed(channel interfaces.ChangeChannel, window time.Duration, scheduler Scheduler) *ChangeFeed {
	return &ChangeFeed{
		channel:   channel,
		window:    window,
		scheduler: scheduler,
		entries:   make(map[string]*feedEntry),
	}
}

// Subscribe registers a listener for debounced changes of a match.
// The first subscriber opens the streams and the last release closes them.
func (f *ChangeFeed) Subscribe(ctx context.Context, matchID string, listener func()) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, ok := f.entries[matchID]
	if !ok {
		entry = &feedEntry{listeners: make(map[int]func())}
		debouncer, err := OpenChangeDebouncer(ctx, f.channel, matchID, f.window, f.scheduler, func() {
			f.fanOut(entry)
		})
		if err != nil {
			return nil, err
		}
		entry.debouncer = debouncer
		f.entries[matchID] = entry
	}

	id := entry.nextID
	entry.nextID++
	entry.listeners[id] = listener

	var once sync.Once
	release := func() {
		once.Do(func() { f.release(matchID, entry, id) })
	}
	return release, nil
}

func (f *ChangeFeed) release(matchID string, entry *feedEntry, id int) {
	f.mu.Lock()
	delete(entry.listeners, id)
	var closing *ChangeDebouncer
	if len(entry.listeners) == 0 && f.entries[matchID] == entry {
		delete(f.entries, matchID)
		closing = entry.debouncer
	}
	f.mu.Unlock()

	if closing != nil {
		if err := closing.Close(); err != nil {
			log.WithField("matchID", matchID).Warn("Change feed closed with errors")
		}
	}
}

func (f *ChangeFeed) fanOut(entry *feedEntry) {
	f.mu.Lock()
	listeners := make([]func(), 0, len(entry.listeners))
	for _, l := range entry.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()

	for _, l := range listeners {
		l()
	}
}

// Subscribers returns the number of live subscriptions for a match
func (f *ChangeFeed) Subscribers(matchID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry, ok := f.entries[matchID]; ok {
		return len(entry.listeners)
	}
	return 0
}
