package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/interfaces"
	"gambler/arena/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// ErrInitialLoadFailed is returned when the foreground load of a match view fails.
// The view has nothing to render and the caller navigates away.
var ErrInitialLoadFailed = errors.New("initial match load failed")

// RefreshOptions selects how a refresh reports failure
type RefreshOptions struct {
	// Background refreshes keep the last snapshot on failure and only log
	Background bool
	// Follow waits out a fetch in flight and then fetches again, so the snapshot
	// reflects every write committed before the call
	Follow bool
}

// CoordinatorStats counts what a coordinator did
type CoordinatorStats struct {
	Fetches   int
	Skipped   int
	Fallbacks int
	Failures  int
	Discarded int
}

// FetchCoordinator owns the snapshot of one match view and keeps at most one fetch in flight
type FetchCoordinator struct {
	matchID string
	ledger  interfaces.LedgerService
	now     func() time.Time

	mu        sync.Mutex
	inFlight  bool
	idle      chan struct{}
	closed    bool
	snapshot  *entities.MatchSnapshot
	listeners []func(*entities.MatchSnapshot)
	stats     CoordinatorStats
}

// NewFetchCoordinator creates a coordinator for one match
func NewFetchCoordinator(matchID string, ledger interfaces.LedgerService) *FetchCoordinator {
	return &FetchCoordinator{
		matchID: matchID,
		ledger:  ledger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// MatchID returns the match this coordinator fetches
func (c *FetchCoordinator) MatchID() string {
	return c.matchID
}

// Refresh fetches the authoritative snapshot and replaces the current one wholesale.
// A call made while another fetch is in flight returns (nil, nil) without fetching,
// unless opts.Follow is set.
func (c *FetchCoordinator) Refresh(ctx context.Context, opts RefreshOptions) (*entities.MatchSnapshot, error) {
	mode := observability.ModeInitial
	if opts.Background {
		mode = observability.ModeBackground
	}

	c.mu.Lock()
	for {
		if c.closed {
			c.mu.Unlock()
			return nil, nil
		}
		if !c.inFlight {
			break
		}
		if !opts.Follow {
			c.stats.Skipped++
			c.mu.Unlock()
			observability.GetMetrics().RecordRefreshSkipped(mode)
			log.WithFields(log.Fields{
				"matchID": c.matchID,
				"mode":    mode,
			}).Debug("Refresh skipped, fetch already in flight")
			return nil, nil
		}
		idle := c.idle
		c.mu.Unlock()
		select {
		case <-idle:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		c.mu.Lock()
	}
	c.inFlight = true
	idle := make(chan struct{})
	c.idle = idle
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		close(idle)
		c.mu.Unlock()
	}()

	start := time.Now()
	snapshot, outcome, err := c.fetch(ctx)
	observability.GetMetrics().RecordRefresh(mode, outcome, time.Since(start))

	if err != nil {
		c.mu.Lock()
		c.stats.Failures++
		last := c.snapshot
		c.mu.Unlock()

		if !opts.Background {
			log.WithFields(log.Fields{
				"matchID": c.matchID,
				"error":   err,
			}).Error("Initial match load failed")
			return nil, fmt.Errorf("%w: %w", ErrInitialLoadFailed, err)
		}
		log.WithFields(log.Fields{
			"matchID": c.matchID,
			"error":   err,
		}).Warn("Background refresh failed, keeping last snapshot")
		return last, nil
	}

	c.mu.Lock()
	if c.closed {
		c.stats.Discarded++
		c.mu.Unlock()
		log.WithField("matchID", c.matchID).Debug("Discarding snapshot fetched after close")
		return nil, nil
	}
	c.snapshot = snapshot
	c.stats.Fetches++
	if outcome == observability.OutcomeFallback {
		c.stats.Fallbacks++
	}
	listeners := make([]func(*entities.MatchSnapshot), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, listener := range listeners {
		listener(snapshot)
	}
	return snapshot, nil
}

// fetch reads the full view, falling back to the public read when access is denied
func (c *FetchCoordinator) fetch(ctx context.Context) (*entities.MatchSnapshot, string, error) {
	snapshot, err := c.ledger.ReadMatch(ctx, c.matchID)
	if err == nil {
		if snapshot == nil || snapshot.Match == nil {
			return nil, observability.OutcomeError, fmt.Errorf("empty snapshot for match %s", c.matchID)
		}
		if snapshot.FetchedAt.IsZero() {
			snapshot.FetchedAt = c.now()
		}
		return snapshot, observability.OutcomeSuccess, nil
	}
	if !errors.Is(err, entities.ErrAccessDenied) {
		return nil, observability.OutcomeError, err
	}

	public, err := c.ledger.ReadMatchPublic(ctx, c.matchID)
	if err != nil {
		return nil, observability.OutcomeError, fmt.Errorf("public read after access denied: %w", err)
	}
	return public.ToSnapshot(c.now()), observability.OutcomeFallback, nil
}

// Snapshot returns the last applied snapshot, nil before the first load
func (c *FetchCoordinator) Snapshot() *entities.MatchSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// InFlight reports whether a fetch is outstanding
func (c *FetchCoordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// OnSnapshot registers a listener called with every applied snapshot
func (c *FetchCoordinator) OnSnapshot(listener func(*entities.MatchSnapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, listener)
}

// Stats returns a copy of the counters
func (c *FetchCoordinator) Stats() CoordinatorStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close stops applying results. A fetch still in flight completes and is discarded.
func (c *FetchCoordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.listeners = nil
}
