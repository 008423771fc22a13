package application

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// MatchExpirer expires open matches that nobody joined in time
type MatchExpirer interface {
	ExpireMatches(ctx context.Context, now time.Time) (int, error)
}

// ExpirationWorker periodically expires stale open matches
type ExpirationWorker struct {
	expirer  MatchExpirer
	interval time.Duration
	now      func() time.Time
}

// NewExpirationWorker creates a worker checking every interval, one minute by default
func NewExpirationWorker(expirer MatchExpirer, interval time.Duration) *ExpirationWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpirationWorker{
		expirer:  expirer,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce expires everything due now
func (w *ExpirationWorker) RunOnce(ctx context.Context) int {
	count, err := w.expirer.ExpireMatches(ctx, w.now())
	if err != nil {
		log.WithError(err).Error("Error expiring matches")
	}
	if count > 0 {
		log.WithField("count", count).Info("Expiration worker expired matches")
	}
	return count
}

// Start runs the worker until ctx is done or the returned stop function is called
func (w *ExpirationWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		log.WithField("interval", w.interval).Info("Match expiration worker started")
		for {
			select {
			case <-ctx.Done():
				log.Info("Match expiration worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Match expiration worker shutting down (stop requested)...")
				return
			case <-ticker.C:
				w.RunOnce(ctx)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(stopChan) })
	}
}
