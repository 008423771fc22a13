package application

import (
	"context"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/interfaces"

	"golang.org/x/sync/errgroup"
)

// DashboardEntry is the outcome of loading one match
type DashboardEntry struct {
	MatchID  string
	Snapshot *entities.MatchSnapshot
	Err      error
}

// Dashboard loads many matches at once for an administrator
type Dashboard struct {
	ledger      interfaces.LedgerService
	concurrency int
}

// NewDashboard creates a dashboard loading at most concurrency matches at a time
func NewDashboard(ledger interfaces.LedgerService, concurrency int) *Dashboard {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Dashboard{ledger: ledger, concurrency: concurrency}
}

// Load fetches every match independently. Entries keep the order of matchIDs,
// a failed match carries its error and does not affect the others.
func (d *Dashboard) Load(ctx context.Context, matchIDs []string) ([]DashboardEntry, error) {
	entries := make([]DashboardEntry, len(matchIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, id := range matchIDs {
		g.Go(func() error {
			coordinator := NewFetchCoordinator(id, d.ledger)
			snapshot, err := coordinator.Refresh(gctx, RefreshOptions{Background: false})
			entries[i] = DashboardEntry{MatchID: id, Snapshot: snapshot, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return entries, err
	}
	return entries, nil
}
