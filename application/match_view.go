package application

import (
	"context"
	"sync"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/interfaces"
	"gambler/arena/domain/lifecycle"

	log "github.com/sirupsen/logrus"
)

// ViewState is everything a match screen renders
type ViewState struct {
	Snapshot    *entities.MatchSnapshot `json:"snapshot"`
	Permissions lifecycle.Permissions   `json:"permissions"`
	Pending     bool                    `json:"pending"`
	Ready       bool                    `json:"ready"`
}

// MatchView binds a coordinator, a gateway and the shared change feed for one match
type MatchView struct {
	matchID        string
	identity       interfaces.IdentityProvider
	feed           *ChangeFeed
	coordinator    *FetchCoordinator
	gateway        *ActionGateway
	onNavigateAway func(error)

	mu        sync.Mutex
	release   func()
	mounted   bool
	unmounted bool
}

// NewMatchView creates an unmounted view. onNavigateAway runs when the initial load fails.
func NewMatchView(matchID string, ledger interfaces.LedgerService, identity interfaces.IdentityProvider, feed *ChangeFeed, onNavigateAway func(error)) *MatchView {
	coordinator := NewFetchCoordinator(matchID, ledger)
	if onNavigateAway == nil {
		onNavigateAway = func(error) {}
	}
	return &MatchView{
		matchID:        matchID,
		identity:       identity,
		feed:           feed,
		coordinator:    coordinator,
		gateway:        NewActionGateway(ledger, identity, coordinator),
		onNavigateAway: onNavigateAway,
	}
}

// Mount subscribes to changes and then performs the initial load
func (v *MatchView) Mount(ctx context.Context) error {
	v.mu.Lock()
	if v.mounted || v.unmounted {
		v.mu.Unlock()
		return nil
	}
	v.mounted = true
	v.mu.Unlock()

	// Background refreshes outlive the mount call; an in-flight fetch finishes on its own
	refreshCtx := context.WithoutCancel(ctx)
	release, err := v.feed.Subscribe(ctx, v.matchID, func() {
		v.coordinator.Refresh(refreshCtx, RefreshOptions{Background: true})
	})
	if err != nil {
		log.WithFields(log.Fields{
			"matchID": v.matchID,
			"error":   err,
		}).Warn("Match view has no live updates")
		release = func() {}
	}

	v.mu.Lock()
	v.release = release
	v.mu.Unlock()

	if _, err := v.coordinator.Refresh(ctx, RefreshOptions{Background: false}); err != nil {
		v.Unmount()
		v.onNavigateAway(err)
		return err
	}
	return nil
}

// State derives the render state from the last authoritative snapshot
func (v *MatchView) State() ViewState {
	snapshot := v.coordinator.Snapshot()
	return ViewState{
		Snapshot:    snapshot,
		Permissions: lifecycle.Derive(snapshot, v.identity.CurrentUserID(), v.identity.IsAdmin()),
		Pending:     v.gateway.Pending(),
		Ready:       snapshot != nil,
	}
}

// Actions returns the gateway of this view
func (v *MatchView) Actions() *ActionGateway {
	return v.gateway
}

// Coordinator returns the fetch coordinator of this view
func (v *MatchView) Coordinator() *FetchCoordinator {
	return v.coordinator
}

// Unmount releases the change subscription and stops applying fetches. Safe to call twice.
func (v *MatchView) Unmount() {
	v.mu.Lock()
	if v.unmounted {
		v.mu.Unlock()
		return
	}
	v.unmounted = true
	release := v.release
	v.release = nil
	v.mu.Unlock()

	if release != nil {
		release()
	}
	v.coordinator.Close()
}
