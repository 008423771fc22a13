package services

import (
	"context"
	"testing"
	"time"

	"gambler/arena/config"
	"gambler/arena/domain/entities"
	"gambler/arena/domain/lifecycle"
	"gambler/arena/domain/testhelpers"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// serviceHarness runs a match service over an in-memory store with a stepping clock
type serviceHarness struct {
	t      *testing.T
	ctx    context.Context
	store  *testhelpers.MemoryStore
	events *testhelpers.EventRecorder
	svc    *matchService
	clock  time.Time
}

func newServiceHarness(t *testing.T) *serviceHarness {
	t.Helper()
	config.SetTestConfig(config.NewTestConfig())
	t.Cleanup(config.ResetConfig)

	store := testhelpers.NewMemoryStore()
	recorder := &testhelpers.EventRecorder{}
	h := &serviceHarness{
		t:      t,
		ctx:    context.Background(),
		store:  store,
		events: recorder,
		clock:  testhelpers.FixtureNow,
	}
	h.svc = NewMatchService(
		store.Matches(),
		store.Participants(),
		store.Results(),
		store.Wallets(),
		store.LedgerEntries(),
		recorder,
	).(*matchService)
	h.svc.now = h.tick
	return h
}

// tick advances the clock one second per read so join order is strict
func (h *serviceHarness) tick() time.Time {
	h.clock = h.clock.Add(time.Second)
	return h.clock
}

func player(id string) lifecycle.Actor {
	return lifecycle.Actor{UserID: id}
}

func admin() lifecycle.Actor {
	return lifecycle.Actor{UserID: "admin-1", IsAdmin: true}
}

func (h *serviceHarness) create(creator string, teamSize int, fee string) string {
	h.t.Helper()
	res, err := h.svc.CreateMatch(h.ctx, player(creator), entities.CreateMatchParams{
		TeamSize: teamSize,
		EntryFee: decimal.RequireFromString(fee),
		Region:   "eu-west",
	})
	require.NoError(h.t, err)
	require.True(h.t, res.Success, "create failed: %s", res.ReasonCode)
	return res.MatchID
}

func (h *serviceHarness) join(matchID, user string, side entities.TeamSide) entities.ActionResult {
	h.t.Helper()
	s := side
	res, err := h.svc.JoinMatch(h.ctx, player(user), matchID, entities.JoinOptions{Side: &s})
	require.NoError(h.t, err)
	return res
}

func (h *serviceHarness) mustSucceed(res entities.ActionResult, err error) entities.ActionResult {
	h.t.Helper()
	require.NoError(h.t, err)
	require.True(h.t, res.Success, "expected success, got %s: %s", res.ReasonCode, res.Message)
	return res
}

func (h *serviceHarness) status(matchID string) entities.MatchStatus {
	h.t.Helper()
	snap := h.store.Snapshot(matchID)
	require.NotNil(h.t, snap)
	return snap.Match.Status
}

func (h *serviceHarness) available(userID string) decimal.Decimal {
	h.t.Helper()
	w := h.store.Wallet(userID)
	require.NotNil(h.t, w)
	return w.Available
}

func (h *serviceHarness) locked(userID string) decimal.Decimal {
	h.t.Helper()
	w := h.store.Wallet(userID)
	require.NotNil(h.t, w)
	return w.Locked
}

// total sums available and locked across users plus platform fees
func (h *serviceHarness) total(userIDs ...string) decimal.Decimal {
	sum := decimal.Zero
	for _, id := range userIDs {
		if w := h.store.Wallet(id); w != nil {
			sum = sum.Add(w.Total())
		}
	}
	for _, e := range h.store.Ledger() {
		if e.IsPlatformFee() {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// startOneVsOne creates a 1v1 match, seats the opponent and readies both
func (h *serviceHarness) startOneVsOne(a, b, fee string) string {
	h.t.Helper()
	id := h.create(a, 1, fee)
	h.mustSucceed(h.join(id, b, entities.SideB), nil)
	h.mustSucceed(h.svc.SetReady(h.ctx, player(a), id))
	h.mustSucceed(h.svc.SetReady(h.ctx, player(b), id))
	require.Equal(h.t, entities.MatchStatusInProgress, h.status(id))
	return id
}
