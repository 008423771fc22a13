package application

import (
	"context"
	"errors"
	"testing"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMatchView_OneVersusOneFlow(t *testing.T) {
	a := newArena(t)
	ctx := context.Background()
	matchID := a.create("alice", 1, "5", false)

	alice := a.view("alice", matchID)
	bob := a.view("bob", matchID)
	a.mount(alice)
	a.mount(bob)

	assert.Equal(t, 3, a.channel.Live(), "views of one match share the streams")
	assert.Equal(t, 2, a.feed.Subscribers(matchID))

	state := bob.State()
	require.True(t, state.Ready)
	assert.True(t, state.Permissions.CanJoin)
	assert.False(t, state.Permissions.IsParticipant)

	res, err := bob.Actions().Join(ctx, entities.JoinOptions{})
	require.NoError(t, err)
	require.True(t, res.Success, "join refused: %s", res.ReasonCode)

	// The actor's own view refreshes right after a success
	assert.Equal(t, entities.MatchStatusReadyCheck, bob.State().Snapshot.Match.Status)
	assert.Equal(t, entities.SideB, bob.State().Permissions.MySide)

	// The other view catches up once the change burst settles
	assert.Equal(t, entities.MatchStatusOpen, alice.State().Snapshot.Match.Status)
	a.settle()
	assert.Equal(t, entities.MatchStatusReadyCheck, alice.State().Snapshot.Match.Status)
	assert.True(t, alice.State().Permissions.CanReady)
	assert.False(t, alice.State().Permissions.CanCancel)

	for _, v := range []*MatchView{alice, bob} {
		res, err := v.Actions().Ready(ctx)
		require.NoError(t, err)
		require.True(t, res.Success, "ready refused: %s", res.ReasonCode)
	}
	a.settle()
	assert.Equal(t, entities.MatchStatusInProgress, alice.State().Snapshot.Match.Status)
	assert.True(t, alice.State().Permissions.CanDeclareResult)

	// Once in progress nobody may leave
	res, err = bob.Actions().Leave(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.ClassState, res.ReasonCode.Class())

	res, err = alice.Actions().DeclareResult(ctx, entities.ResultWin)
	require.NoError(t, err)
	require.True(t, res.Success)
	res, err = bob.Actions().DeclareResult(ctx, entities.ResultLoss)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.Settlement)
	assert.Equal(t, "9.5", res.Settlement.Prize.String())
	assert.Equal(t, "0.5", res.Settlement.PlatformFee.String())

	a.settle()
	assert.Equal(t, entities.MatchStatusCompleted, alice.State().Snapshot.Match.Status)
	assert.False(t, alice.State().Permissions.CanDispute)

	assert.Equal(t, "104.5", a.factory.Store.Wallet("alice").Available.String())
	assert.Equal(t, "95", a.factory.Store.Wallet("bob").Available.String())
	assert.True(t, a.factory.Store.Wallet("bob").Locked.IsZero())
}

func TestMatchView_PrivateMatchFallsBackToPublicRead(t *testing.T) {
	a := newArena(t)
	ctx := context.Background()
	matchID := a.create("alice", 1, "5", true)

	carol := a.view("carol", matchID)
	a.mount(carol)

	snapshot := carol.State().Snapshot
	require.NotNil(t, snapshot)
	assert.True(t, snapshot.Public)
	assert.Empty(t, snapshot.Participants)
	assert.Equal(t, 1, snapshot.CountSide(entities.SideA))
	assert.True(t, carol.State().Permissions.CanJoin)
	assert.Equal(t, 1, carol.Coordinator().Stats().Fallbacks)

	res, err := carol.Actions().Join(ctx, entities.JoinOptions{})
	require.NoError(t, err)
	require.True(t, res.Success)

	snapshot = carol.State().Snapshot
	assert.False(t, snapshot.Public)
	assert.Len(t, snapshot.Participants, 2)
	assert.True(t, carol.State().Permissions.IsParticipant)
}

func TestMatchView_AdminSeesPrivateMatch(t *testing.T) {
	a := newArena(t)
	matchID := a.create("alice", 1, "5", true)

	admin := a.view("admin-1", matchID)
	a.mount(admin)

	state := admin.State()
	assert.False(t, state.Snapshot.Public)
	assert.True(t, state.Permissions.IsAdminSpectator)
	assert.False(t, state.Permissions.CanJoin)
}

func TestMatchView_InitialFailureNavigatesAway(t *testing.T) {
	a := newArena(t)

	var navigated error
	v := NewMatchView("missing", a.ledger("bob"), StaticIdentity{UserID: "bob"}, a.feed, func(err error) { navigated = err })

	err := v.Mount(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInitialLoadFailed)
	assert.ErrorIs(t, navigated, entities.ErrMatchNotFound)
	assert.Equal(t, 0, a.feed.Subscribers("missing"))
	assert.Equal(t, 0, a.channel.Live())
	assert.False(t, v.State().Ready)
}

func TestMatchView_UnmountStopsUpdates(t *testing.T) {
	a := newArena(t)
	matchID := a.create("alice", 1, "5", false)

	alice := a.view("alice", matchID)
	require.NoError(t, alice.Mount(context.Background()))

	emitChange(a.bus, matchID, "matches")
	alice.Unmount()
	alice.Unmount()

	assert.Equal(t, 0, a.scheduler.Active(), "pending refresh canceled")
	assert.Equal(t, 0, a.channel.Live())

	fetches := alice.Coordinator().Stats().Fetches
	a.settle()
	assert.Equal(t, fetches, alice.Coordinator().Stats().Fetches)

	// Mounting again after unmount is a no-op
	require.NoError(t, alice.Mount(context.Background()))
	assert.Equal(t, 0, a.feed.Subscribers(matchID))
}

func TestMatchView_DegradesWithoutLiveUpdates(t *testing.T) {
	ledger := new(testhelpers.MockLedgerService)
	ledger.On("ReadMatch", mock.Anything, "m-1").Return(testhelpers.NewSnapshot("m-1", "alice", 1, "5").Build(), nil)

	channel := new(testhelpers.MockChangeChannel)
	channel.On("Subscribe", mock.Anything, "m-1", mock.Anything, mock.Anything).Return(nil, errors.New("realtime unavailable"))

	feed := NewChangeFeed(channel, DefaultDebounceWindow, &manualScheduler{})
	v := NewMatchView("m-1", ledger, StaticIdentity{UserID: "bob"}, feed, nil)

	require.NoError(t, v.Mount(context.Background()))
	defer v.Unmount()

	assert.True(t, v.State().Ready)
	assert.True(t, v.State().Permissions.CanJoin)
}
