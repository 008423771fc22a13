package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestFetchCoordinator_AtMostOneInFlight(t *testing.T) {
	ledger := new(testhelpers.MockLedgerService)
	snapshot := testhelpers.NewSnapshot("m-1", "alice", 1, "5").Build()

	release := make(chan struct{})
	ledger.On("ReadMatch", mock.Anything, "m-1").
		Run(func(mock.Arguments) { <-release }).
		Return(snapshot, nil).Once()

	c := NewFetchCoordinator("m-1", ledger)

	var wg sync.WaitGroup
	wg.Add(1)
	var first *entities.MatchSnapshot
	go func() {
		defer wg.Done()
		first, _ = c.Refresh(context.Background(), RefreshOptions{})
	}()

	require.Eventually(t, c.InFlight, time.Second, time.Millisecond)

	second, err := c.Refresh(context.Background(), RefreshOptions{Background: true})
	require.NoError(t, err)
	assert.Nil(t, second)

	close(release)
	wg.Wait()

	assert.Equal(t, snapshot, first)
	assert.False(t, c.InFlight())
	assert.Equal(t, 1, c.Stats().Fetches)
	assert.Equal(t, 1, c.Stats().Skipped)
	ledger.AssertNumberOfCalls(t, "ReadMatch", 1)
}

func TestFetchCoordinator_FollowWaitsForInFlightFetch(t *testing.T) {
	ledger := new(testhelpers.MockLedgerService)
	stale := testhelpers.NewSnapshot("m-1", "alice", 1, "5").Build()
	fresh := testhelpers.NewSnapshot("m-1", "alice", 1, "5").With("bob", entities.SideB).Status(entities.MatchStatusReadyCheck).Build()

	release := make(chan struct{})
	ledger.On("ReadMatch", mock.Anything, "m-1").
		Run(func(mock.Arguments) { <-release }).
		Return(stale, nil).Once()
	ledger.On("ReadMatch", mock.Anything, "m-1").Return(fresh, nil).Once()

	c := NewFetchCoordinator("m-1", ledger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = c.Refresh(context.Background(), RefreshOptions{Background: true})
	}()
	require.Eventually(t, c.InFlight, time.Second, time.Millisecond)

	done := make(chan *entities.MatchSnapshot)
	go func() {
		got, _ := c.Refresh(context.Background(), RefreshOptions{Background: true, Follow: true})
		done <- got
	}()

	select {
	case <-done:
		t.Fatal("follow refresh returned while a fetch was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	got := <-done
	wg.Wait()

	assert.Equal(t, fresh, got)
	assert.Equal(t, fresh, c.Snapshot())
	assert.Equal(t, 2, c.Stats().Fetches)
	assert.Zero(t, c.Stats().Skipped)
	ledger.AssertNumberOfCalls(t, "ReadMatch", 2)
}

func TestFetchCoordinator_FollowHonorsContext(t *testing.T) {
	ledger := new(testhelpers.MockLedgerService)
	release := make(chan struct{})
	ledger.On("ReadMatch", mock.Anything, "m-1").
		Run(func(mock.Arguments) { <-release }).
		Return(testhelpers.NewSnapshot("m-1", "alice", 1, "5").Build(), nil).Once()

	c := NewFetchCoordinator("m-1", ledger)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = c.Refresh(context.Background(), RefreshOptions{})
	}()
	require.Eventually(t, c.InFlight, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := c.Refresh(ctx, RefreshOptions{Background: true, Follow: true})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, got)

	close(release)
	wg.Wait()
	ledger.AssertNumberOfCalls(t, "ReadMatch", 1)
}

func TestFetchCoordinator_InitialLoadFailure(t *testing.T) {
	ledger := new(testhelpers.MockLedgerService)
	ledger.On("ReadMatch", mock.Anything, "m-1").Return(nil, entities.ErrMatchNotFound)

	c := NewFetchCoordinator("m-1", ledger)
	snapshot, err := c.Refresh(context.Background(), RefreshOptions{})

	assert.Nil(t, snapshot)
	assert.ErrorIs(t, err, ErrInitialLoadFailed)
	assert.ErrorIs(t, err, entities.ErrMatchNotFound)
	assert.False(t, c.InFlight(), "in-flight flag must be released on error")
	assert.Nil(t, c.Snapshot())
}

func TestFetchCoordinator_BackgroundFailureKeepsLastSnapshot(t *testing.T) {
	ledger := new(testhelpers.MockLedgerService)
	snapshot := testhelpers.NewSnapshot("m-1", "alice", 1, "5").Build()
	ledger.On("ReadMatch", mock.Anything, "m-1").Return(snapshot, nil).Once()
	ledger.On("ReadMatch", mock.Anything, "m-1").Return(nil, errors.New("connection reset")).Once()

	c := NewFetchCoordinator("m-1", ledger)
	_, err := c.Refresh(context.Background(), RefreshOptions{})
	require.NoError(t, err)

	got, err := c.Refresh(context.Background(), RefreshOptions{Background: true})
	require.NoError(t, err)
	assert.Equal(t, snapshot, got)
	assert.Equal(t, snapshot, c.Snapshot())
	assert.Equal(t, 1, c.Stats().Failures)
}

func TestFetchCoordinator_AccessDeniedFallsBackToPublic(t *testing.T) {
	full := testhelpers.NewSnapshot("m-1", "alice", 2, "5").Private().Build()
	public := entities.NewPublicSnapshot(full)

	t.Run("public read succeeds", func(t *testing.T) {
		ledger := new(testhelpers.MockLedgerService)
		ledger.On("ReadMatch", mock.Anything, "m-1").Return(nil, entities.ErrAccessDenied)
		ledger.On("ReadMatchPublic", mock.Anything, "m-1").Return(public, nil)

		c := NewFetchCoordinator("m-1", ledger)
		snapshot, err := c.Refresh(context.Background(), RefreshOptions{})
		require.NoError(t, err)

		assert.True(t, snapshot.Public)
		assert.Empty(t, snapshot.Participants)
		assert.Equal(t, 1, snapshot.CountSide(entities.SideA))
		assert.Equal(t, entities.MatchStatusOpen, snapshot.Match.Status)
		assert.False(t, snapshot.FetchedAt.IsZero())
		assert.Equal(t, 1, c.Stats().Fallbacks)
	})

	t.Run("public read fails too", func(t *testing.T) {
		ledger := new(testhelpers.MockLedgerService)
		ledger.On("ReadMatch", mock.Anything, "m-1").Return(nil, entities.ErrAccessDenied)
		ledger.On("ReadMatchPublic", mock.Anything, "m-1").Return(nil, errors.New("timeout"))

		c := NewFetchCoordinator("m-1", ledger)
		_, err := c.Refresh(context.Background(), RefreshOptions{})
		assert.ErrorIs(t, err, ErrInitialLoadFailed)
	})
}

func TestFetchCoordinator_DiscardsResultAfterClose(t *testing.T) {
	ledger := new(testhelpers.MockLedgerService)
	snapshot := testhelpers.NewSnapshot("m-1", "alice", 1, "5").Build()

	release := make(chan struct{})
	ledger.On("ReadMatch", mock.Anything, "m-1").
		Run(func(mock.Arguments) { <-release }).
		Return(snapshot, nil)

	c := NewFetchCoordinator("m-1", ledger)
	notified := 0
	c.OnSnapshot(func(*entities.MatchSnapshot) { notified++ })

	done := make(chan struct{})
	go func() {
		defer close(done)
		got, err := c.Refresh(context.Background(), RefreshOptions{Background: true})
		assert.NoError(t, err)
		assert.Nil(t, got)
	}()

	require.Eventually(t, c.InFlight, time.Second, time.Millisecond)
	c.Close()
	close(release)
	<-done

	assert.Nil(t, c.Snapshot())
	assert.Equal(t, 0, notified)
	assert.Equal(t, 1, c.Stats().Discarded)

	// Closed coordinators do not fetch again
	got, err := c.Refresh(context.Background(), RefreshOptions{})
	assert.NoError(t, err)
	assert.Nil(t, got)
	ledger.AssertNumberOfCalls(t, "ReadMatch", 1)
}

func TestFetchCoordinator_ListenersSeeEverySnapshot(t *testing.T) {
	ledger := new(testhelpers.MockLedgerService)
	open := testhelpers.NewSnapshot("m-1", "alice", 1, "5").Build()
	ready := testhelpers.NewSnapshot("m-1", "alice", 1, "5").With("bob", entities.SideB).Status(entities.MatchStatusReadyCheck).Build()
	ledger.On("ReadMatch", mock.Anything, "m-1").Return(open, nil).Once()
	ledger.On("ReadMatch", mock.Anything, "m-1").Return(ready, nil).Once()

	c := NewFetchCoordinator("m-1", ledger)
	var seen []entities.MatchStatus
	c.OnSnapshot(func(s *entities.MatchSnapshot) { seen = append(seen, s.Match.Status) })

	_, err := c.Refresh(context.Background(), RefreshOptions{})
	require.NoError(t, err)
	_, err = c.Refresh(context.Background(), RefreshOptions{Background: true})
	require.NoError(t, err)

	assert.Equal(t, []entities.MatchStatus{entities.MatchStatusOpen, entities.MatchStatusReadyCheck}, seen)
	assert.Same(t, ready, c.Snapshot())
}
