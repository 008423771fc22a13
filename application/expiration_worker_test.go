package application

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExpirer struct {
	calls atomic.Int32
	err   error
}

func (e *countingExpirer) ExpireMatches(ctx context.Context, now time.Time) (int, error) {
	e.calls.Add(1)
	return 0, e.err
}

func TestExpirationWorker_RunOnceExpiresStaleMatches(t *testing.T) {
	a := newArena(t)
	matchID := a.create("alice", 2, "5", false)

	worker := NewExpirationWorker(a.commands, 0)
	assert.Equal(t, 0, worker.RunOnce(context.Background()), "not yet due")

	worker.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	assert.Equal(t, 1, worker.RunOnce(context.Background()))

	snapshot := a.factory.Store.Snapshot(matchID)
	require.NotNil(t, snapshot)
	assert.Equal(t, "expired", snapshot.Match.Status.String())
	assert.Equal(t, "100", a.factory.Store.Wallet("alice").Available.String())
	assert.True(t, a.factory.Store.Wallet("alice").Locked.IsZero())

	assert.Equal(t, 0, worker.RunOnce(context.Background()), "already expired")
}

func TestExpirationWorker_ErrorsAreLogged(t *testing.T) {
	expirer := &countingExpirer{err: errors.New("database unavailable")}
	worker := NewExpirationWorker(expirer, time.Minute)

	assert.Equal(t, 0, worker.RunOnce(context.Background()))
	assert.Equal(t, int32(1), expirer.calls.Load())
}

func TestExpirationWorker_StartAndStop(t *testing.T) {
	expirer := &countingExpirer{}
	worker := NewExpirationWorker(expirer, 5*time.Millisecond)

	stop := worker.Start(context.Background())
	require.Eventually(t, func() bool { return expirer.calls.Load() >= 2 }, time.Second, time.Millisecond)

	stop()
	stop()

	time.Sleep(20 * time.Millisecond)
	calls := expirer.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, expirer.calls.Load())
}

func TestExpirationWorker_StopsWithContext(t *testing.T) {
	expirer := &countingExpirer{}
	worker := NewExpirationWorker(expirer, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer worker.Start(ctx)()
	require.Eventually(t, func() bool { return expirer.calls.Load() >= 1 }, time.Second, time.Millisecond)
	cancel()

	time.Sleep(20 * time.Millisecond)
	calls := expirer.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, expirer.calls.Load())
}
