package application

import (
	"context"
	"testing"

	"gambler/arena/domain/events"
	eventbus "gambler/arena/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeFeed_SharesOneDebouncerPerMatch(t *testing.T) {
	bus := eventbus.NewBus()
	channel := &countingChannel{inner: eventbus.NewChangeChannel(bus)}
	scheduler := &manualScheduler{}
	feed := NewChangeFeed(channel, DefaultDebounceWindow, scheduler)

	var first, second int
	releaseFirst, err := feed.Subscribe(context.Background(), "m-1", func() { first++ })
	require.NoError(t, err)
	releaseSecond, err := feed.Subscribe(context.Background(), "m-1", func() { second++ })
	require.NoError(t, err)

	assert.Equal(t, len(events.Tables), channel.Live(), "one stream per table, shared")
	assert.Equal(t, 2, feed.Subscribers("m-1"))

	emitChange(bus, "m-1", events.TableMatches)
	emitChange(bus, "m-1", events.TableResults)
	scheduler.Advance(DefaultDebounceWindow)

	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)

	releaseFirst()
	releaseFirst()
	assert.Equal(t, 1, feed.Subscribers("m-1"))
	assert.Equal(t, len(events.Tables), channel.Live())

	releaseSecond()
	assert.Equal(t, 0, feed.Subscribers("m-1"))
	assert.Equal(t, 0, channel.Live())

	emitChange(bus, "m-1", events.TableMatches)
	scheduler.Advance(DefaultDebounceWindow)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestChangeFeed_ReleaseCancelsPendingTimer(t *testing.T) {
	bus := eventbus.NewBus()
	scheduler := &manualScheduler{}
	feed := NewChangeFeed(eventbus.NewChangeChannel(bus), DefaultDebounceWindow, scheduler)

	calls := 0
	release, err := feed.Subscribe(context.Background(), "m-1", func() { calls++ })
	require.NoError(t, err)

	emitChange(bus, "m-1", events.TableParticipants)
	assert.Equal(t, 1, scheduler.Active())

	release()
	assert.Equal(t, 0, scheduler.Active())
	scheduler.Advance(DefaultDebounceWindow)
	assert.Equal(t, 0, calls)
}

func TestChangeFeed_ResubscribeAfterRelease(t *testing.T) {
	bus := eventbus.NewBus()
	channel := &countingChannel{inner: eventbus.NewChangeChannel(bus)}
	scheduler := &manualScheduler{}
	feed := NewChangeFeed(channel, DefaultDebounceWindow, scheduler)

	release, err := feed.Subscribe(context.Background(), "m-1", func() {})
	require.NoError(t, err)
	release()

	calls := 0
	release, err = feed.Subscribe(context.Background(), "m-1", func() { calls++ })
	require.NoError(t, err)
	defer release()

	emitChange(bus, "m-1", events.TableMatches)
	scheduler.Advance(DefaultDebounceWindow)
	assert.Equal(t, 1, calls)
	assert.Equal(t, len(events.Tables), channel.Live())
}

func TestChangeFeed_CanceledContext(t *testing.T) {
	feed := NewChangeFeed(eventbus.NewChangeChannel(eventbus.NewBus()), DefaultDebounceWindow, &manualScheduler{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	release, err := feed.Subscribe(ctx, "m-1", func() {})
	assert.Error(t, err)
	assert.Nil(t, release)
	assert.Equal(t, 0, feed.Subscribers("m-1"))
}
