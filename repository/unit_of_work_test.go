package repository

import (
	"context"
	"testing"

	"gambler/arena/domain/events"
	eventbus "gambler/arena/events"
	"gambler/arena/repository/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork_CommitFlushesEvents(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := eventbus.NewBus()
	var delivered []events.Event
	bus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, e events.Event) {
		delivered = append(delivered, e)
	})
	factory := NewUnitOfWorkFactory(testDB.DB, bus)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	_, _, err := uow.WalletRepository().GetOrCreate(ctx, "user-1", decimal.NewFromInt(100))
	require.NoError(t, err)
	require.NoError(t, uow.EventBus().Publish(events.BalanceChangeEvent{UserID: "user-1"}))
	assert.Empty(t, delivered)

	require.NoError(t, uow.Commit())
	assert.Len(t, delivered, 1)

	wallet, err := NewWalletRepository(testDB.DB).GetForUpdate(ctx, "user-1")
	require.NoError(t, err)
	assert.NotNil(t, wallet)
}

func TestUnitOfWork_RollbackDiscardsEvents(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := eventbus.NewBus()
	delivered := 0
	bus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, e events.Event) {
		delivered++
	})
	factory := NewUnitOfWorkFactory(testDB.DB, bus)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	_, _, err := uow.WalletRepository().GetOrCreate(ctx, "user-1", decimal.NewFromInt(100))
	require.NoError(t, err)
	require.NoError(t, uow.EventBus().Publish(events.BalanceChangeEvent{UserID: "user-1"}))

	require.NoError(t, uow.Rollback())
	require.NoError(t, uow.Rollback())
	assert.Zero(t, delivered)

	wallet, err := NewWalletRepository(testDB.DB).GetForUpdate(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, wallet)
}

func TestUnitOfWork_GettersPanicBeforeBegin(t *testing.T) {
	uow := (&UnitOfWorkFactory{}).Create()
	assert.Panics(t, func() { uow.MatchRepository() })
	assert.Panics(t, func() { uow.WalletRepository() })
	assert.Error(t, uow.Commit())
}
