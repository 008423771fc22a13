package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gambler/arena/domain/entities"
	"gambler/arena/domain/testhelpers"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// primedGateway returns a gateway whose coordinator already holds snapshot
func primedGateway(t *testing.T, userID string, snapshot *entities.MatchSnapshot) (*ActionGateway, *testhelpers.MockLedgerService) {
	t.Helper()
	ledger := new(testhelpers.MockLedgerService)
	ledger.On("ReadMatch", mock.Anything, snapshot.Match.ID).Return(snapshot, nil)

	coordinator := NewFetchCoordinator(snapshot.Match.ID, ledger)
	_, err := coordinator.Refresh(context.Background(), RefreshOptions{})
	require.NoError(t, err)

	return NewActionGateway(ledger, StaticIdentity{UserID: userID}, coordinator), ledger
}

func TestActionGateway_LocalGuardSkipsRemoteCall(t *testing.T) {
	tests := []struct {
		name     string
		snapshot *entities.MatchSnapshot
		user     string
		act      func(g *ActionGateway) (entities.ActionResult, error)
		remote   string
		expected entities.ReasonCode
	}{
		{
			name:     "leave while in progress",
			snapshot: testhelpers.NewSnapshot("m-1", "alice", 1, "5").With("bob", entities.SideB).AllReady().Status(entities.MatchStatusInProgress).Build(),
			user:     "bob",
			act:      func(g *ActionGateway) (entities.ActionResult, error) { return g.Leave(context.Background()) },
			remote:   "LeaveMatch",
			expected: entities.ReasonInvalidMatchState,
		},
		{
			name:     "join own match",
			snapshot: testhelpers.NewSnapshot("m-1", "alice", 2, "5").Build(),
			user:     "alice",
			act: func(g *ActionGateway) (entities.ActionResult, error) {
				return g.Join(context.Background(), entities.JoinOptions{})
			},
			remote:   "JoinMatch",
			expected: entities.ReasonAlreadyParticipant,
		},
		{
			name:     "cancel by non creator",
			snapshot: testhelpers.NewSnapshot("m-1", "alice", 2, "5").Build(),
			user:     "bob",
			act:      func(g *ActionGateway) (entities.ActionResult, error) { return g.Cancel(context.Background()) },
			remote:   "CancelMatch",
			expected: entities.ReasonNotCreator,
		},
		{
			name:     "resolve without admin",
			snapshot: testhelpers.NewSnapshot("m-1", "alice", 1, "5").With("bob", entities.SideB).Status(entities.MatchStatusDisputed).Build(),
			user:     "alice",
			act: func(g *ActionGateway) (entities.ActionResult, error) {
				return g.Resolve(context.Background(), entities.AdminAwardSideA, nil)
			},
			remote:   "AdminResolve",
			expected: entities.ReasonNotAdmin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, ledger := primedGateway(t, tt.user, tt.snapshot)

			result, err := tt.act(g)
			require.NoError(t, err)
			assert.False(t, result.Success)
			assert.Equal(t, tt.expected, result.ReasonCode)
			ledger.AssertNumberOfCalls(t, tt.remote, 0)
			ledger.AssertNumberOfCalls(t, "ReadMatch", 1)
		})
	}
}

func TestActionGateway_LeaveWhileInProgressIsStateClass(t *testing.T) {
	snapshot := testhelpers.NewSnapshot("m-1", "alice", 1, "5").With("bob", entities.SideB).AllReady().Status(entities.MatchStatusInProgress).Build()
	g, _ := primedGateway(t, "bob", snapshot)

	result, err := g.Leave(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entities.ClassState, result.ReasonCode.Class())
	assert.Equal(t, "That action isn't available at this stage of the match.", result.UserMessage())
}

func TestActionGateway_SecondActionWhilePending(t *testing.T) {
	snapshot := testhelpers.NewSnapshot("m-1", "alice", 1, "5").With("bob", entities.SideB).Status(entities.MatchStatusReadyCheck).Build()
	g, ledger := primedGateway(t, "bob", snapshot)

	release := make(chan struct{})
	ledger.On("SetReady", mock.Anything, "m-1").
		Run(func(mock.Arguments) { <-release }).
		Return(entities.Succeeded("m-1", entities.MatchStatusReadyCheck), nil).Once()

	var wg sync.WaitGroup
	wg.Add(1)
	var first entities.ActionResult
	go func() {
		defer wg.Done()
		first, _ = g.Ready(context.Background())
	}()

	require.Eventually(t, g.Pending, time.Second, time.Millisecond)

	second, err := g.Leave(context.Background())
	require.NoError(t, err)
	assert.Equal(t, entities.ReasonActionPending, second.ReasonCode)

	close(release)
	wg.Wait()

	assert.True(t, first.Success)
	assert.False(t, g.Pending())
	ledger.AssertNumberOfCalls(t, "LeaveMatch", 0)
}

func TestActionGateway_SuccessRefreshesSnapshot(t *testing.T) {
	snapshot := testhelpers.NewSnapshot("m-1", "alice", 1, "5").Build()
	g, ledger := primedGateway(t, "bob", snapshot)
	ledger.On("JoinMatch", mock.Anything, "m-1", mock.Anything).Return(entities.Succeeded("m-1", entities.MatchStatusFull), nil)

	result, err := g.Join(context.Background(), entities.JoinOptions{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	ledger.AssertNumberOfCalls(t, "ReadMatch", 2)
}

func TestActionGateway_RefreshWaitsOutChangeFeedFetch(t *testing.T) {
	before := testhelpers.NewSnapshot("m-1", "alice", 1, "5").Build()
	after := testhelpers.NewSnapshot("m-1", "alice", 1, "5").With("bob", entities.SideB).Status(entities.MatchStatusReadyCheck).Build()

	ledger := new(testhelpers.MockLedgerService)
	release := make(chan struct{})
	ledger.On("ReadMatch", mock.Anything, "m-1").Return(before, nil).Once()
	ledger.On("ReadMatch", mock.Anything, "m-1").
		Run(func(mock.Arguments) { <-release }).
		Return(before, nil).Once()
	ledger.On("ReadMatch", mock.Anything, "m-1").Return(after, nil).Once()
	ledger.On("JoinMatch", mock.Anything, "m-1", mock.Anything).
		Run(func(mock.Arguments) {
			go func() {
				time.Sleep(10 * time.Millisecond)
				close(release)
			}()
		}).
		Return(entities.Succeeded("m-1", entities.MatchStatusReadyCheck), nil)

	coordinator := NewFetchCoordinator("m-1", ledger)
	_, err := coordinator.Refresh(context.Background(), RefreshOptions{})
	require.NoError(t, err)
	g := NewActionGateway(ledger, StaticIdentity{UserID: "bob"}, coordinator)

	// a change notification started a fetch that predates the join
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = coordinator.Refresh(context.Background(), RefreshOptions{Background: true})
	}()
	require.Eventually(t, coordinator.InFlight, time.Second, time.Millisecond)

	result, err := g.Join(context.Background(), entities.JoinOptions{})
	require.NoError(t, err)
	assert.True(t, result.Success)

	snap := coordinator.Snapshot()
	require.NotNil(t, snap.Participant("bob"), "snapshot after a successful join must include the seat")
	assert.Equal(t, entities.MatchStatusReadyCheck, snap.Match.Status)

	wg.Wait()
	ledger.AssertNumberOfCalls(t, "ReadMatch", 3)
}

func TestActionGateway_RefusalDoesNotRefresh(t *testing.T) {
	snapshot := testhelpers.NewSnapshot("m-1", "alice", 1, "5").Build()
	g, ledger := primedGateway(t, "bob", snapshot)
	ledger.On("JoinMatch", mock.Anything, "m-1", mock.Anything).
		Return(entities.Failed(entities.ReasonInsufficientBalance, "available 2 below entry fee 5"), nil)

	result, err := g.Join(context.Background(), entities.JoinOptions{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, entities.ClassFunds, result.ReasonCode.Class())
	assert.Equal(t, entities.ReasonInsufficientBalance.UserMessage(), result.UserMessage())
	ledger.AssertNumberOfCalls(t, "ReadMatch", 1)
}

func TestActionGateway_UnknownReasonNormalized(t *testing.T) {
	snapshot := testhelpers.NewSnapshot("m-1", "alice", 1, "5").Build()
	g, ledger := primedGateway(t, "bob", snapshot)
	ledger.On("JoinMatch", mock.Anything, "m-1", mock.Anything).
		Return(entities.ActionResult{Success: false, ReasonCode: "QUEUE_FROZEN"}, nil)

	result, err := g.Join(context.Background(), entities.JoinOptions{})
	require.NoError(t, err)
	assert.Equal(t, entities.ReasonUnknown, result.ReasonCode)
	assert.Equal(t, entities.ClassTransport, result.ReasonCode.Class())
}

func TestActionGateway_TransportError(t *testing.T) {
	snapshot := testhelpers.NewSnapshot("m-1", "alice", 1, "5").Build()
	g, ledger := primedGateway(t, "bob", snapshot)
	ledger.On("JoinMatch", mock.Anything, "m-1", mock.Anything).
		Return(entities.ActionResult{}, errors.New("connection reset"))

	result, err := g.Join(context.Background(), entities.JoinOptions{})
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, entities.ReasonUnknown, result.ReasonCode)
	assert.False(t, g.Pending())
	ledger.AssertNumberOfCalls(t, "ReadMatch", 1)
}

func TestActionGateway_ReconcilesSettlement(t *testing.T) {
	snapshot := testhelpers.NewSnapshot("m-1", "alice", 1, "5").
		With("bob", entities.SideB).
		AllReady().
		Declared("bob", entities.ResultLoss).
		Status(entities.MatchStatusResultPending).
		Build()

	t.Run("agreeing settlement logs nothing", func(t *testing.T) {
		hook := test.NewGlobal()
		defer hook.Reset()

		g, ledger := primedGateway(t, "alice", snapshot)
		server := entities.SettleSnapshot(snapshot, entities.SideA)
		result := entities.Succeeded("m-1", entities.MatchStatusCompleted)
		result.Settlement = &server
		ledger.On("DeclareResult", mock.Anything, "m-1", entities.ResultWin).Return(result, nil)

		got, err := g.DeclareResult(context.Background(), entities.ResultWin)
		require.NoError(t, err)
		assert.True(t, got.Success)
		for _, e := range hook.AllEntries() {
			assert.NotEqual(t, log.WarnLevel, e.Level, e.Message)
		}
	})

	t.Run("server wins a disagreement", func(t *testing.T) {
		hook := test.NewGlobal()
		defer hook.Reset()

		g, ledger := primedGateway(t, "alice", snapshot)
		server := entities.PrizeSplit{
			TotalPool:   decimal.NewFromInt(10),
			Prize:       decimal.RequireFromString("9.4"),
			PlatformFee: decimal.RequireFromString("0.6"),
			Payouts:     map[string]decimal.Decimal{"alice": decimal.RequireFromString("9.4")},
		}
		result := entities.Succeeded("m-1", entities.MatchStatusCompleted)
		result.Settlement = &server
		ledger.On("DeclareResult", mock.Anything, "m-1", entities.ResultWin).Return(result, nil)

		got, err := g.DeclareResult(context.Background(), entities.ResultWin)
		require.NoError(t, err)
		require.NotNil(t, got.Settlement)
		assert.True(t, got.Settlement.Prize.Equal(decimal.RequireFromString("9.4")))

		var warned bool
		for _, e := range hook.AllEntries() {
			if e.Level == log.WarnLevel && e.Data["matchID"] == "m-1" {
				warned = true
				assert.Equal(t, "9.5", e.Data["localPrize"])
				assert.Equal(t, "9.4", e.Data["serverPrize"])
			}
		}
		assert.True(t, warned, "mismatch should be logged")
	})
}

func TestActionGateway_PreviewSettlement(t *testing.T) {
	snapshot := testhelpers.NewSnapshot("m-1", "alice", 2, "3").
		With("bob", entities.SideB).
		With("carol", entities.SideA).
		With("dave", entities.SideB).
		Status(entities.MatchStatusInProgress).
		Build()
	g, _ := primedGateway(t, "alice", snapshot)

	split, ok := g.PreviewSettlement(entities.SideB)
	require.True(t, ok)
	assert.Equal(t, "12", split.TotalPool.String())
	assert.Equal(t, "0.6", split.PlatformFee.String())
	assert.Equal(t, "5.7", split.Payouts["bob"].String())
	assert.Equal(t, "5.7", split.Payouts["dave"].String())
	require.NoError(t, split.Validate())

	_, ok = g.PreviewSettlement(entities.TeamSide("C"))
	assert.False(t, ok)
}
