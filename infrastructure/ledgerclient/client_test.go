package ledgerclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	httpapi "gambler/arena/api/http"
	"gambler/arena/application"
	"gambler/arena/config"
	"gambler/arena/domain/entities"
	"gambler/arena/domain/testhelpers"
	eventbus "gambler/arena/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.NewTestConfig()
	config.SetTestConfig(cfg)
	t.Cleanup(config.ResetConfig)

	commands := application.NewMatchCommands(testhelpers.NewMemoryUnitOfWorkFactory())
	server := httptest.NewServer(httpapi.NewServer(commands, cfg).Router())
	t.Cleanup(server.Close)
	return server
}

func clientFor(server *httptest.Server, userID string) *Client {
	return New(server.URL, application.StaticIdentity{UserID: userID}, server.Client())
}

func TestClient_RoundTrip(t *testing.T) {
	server := newLedgerServer(t)
	ctx := context.Background()
	alice := clientFor(server, "alice")
	bob := clientFor(server, "bob")

	created, err := alice.CreateMatch(ctx, entities.CreateMatchParams{TeamSize: 1, EntryFee: testhelpers.Decimal("5"), Region: "eu-west"})
	require.NoError(t, err)
	require.True(t, created.Success)

	side := entities.SideB
	joined, err := bob.JoinMatch(ctx, created.MatchID, entities.JoinOptions{Side: &side})
	require.NoError(t, err)
	require.True(t, joined.Success)

	snapshot, err := bob.ReadMatch(ctx, created.MatchID)
	require.NoError(t, err)
	assert.Equal(t, entities.MatchStatusReadyCheck, snapshot.Match.Status)
	require.NotNil(t, snapshot.Participant("bob"))
	assert.Equal(t, entities.SideB, snapshot.Participant("bob").Side)
	assert.True(t, snapshot.Participant("bob").LockedAmount.Equal(testhelpers.Decimal("5")))

	wallet, err := bob.ReadWallet(ctx)
	require.NoError(t, err)
	assert.Equal(t, "95", wallet.Available.String())
	assert.Equal(t, "5", wallet.Locked.String())
}

func TestClient_RefusalsAreResults(t *testing.T) {
	server := newLedgerServer(t)
	ctx := context.Background()

	created, err := clientFor(server, "alice").CreateMatch(ctx, entities.CreateMatchParams{TeamSize: 1, EntryFee: testhelpers.Decimal("5")})
	require.NoError(t, err)

	result, err := clientFor(server, "bob").CancelMatch(ctx, created.MatchID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, entities.ReasonNotCreator, result.ReasonCode)

	result, err = clientFor(server, "").SetReady(ctx, created.MatchID)
	require.NoError(t, err)
	assert.Equal(t, entities.ReasonNotAuthenticated, result.ReasonCode)
}

func TestClient_ReadSentinels(t *testing.T) {
	server := newLedgerServer(t)
	ctx := context.Background()

	created, err := clientFor(server, "alice").CreateMatch(ctx, entities.CreateMatchParams{TeamSize: 2, EntryFee: testhelpers.Decimal("1"), IsPrivate: true})
	require.NoError(t, err)

	carol := clientFor(server, "carol")
	_, err = carol.ReadMatch(ctx, created.MatchID)
	assert.ErrorIs(t, err, entities.ErrAccessDenied)

	public, err := carol.ReadMatchPublic(ctx, created.MatchID)
	require.NoError(t, err)
	assert.Equal(t, 1, public.SideCounts[entities.SideA])

	_, err = carol.ReadMatch(ctx, "missing")
	assert.ErrorIs(t, err, entities.ErrMatchNotFound)
}

func TestClient_TransportFailures(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	client := New(failing.URL, application.StaticIdentity{UserID: "alice"}, nil)

	_, err := client.SetReady(context.Background(), "m-1")
	assert.ErrorIs(t, err, ErrServer)

	_, err = client.ReadMatch(context.Background(), "m-1")
	assert.ErrorIs(t, err, ErrServer)

	unreachable := New("http://127.0.0.1:1", application.StaticIdentity{UserID: "alice"}, nil)
	_, err = unreachable.LeaveMatch(context.Background(), "m-1")
	assert.Error(t, err)
}

func TestClient_NormalizesUnknownReasons(t *testing.T) {
	var gotUser string
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get(UserHeader)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"success":false,"reason_code":"SEASON_LOCKED"}`))
	}))
	defer stub.Close()

	result, err := New(stub.URL+"/", application.StaticIdentity{UserID: "alice"}, nil).SetReady(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, entities.ReasonUnknown, result.ReasonCode)
}

func TestClient_DrivesMatchView(t *testing.T) {
	server := newLedgerServer(t)
	ctx := context.Background()

	created, err := clientFor(server, "alice").CreateMatch(ctx, entities.CreateMatchParams{TeamSize: 1, EntryFee: testhelpers.Decimal("2")})
	require.NoError(t, err)

	viewer := application.StaticIdentity{UserID: "bob"}
	feed := application.NewChangeFeed(eventbus.NewChangeChannel(eventbus.NewBus()), 0, nil)
	view := application.NewMatchView(created.MatchID, New(server.URL, viewer, server.Client()), viewer, feed, nil)
	require.NoError(t, view.Mount(ctx))
	defer view.Unmount()

	require.True(t, view.State().Permissions.CanJoin)

	result, err := view.Actions().Join(ctx, entities.JoinOptions{})
	require.NoError(t, err)
	require.True(t, result.Success)

	state := view.State()
	assert.True(t, state.Permissions.IsParticipant)
	assert.True(t, state.Permissions.CanReady)
	assert.Equal(t, entities.MatchStatusReadyCheck, state.Snapshot.Match.Status)
}
