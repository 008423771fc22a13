package testutil

import (
	"context"
	"testing"
	"time"

	"gambler/arena/database"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// TestDatabase represents a test database instance
type TestDatabase struct {
	Container *postgres.PostgresContainer
	DB        *database.DB
	URL       string
}

// SetupTestDatabase creates a new PostgreSQL test container and runs migrations
func SetupTestDatabase(t *testing.T) *TestDatabase {
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	ctx := context.Background()

	labels := map[string]string{
		"test":      "arena-repository",
		"test-name": t.Name(),
		"timestamp": time.Now().Format("20060102-150405"),
		"cleanup":   "auto",
	}

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("arena_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		postgres.BasicWaitStrategies(),
		testcontainers.WithLabels(labels),
	)
	require.NoError(t, err)

	testDB := &TestDatabase{
		Container: postgresContainer,
	}
	t.Cleanup(func() {
		testDB.cleanup(t)
	})

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations first (before creating the connection)
	require.NoError(t, database.RunMigrationsWithURL(connStr))

	db, err := database.NewConnection(ctx, connStr)
	require.NoError(t, err)

	testDB.DB = db
	testDB.URL = connStr
	return testDB
}

// LedgerTotals are the balances the escrow ledger must keep equal
type LedgerTotals struct {
	Held    decimal.Decimal // available plus locked across every wallet
	Granted decimal.Decimal // starting balances handed out
	Fees    decimal.Decimal // platform fees taken from settled pools
}

// Totals sums wallets and ledger entries in one statement
func (td *TestDatabase) Totals(t *testing.T) LedgerTotals {
	t.Helper()
	var totals LedgerTotals
	err := td.DB.QueryRow(context.Background(), `
		SELECT
			(SELECT COALESCE(SUM(available + locked), 0) FROM wallets),
			(SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE entry_type = 'initial'),
			(SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE entry_type = 'platform_fee')
	`).Scan(&totals.Held, &totals.Granted, &totals.Fees)
	require.NoError(t, err)
	return totals
}

// RequireConserved fails the test unless every granted unit is either held or taken as a fee
func (td *TestDatabase) RequireConserved(t *testing.T) LedgerTotals {
	t.Helper()
	totals := td.Totals(t)
	require.True(t, totals.Granted.Equal(totals.Held.Add(totals.Fees)),
		"granted %s != held %s + fees %s", totals.Granted, totals.Held, totals.Fees)
	return totals
}

// cleanup closes the connection and terminates the container, recovering from panics
func (td *TestDatabase) cleanup(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Logf("Panic during container cleanup (recovered): %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if td.DB != nil {
		td.DB.Close()
	}

	if td.Container != nil {
		if err := td.Container.Terminate(ctx); err != nil {
			t.Logf("Warning: Failed to terminate test container: %v", err)
		}
	}
}
