package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"fleetstock/internal/repositories"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// TestDB holds the database connection for integration tests
type TestDB struct {
	Pool  *pgxpool.Pool
	Store *repositories.PostgresStore
}

// SetupTestDB connects to TEST_DATABASE_URL, applies the schema and empties
// every inventory table. The test is skipped when no database is configured.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping Postgres integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := repositories.Migrate(ctx, pool); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	Truncate(t, pool)

	return &TestDB{
		Pool:  pool,
		Store: repositories.NewPostgresStore(pool, zap.NewNop(), repositories.WithMaxAttempts(5)),
	}
}

// Truncate removes all rows, children first
func Truncate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		`TRUNCATE movements, assignments, stock_units, stock_levels, locations, items`)
	if err != nil {
		t.Fatalf("Failed to truncate test tables: %v", err)
	}
}
