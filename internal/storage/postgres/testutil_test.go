package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"agent-trust-lab/internal/domain"
	"agent-trust-lab/internal/storage/migrations"
	"agent-trust-lab/internal/storage/postgres"
)

// setupTestDB creates a PostgreSQL container and applies the embedded
// migrations. Returns a cleanup function that must be called after tests
// complete.
func setupTestDB(t *testing.T) (*postgres.Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := pgcontainer.Run(ctx, "postgres:15-alpine",
		pgcontainer.WithDatabase("testdb"),
		pgcontainer.WithUsername("test"),
		pgcontainer.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool), "failed to run migrations")

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

var recordTime = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func testRecord(id string, score float64, class string, verified time.Time) *domain.VerificationRecord {
	return &domain.VerificationRecord{
		Identifier:  id,
		DisplayName: id,
		Faction:     "UNALIGNED",
		Breakdown: domain.ScoreBreakdown{
			Pillars: []domain.Pillar{
				{Name: "karma", Raw: 100, Normalized: score, Weight: 1, Contribution: score},
			},
			FinalScore:     score,
			Classification: class,
		},
		Verdict:      "steady",
		RiskStatus:   "STABLE",
		LastVerified: verified,
	}
}
