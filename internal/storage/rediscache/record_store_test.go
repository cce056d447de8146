package rediscache_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"agent-trust-lab/internal/domain"
	"agent-trust-lab/internal/storage"
	"agent-trust-lab/internal/storage/memory"
	"agent-trust-lab/internal/storage/rediscache"
)

var recordTime = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

// setupTestCache starts a Redis container and returns a caching store over an
// in-memory inner store. Returns the inner store for direct manipulation and
// a cleanup function.
func setupTestCache(t *testing.T, ttl time.Duration) (*rediscache.RecordStore, *memory.RecordStore, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start redis container")

	dsn, err := container.ConnectionString(ctx)
	require.NoError(t, err, "failed to get connection string")

	opts, err := redis.ParseURL(dsn)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	require.NoError(t, client.Ping(ctx).Err())

	inner := memory.NewRecordStore()
	store := rediscache.NewRecordStore(inner, client, ttl, nil)

	cleanup := func() {
		_ = client.Close()
		_ = container.Terminate(ctx)
	}
	return store, inner, cleanup
}

func testRecord(id string, score float64) *domain.VerificationRecord {
	return &domain.VerificationRecord{
		Identifier:  id,
		DisplayName: id,
		Faction:     "UNALIGNED",
		Breakdown: domain.ScoreBreakdown{
			FinalScore:     score,
			Classification: "NEUTRAL",
		},
		RiskStatus:   "STABLE",
		LastVerified: recordTime,
	}
}

func TestRecordStore_ReadThrough(t *testing.T) {
	store, inner, cleanup := setupTestCache(t, time.Minute)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, inner.Upsert(ctx, testRecord("alice", 60)))

	got, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 60.0, got.Breakdown.FinalScore)

	// A write that bypasses the cache is not visible until invalidation:
	// the first Get populated the cache and this one is served from it.
	require.NoError(t, inner.Upsert(ctx, func() *domain.VerificationRecord {
		r := testRecord("alice", 90)
		r.LastVerified = recordTime.Add(time.Hour)
		return r
	}()))

	got, err = store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 60.0, got.Breakdown.FinalScore)

	_, err = store.Get(ctx, "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecordStore_UpsertRefreshesCache(t *testing.T) {
	store, _, cleanup := setupTestCache(t, time.Minute)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecord("alice", 60)))

	got, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 60.0, got.Breakdown.FinalScore)

	fresh := testRecord("alice", 75)
	fresh.LastVerified = recordTime.Add(time.Hour)
	require.NoError(t, store.Upsert(ctx, fresh))

	got, err = store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 75.0, got.Breakdown.FinalScore)
}

func TestRecordStore_StaleUpsertKeepsStoredRecord(t *testing.T) {
	store, _, cleanup := setupTestCache(t, time.Minute)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecord("alice", 60)))

	stale := testRecord("alice", 10)
	stale.LastVerified = recordTime.Add(-time.Hour)
	require.NoError(t, store.Upsert(ctx, stale))

	got, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 60.0, got.Breakdown.FinalScore)
}

func TestRecordStore_AddVoteInvalidates(t *testing.T) {
	store, _, cleanup := setupTestCache(t, time.Minute)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecord("alice", 60)))

	got, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Upvotes)

	require.NoError(t, store.AddVote(ctx, "alice", "voter-1", true))
	assert.ErrorIs(t, store.AddVote(ctx, "alice", "voter-1", true), storage.ErrDuplicateKey)

	got, err = store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Upvotes)
}

func TestRecordStore_ListAndStatsDelegate(t *testing.T) {
	store, _, cleanup := setupTestCache(t, time.Minute)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testRecord("alice", 90)))
	require.NoError(t, store.Upsert(ctx, testRecord("bob", 40)))

	all, err := store.List(ctx, storage.ListingsQuery{MinScore: 50})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "alice", all[0].Identifier)

	stats, err := store.FactionStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(2), stats[0].Members)
}
