package clickhouse_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-trust-lab/internal/domain"
	"agent-trust-lab/internal/storage"
	"agent-trust-lab/internal/storage/clickhouse"
)

var baseTime = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func point(id string, score float64, at time.Time) *domain.ScorePoint {
	return &domain.ScorePoint{Identifier: id, Score: score, RecordedAt: at}
}

func TestScoreHistoryStore_AppendAndHistory(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewScoreHistoryStore(conn)
	ctx := context.Background()

	// Appended out of order, read back ascending.
	require.NoError(t, store.Append(ctx, point("alice", 70, baseTime.Add(2*time.Hour))))
	require.NoError(t, store.Append(ctx, point("alice", 50, baseTime)))
	require.NoError(t, store.Append(ctx, point("alice", 60, baseTime.Add(time.Hour))))
	require.NoError(t, store.Append(ctx, point("bob", 30, baseTime)))

	points, err := store.History(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 50.0, points[0].Score)
	assert.Equal(t, 60.0, points[1].Score)
	assert.Equal(t, 70.0, points[2].Score)
	assert.Equal(t, "alice", points[0].Identifier)
	assert.True(t, points[0].RecordedAt.Equal(baseTime))
}

func TestScoreHistoryStore_LimitKeepsNewestAscending(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewScoreHistoryStore(conn)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, point("alice", 50, baseTime)))
	require.NoError(t, store.Append(ctx, point("alice", 60, baseTime.Add(time.Hour))))
	require.NoError(t, store.Append(ctx, point("alice", 70, baseTime.Add(2*time.Hour))))

	points, err := store.History(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 60.0, points[0].Score)
	assert.Equal(t, 70.0, points[1].Score)
}

func TestScoreHistoryStore_UnknownIdentityIsEmpty(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewScoreHistoryStore(conn)

	points, err := store.History(context.Background(), "ghost", 0)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestScoreHistoryStore_RejectsInvalidPoints(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewScoreHistoryStore(conn)
	ctx := context.Background()

	assert.ErrorIs(t, store.Append(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Append(ctx, point("", 50, baseTime)), storage.ErrInvalidInput)
}
