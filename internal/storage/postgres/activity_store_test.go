package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-trust-lab/internal/domain"
	"agent-trust-lab/internal/storage"
	"agent-trust-lab/internal/storage/postgres"
)

func activityEvent(id string, ts time.Time) *domain.ActivityEvent {
	return &domain.ActivityEvent{
		ID:         id,
		Type:       domain.ActivityScan,
		Identifier: "alice",
		Label:      "scored 61.00 (NEUTRAL)",
		Timestamp:  ts,
	}
}

func TestActivityStore_AppendAndRecent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewActivityStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, activityEvent("e1", recordTime)))
	require.NoError(t, store.Append(ctx, activityEvent("e2", recordTime.Add(2*time.Hour))))
	require.NoError(t, store.Append(ctx, activityEvent("e3", recordTime.Add(time.Hour))))

	events, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "e2", events[0].ID)
	assert.Equal(t, "e3", events[1].ID)
	assert.Equal(t, "e1", events[2].ID)
	assert.Equal(t, domain.ActivityScan, events[0].Type)
	assert.Equal(t, "alice", events[0].Identifier)

	newest, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, "e2", newest[0].ID)
	assert.Equal(t, "e3", newest[1].ID)
}

func TestActivityStore_DuplicateID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewActivityStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, activityEvent("e1", recordTime)))
	assert.ErrorIs(t, store.Append(ctx, activityEvent("e1", recordTime.Add(time.Hour))), storage.ErrDuplicateKey)
}

func TestActivityStore_RejectsInvalidEvents(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewActivityStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.Append(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Append(ctx, &domain.ActivityEvent{Type: domain.ActivityScan}), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Append(ctx, &domain.ActivityEvent{ID: "e1", Type: "detonation"}), storage.ErrInvalidInput)
}
