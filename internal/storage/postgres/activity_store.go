package postgres

import (
	"context"
	"fmt"

	"agent-trust-lab/internal/domain"
	"agent-trust-lab/internal/storage"
)

// ActivityStore is a PostgreSQL implementation of storage.ActivityStore.
type ActivityStore struct {
	pool *Pool
}

// NewActivityStore creates a new Postgres activity store.
func NewActivityStore(pool *Pool) *ActivityStore {
	return &ActivityStore{pool: pool}
}

// Append adds one event. Returns ErrDuplicateKey if the event ID exists.
func (s *ActivityStore) Append(ctx context.Context, e *domain.ActivityEvent) error {
	if e == nil || e.ID == "" || !e.Type.IsValid() {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO activity_events (id, event_type, identifier, label, occurred_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID, string(e.Type), e.Identifier, e.Label, e.Timestamp)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// Recent retrieves up to limit events, newest first.
func (s *ActivityStore) Recent(ctx context.Context, limit int) ([]*domain.ActivityEvent, error) {
	query := `
		SELECT id, event_type, identifier, label, occurred_at
		FROM activity_events
		ORDER BY occurred_at DESC, id ASC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	defer rows.Close()

	var result []*domain.ActivityEvent
	for rows.Next() {
		var e domain.ActivityEvent
		var eventType string
		if err := rows.Scan(&e.ID, &eventType, &e.Identifier, &e.Label, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		e.Type = domain.ActivityType(eventType)
		result = append(result, &e)
	}
	return result, rows.Err()
}

// Verify interface compliance at compile time.
var _ storage.ActivityStore = (*ActivityStore)(nil)
