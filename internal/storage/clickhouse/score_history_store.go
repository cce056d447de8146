package clickhouse

import (
	"context"
	"fmt"
	"time"

	"agent-trust-lab/internal/domain"
	"agent-trust-lab/internal/storage"
)

// ScoreHistoryStore implements storage.ScoreHistoryStore using ClickHouse.
type ScoreHistoryStore struct {
	conn *Conn
}

// NewScoreHistoryStore creates a new ClickHouse score history store.
func NewScoreHistoryStore(conn *Conn) *ScoreHistoryStore {
	return &ScoreHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ScoreHistoryStore = (*ScoreHistoryStore)(nil)

// Append adds one score sample.
func (s *ScoreHistoryStore) Append(ctx context.Context, p *domain.ScorePoint) error {
	if p == nil || p.Identifier == "" {
		return storage.ErrInvalidInput
	}

	err := s.conn.Exec(ctx, `
		INSERT INTO score_history (identifier, score, recorded_at)
		VALUES (?, ?, ?)
	`, p.Identifier, p.Score, p.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert score point: %w", err)
	}
	return nil
}

// History retrieves up to limit samples for an identity, oldest first. With
// a limit it returns the most recent samples, still in ascending order.
func (s *ScoreHistoryStore) History(ctx context.Context, identifier string, limit int) ([]*domain.ScorePoint, error) {
	query := `
		SELECT identifier, score, recorded_at
		FROM score_history
		WHERE identifier = ?
		ORDER BY recorded_at ASC
	`
	if limit > 0 {
		// Take the newest N, then restore ascending order.
		query = fmt.Sprintf(`
			SELECT identifier, score, recorded_at FROM (
				SELECT identifier, score, recorded_at
				FROM score_history
				WHERE identifier = ?
				ORDER BY recorded_at DESC
				LIMIT %d
			)
			ORDER BY recorded_at ASC
		`, limit)
	}

	rows, err := s.conn.Query(ctx, query, identifier)
	if err != nil {
		return nil, fmt.Errorf("query score history: %w", err)
	}
	defer rows.Close()

	var points []*domain.ScorePoint
	for rows.Next() {
		var p domain.ScorePoint
		var recordedAt time.Time
		if err := rows.Scan(&p.Identifier, &p.Score, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan score point: %w", err)
		}
		p.RecordedAt = recordedAt
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate score history rows: %w", err)
	}
	return points, nil
}
