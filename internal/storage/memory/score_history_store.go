package memory

import (
	"context"
	"sort"
	"sync"

	"agent-trust-lab/internal/domain"
	"agent-trust-lab/internal/storage"
)

// ScoreHistoryStore is an in-memory implementation of storage.ScoreHistoryStore.
type ScoreHistoryStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.ScorePoint // keyed by identifier
}

// NewScoreHistoryStore creates a new in-memory score history store.
func NewScoreHistoryStore() *ScoreHistoryStore {
	return &ScoreHistoryStore{data: make(map[string][]*domain.ScorePoint)}
}

// Append adds one score sample.
func (s *ScoreHistoryStore) Append(_ context.Context, p *domain.ScorePoint) error {
	if p == nil || p.Identifier == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pointCopy := *p
	s.data[p.Identifier] = append(s.data[p.Identifier], &pointCopy)
	return nil
}

// History retrieves up to limit samples for an identity, oldest first. With
// a limit it returns the most recent samples, still in ascending order.
func (s *ScoreHistoryStore) History(_ context.Context, identifier string, limit int) ([]*domain.ScorePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.data[identifier]
	result := make([]*domain.ScorePoint, 0, len(points))
	for _, p := range points {
		pointCopy := *p
		result = append(result, &pointCopy)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].RecordedAt.Before(result[j].RecordedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.ScoreHistoryStore = (*ScoreHistoryStore)(nil)
