package memory

import (
	"context"
	"sync"

	"agent-trust-lab/internal/domain"
	"agent-trust-lab/internal/storage"
)

// ActivityStore is an in-memory implementation of storage.ActivityStore.
type ActivityStore struct {
	mu     sync.RWMutex
	events []*domain.ActivityEvent
	seen   map[string]bool // event IDs
}

// NewActivityStore creates a new in-memory activity store.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{seen: make(map[string]bool)}
}

// Append adds one event. Returns ErrDuplicateKey if the event ID exists.
func (s *ActivityStore) Append(_ context.Context, e *domain.ActivityEvent) error {
	if e == nil || e.ID == "" || !e.Type.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen[e.ID] {
		return storage.ErrDuplicateKey
	}
	s.seen[e.ID] = true

	eventCopy := *e
	s.events = append(s.events, &eventCopy)
	return nil
}

// Recent retrieves up to limit events, newest first.
func (s *ActivityStore) Recent(_ context.Context, limit int) ([]*domain.ActivityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ActivityEvent, 0, len(s.events))
	for _, e := range s.events {
		eventCopy := *e
		result = append(result, &eventCopy)
	}
	domain.SortActivityDesc(result)

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.ActivityStore = (*ActivityStore)(nil)
