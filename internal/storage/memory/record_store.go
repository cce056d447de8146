package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"agent-trust-lab/internal/domain"
	"agent-trust-lab/internal/storage"
)

// RecordStore is an in-memory implementation of storage.RecordStore.
type RecordStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.VerificationRecord // keyed by identifier
	voters map[string]map[string]bool            // identifier -> voter set
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		data:   make(map[string]*domain.VerificationRecord),
		voters: make(map[string]map[string]bool),
	}
}

// Upsert inserts or replaces a record, last-write-wins by LastVerified.
func (s *RecordStore) Upsert(_ context.Context, r *domain.VerificationRecord) error {
	if r == nil || r.Identifier == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data[r.Identifier]; ok {
		if r.LastVerified.Before(existing.LastVerified) {
			return nil
		}
		// Vote tallies are community state, not verification output.
		recordCopy := *r
		recordCopy.Upvotes = existing.Upvotes
		recordCopy.Downvotes = existing.Downvotes
		s.data[r.Identifier] = &recordCopy
		return nil
	}

	recordCopy := *r
	s.data[r.Identifier] = &recordCopy
	return nil
}

// Get retrieves a record by identifier.
func (s *RecordStore) Get(_ context.Context, identifier string) (*domain.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[identifier]
	if !ok {
		return nil, storage.ErrNotFound
	}

	recordCopy := *r
	return &recordCopy, nil
}

// List retrieves records matching the query.
func (s *RecordStore) List(_ context.Context, q storage.ListingsQuery) ([]*domain.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(q.Search)

	var result []*domain.VerificationRecord
	for _, r := range s.data {
		if r.Breakdown.FinalScore < q.MinScore {
			continue
		}
		if q.VerifiedOnly && r.Breakdown.Classification != "VERIFIED" {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(r.Identifier), search) &&
			!strings.Contains(strings.ToLower(r.DisplayName), search) {
			continue
		}
		recordCopy := *r
		result = append(result, &recordCopy)
	}

	sortRecords(result, q.SortBy)

	if q.Offset > 0 {
		if q.Offset >= len(result) {
			return nil, nil
		}
		result = result[q.Offset:]
	}
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

// sortRecords orders listings with identifier as final tiebreaker so pages
// are stable across calls.
func sortRecords(records []*domain.VerificationRecord, sortBy string) {
	less := func(i, j int) bool {
		a, b := records[i], records[j]
		switch sortBy {
		case storage.SortByRecent:
			if !a.LastVerified.Equal(b.LastVerified) {
				return a.LastVerified.After(b.LastVerified)
			}
		case storage.SortByVotes:
			av, bv := a.Upvotes-a.Downvotes, b.Upvotes-b.Downvotes
			if av != bv {
				return av > bv
			}
		default:
			if a.Breakdown.FinalScore != b.Breakdown.FinalScore {
				return a.Breakdown.FinalScore > b.Breakdown.FinalScore
			}
		}
		return a.Identifier < b.Identifier
	}
	sort.SliceStable(records, less)
}

// AddVote registers one community vote, at most one per voter per identity.
func (s *RecordStore) AddVote(_ context.Context, identifier, voterID string, upvote bool) error {
	if identifier == "" || voterID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.data[identifier]
	if !ok {
		return storage.ErrNotFound
	}

	voters := s.voters[identifier]
	if voters == nil {
		voters = make(map[string]bool)
		s.voters[identifier] = voters
	}
	if voters[voterID] {
		return storage.ErrDuplicateKey
	}
	voters[voterID] = true

	if upvote {
		r.Upvotes++
	} else {
		r.Downvotes++
	}
	return nil
}

// FactionStats aggregates records per faction.
func (s *RecordStore) FactionStats(_ context.Context) ([]*storage.FactionStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byFaction := make(map[string]*storage.FactionStat)
	scoreSums := make(map[string]float64)
	for _, r := range s.data {
		st := byFaction[r.Faction]
		if st == nil {
			st = &storage.FactionStat{Faction: r.Faction}
			byFaction[r.Faction] = st
		}
		st.Members++
		st.TotalUpvotes += r.Upvotes
		scoreSums[r.Faction] += r.Breakdown.FinalScore
	}

	result := make([]*storage.FactionStat, 0, len(byFaction))
	for faction, st := range byFaction {
		st.AvgScore = domain.Round2(scoreSums[faction] / float64(st.Members))
		result = append(result, st)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].AvgScore != result[j].AvgScore {
			return result[i].AvgScore > result[j].AvgScore
		}
		return result[i].Faction < result[j].Faction
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.RecordStore = (*RecordStore)(nil)
