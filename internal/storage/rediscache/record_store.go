// Package rediscache decorates a storage.RecordStore with a Redis
// read-through cache for point lookups. Listings, votes and aggregates pass
// straight through; only Get is hot enough to justify a cache tier.
package rediscache

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"agent-trust-lab/internal/domain"
	"agent-trust-lab/internal/storage"
)

const keyPrefix = "record:"

// RecordStore wraps an inner RecordStore with Redis caching. Cache failures
// are logged and degrade to the inner store; they never fail a request.
type RecordStore struct {
	inner  storage.RecordStore
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewRecordStore creates a caching record store.
func NewRecordStore(inner storage.RecordStore, client *redis.Client, ttl time.Duration, logger *log.Logger) *RecordStore {
	if logger == nil {
		logger = log.New(os.Stdout, "[rediscache] ", log.LstdFlags)
	}
	return &RecordStore{inner: inner, client: client, ttl: ttl, logger: logger}
}

// Get tries the cache first and falls back to the inner store, populating
// the cache on a miss.
func (s *RecordStore) Get(ctx context.Context, identifier string) (*domain.VerificationRecord, error) {
	key := keyPrefix + identifier

	if data, err := s.client.Get(ctx, key).Bytes(); err == nil {
		var r domain.VerificationRecord
		if err := json.Unmarshal(data, &r); err == nil {
			return &r, nil
		}
		// Corrupt entry: drop it and fall through.
		s.client.Del(ctx, key)
	} else if err != redis.Nil {
		s.logger.Printf("cache get %s: %v", identifier, err)
	}

	r, err := s.inner.Get(ctx, identifier)
	if err != nil {
		return nil, err
	}
	s.put(ctx, r)
	return r, nil
}

// Upsert writes through to the inner store, then refreshes the cache from
// the store so last-write-wins and vote preservation are reflected.
func (s *RecordStore) Upsert(ctx context.Context, r *domain.VerificationRecord) error {
	if err := s.inner.Upsert(ctx, r); err != nil {
		return err
	}
	if stored, err := s.inner.Get(ctx, r.Identifier); err == nil {
		s.put(ctx, stored)
	} else {
		s.client.Del(ctx, keyPrefix+r.Identifier)
	}
	return nil
}

// AddVote delegates and invalidates, since tallies changed under the cache.
func (s *RecordStore) AddVote(ctx context.Context, identifier, voterID string, upvote bool) error {
	if err := s.inner.AddVote(ctx, identifier, voterID, upvote); err != nil {
		return err
	}
	s.client.Del(ctx, keyPrefix+identifier)
	return nil
}

// List delegates to the inner store.
func (s *RecordStore) List(ctx context.Context, q storage.ListingsQuery) ([]*domain.VerificationRecord, error) {
	return s.inner.List(ctx, q)
}

// FactionStats delegates to the inner store.
func (s *RecordStore) FactionStats(ctx context.Context) ([]*storage.FactionStat, error) {
	return s.inner.FactionStats(ctx)
}

func (s *RecordStore) put(ctx context.Context, r *domain.VerificationRecord) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, keyPrefix+r.Identifier, data, s.ttl).Err(); err != nil {
		s.logger.Printf("cache set %s: %v", r.Identifier, err)
	}
}

// Verify interface compliance at compile time.
var _ storage.RecordStore = (*RecordStore)(nil)
