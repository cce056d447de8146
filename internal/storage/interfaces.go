package storage

import (
	"context"

	"agent-trust-lab/internal/domain"
)

// Listing sort orders.
const (
	SortByScore  = "score"
	SortByRecent = "recent"
	SortByVotes  = "votes"
)

// ListingsQuery filters and orders the verification record listing.
type ListingsQuery struct {
	// MinScore drops records below this final score.
	MinScore float64

	// VerifiedOnly keeps only records classified VERIFIED.
	VerifiedOnly bool

	// Search is a case-insensitive substring match against identifier and
	// display name.
	Search string

	// SortBy is one of the SortBy constants; empty means SortByScore.
	SortBy string

	Limit  int
	Offset int
}

// FactionStat is the per-faction aggregate over verification records.
type FactionStat struct {
	Faction      string  `json:"faction"`
	Members      int64   `json:"members"`
	AvgScore     float64 `json:"avg_score"`
	TotalUpvotes int64   `json:"total_upvotes"`
}

// RecordStore persists verification records. Upserts follow last-write-wins
// by LastVerified: a write older than the stored record is silently ignored.
type RecordStore interface {
	// Upsert inserts or replaces a record, keeping the newer LastVerified.
	// Community vote tallies survive replacement.
	Upsert(ctx context.Context, r *domain.VerificationRecord) error

	// Get retrieves a record by identifier. Returns ErrNotFound if absent.
	Get(ctx context.Context, identifier string) (*domain.VerificationRecord, error)

	// List retrieves records matching the query.
	List(ctx context.Context, q ListingsQuery) ([]*domain.VerificationRecord, error)

	// AddVote registers one community vote. Each voter votes at most once
	// per identity; a repeat returns ErrDuplicateKey. Voting on an unknown
	// identity returns ErrNotFound.
	AddVote(ctx context.Context, identifier, voterID string, upvote bool) error

	// FactionStats aggregates records per faction.
	FactionStats(ctx context.Context) ([]*FactionStat, error)
}

// ActivityStore persists the append-only activity log.
type ActivityStore interface {
	// Append adds one event. Returns ErrDuplicateKey if the event ID exists.
	Append(ctx context.Context, e *domain.ActivityEvent) error

	// Recent retrieves up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]*domain.ActivityEvent, error)
}

// ScoreHistoryStore persists score samples for trend analysis.
type ScoreHistoryStore interface {
	// Append adds one score sample.
	Append(ctx context.Context, p *domain.ScorePoint) error

	// History retrieves up to limit samples for an identity, oldest first.
	History(ctx context.Context, identifier string, limit int) ([]*domain.ScorePoint, error)
}
