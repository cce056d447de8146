package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"agent-trust-lab/internal/domain"
	"agent-trust-lab/internal/storage"
)

// RecordStore is a PostgreSQL implementation of storage.RecordStore.
type RecordStore struct {
	pool *Pool
}

// NewRecordStore creates a new Postgres record store.
func NewRecordStore(pool *Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

// Upsert inserts or replaces a record. Last-write-wins by last_verified; a
// stale write is a no-op. Vote tallies are never overwritten by the upsert.
func (s *RecordStore) Upsert(ctx context.Context, r *domain.VerificationRecord) error {
	if r == nil || r.Identifier == "" {
		return storage.ErrInvalidInput
	}

	breakdown, err := json.Marshal(r.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}

	query := `
		INSERT INTO verification_records
			(identifier, display_name, avatar_url, faction, breakdown,
			 final_score, classification, verdict, risk_status,
			 upvotes, downvotes, last_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (identifier) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			faction = EXCLUDED.faction,
			breakdown = EXCLUDED.breakdown,
			final_score = EXCLUDED.final_score,
			classification = EXCLUDED.classification,
			verdict = EXCLUDED.verdict,
			risk_status = EXCLUDED.risk_status,
			last_verified = EXCLUDED.last_verified
		WHERE verification_records.last_verified <= EXCLUDED.last_verified
	`
	_, err = s.pool.Exec(ctx, query,
		r.Identifier, r.DisplayName, r.AvatarURL, r.Faction, breakdown,
		r.Breakdown.FinalScore, r.Breakdown.Classification, r.Verdict, r.RiskStatus,
		r.Upvotes, r.Downvotes, r.LastVerified)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

const recordColumns = `identifier, display_name, avatar_url, faction, breakdown,
	verdict, risk_status, upvotes, downvotes, last_verified`

// Get retrieves a record by identifier.
func (s *RecordStore) Get(ctx context.Context, identifier string) (*domain.VerificationRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM verification_records WHERE identifier = $1`

	row := s.pool.QueryRow(ctx, query, identifier)
	r, err := scanRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return r, nil
}

// List retrieves records matching the query.
func (s *RecordStore) List(ctx context.Context, q storage.ListingsQuery) ([]*domain.VerificationRecord, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + recordColumns + ` FROM verification_records WHERE final_score >= $1`)
	args := []any{q.MinScore}

	if q.VerifiedOnly {
		sb.WriteString(` AND classification = 'VERIFIED'`)
	}
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		n := len(args)
		fmt.Fprintf(&sb, ` AND (identifier ILIKE $%d OR display_name ILIKE $%d)`, n, n)
	}

	switch q.SortBy {
	case storage.SortByRecent:
		sb.WriteString(` ORDER BY last_verified DESC, identifier ASC`)
	case storage.SortByVotes:
		sb.WriteString(` ORDER BY (upvotes - downvotes) DESC, identifier ASC`)
	default:
		sb.WriteString(` ORDER BY final_score DESC, identifier ASC`)
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		fmt.Fprintf(&sb, ` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var result []*domain.VerificationRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// AddVote registers one community vote inside a transaction: the vote row
// enforces one-vote-per-voter, the tally update keeps the record in step.
func (s *RecordStore) AddVote(ctx context.Context, identifier, voterID string, upvote bool) error {
	if identifier == "" || voterID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin vote tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO record_votes (identifier, voter_id, upvote) VALUES ($1, $2, $3)`,
		identifier, voterID, upvote)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isForeignKeyError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("insert vote: %w", err)
	}

	column := "downvotes"
	if upvote {
		column = "upvotes"
	}
	_, err = tx.Exec(ctx,
		`UPDATE verification_records SET `+column+` = `+column+` + 1 WHERE identifier = $1`,
		identifier)
	if err != nil {
		return fmt.Errorf("update vote tally: %w", err)
	}

	return tx.Commit(ctx)
}

// FactionStats aggregates records per faction.
func (s *RecordStore) FactionStats(ctx context.Context) ([]*storage.FactionStat, error) {
	query := `
		SELECT faction, COUNT(*), ROUND(AVG(final_score)::numeric, 2), COALESCE(SUM(upvotes), 0)
		FROM verification_records
		GROUP BY faction
		ORDER BY AVG(final_score) DESC, faction ASC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("faction stats: %w", err)
	}
	defer rows.Close()

	var result []*storage.FactionStat
	for rows.Next() {
		st := &storage.FactionStat{}
		if err := rows.Scan(&st.Faction, &st.Members, &st.AvgScore, &st.TotalUpvotes); err != nil {
			return nil, fmt.Errorf("scan faction stat: %w", err)
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.VerificationRecord, error) {
	var r domain.VerificationRecord
	var breakdown []byte

	err := row.Scan(&r.Identifier, &r.DisplayName, &r.AvatarURL, &r.Faction,
		&breakdown, &r.Verdict, &r.RiskStatus, &r.Upvotes, &r.Downvotes, &r.LastVerified)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(breakdown, &r.Breakdown); err != nil {
		return nil, fmt.Errorf("unmarshal breakdown: %w", err)
	}
	return &r, nil
}

// Verify interface compliance at compile time.
var _ storage.RecordStore = (*RecordStore)(nil)
