// Package verification coordinates a full trust verification: freshness
// check, source fallback chains, scoring, risk annotation, analyst verdict
// and persistence. Concurrent requests for the same identity are coalesced
// into one upstream pass.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"agent-trust-lab/internal/domain"
	"agent-trust-lab/internal/identity"
	"agent-trust-lab/internal/observability"
	"agent-trust-lab/internal/risk"
	"agent-trust-lab/internal/scoring"
	"agent-trust-lab/internal/sources"
	"agent-trust-lab/internal/storage"
	"agent-trust-lab/internal/verdict"
)

// ErrUnknownIdentity is returned when no source knows the identity and no
// stale record exists to fall back on.
var ErrUnknownIdentity = errors.New("identity unknown to all sources")

// PersistenceError reports that a verification completed but its record
// could not be stored. The computed record is still returned to the caller;
// only durability failed.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("verification completed but persistence failed: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// TTLClass selects the freshness window for a verification request.
type TTLClass int

const (
	// TTLInteractive is for user-facing lookups that tolerate little
	// staleness.
	TTLInteractive TTLClass = iota
	// TTLBatch is for background refreshes where old records are acceptable.
	TTLBatch
)

// Request describes one verification request.
type Request struct {
	// Identifier is the raw identity: username, contract address or chain
	// key. It is normalized before use.
	Identifier string

	// Force bypasses the freshness check and always consults sources.
	Force bool

	// Class selects the freshness window. Zero value is TTLInteractive.
	Class TTLClass
}

// SystemIdentity is the reserved identifier returned without consulting any
// source.
type SystemIdentity struct {
	Identifier  string
	DisplayName string
	XHandle     string
}

// Options for creating a Verifier.
type Options struct {
	// Required stores
	Records  storage.RecordStore
	History  storage.ScoreHistoryStore
	Activity storage.ActivityStore

	// Scoring
	Engine       *scoring.Engine
	MarketPolicy scoring.MarketPolicy

	// Fallback chains, in priority order.
	SocialChain []sources.Adapter
	MarketChain []sources.Adapter

	// Verdicts is optional; nil disables analyst verdicts.
	Verdicts verdict.Generator

	// System is the reserved bypass identity.
	System SystemIdentity

	// FactionOf resolves an identity's faction label. Nil means UNALIGNED
	// for everyone.
	FactionOf func(identifier string) string

	InteractiveTTL time.Duration
	BatchTTL       time.Duration

	// Now is injectable for tests. Nil means time.Now.
	Now func() time.Time

	Logger *log.Logger
}

// Verifier runs trust verifications.
type Verifier struct {
	records  storage.RecordStore
	history  storage.ScoreHistoryStore
	activity storage.ActivityStore

	engine       *scoring.Engine
	marketPolicy scoring.MarketPolicy

	socialChain []sources.Adapter
	marketChain []sources.Adapter

	verdicts verdict.Generator
	system   SystemIdentity

	factionOf func(string) string

	interactiveTTL time.Duration
	batchTTL       time.Duration

	now    func() time.Time
	logger *log.Logger

	group singleflight.Group
}

// New creates a Verifier.
func New(opts Options) (*Verifier, error) {
	if opts.Records == nil || opts.History == nil || opts.Activity == nil {
		return nil, fmt.Errorf("record, history and activity stores are required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("scoring engine is required")
	}
	if opts.Verdicts == nil {
		opts.Verdicts = verdict.Disabled{}
	}
	if opts.FactionOf == nil {
		opts.FactionOf = func(string) string { return "UNALIGNED" }
	}
	if opts.InteractiveTTL <= 0 {
		opts.InteractiveTTL = 60 * time.Second
	}
	if opts.BatchTTL <= 0 {
		opts.BatchTTL = 7 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stdout, "[verifier] ", log.LstdFlags)
	}

	return &Verifier{
		records:        opts.Records,
		history:        opts.History,
		activity:       opts.Activity,
		engine:         opts.Engine,
		marketPolicy:   opts.MarketPolicy,
		socialChain:    opts.SocialChain,
		marketChain:    opts.MarketChain,
		verdicts:       opts.Verdicts,
		system:         opts.System,
		factionOf:      opts.FactionOf,
		interactiveTTL: opts.InteractiveTTL,
		batchTTL:       opts.BatchTTL,
		now:            opts.Now,
		logger:         opts.Logger,
	}, nil
}

// Verify runs one verification. A returned *PersistenceError still carries a
// complete record: the verdict stands, only storage failed.
func (v *Verifier) Verify(ctx context.Context, req Request) (*domain.VerificationRecord, error) {
	id := identity.Normalize(req.Identifier)
	if id == "" {
		return nil, storage.ErrInvalidInput
	}

	if strings.EqualFold(id, v.system.Identifier) {
		return v.systemRecord(), nil
	}

	// Coalesce concurrent requests for the same identity. Forced requests
	// form their own flight so they cannot be satisfied by a cached read.
	key := id
	if req.Force {
		key = id + "|force"
	}

	result, err, shared := v.group.Do(key, func() (interface{}, error) {
		return v.verify(ctx, id, req)
	})
	if shared {
		observability.RecordCoalesced()
	}
	if result == nil {
		return nil, err
	}
	return result.(*domain.VerificationRecord), err
}

func (v *Verifier) ttl(class TTLClass) time.Duration {
	if class == TTLBatch {
		return v.batchTTL
	}
	return v.interactiveTTL
}

func (v *Verifier) verify(ctx context.Context, id string, req Request) (*domain.VerificationRecord, error) {
	started := v.now()

	stored, storedErr := v.records.Get(ctx, id)
	if !req.Force && storedErr == nil && stored.Fresh(v.now(), v.ttl(req.Class)) {
		observability.RecordCacheHit()
		return stored, nil
	}

	kind := identity.Detect(id)
	snap := v.fetch(ctx, id, kind)
	if snap == nil {
		// All sources failed or returned nothing. A stale record beats no
		// answer at all.
		if storedErr == nil {
			v.logger.Printf("all sources failed for %s, serving stale record from %s",
				id, stored.LastVerified.Format(time.RFC3339))
			observability.RecordStaleFallback()
			return stored, nil
		}
		observability.RecordVerification("unknown", v.now().Sub(started).Seconds())
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentity, id)
	}

	breakdown := v.score(snap, kind)
	riskStatus := v.riskStatus(ctx, id, breakdown.FinalScore)

	record := &domain.VerificationRecord{
		Identifier:   id,
		DisplayName:  snap.DisplayName,
		AvatarURL:    snap.AvatarURL,
		Faction:      v.factionOf(id),
		Breakdown:    breakdown,
		RiskStatus:   riskStatus,
		LastVerified: v.now(),
	}
	if record.DisplayName == "" {
		record.DisplayName = id
	}

	record.Verdict = v.verdicts.Generate(ctx, id, breakdown)
	if record.Verdict == verdict.OfflineNotice {
		observability.RecordVerdictFailure()
	}

	if err := v.persist(ctx, record, errors.Is(storedErr, storage.ErrNotFound)); err != nil {
		v.logger.Printf("persist %s: %v", id, err)
		observability.RecordPersistenceFailure()
		observability.RecordVerification("persist_error", v.now().Sub(started).Seconds())
		return record, &PersistenceError{Err: err}
	}

	v.logger.Printf("verified %s: score=%.2f class=%s risk=%s source=%s",
		id, breakdown.FinalScore, breakdown.Classification, riskStatus, snap.Source)
	observability.RecordVerification("ok", v.now().Sub(started).Seconds())
	return record, nil
}

// Discover resolves a free-text query through the source search endpoints
// and verifies whatever canonical identity it maps to. Used when a lookup
// misses the local index entirely.
func (v *Verifier) Discover(ctx context.Context, query string) (*domain.VerificationRecord, error) {
	q := identity.Normalize(query)
	if q == "" {
		return nil, storage.ErrInvalidInput
	}

	chain := v.socialChain
	if identity.Detect(q).IsMarket() {
		chain = v.marketChain
	}

	for _, adapter := range chain {
		started := v.now()
		snap, err := adapter.Search(ctx, q)
		observability.RecordSourceRequest(adapter.Name(), v.now().Sub(started).Seconds(), err)
		if err != nil {
			continue
		}
		observability.RecordIdentityDiscovered()
		return v.Verify(ctx, Request{Identifier: snap.Identifier})
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownIdentity, q)
}

// fetch walks the fallback chain for the identity kind until a source
// produces a snapshot. Chain order is priority order; both not-found and
// unavailable advance to the next source.
func (v *Verifier) fetch(ctx context.Context, id string, kind identity.Kind) *domain.Snapshot {
	chain := v.socialChain
	if kind.IsMarket() {
		chain = v.marketChain
	}

	for _, adapter := range chain {
		started := v.now()
		snap, err := adapter.Fetch(ctx, id)
		observability.RecordSourceRequest(adapter.Name(), v.now().Sub(started).Seconds(), err)
		if err != nil {
			v.logger.Printf("source %s failed for %s: %v", adapter.Name(), id, err)
			continue
		}
		return snap
	}
	return nil
}

// score selects the pillar set: market evidence for on-chain identities,
// the identity pillar set for social ones.
func (v *Verifier) score(snap *domain.Snapshot, kind identity.Kind) domain.ScoreBreakdown {
	if kind.IsMarket() || snap.Source.IsMarket() {
		return scoring.ScoreMarket(snap, v.marketPolicy)
	}
	return v.engine.Score(snap)
}

// riskStatus derives the trend annotation from stored history plus the
// fresh score. History read failures degrade to STABLE.
func (v *Verifier) riskStatus(ctx context.Context, id string, score float64) string {
	points, err := v.history.History(ctx, id, 50)
	if err != nil {
		v.logger.Printf("history read for %s: %v", id, err)
		return string(risk.DecayStable)
	}

	series := make([]float64, 0, len(points)+1)
	for _, p := range points {
		series = append(series, p.Score)
	}
	series = append(series, score)
	return string(risk.TrustDecay(series))
}

// persist stores the record, its history sample and the activity trail. A
// first-time identity gets a creation event ahead of its scan event.
func (v *Verifier) persist(ctx context.Context, r *domain.VerificationRecord, isNew bool) error {
	if err := v.records.Upsert(ctx, r); err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	if err := v.history.Append(ctx, &domain.ScorePoint{
		Identifier: r.Identifier,
		Score:      r.Breakdown.FinalScore,
		RecordedAt: r.LastVerified,
	}); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	if isNew {
		if err := v.activity.Append(ctx, &domain.ActivityEvent{
			ID:         uuid.NewString(),
			Type:       domain.ActivityCreation,
			Identifier: r.Identifier,
			Label:      "indexed for the first time",
			Timestamp:  r.LastVerified,
		}); err != nil {
			return fmt.Errorf("append creation activity: %w", err)
		}
	}
	if err := v.activity.Append(ctx, &domain.ActivityEvent{
		ID:         uuid.NewString(),
		Type:       domain.ActivityScan,
		Identifier: r.Identifier,
		Label:      fmt.Sprintf("scored %.2f (%s)", r.Breakdown.FinalScore, r.Breakdown.Classification),
		Timestamp:  r.LastVerified,
	}); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// systemRecord is the fixed maximal-trust record for the reserved system
// identity.
func (v *Verifier) systemRecord() *domain.VerificationRecord {
	pillars := []domain.Pillar{
		{Name: "karma", Raw: 100, Normalized: 100, Weight: 0.40, Contribution: 40},
		{Name: "reputation", Raw: 100, Normalized: 100, Weight: 0.30, Contribution: 30},
		{Name: "web_presence", Raw: 100, Normalized: 100, Weight: 0.30, Contribution: 30},
	}
	return &domain.VerificationRecord{
		Identifier:  v.system.Identifier,
		DisplayName: v.system.DisplayName,
		Faction:     "SOVEREIGN",
		Breakdown: domain.ScoreBreakdown{
			Pillars:        pillars,
			FinalScore:     100,
			Classification: "VERIFIED",
		},
		Verdict: "CORE SYSTEM IDENTITY. This identity represents the verified " +
			"authority of the network. Absolute trust established.",
		RiskStatus:   string(risk.DecayStable),
		LastVerified: v.now(),
	}
}
