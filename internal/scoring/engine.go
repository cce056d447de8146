// Package scoring maps normalized Snapshots to weighted, bounded trust
// scores. All functions are pure: identical input always yields identical
// output, and partial evidence degrades to documented neutral defaults
// instead of errors.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"agent-trust-lab/internal/domain"
)

// neutralMidpoint is the normalized value assigned to a weighted pillar when
// its evidence is entirely absent.
const neutralMidpoint = 50.0

// Band is one classification threshold: scores of at least Min (exclusive
// when Exclusive is set) receive Label. Bands are evaluated in order, so
// configurations list them highest threshold first.
type Band struct {
	Min       float64 `yaml:"min"`
	Exclusive bool    `yaml:"exclusive"`
	Label     string  `yaml:"label"`
}

// Classify resolves a final score against ordered bands, falling back to
// fallback when no band matches.
func Classify(score float64, bands []Band, fallback string) string {
	for _, b := range bands {
		if b.Exclusive {
			if score > b.Min {
				return b.Label
			}
			continue
		}
		if score >= b.Min {
			return b.Label
		}
	}
	return fallback
}

// Weights is the identity pillar weight set. Active configurations must sum
// to 1.0.
type Weights struct {
	Karma       float64 `yaml:"karma"`
	Reputation  float64 `yaml:"reputation"`
	WebPresence float64 `yaml:"web_presence"`
}

// Sum returns the total of all pillar weights.
func (w Weights) Sum() float64 {
	return w.Karma + w.Reputation + w.WebPresence
}

// Config holds the identity scoring configuration.
type Config struct {
	Weights Weights `yaml:"weights"`

	// KarmaCeiling is the karma value that saturates the karma pillar at
	// 100. Compression is logarithmic so no single extreme input can
	// dominate the total.
	KarmaCeiling float64 `yaml:"karma_ceiling"`

	// Bands are the classification thresholds, highest first.
	Bands []Band `yaml:"bands"`

	// FallbackLabel is used when no band matches.
	FallbackLabel string `yaml:"fallback_label"`
}

// DefaultConfig returns the canonical identity pillar configuration:
// karma 40%, reputation 30%, web presence 30%, classified as VERIFIED at 80
// and NEUTRAL at 50.
func DefaultConfig() Config {
	return Config{
		Weights:      Weights{Karma: 0.40, Reputation: 0.30, WebPresence: 0.30},
		KarmaCeiling: 1_000_000,
		Bands: []Band{
			{Min: 80, Label: "VERIFIED"},
			{Min: 50, Label: "NEUTRAL"},
		},
		FallbackLabel: "UNVERIFIED",
	}
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if math.Abs(c.Weights.Sum()-1.0) > 1e-9 {
		return fmt.Errorf("pillar weights must sum to 1.0, got %v", c.Weights.Sum())
	}
	if c.KarmaCeiling <= 1 {
		return fmt.Errorf("karma ceiling must be > 1, got %v", c.KarmaCeiling)
	}
	return nil
}

// Engine computes identity trust scores.
type Engine struct {
	cfg Config
	now func() time.Time
}

// NewEngine creates an Engine. The clock is only consulted for account-age
// bonuses and is injectable for deterministic tests.
func NewEngine(cfg Config, now func() time.Time) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{cfg: cfg, now: now}, nil
}

// Score computes the identity ScoreBreakdown for a snapshot.
func (e *Engine) Score(snap *domain.Snapshot) domain.ScoreBreakdown {
	pillars := []domain.Pillar{
		e.karmaPillar(snap),
		e.reputationPillar(snap),
		e.webPresencePillar(snap),
	}

	var final float64
	for _, p := range pillars {
		final += p.Contribution
	}
	final = clamp(final, 0, 100)
	final = domain.Round2(final)

	return domain.ScoreBreakdown{
		Pillars:        pillars,
		FinalScore:     final,
		Classification: Classify(final, e.cfg.Bands, e.cfg.FallbackLabel),
	}
}

// karmaPillar compresses community karma logarithmically against the
// configured ceiling. Missing karma scores the neutral midpoint.
func (e *Engine) karmaPillar(snap *domain.Snapshot) domain.Pillar {
	p := domain.Pillar{Name: "karma", Weight: e.cfg.Weights.Karma}

	if snap.Karma == nil {
		p.Normalized = neutralMidpoint
		p.Contribution = p.Normalized * p.Weight
		return p
	}

	karma := float64(*snap.Karma)
	if karma < 0 {
		karma = 0
	}
	p.Raw = karma
	p.Normalized = clamp(math.Log(karma+1)/math.Log(e.cfg.KarmaCeiling)*100, 0, 100)
	p.Contribution = p.Normalized * p.Weight
	return p
}

// reputationPillar scores status and age: a 50-point base, +30 for a
// verified badge, and account-age bonuses at one and two years.
func (e *Engine) reputationPillar(snap *domain.Snapshot) domain.Pillar {
	p := domain.Pillar{Name: "reputation", Weight: e.cfg.Weights.Reputation}

	score := neutralMidpoint
	if snap.Verified != nil && *snap.Verified {
		score += 30
	}
	if snap.CreatedAt != nil {
		ageDays := e.now().Sub(*snap.CreatedAt).Hours() / 24
		switch {
		case ageDays > 730:
			score += 20
		case ageDays > 365:
			score += 10
		}
	}

	p.Raw = score
	p.Normalized = clamp(score, 0, 100)
	p.Contribution = p.Normalized * p.Weight
	return p
}

// webPresencePillar scores social proof: a 20-point floor plus bonuses for
// an X handle, a website, and a non-placeholder avatar.
func (e *Engine) webPresencePillar(snap *domain.Snapshot) domain.Pillar {
	p := domain.Pillar{Name: "web_presence", Weight: e.cfg.Weights.WebPresence}

	score := 20.0
	if snap.XHandle != "" {
		score += 40
	}
	if snap.HasWebsite != nil && *snap.HasWebsite {
		score += 20
	}
	if hasCustomAvatar(snap.AvatarURL) {
		score += 20
	}

	p.Raw = score
	p.Normalized = clamp(score, 0, 100)
	p.Contribution = p.Normalized * p.Weight
	return p
}

// hasCustomAvatar filters out generated placeholder avatars.
func hasCustomAvatar(url string) bool {
	if url == "" {
		return false
	}
	return !strings.Contains(strings.ToLower(url), "dicebear")
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
