package domain

import (
	"math"
	"time"
)

// Pillar is one weighted sub-metric of a trust score.
type Pillar struct {
	Name         string  `json:"name"`
	Raw          float64 `json:"raw"`
	Normalized   float64 `json:"normalized"` // 0-100
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// ScoreBreakdown is the full output of a scoring pass: the pillars, their
// weighted sum rounded to two decimals, and the threshold classification.
type ScoreBreakdown struct {
	Pillars        []Pillar `json:"pillars"`
	FinalScore     float64  `json:"final_score"`
	Classification string   `json:"classification"`
}

// ContributionSum returns the unrounded sum of pillar contributions.
// FinalScore equals this sum within rounding tolerance, unless a policy
// cap was applied.
func (b ScoreBreakdown) ContributionSum() float64 {
	var sum float64
	for _, p := range b.Pillars {
		sum += p.Contribution
	}
	return sum
}

// Round2 rounds to two decimal places, the fixed precision of final scores.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// VerificationRecord is the persisted result of verifying one identity.
type VerificationRecord struct {
	Identifier   string         `json:"identifier"`
	DisplayName  string         `json:"display_name"`
	AvatarURL    string         `json:"avatar_url,omitempty"`
	Faction      string         `json:"faction"`
	Breakdown    ScoreBreakdown `json:"breakdown"`
	Verdict      string         `json:"verdict,omitempty"` // narrative text, best-effort
	RiskStatus   string         `json:"risk_status"`
	Upvotes      int64          `json:"upvotes"`
	Downvotes    int64          `json:"downvotes"`
	LastVerified time.Time      `json:"last_verified"`
}

// Fresh reports whether the record is within its freshness window.
func (r *VerificationRecord) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.LastVerified) < ttl
}

// ScorePoint is one sample of an identity's score history.
type ScorePoint struct {
	Identifier string
	Score      float64
	RecordedAt time.Time
}
