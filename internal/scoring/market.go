package scoring

import "agent-trust-lab/internal/domain"

// MarketPolicy is the market-evidence pillar set used for identities that
// exist only as on-chain tokens and are not yet verified on the social
// platform. Liquidity and volume carry most of the signal; social links add
// smaller bonuses. The total is capped because market evidence alone never
// establishes full trust.
type MarketPolicy struct {
	LiquidityStrong   float64 `yaml:"liquidity_strong"`   // USD, awards full liquidity points
	LiquidityModerate float64 `yaml:"liquidity_moderate"` // USD, awards partial points
	VolumeStrong      float64 `yaml:"volume_strong"`
	VolumeModerate    float64 `yaml:"volume_moderate"`

	Cap float64 `yaml:"cap"` // policy ceiling for market-only evidence

	Bands         []Band `yaml:"bands"`
	FallbackLabel string `yaml:"fallback_label"`
}

// DefaultMarketPolicy mirrors the production thresholds: liquidity over 50k
// USD earns 50 points, 24h volume over 100k earns 20, an X handle 15 and a
// Telegram link 10, capped at 85. Above 60 is a RISING STAR, below 20
// HAZARDOUS.
func DefaultMarketPolicy() MarketPolicy {
	return MarketPolicy{
		LiquidityStrong:   50_000,
		LiquidityModerate: 10_000,
		VolumeStrong:      100_000,
		VolumeModerate:    20_000,
		Cap:               85,
		Bands: []Band{
			{Min: 60, Exclusive: true, Label: "RISING STAR"},
			{Min: 20, Label: "POTENTIAL"},
		},
		FallbackLabel: "HAZARDOUS",
	}
}

// Market pillar point budgets. Weights in the breakdown are each pillar's
// share of the total budget so active configurations still sum to 1.0.
const (
	marketLiquidityMax = 50.0
	marketVolumeMax    = 20.0
	marketSocialXMax   = 15.0
	marketTelegramMax  = 10.0
	marketTotalMax     = marketLiquidityMax + marketVolumeMax + marketSocialXMax + marketTelegramMax
)

// ScoreMarket computes the market-evidence ScoreBreakdown for a snapshot.
// Deterministic and total: missing metrics simply earn no points.
func ScoreMarket(snap *domain.Snapshot, policy MarketPolicy) domain.ScoreBreakdown {
	liquidity := marketPillar("liquidity", value(snap.LiquidityUSD), marketLiquidityMax,
		tierPoints(value(snap.LiquidityUSD), policy.LiquidityStrong, policy.LiquidityModerate, 50, 30))
	volume := marketPillar("volume_24h", value(snap.VolumeUSD24h), marketVolumeMax,
		tierPoints(value(snap.VolumeUSD24h), policy.VolumeStrong, policy.VolumeModerate, 20, 10))

	var socialPts float64
	if snap.XHandle != "" {
		socialPts = marketSocialXMax
	}
	socialX := marketPillar("social_x", socialPts, marketSocialXMax, socialPts)

	var tgPts float64
	if snap.HasTelegram != nil && *snap.HasTelegram {
		tgPts = marketTelegramMax
	}
	telegram := marketPillar("telegram", tgPts, marketTelegramMax, tgPts)

	total := liquidity.Contribution + volume.Contribution + socialX.Contribution + telegram.Contribution
	final := total
	if final > policy.Cap {
		final = policy.Cap
	}
	final = domain.Round2(final)

	return domain.ScoreBreakdown{
		Pillars:        []domain.Pillar{liquidity, volume, socialX, telegram},
		FinalScore:     final,
		Classification: Classify(final, policy.Bands, policy.FallbackLabel),
	}
}

// tierPoints awards strongPts above the strong threshold, moderatePts above
// the moderate threshold, zero otherwise. Monotonic in v.
func tierPoints(v, strong, moderate, strongPts, moderatePts float64) float64 {
	switch {
	case v > strong:
		return strongPts
	case v > moderate:
		return moderatePts
	default:
		return 0
	}
}

func marketPillar(name string, raw, maxPts, awarded float64) domain.Pillar {
	return domain.Pillar{
		Name:         name,
		Raw:          raw,
		Normalized:   awarded / maxPts * 100,
		Weight:       maxPts / marketTotalMax,
		Contribution: awarded,
	}
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
