// Package risk provides pure, stateless anomaly checks over caller-supplied
// history series. Signals are advisory annotations shown next to a score;
// they never block or alter verification.
package risk

// DriftStatus describes how recent activity frequency compares to the
// historical baseline.
type DriftStatus string

const (
	DriftInsufficientData DriftStatus = "INSUFFICIENT_DATA"
	DriftStable           DriftStatus = "STABLE"
	DriftModerate         DriftStatus = "MODERATE_DRIFT"
	DriftHigh             DriftStatus = "HIGH_DRIFT_DETECTED"
)

// OptimizationStatus flags implausibly perfect performance.
type OptimizationStatus string

const (
	OptimizationNormal     OptimizationStatus = "NORMAL"
	OptimizationSuspicious OptimizationStatus = "SUSPICIOUS_PERFECTION"
)

// DecayStatus describes the trend of the trust score series.
type DecayStatus string

const (
	DecayStable    DecayStatus = "STABLE"
	DecayImproving DecayStatus = "IMPROVING"
	DecayDecaying  DecayStatus = "DECAYING"
	DecayCritical  DecayStatus = "CRITICAL_DECAY"
)

// Window is an observed activity window: how many events occurred over how
// many days.
type Window struct {
	Events int
	Days   float64
}

// Rate returns events per day, or 0 for a degenerate window.
func (w Window) Rate() float64 {
	if w.Days <= 0 {
		return 0
	}
	return float64(w.Events) / w.Days
}

// Drift compares the recent activity rate against the historical baseline.
// A recent rate above 5x the baseline is high drift, above 2x moderate.
// Either window being empty yields INSUFFICIENT_DATA.
func Drift(recent, historical Window) DriftStatus {
	if recent.Events == 0 || historical.Events == 0 {
		return DriftInsufficientData
	}

	baseline := historical.Rate()
	current := recent.Rate()
	if baseline <= 0 || current <= 0 {
		return DriftInsufficientData
	}

	switch {
	case current > baseline*5:
		return DriftHigh
	case current > baseline*2:
		return DriftModerate
	default:
		return DriftStable
	}
}

// OverOptimization flags win rates above 95% as suspicious. Sustained
// near-perfect performance over short windows is a known overfitting and
// fraud indicator.
func OverOptimization(winRate float64) OptimizationStatus {
	if winRate > 95 {
		return OptimizationSuspicious
	}
	return OptimizationNormal
}

// TrustDecay inspects a score history ordered oldest to newest. A drop of
// more than 10 points between the last two samples is critical; any drop is
// decaying; otherwise the score is improving. Fewer than two samples is
// STABLE since there is no trend yet.
func TrustDecay(history []float64) DecayStatus {
	if len(history) < 2 {
		return DecayStable
	}

	latest := history[len(history)-1]
	prev := history[len(history)-2]

	switch {
	case latest < prev-10:
		return DecayCritical
	case latest < prev:
		return DecayDecaying
	default:
		return DecayImproving
	}
}
