package risk

import "testing"

func TestDrift(t *testing.T) {
	cases := []struct {
		name       string
		recent     Window
		historical Window
		want       DriftStatus
	}{
		{"empty recent", Window{0, 1}, Window{10, 30}, DriftInsufficientData},
		{"empty historical", Window{5, 1}, Window{0, 30}, DriftInsufficientData},
		{"degenerate days", Window{5, 0}, Window{10, 30}, DriftInsufficientData},
		{"steady rate", Window{1, 1}, Window{30, 30}, DriftStable},
		{"double rate is still stable", Window{2, 1}, Window{30, 30}, DriftStable},
		{"triple rate is moderate", Window{3, 1}, Window{30, 30}, DriftModerate},
		{"five times is still moderate", Window{5, 1}, Window{30, 30}, DriftModerate},
		{"six times is high", Window{6, 1}, Window{30, 30}, DriftHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Drift(tc.recent, tc.historical); got != tc.want {
				t.Errorf("Drift(%+v, %+v) = %s, want %s", tc.recent, tc.historical, got, tc.want)
			}
		})
	}
}

func TestOverOptimization(t *testing.T) {
	if got := OverOptimization(95); got != OptimizationNormal {
		t.Errorf("win rate 95 flagged %s, want NORMAL", got)
	}
	if got := OverOptimization(95.1); got != OptimizationSuspicious {
		t.Errorf("win rate 95.1 flagged %s, want SUSPICIOUS_PERFECTION", got)
	}
	if got := OverOptimization(0); got != OptimizationNormal {
		t.Errorf("win rate 0 flagged %s, want NORMAL", got)
	}
}

func TestTrustDecay(t *testing.T) {
	cases := []struct {
		name    string
		history []float64
		want    DecayStatus
	}{
		{"no samples", nil, DecayStable},
		{"single sample", []float64{70}, DecayStable},
		{"rising", []float64{40, 60}, DecayImproving},
		{"flat counts as improving", []float64{60, 60}, DecayImproving},
		{"small drop", []float64{60, 55}, DecayDecaying},
		{"ten point drop is not critical", []float64{60, 50}, DecayDecaying},
		{"large drop", []float64{60, 49.9}, DecayCritical},
		{"only last two samples matter", []float64{10, 90, 85}, DecayDecaying},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TrustDecay(tc.history); got != tc.want {
				t.Errorf("TrustDecay(%v) = %s, want %s", tc.history, got, tc.want)
			}
		})
	}
}
