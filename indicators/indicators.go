// Package indicators provides streaming technical indicators over bars.
package indicators

import "github.com/rustyeddy/stratlab/market"

// Indicator computes a single streaming value from bars.
// It is deterministic and safe to use in replays and backtests.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)" or "ATR(14)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next *closed* bar and updates internal state.
	Update(b market.Bar)

	// Ready reports whether Value() is meaningful (warmup completed).
	Ready() bool

	// Value returns the current value, or 0 when !Ready().
	Value() float64
}

// Last feeds every bar to ind and returns the final value and readiness.
func Last(ind Indicator, bars []market.Bar) (float64, bool) {
	ind.Reset()
	for _, b := range bars {
		ind.Update(b)
	}
	return ind.Value(), ind.Ready()
}

// trueRange of the current bar given the previous bar.
func trueRange(cur, prev market.Bar) float64 {
	hl := cur.High - cur.Low
	hc := abs(cur.High - prev.Close)
	lc := abs(cur.Low - prev.Close)
	return max(hl, max(hc, lc))
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
