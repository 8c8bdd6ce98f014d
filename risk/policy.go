package risk

import (
	"time"

	"github.com/rustyeddy/stratlab/ledger"
)

// Policy holds the pre-trade limits checked by Evaluate. Zero values disable
// a limit, except MaxOpenPositions which must be positive.
type Policy struct {
	// Risk limits
	MaxRiskPct float64 `json:"max_risk_pct" yaml:"max_risk_pct"` // fraction of equity lost at the stop, e.g. 0.02

	// Exposure limits
	MaxOpenPositions int `json:"max_open_positions" yaml:"max_open_positions"` // 3

	// Trade constraints
	MinRR float64 `json:"min_rr" yaml:"min_rr"` // only checked when a take-profit is set

	// Circuit breaker: block entries while equity is this far below its peak.
	MaxDrawdownPct float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"` // e.g. 0.25
}

func DefaultPolicy() Policy {
	return Policy{
		MaxOpenPositions: ledger.DefaultMaxOpenPositions,
	}
}

type TradeIntent struct {
	Time   time.Time
	Symbol string
	Side   ledger.Side
	Size   float64

	Entry      float64
	Stop       float64
	TakeProfit float64
}

type AccountSnapshot struct {
	Cash       float64
	Equity     float64
	PeakEquity float64

	OpenPositions int
}
