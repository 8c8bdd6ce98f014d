package backtest

import (
	"time"

	"github.com/rustyeddy/stratlab/exit"
	"github.com/rustyeddy/stratlab/ledger"
	"github.com/rustyeddy/stratlab/metrics"
)

// Result is everything one run produced. Reports are derived from it on
// demand.
type Result struct {
	Symbol         string  `json:"symbol"`
	Strategy       string  `json:"strategy"`
	Params         Params  `json:"params"`
	InitialCapital float64 `json:"initial_capital"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Bars  int       `json:"bars"` // simulated, excluding warm-up

	Trades []ledger.Trade       `json:"trades"`
	Equity []ledger.EquityPoint `json:"equity"`
	Events []exit.Event         `json:"events"`

	StrategyErrors []*StrategyEvaluationError `json:"-"`
	Rejected       int                        `json:"rejected"` // entries refused by risk checks or the ledger

	InsufficientData bool `json:"insufficient_data"`
}

func (r *Result) Report() metrics.Report {
	return metrics.Compute(r.Trades, r.Equity, r.InitialCapital)
}

// FinalEquity is the last equity point, or the initial capital when the run
// never simulated a bar.
func (r *Result) FinalEquity() float64 {
	if len(r.Equity) == 0 {
		return r.InitialCapital
	}
	return r.Equity[len(r.Equity)-1].Equity
}

// Returns is the per-trade percent returns, the Monte Carlo input.
func (r *Result) Returns() []float64 {
	return ledger.Returns(r.Trades)
}
