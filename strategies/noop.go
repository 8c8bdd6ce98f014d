package strategies

import (
	"github.com/rustyeddy/stratlab/backtest"
	"github.com/rustyeddy/stratlab/market"
)

// NoopStrategy never trades.
type NoopStrategy struct{}

func (NoopStrategy) Name() string { return "noop" }

func (NoopStrategy) Evaluate([]market.Bar, backtest.Params) (backtest.Signal, error) {
	return backtest.None(), nil
}
