package strategies

import (
	"fmt"

	"github.com/rustyeddy/stratlab/backtest"
	"github.com/rustyeddy/stratlab/indicators"
	"github.com/rustyeddy/stratlab/market"
)

// Breakout buys a close above the highest high of the previous lookback bars
// and sells a close below the lowest low of the previous exit_lookback bars.
//
// Params:
//
//	lookback       entry channel (20)
//	exit_lookback  exit channel (10)
//	atr_stop       stop hint at close - atr_stop*ATR(14), 0 leaves the engine's stop (0)
type Breakout struct{}

func (Breakout) Name() string { return "breakout" }

func (Breakout) DefaultParams() backtest.Params {
	return backtest.Params{"lookback": 20, "exit_lookback": 10, "atr_stop": 0}
}

func (Breakout) ValidateParams(p backtest.Params) error {
	if p.Int("lookback", 20) <= 0 || p.Int("exit_lookback", 10) <= 0 {
		return fmt.Errorf("breakout: lookback and exit_lookback must be positive")
	}
	if p.Float("atr_stop", 0) < 0 {
		return fmt.Errorf("breakout: atr_stop must be >= 0")
	}
	return nil
}

func (Breakout) Evaluate(bars []market.Bar, p backtest.Params) (backtest.Signal, error) {
	look, exitLook := p.Int("lookback", 20), p.Int("exit_lookback", 10)
	n := len(bars)
	if n < max(look, exitLook)+1 {
		return backtest.None(), nil
	}
	cur := bars[n-1]

	hi := bars[n-1-look].High
	for _, b := range bars[n-1-look : n-1] {
		hi = max(hi, b.High)
	}
	lo := bars[n-1-exitLook].Low
	for _, b := range bars[n-1-exitLook : n-1] {
		lo = min(lo, b.Low)
	}

	switch {
	case cur.Close > hi:
		sig := backtest.Signal{Action: backtest.ActionBuy, Reason: "channel breakout"}
		if k := p.Float("atr_stop", 0); k > 0 {
			if atr, ok := indicators.Last(indicators.NewATR(14), bars); ok && atr > 0 {
				sig.Stop = cur.Close - k*atr
			}
		}
		return sig, nil
	case cur.Close < lo:
		return backtest.Signal{Action: backtest.ActionSell, Reason: "channel breakdown"}, nil
	}
	return backtest.None(), nil
}
