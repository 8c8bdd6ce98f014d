package strategies

import (
	"fmt"

	"github.com/rustyeddy/stratlab/backtest"
	"github.com/rustyeddy/stratlab/indicators"
	"github.com/rustyeddy/stratlab/market"
)

// MACross buys when the fast moving average crosses above the slow one and
// sells on the opposite cross.
//
// Params:
//
//	fast_ma  fast period (10)
//	slow_ma  slow period (30)
//	ema      1 for exponential averages, 0 for simple (0)
//	min_adx  only buy when ADX(14) is at least this, 0 disables (0)
type MACross struct{}

func (MACross) Name() string { return "ma-cross" }

func (MACross) DefaultParams() backtest.Params {
	return backtest.Params{"fast_ma": 10, "slow_ma": 30, "ema": 0, "min_adx": 0}
}

func (MACross) ValidateParams(p backtest.Params) error {
	fast, slow := p.Int("fast_ma", 10), p.Int("slow_ma", 30)
	if fast <= 0 || slow <= 0 {
		return fmt.Errorf("ma-cross: periods must be positive (fast_ma=%d slow_ma=%d)", fast, slow)
	}
	if fast >= slow {
		return fmt.Errorf("ma-cross: fast_ma %d must be below slow_ma %d", fast, slow)
	}
	if p.Float("min_adx", 0) < 0 {
		return fmt.Errorf("ma-cross: min_adx must be >= 0")
	}
	return nil
}

func (s MACross) Evaluate(bars []market.Bar, p backtest.Params) (backtest.Signal, error) {
	fast, slow := p.Int("fast_ma", 10), p.Int("slow_ma", 30)
	if len(bars) < slow+1 {
		return backtest.None(), nil
	}

	avg := func(bars []market.Bar, period int) (float64, error) {
		if p.Int("ema", 0) == 1 {
			v, _ := indicators.Last(indicators.NewEMA(period), bars)
			return v, nil
		}
		return indicators.MA(bars, period)
	}

	prev := bars[:len(bars)-1]
	f0, err := avg(prev, fast)
	if err != nil {
		return backtest.None(), err
	}
	s0, err := avg(prev, slow)
	if err != nil {
		return backtest.None(), err
	}
	f1, err := avg(bars, fast)
	if err != nil {
		return backtest.None(), err
	}
	s1, err := avg(bars, slow)
	if err != nil {
		return backtest.None(), err
	}

	switch {
	case f0 <= s0 && f1 > s1:
		if minADX := p.Float("min_adx", 0); minADX > 0 {
			adx, ok := indicators.Last(indicators.NewADX(14), bars)
			if !ok || adx < minADX {
				return backtest.None(), nil
			}
		}
		return backtest.Signal{Action: backtest.ActionBuy, Reason: "fast above slow"}, nil
	case f0 >= s0 && f1 < s1:
		return backtest.Signal{Action: backtest.ActionSell, Reason: "fast below slow"}, nil
	}
	return backtest.None(), nil
}
