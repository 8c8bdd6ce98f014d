package risk

import (
	"fmt"

	"github.com/rustyeddy/stratlab/ledger"
)

// KellyConfig parameterizes the half-Kelly sizer.
type KellyConfig struct {
	MinTrades        int     `json:"min_trades" yaml:"min_trades"`                 // fewer trades than this use Fallback (20)
	Fallback         float64 `json:"fallback" yaml:"fallback"`                     // 0.10
	MinFraction      float64 `json:"min_fraction" yaml:"min_fraction"`             // 0.05
	MaxFraction      float64 `json:"max_fraction" yaml:"max_fraction"`             // 0.25
	DrawdownLookback int     `json:"drawdown_lookback" yaml:"drawdown_lookback"`   // 10 trades
	DrawdownLimitPct float64 `json:"drawdown_limit_pct" yaml:"drawdown_limit_pct"` // 0.10 of initial capital
}

func DefaultKellyConfig() KellyConfig {
	return KellyConfig{
		MinTrades:        20,
		Fallback:         0.10,
		MinFraction:      0.05,
		MaxFraction:      0.25,
		DrawdownLookback: 10,
		DrawdownLimitPct: 0.10,
	}
}

func (c KellyConfig) Validate() error {
	if c.MinTrades < 0 {
		return fmt.Errorf("risk: kelly min_trades must be >= 0")
	}
	if c.MinFraction <= 0 || c.MaxFraction > 1 || c.MinFraction > c.MaxFraction {
		return fmt.Errorf("risk: kelly clamp [%.4f, %.4f] must satisfy 0 < min <= max <= 1", c.MinFraction, c.MaxFraction)
	}
	if c.Fallback <= 0 || c.Fallback > 1 {
		return fmt.Errorf("risk: kelly fallback must be in (0, 1]")
	}
	if c.DrawdownLookback <= 0 {
		return fmt.Errorf("risk: kelly drawdown_lookback must be > 0")
	}
	if c.DrawdownLimitPct < 0 {
		return fmt.Errorf("risk: kelly drawdown_limit_pct must be >= 0")
	}
	return nil
}

// Sizing is the sizer's answer plus the statistics behind it.
type Sizing struct {
	Fraction float64 `json:"fraction"`

	Trades       int     `json:"trades"`
	WinRate      float64 `json:"win_rate"` // p, 0..1
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"` // absolute
	WinLossRatio float64 `json:"win_loss_ratio"`
	RawKelly     float64 `json:"raw_kelly"` // f* before halving
	Fallback     bool    `json:"fallback"`

	RecentPnL  float64 `json:"recent_pnl"`
	ReduceRisk bool    `json:"reduce_risk"`
}

// KellyFraction sizes with DefaultKellyConfig.
func KellyFraction(history []ledger.Trade, initialCapital float64) Sizing {
	return DefaultKellyConfig().Size(history, initialCapital)
}

// Size computes the fraction of capital to commit to the next trade. It is a
// pure function of history.
func (c KellyConfig) Size(history []ledger.Trade, initialCapital float64) Sizing {
	s := Sizing{Trades: len(history)}

	var wins, losses int
	var sumWin, sumLoss float64
	for _, t := range history {
		switch {
		case t.PnL > 0:
			wins++
			sumWin += t.PnL
		case t.PnL < 0:
			losses++
			sumLoss -= t.PnL
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(wins) / float64(s.Trades)
	}
	if wins > 0 {
		s.AvgWin = sumWin / float64(wins)
	}
	if losses > 0 {
		s.AvgLoss = sumLoss / float64(losses)
	}

	if s.Trades < c.MinTrades || losses == 0 || s.AvgLoss == 0 {
		s.Fallback = true
		s.Fraction = c.Fallback
	} else {
		b := s.AvgWin / s.AvgLoss
		s.WinLossRatio = b
		if b > 0 {
			s.RawKelly = (s.WinRate*b - (1 - s.WinRate)) / b
		} else {
			// Every counted trade lost: f* is -inf, clamp takes care of it.
			s.RawKelly = -1
		}
		s.Fraction = s.RawKelly / 2
	}
	s.Fraction = clamp(s.Fraction, c.MinFraction, c.MaxFraction)

	s.RecentPnL, s.ReduceRisk = RecentDrawdown(history, c.DrawdownLookback, initialCapital, c.DrawdownLimitPct)
	if s.ReduceRisk {
		s.Fraction = clamp(s.Fraction/2, c.MinFraction, c.MaxFraction)
	}
	return s
}

// RecentDrawdown sums P&L over the last lookback trades and reports whether
// that sum is worse than -limitPct of initialCapital.
func RecentDrawdown(history []ledger.Trade, lookback int, initialCapital, limitPct float64) (float64, bool) {
	start := len(history) - lookback
	if start < 0 || lookback <= 0 {
		start = 0
	}
	var sum float64
	for _, t := range history[start:] {
		sum += t.PnL
	}
	return sum, sum < -limitPct*initialCapital
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
