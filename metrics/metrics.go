// Package metrics turns a trade log and an equity curve into a Report.
//
// Ratios whose denominator is zero are reported as 0, never NaN or Inf, so a
// Report always serializes.
package metrics

import (
	"math"
	"time"

	"github.com/rustyeddy/stratlab/internal/stats"
	"github.com/rustyeddy/stratlab/ledger"
)

// ProfitFactorCap stands in for an infinite profit factor (profit with no
// losing trades).
const ProfitFactorCap = 999.99

// AnnualizationFactor scales per-trade ratios.
const AnnualizationFactor = 252

const NoTradesNote = "no trades executed"

type Report struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Breakeven   int     `json:"breakeven"`
	WinRate     float64 `json:"win_rate"` // percent

	GrossProfit float64 `json:"gross_profit"`
	GrossLoss   float64 `json:"gross_loss"` // <= 0
	NetPnL      float64 `json:"net_pnl"`
	AvgWin      float64 `json:"avg_win"`
	AvgLoss     float64 `json:"avg_loss"` // <= 0
	AvgTrade    float64 `json:"avg_trade"`
	AvgReturn   float64 `json:"avg_return_pct"`
	BestTrade   float64 `json:"best_trade_pct"`
	WorstTrade  float64 `json:"worst_trade_pct"`
	AvgHolding  float64 `json:"avg_holding_bars"`

	ProfitFactor float64 `json:"profit_factor"`
	Sharpe       float64 `json:"sharpe"`
	Sortino      float64 `json:"sortino"`
	Calmar       float64 `json:"calmar"`
	MaxDrawdown  float64 `json:"max_drawdown"` // fraction, <= 0

	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
	TotalReturn    float64 `json:"total_return_pct"`

	ExitReasons map[ledger.ExitReason]int `json:"exit_reasons"`

	NoTrades bool   `json:"no_trades"`
	Note     string `json:"note,omitempty"`
}

// MaxDrawdownPct is the drawdown as a positive percent.
func (r Report) MaxDrawdownPct() float64 { return -r.MaxDrawdown * 100 }

// Compute derives a Report. It never mutates its inputs.
func Compute(trades []ledger.Trade, equity []ledger.EquityPoint, initialCapital float64) Report {
	r := Report{
		TotalTrades:    len(trades),
		InitialCapital: initialCapital,
		ExitReasons:    make(map[ledger.ExitReason]int),
	}
	if len(equity) > 0 {
		r.Start = equity[0].Time
		r.End = equity[len(equity)-1].Time
	}

	returns := ledger.Returns(trades)
	var holding int
	for i, t := range trades {
		switch {
		case t.PnL > 0:
			r.Wins++
			r.GrossProfit += t.PnL
		case t.PnL < 0:
			r.Losses++
			r.GrossLoss += t.PnL
		default:
			r.Breakeven++
		}
		r.ExitReasons[t.Reason]++
		holding += t.HoldingBars()

		if i == 0 || t.PnLPct > r.BestTrade {
			r.BestTrade = t.PnLPct
		}
		if i == 0 || t.PnLPct < r.WorstTrade {
			r.WorstTrade = t.PnLPct
		}
	}
	r.NetPnL = r.GrossProfit + r.GrossLoss

	r.MaxDrawdown = MaxDrawdown(equity, initialCapital)
	r.FinalCapital = initialCapital + r.NetPnL
	if len(equity) > 0 {
		r.FinalCapital = equity[len(equity)-1].Equity
	}
	if initialCapital > 0 {
		r.TotalReturn = (r.FinalCapital - initialCapital) / initialCapital * 100
	}

	if r.TotalTrades == 0 {
		r.NoTrades = true
		r.Note = NoTradesNote
		return sanitize(r)
	}

	n := float64(r.TotalTrades)
	r.WinRate = float64(r.Wins) / n * 100
	r.AvgTrade = r.NetPnL / n
	r.AvgReturn = stats.Mean(returns)
	r.AvgHolding = float64(holding) / n
	if r.Wins > 0 {
		r.AvgWin = r.GrossProfit / float64(r.Wins)
	}
	if r.Losses > 0 {
		r.AvgLoss = r.GrossLoss / float64(r.Losses)
	}

	r.ProfitFactor = ProfitFactor(trades)
	r.Sharpe = Sharpe(returns)
	r.Sortino = Sortino(returns)
	r.Calmar = Calmar(returns, r.MaxDrawdown)

	return sanitize(r)
}

// ProfitFactor is sum(positive P&L) / |sum(non-positive P&L)|. No trades
// gives 0; profit without losses gives ProfitFactorCap.
func ProfitFactor(trades []ledger.Trade) float64 {
	var win, loss float64
	for _, t := range trades {
		if t.PnL > 0 {
			win += t.PnL
		} else {
			loss += t.PnL
		}
	}
	switch {
	case len(trades) == 0:
		return 0
	case loss == 0 && win > 0:
		return ProfitFactorCap
	case loss == 0:
		return 0
	}
	return math.Min(win/-loss, ProfitFactorCap)
}

// Sharpe is mean/std of per-trade percent returns, annualized.
func Sharpe(returns []float64) float64 {
	sd := stats.Std(returns)
	if sd == 0 {
		return 0
	}
	return stats.Finite(stats.Mean(returns) / sd * math.Sqrt(AnnualizationFactor))
}

// Sortino is Sharpe with the standard deviation of the negative returns only.
func Sortino(returns []float64) float64 {
	var neg []float64
	for _, r := range returns {
		if r < 0 {
			neg = append(neg, r)
		}
	}
	sd := stats.PopStd(neg)
	if sd == 0 {
		return 0
	}
	return stats.Finite(stats.Mean(returns) / sd * math.Sqrt(AnnualizationFactor))
}

// Calmar is the annualized mean trade return (percent) over the max
// drawdown (percent).
func Calmar(returns []float64, maxDrawdown float64) float64 {
	if maxDrawdown == 0 || len(returns) == 0 {
		return 0
	}
	return stats.Finite(stats.Mean(returns) * AnnualizationFactor / (math.Abs(maxDrawdown) * 100))
}

// MaxDrawdown is min over the curve of (equity - running peak) / running
// peak, as a fraction <= 0. The running peak starts at initialCapital when
// that is positive.
func MaxDrawdown(equity []ledger.EquityPoint, initialCapital float64) float64 {
	peak := initialCapital
	var dd float64
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		if d := (p.Equity - peak) / peak; d < dd {
			dd = d
		}
	}
	return dd
}

func sanitize(r Report) Report {
	for _, f := range []*float64{
		&r.WinRate, &r.GrossProfit, &r.GrossLoss, &r.NetPnL, &r.AvgWin, &r.AvgLoss,
		&r.AvgTrade, &r.AvgReturn, &r.BestTrade, &r.WorstTrade, &r.AvgHolding,
		&r.ProfitFactor, &r.Sharpe, &r.Sortino, &r.Calmar, &r.MaxDrawdown,
		&r.FinalCapital, &r.TotalReturn,
	} {
		*f = stats.Finite(*f)
	}
	return r
}
