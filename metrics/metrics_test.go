package metrics

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rustyeddy/stratlab/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func trade(pnl, pct float64, reason ledger.ExitReason) ledger.Trade {
	return ledger.Trade{PnL: pnl, PnLPct: pct, Reason: reason, EntryBar: 0, ExitBar: 4}
}

func curve(vals ...float64) []ledger.EquityPoint {
	out := make([]ledger.EquityPoint, len(vals))
	for i, v := range vals {
		out[i] = ledger.EquityPoint{Time: t0.Add(time.Duration(i) * time.Hour), Bar: i, Equity: v}
	}
	return out
}

func TestCompute(t *testing.T) {
	t.Parallel()

	trades := []ledger.Trade{
		trade(100, 10, ledger.ReasonProfit2Pct),
		trade(-50, -5, ledger.ReasonStopLoss),
		trade(50, 5, ledger.ReasonSignal),
		trade(0, 0, ledger.ReasonBacktestEnd),
	}
	r := Compute(trades, curve(1000, 1100, 1050, 1100, 1100), 1000)

	assert.Equal(t, 4, r.TotalTrades)
	assert.Equal(t, 2, r.Wins)
	assert.Equal(t, 1, r.Losses)
	assert.Equal(t, 1, r.Breakeven)
	assert.InDelta(t, 50, r.WinRate, 1e-12)
	assert.InDelta(t, 150, r.GrossProfit, 1e-12)
	assert.InDelta(t, -50, r.GrossLoss, 1e-12)
	assert.InDelta(t, 100, r.NetPnL, 1e-12)
	assert.InDelta(t, 75, r.AvgWin, 1e-12)
	assert.InDelta(t, -50, r.AvgLoss, 1e-12)
	assert.InDelta(t, 25, r.AvgTrade, 1e-12)
	assert.InDelta(t, 2.5, r.AvgReturn, 1e-12)
	assert.InDelta(t, 3, r.ProfitFactor, 1e-12)
	assert.InDelta(t, 10, r.BestTrade, 1e-12)
	assert.InDelta(t, -5, r.WorstTrade, 1e-12)
	assert.InDelta(t, 4, r.AvgHolding, 1e-12)
	assert.InDelta(t, 1100, r.FinalCapital, 1e-12)
	assert.InDelta(t, 10, r.TotalReturn, 1e-12)
	assert.InDelta(t, -50.0/1100, r.MaxDrawdown, 1e-12)
	assert.InDelta(t, 50.0/11, r.MaxDrawdownPct(), 1e-9)
	assert.Equal(t, t0, r.Start)
	assert.Equal(t, t0.Add(4*time.Hour), r.End)
	assert.Equal(t, 1, r.ExitReasons[ledger.ReasonStopLoss])
	assert.False(t, r.NoTrades)

	// sample std of {10,-5,5,0} = sqrt(125/3)
	wantSharpe := 2.5 / math.Sqrt(125.0/3) * math.Sqrt(252)
	assert.InDelta(t, wantSharpe, r.Sharpe, 1e-9)
	// one negative return: downside std is 0
	assert.Equal(t, 0.0, r.Sortino)
	assert.InDelta(t, 2.5*252/(50.0/11), r.Calmar, 1e-9)
}

func TestCompute_NoTrades(t *testing.T) {
	t.Parallel()

	r := Compute(nil, curve(1000, 1000, 1000), 1000)
	assert.True(t, r.NoTrades)
	assert.Equal(t, NoTradesNote, r.Note)
	assert.Equal(t, 0.0, r.ProfitFactor)
	assert.Equal(t, 0.0, r.Sharpe)
	assert.Equal(t, 0.0, r.Sortino)
	assert.Equal(t, 0.0, r.Calmar)
	assert.Equal(t, 0.0, r.WinRate)
	assert.Equal(t, 0.0, r.MaxDrawdown)
	assert.Equal(t, 1000.0, r.FinalCapital)
	assert.Equal(t, 0.0, r.TotalReturn)

	_, err := json.Marshal(r)
	require.NoError(t, err)
}

func TestProfitFactor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pnls []float64
		want float64
	}{
		{"no trades", nil, 0},
		{"only wins", []float64{10, 20}, ProfitFactorCap},
		{"only breakeven", []float64{0, 0}, 0},
		{"only losses", []float64{-10}, 0},
		{"mixed", []float64{30, -10, -5}, 2},
		{"breakeven counts as non-positive", []float64{30, 0, -10}, 3},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var trades []ledger.Trade
			for _, p := range tt.pnls {
				trades = append(trades, ledger.Trade{PnL: p})
			}
			assert.InDelta(t, tt.want, ProfitFactor(trades), 1e-12)
		})
	}
}

func TestProfitFactorRelation(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(3, 0))
	for i := 0; i < 200; i++ {
		var trades []ledger.Trade
		for j := 0; j < 1+rng.IntN(40); j++ {
			trades = append(trades, ledger.Trade{PnL: (rng.Float64() - 0.5) * 100})
		}
		r := Compute(trades, nil, 1000)
		pf := r.ProfitFactor
		switch {
		case r.GrossLoss == 0:
			assert.Equal(t, ProfitFactorCap, pf)
		case r.GrossProfit > -r.GrossLoss:
			assert.Greater(t, pf, 1.0)
		case r.GrossProfit < -r.GrossLoss:
			assert.Less(t, pf, 1.0)
		}
		assert.False(t, math.IsNaN(r.Sharpe) || math.IsInf(r.Sharpe, 0))
	}
}

func TestSortino(t *testing.T) {
	t.Parallel()

	// negatives {-2,-4}: population std 1, mean of all = 2
	assert.InDelta(t, 2*math.Sqrt(252), Sortino([]float64{10, 4, -2, -4}), 1e-9)
	assert.Equal(t, 0.0, Sortino([]float64{1, 2, 3}))
}

func TestSharpeZeroStd(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Sharpe([]float64{1, 1, 1}))
	assert.Equal(t, 0.0, Sharpe([]float64{5}))
	assert.Equal(t, 0.0, Calmar([]float64{1, 2}, 0))
}

func TestMaxDrawdown(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, -0.5, MaxDrawdown(curve(100, 200, 100, 150), 100), 1e-12)
	assert.InDelta(t, -0.1, MaxDrawdown(curve(90, 95), 100), 1e-12)
	assert.Equal(t, 0.0, MaxDrawdown(curve(100, 110, 120), 100))
	assert.Equal(t, 0.0, MaxDrawdown(nil, 100))
}

func TestParseMetric(t *testing.T) {
	t.Parallel()

	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, MetricSharpe, m)

	m, err = ParseMetric(" Calmar ")
	require.NoError(t, err)
	assert.Equal(t, MetricCalmar, m)

	_, err = ParseMetric("alpha")
	assert.Error(t, err)

	r := Report{Sharpe: 1, Sortino: 2, Calmar: 3, TotalReturn: 4, ProfitFactor: 5, WinRate: 6}
	for i, m := range Metrics {
		assert.Equal(t, float64(i+1), m.Value(r))
	}
}
