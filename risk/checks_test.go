package risk

import (
	"testing"

	"github.com/rustyeddy/stratlab/ledger"
	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	t.Parallel()

	pol := Policy{
		MaxRiskPct:       0.02,
		MaxOpenPositions: 3,
		MinRR:            1.5,
		MaxDrawdownPct:   0.25,
	}
	acct := AccountSnapshot{Cash: 10000, Equity: 10000, PeakEquity: 10000}
	ok := TradeIntent{Symbol: "BTC/USDT", Side: ledger.Long, Size: 0.1, Entry: 45000, Stop: 44100, TakeProfit: 46800}

	tests := []struct {
		name   string
		mutate func(*TradeIntent, *AccountSnapshot)
		codes  []string
	}{
		{"allowed", func(*TradeIntent, *AccountSnapshot) {}, nil},
		{"no stop", func(i *TradeIntent, _ *AccountSnapshot) { i.Stop = 0 }, []string{CodeNoStopOrEntry}},
		{"no size", func(i *TradeIntent, _ *AccountSnapshot) { i.Size = 0 }, []string{CodeNoSize}},
		{"stop above long entry", func(i *TradeIntent, _ *AccountSnapshot) { i.Stop = 46000 }, []string{CodeStopWrongSide}},
		{"take below long entry", func(i *TradeIntent, _ *AccountSnapshot) { i.TakeProfit = 44000 }, []string{CodeTakeProfitWrongSide}},
		{"insufficient cash", func(_ *TradeIntent, a *AccountSnapshot) { a.Cash = 1000 }, []string{CodeInsufficientCash}},
		// 0.2 * 1500 = 300 = 3% of equity
		{"risk too high", func(i *TradeIntent, _ *AccountSnapshot) { i.Size = 0.2; i.Stop = 43500 }, []string{CodeRiskTooHigh}},
		{"rr too low", func(i *TradeIntent, _ *AccountSnapshot) { i.TakeProfit = 45900 }, []string{CodeRRTooLow}},
		{"too many positions", func(_ *TradeIntent, a *AccountSnapshot) { a.OpenPositions = 3 }, []string{CodeTooManyPositions}},
		{"drawdown breaker", func(_ *TradeIntent, a *AccountSnapshot) { a.PeakEquity = 14000 }, []string{CodeDrawdownLimit}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in, a := ok, acct
			tt.mutate(&in, &a)
			d := Evaluate(pol, in, a)
			if len(tt.codes) == 0 {
				assert.True(t, d.Allowed, d.String())
				assert.Empty(t, d.Violations)
				return
			}
			assert.False(t, d.Allowed)
			for _, c := range tt.codes {
				assert.True(t, d.Has(c), "missing %s in %s", c, d.String())
			}
		})
	}
}

func TestEvaluate_ShortAndPlannedNumbers(t *testing.T) {
	t.Parallel()

	d := Evaluate(DefaultPolicy(),
		TradeIntent{Side: ledger.Short, Size: 1, Entry: 100, Stop: 102, TakeProfit: 96},
		AccountSnapshot{Cash: 1000, Equity: 1000})
	assert.True(t, d.Allowed, d.String())
	assert.InDelta(t, 2, d.PlannedRisk, 1e-12)
	assert.InDelta(t, 0.002, d.PlannedRiskPct, 1e-12)
	assert.InDelta(t, 2, d.PlannedRR, 1e-12)
}

func TestRRAndRiskPct(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, RR(100, 100, 110))
	assert.InDelta(t, 3, RR(100, 99, 103), 1e-12)
	assert.True(t, RiskPct(10, 0) > 1e300)
	assert.InDelta(t, 0.01, RiskPct(10, 1000), 1e-12)
}
