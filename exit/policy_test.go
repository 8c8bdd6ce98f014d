package exit

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rustyeddy/stratlab/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func newPos(side ledger.Side, entry, stop float64) *ledger.Position {
	return &ledger.Position{
		ID:         1,
		Symbol:     "BTC/USDT",
		Side:       side,
		EntryPrice: entry,
		Size:       0.01,
		Stop:       stop,
		Peak:       entry,
		State:      ledger.StateOpen,
	}
}

func TestScenario_BreakEvenThenProfit2Pct(t *testing.T) {
	t.Parallel()

	pol := New(DefaultConfig())
	p := newPos(ledger.Long, 45000, 44100)

	d := pol.Evaluate(p, At(45000), 0, t0)
	assert.False(t, d.Exit)
	assert.False(t, p.BreakEvenArmed)

	d = pol.Evaluate(p, At(45450), 1, t0.Add(time.Hour))
	require.False(t, d.Exit)
	assert.True(t, p.BreakEvenArmed)
	assert.True(t, p.ProfitLocked)
	assert.Equal(t, ledger.StateProfitLocked, p.State)
	// Break-even first (45000), then the 0.5% trail below 45450.
	assert.InDelta(t, 45222.75, p.Stop, 1e-6)
	require.Len(t, d.Events, 2)
	assert.Equal(t, EventBreakEven, d.Events[0].Kind)
	assert.Equal(t, ledger.StateOpen, d.Events[0].From)
	assert.Equal(t, ledger.StateBreakEvenArmed, d.Events[0].To)
	assert.Equal(t, EventTrail, d.Events[1].Kind)
	assert.Equal(t, ledger.StateProfitLocked, d.Events[1].To)

	d = pol.Evaluate(p, At(45900), 2, t0.Add(2*time.Hour))
	require.True(t, d.Exit)
	assert.Equal(t, ledger.ReasonProfit2Pct, d.Reason)
	assert.InDelta(t, 9.0, p.UnrealizedPnL(45900), 1e-9)
	last := d.Events[len(d.Events)-1]
	assert.Equal(t, ledger.StateClosed, last.To)
	assert.Equal(t, ledger.ReasonProfit2Pct, last.Reason)
}

func TestStopLossHasPriority(t *testing.T) {
	t.Parallel()

	pol := New(DefaultConfig())
	p := newPos(ledger.Long, 100, 99)
	// A high that would otherwise make this look like a big winner.
	d := pol.Evaluate(p, Quote{Close: 98.5, High: 104, Low: 98}, 1, t0)
	require.True(t, d.Exit)
	assert.Equal(t, ledger.ReasonStopLoss, d.Reason)
}

func TestBreakEvenIsIdempotent(t *testing.T) {
	t.Parallel()

	pol := New(DefaultConfig())
	p := newPos(ledger.Long, 100, 98)

	d := pol.Evaluate(p, At(100.6), 1, t0)
	require.Len(t, d.Events, 1)
	assert.Equal(t, EventBreakEven, d.Events[0].Kind)
	assert.Equal(t, 100.0, p.Stop)

	d = pol.Evaluate(p, At(100.7), 2, t0)
	assert.Empty(t, d.Events)
	assert.Equal(t, 100.0, p.Stop)
}

func TestProfit3Pct(t *testing.T) {
	t.Parallel()

	pol := New(DefaultConfig())
	p := newPos(ledger.Long, 100, 98)
	d := pol.Evaluate(p, At(103.5), 1, t0)
	require.True(t, d.Exit)
	assert.Equal(t, ledger.ReasonProfit3Pct, d.Reason)
}

func TestProfitProtection(t *testing.T) {
	t.Parallel()

	pol := New(DefaultConfig())
	p := newPos(ledger.Long, 100, 98)

	d := pol.Evaluate(p, At(100.8), 1, t0)
	require.False(t, d.Exit)
	require.True(t, p.BreakEvenArmed)

	// Spikes to +1.9% intrabar and closes back at +0.6%.
	d = pol.Evaluate(p, Quote{Close: 100.6, High: 101.9, Low: 100.5}, 2, t0)
	require.True(t, d.Exit)
	assert.Equal(t, ledger.ReasonProfitProtection, d.Reason)
	assert.Equal(t, 101.9, p.Peak)
}

// The peak tracks the intrabar high, so one bar can arm break-even and fire
// protection when it closes well below its high.
func TestProfitProtection_SameBarAsArming(t *testing.T) {
	t.Parallel()

	pol := New(DefaultConfig())
	p := newPos(ledger.Long, 100, 98)

	d := pol.Evaluate(p, Quote{Close: 101.5, High: 102.6, Low: 100}, 1, t0)
	require.True(t, d.Exit)
	assert.Equal(t, ledger.ReasonProfitProtection, d.Reason)
	assert.True(t, p.BreakEvenArmed)
	assert.Equal(t, 102.6, p.Peak)
	require.Len(t, d.Events, 2)
	assert.Equal(t, EventBreakEven, d.Events[0].Kind)

	// Same close without the spike only trails.
	q := newPos(ledger.Long, 100, 98)
	d = pol.Evaluate(q, At(101.5), 1, t0)
	assert.False(t, d.Exit)
	assert.True(t, q.ProfitLocked)
}

func TestTierBeatsProtection(t *testing.T) {
	t.Parallel()

	pol := New(DefaultConfig())
	p := newPos(ledger.Long, 100, 98)
	pol.Evaluate(p, At(100.8), 1, t0)

	// Both a 2% tier and a >1% retrace: the tier wins.
	d := pol.Evaluate(p, Quote{Close: 102.5, High: 104, Low: 102}, 2, t0)
	require.True(t, d.Exit)
	assert.Equal(t, ledger.ReasonProfit2Pct, d.Reason)
}

func TestProtectionRequiresArmed(t *testing.T) {
	t.Parallel()

	pol := New(DefaultConfig())
	p := newPos(ledger.Long, 100, 97)
	// Never armed on a close: retrace alone does nothing.
	d := pol.Evaluate(p, Quote{Close: 100.3, High: 101.8, Low: 100}, 1, t0)
	assert.False(t, d.Exit)
	assert.False(t, p.BreakEvenArmed)
}

func TestTimeExit(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxHoldingBars = 5
	pol := New(cfg)
	p := newPos(ledger.Long, 100, 98)
	p.EntryBar = 10

	assert.False(t, pol.Evaluate(p, At(100.1), 14, t0).Exit)
	d := pol.Evaluate(p, At(100.1), 15, t0)
	require.True(t, d.Exit)
	assert.Equal(t, ledger.ReasonTimeExit, d.Reason)
}

func TestTakeProfitHint(t *testing.T) {
	t.Parallel()

	pol := New(DefaultConfig())
	p := newPos(ledger.Short, 100, 102)
	p.TakeProfit = 99.8

	d := pol.Evaluate(p, At(99.7), 1, t0)
	require.True(t, d.Exit)
	assert.Equal(t, ledger.ReasonSignal, d.Reason)
}

func TestShortIsSymmetric(t *testing.T) {
	t.Parallel()

	pol := New(DefaultConfig())
	p := newPos(ledger.Short, 45000, 45900)

	d := pol.Evaluate(p, At(44550), 1, t0)
	require.False(t, d.Exit)
	assert.True(t, p.BreakEvenArmed)
	assert.InDelta(t, 44550*1.005, p.Stop, 1e-6)

	d = pol.Evaluate(p, At(44100), 2, t0)
	require.True(t, d.Exit)
	assert.Equal(t, ledger.ReasonProfit2Pct, d.Reason)

	q := newPos(ledger.Short, 100, 101)
	d = pol.Evaluate(q, At(101), 1, t0)
	require.True(t, d.Exit)
	assert.Equal(t, ledger.ReasonStopLoss, d.Reason)
}

// Once armed, no evaluation ever loosens the stop, for any price path.
func TestStopIsMonotonic(t *testing.T) {
	t.Parallel()

	pol := New(DefaultConfig())
	rng := rand.New(rand.NewPCG(42, 0))

	for path := 0; path < 500; path++ {
		side := ledger.Long
		if path%2 == 1 {
			side = ledger.Short
		}
		entry := 100.0
		p := newPos(side, entry, entry*(1-float64(side)*0.03))
		price := entry

		for bar := 1; bar < 200; bar++ {
			price *= 1 + (rng.Float64()-0.5)*0.01
			hi := price * (1 + rng.Float64()*0.004)
			lo := price * (1 - rng.Float64()*0.004)

			prevStop := p.Stop
			wasArmed := p.BreakEvenArmed
			d := pol.Evaluate(p, Quote{Close: price, High: hi, Low: lo}, bar, t0)

			if wasArmed {
				if side == ledger.Long {
					require.GreaterOrEqual(t, p.Stop, prevStop)
				} else {
					require.LessOrEqual(t, p.Stop, prevStop)
				}
			}
			if p.BreakEvenArmed {
				if side == ledger.Long {
					require.GreaterOrEqual(t, p.Stop, entry)
				} else {
					require.LessOrEqual(t, p.Stop, entry)
				}
			}
			if d.Exit {
				require.True(t, d.Reason.Valid())
				break
			}
		}
	}
}

func TestWidths(t *testing.T) {
	t.Parallel()

	pol := New(DefaultConfig())

	tests := []struct {
		name   string
		m      Market
		regime Regime
		stop   float64
		take   float64
	}{
		{"unknown", Market{}, RegimeUnknown, 2.0, 4.0},
		{"low vol", Market{ATRPct: 0.5}, RegimeLow, 1.0, 3.0},
		{"normal vol", Market{ATRPct: 2.0}, RegimeNormal, 2.0, 4.0},
		{"high vol", Market{ATRPct: 4.0}, RegimeHigh, 3.0, 6.0},
		{"boundary low", Market{ATRPct: 1.0}, RegimeNormal, 2.0, 4.0},
		{"boundary high", Market{ATRPct: 3.0}, RegimeNormal, 2.0, 4.0},
		{"strong trend", Market{ATRPct: 2.0, ADX: 30}, RegimeNormal, 2.0, 5.0},
		{"weak trend", Market{ATRPct: 2.0, ADX: 15}, RegimeNormal, 2.0, 3.2},
		{"high vol strong trend", Market{ATRPct: 5.0, ADX: 25}, RegimeHigh, 3.0, 7.5},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := pol.Widths(tt.m)
			assert.Equal(t, tt.regime, w.Regime)
			assert.InDelta(t, tt.stop, w.StopPct, 1e-9)
			assert.InDelta(t, tt.take, w.TakePct, 1e-9)
		})
	}

	w := pol.Widths(Market{ATRPct: 2.0})
	assert.InDelta(t, 98.0, w.StopPrice(ledger.Long, 100), 1e-9)
	assert.InDelta(t, 102.0, w.StopPrice(ledger.Short, 100), 1e-9)
	assert.InDelta(t, 104.0, w.TakePrice(ledger.Long, 100), 1e-9)
	assert.InDelta(t, 96.0, w.TakePrice(ledger.Short, 100), 1e-9)
}
