package ledger

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func newTestLedger(capital float64) *Ledger {
	return New(Config{InitialCapital: capital})
}

func TestOpenClose_Long(t *testing.T) {
	t.Parallel()

	l := newTestLedger(10_000)
	id, err := l.Open(Order{Symbol: "BTC/USDT", Side: Long, Price: 45000, Size: 0.01, Stop: 44100, Time: t0})
	require.NoError(t, err)
	assert.InDelta(t, 9550, l.Cash(), 1e-9)
	assert.Equal(t, 1, l.OpenCount())

	p, ok := l.Position(id)
	require.True(t, ok)
	assert.Equal(t, StateOpen, p.State)
	assert.Equal(t, 45000.0, p.Peak)
	assert.InDelta(t, 450, p.Notional(), 1e-9)

	tr, err := l.Close(id, 45900, ReasonProfit2Pct, t0.Add(2*time.Hour), 2)
	require.NoError(t, err)
	assert.InDelta(t, 9.0, tr.PnL, 1e-9)
	assert.InDelta(t, 2.0, tr.PnLPct, 1e-9)
	assert.Equal(t, ReasonProfit2Pct, tr.Reason)
	assert.Equal(t, "T000001", tr.ID)
	assert.InDelta(t, 10_009, l.Cash(), 1e-9)
	assert.Equal(t, 0, l.OpenCount())
	assert.Len(t, l.Trades(), 1)
}

func TestOpenClose_Short(t *testing.T) {
	t.Parallel()

	l := newTestLedger(1_000)
	id, err := l.Open(Order{Symbol: "ETH/USDT", Side: Short, Price: 100, Size: 5, Time: t0})
	require.NoError(t, err)
	assert.InDelta(t, 500, l.Cash(), 1e-9)

	// Price falls 10%: short gains 50.
	assert.InDelta(t, 550, l.MarkToMarket(map[string]float64{"ETH/USDT": 90}), 1e-9)

	tr, err := l.Close(id, 90, ReasonSignal, t0.Add(time.Hour), 1)
	require.NoError(t, err)
	assert.InDelta(t, 50, tr.PnL, 1e-9)
	assert.InDelta(t, 10, tr.PnLPct, 1e-9)
	assert.InDelta(t, 1_050, l.Cash(), 1e-9)
}

func TestOpen_Errors(t *testing.T) {
	t.Parallel()

	l := New(Config{InitialCapital: 1_000, MaxOpenPositions: 2})

	_, err := l.Open(Order{Symbol: "A", Side: Long, Price: 10, Size: 1})
	require.NoError(t, err)

	_, err = l.Open(Order{Symbol: "A", Side: Long, Price: 10, Size: 1})
	assert.ErrorIs(t, err, ErrDuplicatePosition)

	_, err = l.Open(Order{Symbol: "B", Side: Long, Price: 10, Size: 1_000})
	assert.ErrorIs(t, err, ErrInsufficientCapital)

	_, err = l.Open(Order{Symbol: "B", Side: Long, Price: 10, Size: 1})
	require.NoError(t, err)

	_, err = l.Open(Order{Symbol: "C", Side: Long, Price: 10, Size: 1})
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	_, err = l.Open(Order{Symbol: "D", Side: Long, Price: 0, Size: 1})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = l.Close(99, 10, ReasonSignal, t0, 0)
	assert.ErrorIs(t, err, ErrUnknownPosition)
}

func TestOpen_DefaultCapacityAndMultiplePerSymbol(t *testing.T) {
	t.Parallel()

	l := New(Config{InitialCapital: 1_000, AllowMultiplePerSymbol: true})
	for i := 0; i < DefaultMaxOpenPositions; i++ {
		_, err := l.Open(Order{Symbol: "A", Side: Long, Price: 10, Size: 1})
		require.NoError(t, err)
	}
	_, err := l.Open(Order{Symbol: "A", Side: Long, Price: 10, Size: 1})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestClose_RejectsUnknownReason(t *testing.T) {
	t.Parallel()

	l := newTestLedger(100)
	id, err := l.Open(Order{Symbol: "A", Side: Long, Price: 10, Size: 1})
	require.NoError(t, err)

	_, err = l.Close(id, 11, ExitReason("TAKE"), t0, 1)
	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.Equal(t, 1, l.OpenCount())
}

func TestUpdate_GuardsIdentityAndStop(t *testing.T) {
	t.Parallel()

	l := newTestLedger(1_000)
	id, err := l.Open(Order{Symbol: "A", Side: Long, Price: 100, Size: 1, Stop: 98})
	require.NoError(t, err)

	require.NoError(t, l.Update(id, func(p *Position) {
		p.Stop = 100
		p.BreakEvenArmed = true
		p.Size = 50    // ignored
		p.Symbol = "Z" // ignored
	}))
	p, _ := l.Position(id)
	assert.Equal(t, 100.0, p.Stop)
	assert.True(t, p.BreakEvenArmed)
	assert.Equal(t, 1.0, p.Size)
	assert.Equal(t, "A", p.Symbol)

	err = l.Update(id, func(p *Position) { p.Stop = 99 })
	assert.ErrorIs(t, err, ErrStopLoosened)
	p, _ = l.Position(id)
	assert.Equal(t, 100.0, p.Stop)

	err = l.Update(42, func(p *Position) {})
	assert.ErrorIs(t, err, ErrUnknownPosition)
}

func TestMarkToMarket_IsPure(t *testing.T) {
	t.Parallel()

	l := newTestLedger(1_000)
	_, err := l.Open(Order{Symbol: "A", Side: Long, Price: 10, Size: 10})
	require.NoError(t, err)
	_, err = l.Open(Order{Symbol: "B", Side: Long, Price: 20, Size: 5})
	require.NoError(t, err)

	prices := map[string]float64{"A": 12}
	v1 := l.MarkToMarket(prices)
	v2 := l.MarkToMarket(prices)
	assert.Equal(t, v1, v2)
	// B has no price and is carried at entry.
	assert.InDelta(t, 120+100, v1, 1e-9)
	assert.InDelta(t, 800+220, l.Equity(prices), 1e-9)
	assert.InDelta(t, 800, l.Cash(), 1e-9)
}

// Capital conservation: cash after close == cash before open + trade P&L.
func TestCapitalConservation(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(7, 0))
	l := newTestLedger(10_000)

	for i := 0; i < 500; i++ {
		before := l.CashDecimal()
		side := Long
		if rng.IntN(2) == 0 {
			side = Short
		}
		entry := 10 + rng.Float64()*1_000
		size := (l.Cash() * 0.5) / entry
		id, err := l.Open(Order{Symbol: "X", Side: side, Price: entry, Size: size, Time: t0})
		require.NoError(t, err)

		exit := entry * (0.8 + rng.Float64()*0.4)
		tr, err := l.Close(id, exit, ReasonSignal, t0, i)
		require.NoError(t, err)

		assert.InDelta(t, before.InexactFloat64()+tr.PnL, l.Cash(), 1e-6)
		assert.InDelta(t, tr.PnL, float64(side)*(exit-entry)*size, 1e-6)
	}
	assert.Len(t, l.Trades(), 500)
}

func TestParseSide(t *testing.T) {
	t.Parallel()

	s, err := ParseSide("BUY")
	require.NoError(t, err)
	assert.Equal(t, Long, s)

	s, err = ParseSide("short")
	require.NoError(t, err)
	assert.Equal(t, Short, s)

	_, err = ParseSide("flat")
	assert.Error(t, err)

	b, err := Short.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "short", string(b))
}
