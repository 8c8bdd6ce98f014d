package indicators

import (
	"testing"
	"time"

	"github.com/rustyeddy/stratlab/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func bars(closes ...float64) []market.Bar {
	return market.FromCloses("X", t0, time.Hour, closes).Bars
}

func TestSMA(t *testing.T) {
	t.Parallel()

	m := NewSMA(3)
	assert.Equal(t, "SMA(3)", m.Name())

	v, ok := Last(m, bars(1, 2))
	assert.False(t, ok)
	assert.Equal(t, 0.0, v)

	v, ok = Last(m, bars(1, 2, 3, 4))
	require.True(t, ok)
	assert.InDelta(t, 3.0, v, 1e-12)

	got, err := MA(bars(1, 2, 3, 4), 2)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, got, 1e-12)

	_, err = MA(bars(1), 2)
	assert.Error(t, err)
}

func TestEMA_SeededWithSMA(t *testing.T) {
	t.Parallel()

	e := NewEMA(3)
	v, ok := Last(e, bars(2, 4, 6))
	require.True(t, ok)
	assert.InDelta(t, 4.0, v, 1e-12)

	e.Update(bars(10)[0])
	// (10-4)*0.5 + 4
	assert.InDelta(t, 7.0, e.Value(), 1e-12)
}

func TestATR_ConstantRange(t *testing.T) {
	t.Parallel()

	var bs []market.Bar
	for i := 0; i < 20; i++ {
		bs = append(bs, market.Bar{Time: t0.Add(time.Duration(i) * time.Hour), Open: 100, High: 101, Low: 99, Close: 100})
	}

	a := NewATR(14)
	assert.Equal(t, 15, a.Warmup())
	v, ok := Last(a, bs)
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-12)

	pct, ok := ATRPercent(bs, 14)
	require.True(t, ok)
	assert.InDelta(t, 2.0, pct, 1e-12)

	_, ok = ATRPercent(bs[:5], 14)
	assert.False(t, ok)
}

func TestADX_TrendVsChop(t *testing.T) {
	t.Parallel()

	trend := make([]float64, 60)
	for i := range trend {
		trend[i] = 100 + float64(i)
	}

	// Alternating higher/lower bars: +DM and -DM cancel out.
	var chop []market.Bar
	for i := 0; i < 60; i++ {
		b := market.Bar{Time: t0.Add(time.Duration(i) * time.Hour), Open: 101, High: 102, Low: 100, Close: 101}
		if i%2 == 1 {
			b = market.Bar{Time: b.Time, Open: 100, High: 101, Low: 99, Close: 100}
		}
		chop = append(chop, b)
	}

	up, ok := Last(NewADX(14), bars(trend...))
	require.True(t, ok)
	flat, ok := Last(NewADX(14), chop)
	require.True(t, ok)

	assert.Greater(t, up, 50.0)
	assert.Less(t, flat, 20.0)
}
