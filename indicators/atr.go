package indicators

import (
	"fmt"

	"github.com/rustyeddy/stratlab/market"
)

// ATR is a streaming Average True Range using Wilder's smoothing.
type ATR struct {
	period    int
	atr       float64
	count     int
	warmupSum float64
	prev      market.Bar
	havePrev  bool
}

func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string { return fmt.Sprintf("ATR(%d)", a.period) }

// Warmup needs period+1 bars because TR requires the previous bar.
func (a *ATR) Warmup() int { return a.period + 1 }

func (a *ATR) Reset() {
	a.atr = 0
	a.count = 0
	a.warmupSum = 0
	a.havePrev = false
}

func (a *ATR) Update(b market.Bar) {
	if !a.havePrev {
		a.prev = b
		a.havePrev = true
		return
	}

	tr := trueRange(b, a.prev)
	a.prev = b

	if a.count < a.period {
		a.warmupSum += tr
		a.count++
		if a.count == a.period {
			a.atr = a.warmupSum / float64(a.period)
		}
		return
	}
	a.atr = (a.atr*float64(a.period-1) + tr) / float64(a.period)
}

func (a *ATR) Ready() bool { return a.period > 0 && a.count >= a.period }

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.atr
}

// ATRPercent returns the ATR of bars as a percent of the last close. It
// reports false when there are not enough bars.
func ATRPercent(bars []market.Bar, period int) (float64, bool) {
	if len(bars) < period+1 || period <= 0 {
		return 0, false
	}
	atr := NewATR(period)
	// Only the tail matters once Wilder smoothing has settled; cap the work.
	from := 0
	if n := 10 * period; len(bars) > n {
		from = len(bars) - n
	}
	v, ok := Last(atr, bars[from:])
	if !ok {
		return 0, false
	}
	last := bars[len(bars)-1].Close
	if last <= 0 {
		return 0, false
	}
	return 100 * v / last, true
}
