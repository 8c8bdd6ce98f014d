package market

import (
	"math"
	"time"
)

// FromCloses builds a series from a close-price path. Each bar opens at the
// previous close and its high/low span open and close exactly.
func FromCloses(symbol string, start time.Time, interval time.Duration, closes []float64) *Series {
	bars := make([]Bar, len(closes))
	prev := 0.0
	for i, c := range closes {
		open := c
		if i > 0 {
			open = prev
		}
		bars[i] = Bar{
			Time:   start.Add(time.Duration(i) * interval),
			Open:   open,
			High:   math.Max(open, c),
			Low:    math.Min(open, c),
			Close:  c,
			Volume: 1,
		}
		prev = c
	}
	return NewSeries(symbol, bars)
}
