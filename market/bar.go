package market

import "time"

// Bar is one OHLCV candle for a fixed interval.
type Bar struct {
	Time   time.Time `json:"time" yaml:"time"`
	Open   float64   `json:"open" yaml:"open"`
	High   float64   `json:"high" yaml:"high"`
	Low    float64   `json:"low" yaml:"low"`
	Close  float64   `json:"close" yaml:"close"`
	Volume float64   `json:"volume" yaml:"volume"`
}

// Range returns high - low.
func (b Bar) Range() float64 {
	return b.High - b.Low
}

// Series is an ordered, chronological run of bars for a single symbol.
// Once handed to an engine it is treated as immutable.
type Series struct {
	Symbol string
	Bars   []Bar
}

func NewSeries(symbol string, bars []Bar) *Series {
	return &Series{Symbol: symbol, Bars: bars}
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Slice returns a view over bars [from, to). The backing array is shared.
func (s *Series) Slice(from, to int) *Series {
	if from < 0 {
		from = 0
	}
	if to > len(s.Bars) {
		to = len(s.Bars)
	}
	if from > to {
		from = to
	}
	return &Series{Symbol: s.Symbol, Bars: s.Bars[from:to:to]}
}

// Closes returns the close prices in order.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

func (s *Series) Start() time.Time {
	if s.Len() == 0 {
		return time.Time{}
	}
	return s.Bars[0].Time
}

func (s *Series) End() time.Time {
	if s.Len() == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Time
}
