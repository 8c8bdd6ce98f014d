package market

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformedSeries is returned for bar data the engine refuses to simulate.
var ErrMalformedSeries = errors.New("market: malformed bar series")

// Validate checks the structure of a series: finite positive
// prices, high >= low with open/close inside the range, non-negative volume,
// and strictly increasing timestamps.
func (s *Series) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil series", ErrMalformedSeries)
	}
	for i, b := range s.Bars {
		if err := b.validate(); err != nil {
			return fmt.Errorf("%w: bar %d (%s): %v", ErrMalformedSeries, i, b.Time.Format("2006-01-02T15:04:05Z07:00"), err)
		}
		if i > 0 && !b.Time.After(s.Bars[i-1].Time) {
			return fmt.Errorf("%w: bar %d: timestamp %s not after %s",
				ErrMalformedSeries, i, b.Time, s.Bars[i-1].Time)
		}
	}
	return nil
}

func (b Bar) validate() error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("non-finite value")
		}
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return errors.New("prices must be positive")
	}
	if b.High < b.Low {
		return fmt.Errorf("high %.8f below low %.8f", b.High, b.Low)
	}
	if b.Open > b.High || b.Open < b.Low || b.Close > b.High || b.Close < b.Low {
		return errors.New("open/close outside high-low range")
	}
	if b.Volume < 0 {
		return errors.New("negative volume")
	}
	return nil
}
