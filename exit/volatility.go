package exit

import "github.com/rustyeddy/stratlab/ledger"

// Regime buckets realized volatility (ATR as a percent of price).
type Regime string

const (
	RegimeUnknown Regime = "unknown"
	RegimeLow     Regime = "low"
	RegimeNormal  Regime = "normal"
	RegimeHigh    Regime = "high"
)

// VolatilityConfig scales the initial stop and take-profit distances.
//
//	ATR%  < LowATRPct           -> low:    stop LowStopPct,    take x LowTakeMult
//	ATR%  > HighATRPct          -> high:   stop HighStopPct,   take x HighTakeMult
//	otherwise (or unknown ATR)  -> normal: stop NormalStopPct, take x 1
//
//	ADX >= StrongTrendADX -> take x StrongTrendMult
//	ADX <  WeakTrendADX   -> take x WeakTrendMult
type VolatilityConfig struct {
	LowATRPct     float64 `json:"low_atr_pct" yaml:"low_atr_pct"`
	HighATRPct    float64 `json:"high_atr_pct" yaml:"high_atr_pct"`
	LowStopPct    float64 `json:"low_stop_pct" yaml:"low_stop_pct"`
	NormalStopPct float64 `json:"normal_stop_pct" yaml:"normal_stop_pct"`
	HighStopPct   float64 `json:"high_stop_pct" yaml:"high_stop_pct"`

	BaseTakePct  float64 `json:"base_take_pct" yaml:"base_take_pct"`
	LowTakeMult  float64 `json:"low_take_mult" yaml:"low_take_mult"`
	HighTakeMult float64 `json:"high_take_mult" yaml:"high_take_mult"`

	StrongTrendADX  float64 `json:"strong_trend_adx" yaml:"strong_trend_adx"`
	WeakTrendADX    float64 `json:"weak_trend_adx" yaml:"weak_trend_adx"`
	StrongTrendMult float64 `json:"strong_trend_mult" yaml:"strong_trend_mult"`
	WeakTrendMult   float64 `json:"weak_trend_mult" yaml:"weak_trend_mult"`
}

func DefaultVolatilityConfig() VolatilityConfig {
	return VolatilityConfig{
		LowATRPct:     1.0,
		HighATRPct:    3.0,
		LowStopPct:    1.0,
		NormalStopPct: 2.0,
		HighStopPct:   3.0,

		BaseTakePct:  4.0,
		LowTakeMult:  0.75,
		HighTakeMult: 1.5,

		StrongTrendADX:  25,
		WeakTrendADX:    20,
		StrongTrendMult: 1.25,
		WeakTrendMult:   0.8,
	}
}

// Market is the volatility/trend context at entry. Zero values mean unknown.
type Market struct {
	ATRPct float64
	ADX    float64
}

// Widths are percent distances from entry.
type Widths struct {
	Regime  Regime
	StopPct float64
	TakePct float64
}

func (pol *Policy) Widths(m Market) Widths {
	v := pol.cfg.Volatility
	w := Widths{Regime: RegimeNormal, StopPct: v.NormalStopPct, TakePct: v.BaseTakePct}

	switch {
	case m.ATRPct <= 0:
		w.Regime = RegimeUnknown
	case m.ATRPct < v.LowATRPct:
		w.Regime = RegimeLow
		w.StopPct = v.LowStopPct
		w.TakePct *= v.LowTakeMult
	case m.ATRPct > v.HighATRPct:
		w.Regime = RegimeHigh
		w.StopPct = v.HighStopPct
		w.TakePct *= v.HighTakeMult
	}

	switch {
	case m.ADX <= 0:
	case m.ADX >= v.StrongTrendADX:
		w.TakePct *= v.StrongTrendMult
	case m.ADX < v.WeakTrendADX:
		w.TakePct *= v.WeakTrendMult
	}
	return w
}

// StopPrice is the initial stop for an entry at price.
func (w Widths) StopPrice(side ledger.Side, price float64) float64 {
	return price * (1 - float64(side)*w.StopPct/100)
}

// TakePrice is the take-profit target for an entry at price.
func (w Widths) TakePrice(side ledger.Side, price float64) float64 {
	return price * (1 + float64(side)*w.TakePct/100)
}
