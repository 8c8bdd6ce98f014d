package backtest

import (
	"fmt"

	"github.com/rustyeddy/stratlab/exit"
	"github.com/rustyeddy/stratlab/risk"
)

// SizingMode selects how much capital an entry commits.
type SizingMode string

const (
	// SizingFixed commits FixedFraction of cash.
	SizingFixed SizingMode = "fixed"
	// SizingKelly commits the half-Kelly fraction of cash.
	SizingKelly SizingMode = "kelly"
	// SizingRisk sizes so that the stop loses RiskPerTrade of equity.
	SizingRisk SizingMode = "risk"
)

func ParseSizingMode(s string) (SizingMode, error) {
	switch m := SizingMode(s); m {
	case SizingFixed, SizingKelly, SizingRisk:
		return m, nil
	case "":
		return SizingFixed, nil
	}
	return "", fmt.Errorf("backtest: unknown sizing mode %q", s)
}

type Config struct {
	InitialCapital float64    `json:"initial_capital" yaml:"initial_capital"`
	Sizing         SizingMode `json:"sizing" yaml:"sizing"`
	FixedFraction  float64    `json:"fixed_fraction" yaml:"fixed_fraction"` // 0.95
	RiskPerTrade   float64    `json:"risk_per_trade" yaml:"risk_per_trade"` // SizingRisk only, 0.01
	WarmupBars     int        `json:"warmup_bars" yaml:"warmup_bars"`       // 50

	MaxOpenPositions int  `json:"max_open_positions" yaml:"max_open_positions"`
	AllowShort       bool `json:"allow_short" yaml:"allow_short"`

	// Volatility context for stop and take-profit widths.
	ATRPeriod    int  `json:"atr_period" yaml:"atr_period"`
	ADXPeriod    int  `json:"adx_period" yaml:"adx_period"`
	DynamicStops bool `json:"dynamic_stops" yaml:"dynamic_stops"` // false uses the normal-regime width
	TakeProfit   bool `json:"take_profit" yaml:"take_profit"`     // set a volatility take-profit when no hint

	Exit  exit.Config      `json:"exit" yaml:"exit"`
	Kelly risk.KellyConfig `json:"kelly" yaml:"kelly"`
	Risk  risk.Policy      `json:"risk" yaml:"risk"`

	// Seed feeds trade IDs.
	Seed int64 `json:"seed" yaml:"seed"`
}

func DefaultConfig() Config {
	return Config{
		InitialCapital:   10000,
		Sizing:           SizingFixed,
		FixedFraction:    0.95,
		RiskPerTrade:     0.01,
		WarmupBars:       50,
		MaxOpenPositions: 3,
		ATRPeriod:        14,
		ADXPeriod:        14,
		DynamicStops:     true,
		Exit:             exit.DefaultConfig(),
		Kelly:            risk.DefaultKellyConfig(),
		Risk:             risk.DefaultPolicy(),
		Seed:             1,
	}
}

func (c Config) Validate() error {
	if !(c.InitialCapital > 0) {
		return fmt.Errorf("backtest: initial_capital must be > 0")
	}
	if _, err := ParseSizingMode(string(c.Sizing)); err != nil {
		return err
	}
	if c.FixedFraction <= 0 || c.FixedFraction > 1 {
		return fmt.Errorf("backtest: fixed_fraction must be in (0, 1]")
	}
	if c.Sizing == SizingRisk && (c.RiskPerTrade <= 0 || c.RiskPerTrade > 1) {
		return fmt.Errorf("backtest: risk_per_trade must be in (0, 1]")
	}
	if c.WarmupBars < 0 {
		return fmt.Errorf("backtest: warmup_bars must be >= 0")
	}
	if c.MaxOpenPositions <= 0 {
		return fmt.Errorf("backtest: max_open_positions must be > 0")
	}
	if c.ATRPeriod <= 0 || c.ADXPeriod <= 0 {
		return fmt.Errorf("backtest: atr_period and adx_period must be > 0")
	}
	if c.Exit.MaxHoldingBars < 0 {
		return fmt.Errorf("backtest: exit.max_holding_bars must be >= 0")
	}
	if c.Sizing == SizingKelly {
		if err := c.Kelly.Validate(); err != nil {
			return err
		}
	}
	return nil
}
