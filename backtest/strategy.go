package backtest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/stratlab/market"
)

type Action int8

const (
	ActionNone Action = iota
	ActionBuy
	ActionSell
)

func (a Action) String() string {
	switch a {
	case ActionBuy:
		return "buy"
	case ActionSell:
		return "sell"
	}
	return "none"
}

// Signal is a strategy's decision for one bar. Stop and TakeProfit are
// optional price hints (0 means none).
type Signal struct {
	Action     Action
	Stop       float64
	TakeProfit float64
	Reason     string
}

func Buy() Signal  { return Signal{Action: ActionBuy} }
func Sell() Signal { return Signal{Action: ActionSell} }
func None() Signal { return Signal{} }

// Params are a strategy's numeric parameters by name.
type Params map[string]float64

func (p Params) Float(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

func (p Params) Int(name string, def int) int {
	if v, ok := p[name]; ok {
		return int(v)
	}
	return def
}

func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// String renders the params in name order, e.g. "fast_ma=10 slow_ma=30".
func (p Params) String() string {
	names := make([]string, 0, len(p))
	for k := range p {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, " ")
}

// Strategy decides on each bar given every bar up to and including it. The
// bars slice must not be retained or modified.
type Strategy interface {
	Name() string
	Evaluate(bars []market.Bar, params Params) (Signal, error)
}

// ParamValidator is implemented by strategies that reject bad parameters up
// front instead of on every bar.
type ParamValidator interface {
	ValidateParams(params Params) error
}

// StrategyFunc adapts a plain function to Strategy.
type StrategyFunc func(bars []market.Bar, params Params) (Signal, error)

// Func names fn as a Strategy.
func Func(name string, fn StrategyFunc) Strategy {
	return funcStrategy{name: name, fn: fn}
}

type funcStrategy struct {
	name string
	fn   StrategyFunc
}

func (s funcStrategy) Name() string { return s.name }

func (s funcStrategy) Evaluate(bars []market.Bar, params Params) (Signal, error) {
	return s.fn(bars, params)
}
