// Package strategies holds the built-in strategies and a registry to look
// them up by name from the CLI and config.
package strategies

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rustyeddy/stratlab/backtest"
)

// Defaulter is implemented by strategies that have default parameters.
type Defaulter interface {
	DefaultParams() backtest.Params
}

var (
	mu       sync.RWMutex
	registry = make(map[string]backtest.Strategy)
	aliases  = make(map[string]string)
)

func init() {
	Register(NoopStrategy{}, "none")
	Register(MACross{}, "macross", "sma-cross", "ema-cross")
	Register(Breakout{}, "donchian")
}

// Register adds strat under its name and any aliases. Registering a name
// twice replaces the earlier strategy.
func Register(strat backtest.Strategy, alias ...string) {
	mu.Lock()
	defer mu.Unlock()

	name := normalize(strat.Name())
	registry[name] = strat
	for _, a := range alias {
		aliases[normalize(a)] = name
	}
}

// GetStrategy returns the strategy registered as name, or nil.
func GetStrategy(name string) backtest.Strategy {
	mu.RLock()
	defer mu.RUnlock()

	n := normalize(name)
	if a, ok := aliases[n]; ok {
		n = a
	}
	return registry[n]
}

func StrategyByName(name string) (backtest.Strategy, error) {
	if s := GetStrategy(name); s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
}

// Names lists registered strategy names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Params merges overrides onto the strategy's defaults.
func Params(strat backtest.Strategy, overrides backtest.Params) backtest.Params {
	out := backtest.Params{}
	if d, ok := strat.(Defaulter); ok {
		out = d.DefaultParams()
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
