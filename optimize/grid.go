package optimize

import (
	"fmt"
	"sort"

	"github.com/rustyeddy/stratlab/backtest"
)

// Grid maps each parameter name to its candidate values, in the order they
// should be tried.
type Grid map[string][]float64

// Names returns the parameter names sorted; this is the iteration order.
func (g Grid) Names() []string {
	names := make([]string, 0, len(g))
	for k := range g {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Size is the number of combinations.
func (g Grid) Size() int {
	if len(g) == 0 {
		return 0
	}
	n := 1
	for _, vs := range g {
		n *= len(vs)
	}
	return n
}

func (g Grid) Validate() error {
	if len(g) == 0 {
		return fmt.Errorf("optimize: empty grid")
	}
	for _, name := range g.Names() {
		if name == "" {
			return fmt.Errorf("optimize: empty parameter name")
		}
		if len(g[name]) == 0 {
			return fmt.Errorf("optimize: parameter %q has no values", name)
		}
	}
	return nil
}

// Combinations expands the Cartesian product. Names are taken in sorted
// order and the last name varies fastest, so the sequence is stable.
func (g Grid) Combinations() []backtest.Params {
	names := g.Names()
	total := g.Size()
	out := make([]backtest.Params, 0, total)

	idx := make([]int, len(names))
	for c := 0; c < total; c++ {
		p := make(backtest.Params, len(names))
		for i, name := range names {
			p[name] = g[name][idx[i]]
		}
		out = append(out, p)

		// odometer increment, rightmost first
		for i := len(names) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(g[names[i]]) {
				break
			}
			idx[i] = 0
		}
	}
	return out
}

// Range is start, start+step, ... up to and including stop.
func Range(start, stop, step float64) []float64 {
	if step <= 0 || stop < start {
		return []float64{start}
	}
	var out []float64
	n := int((stop-start)/step+1e-9) + 1
	for i := 0; i < n; i++ {
		out = append(out, start+float64(i)*step)
	}
	return out
}
