// Package resample estimates how robust a strategy's results are: Monte
// Carlo bootstrap over trade returns and walk-forward out-of-sample runs.
package resample

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/stratlab/internal/stats"
)

var ErrNoTradeData = errors.New("resample: no trade data")

type MonteCarloConfig struct {
	Simulations int   `json:"simulations" yaml:"simulations"` // 1000
	Seed        int64 `json:"seed" yaml:"seed"`
	Workers     int   `json:"workers" yaml:"workers"` // 0 means GOMAXPROCS
}

func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{Simulations: 1000, Seed: 1}
}

func (c MonteCarloConfig) Validate() error {
	if c.Simulations <= 0 {
		return fmt.Errorf("resample: simulations must be > 0")
	}
	if c.Workers < 0 {
		return fmt.Errorf("resample: workers must be >= 0")
	}
	return nil
}

// MonteCarloResult summarizes the distribution of compounded path returns,
// all in percent.
type MonteCarloResult struct {
	Simulations int `json:"simulations"`
	Trades      int `json:"trades"`

	Mean                float64 `json:"mean"`
	Median              float64 `json:"median"`
	Std                 float64 `json:"std"`
	P5                  float64 `json:"p5"`
	P95                 float64 `json:"p95"`
	Min                 float64 `json:"min"`
	Max                 float64 `json:"max"`
	ProbabilityOfProfit float64 `json:"probability_of_profit"`

	Paths []float64 `json:"-"` // sorted
}

// MonteCarlo resamples returns (per-trade percent) with replacement into
// Simulations paths of len(returns) trades each and compounds every path.
//
// Path i draws from its own PCG stream keyed by (Seed, i), so the result is
// identical for any worker count.
func MonteCarlo(ctx context.Context, returns []float64, cfg MonteCarloConfig, opts ...Option) (MonteCarloResult, error) {
	o := options(opts)
	if len(returns) == 0 {
		return MonteCarloResult{}, ErrNoTradeData
	}
	if err := cfg.Validate(); err != nil {
		return MonteCarloResult{}, err
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, cfg.Simulations)

	paths := make([]float64, cfg.Simulations)
	chunk := (cfg.Simulations + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, min((w+1)*chunk, cfg.Simulations)
		if lo >= hi {
			break
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if i%64 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				paths[i] = simulatePath(returns, cfg.Seed, i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return MonteCarloResult{}, fmt.Errorf("resample: monte carlo: %w", err)
	}

	res := summarize(paths, len(returns))
	o.log.Debug().
		Int("simulations", res.Simulations).
		Int("trades", res.Trades).
		Float64("mean", res.Mean).
		Float64("p5", res.P5).
		Float64("p95", res.P95).
		Msg("monte carlo complete")
	return res, nil
}

func simulatePath(returns []float64, seed int64, i int) float64 {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(i)))
	growth := 1.0
	for range returns {
		growth *= 1 + returns[rng.IntN(len(returns))]/100
	}
	return (growth - 1) * 100
}

func summarize(paths []float64, trades int) MonteCarloResult {
	sort.Float64s(paths)

	var profitable int
	for _, p := range paths {
		if p > 0 {
			profitable++
		}
	}
	n := len(paths)
	return MonteCarloResult{
		Simulations:         n,
		Trades:              trades,
		Mean:                stats.Finite(stats.Mean(paths)),
		Median:              stats.Finite(stats.SortedPercentile(paths, 50)),
		Std:                 stats.Finite(stats.Std(paths)),
		P5:                  stats.Finite(stats.SortedPercentile(paths, 5)),
		P95:                 stats.Finite(stats.SortedPercentile(paths, 95)),
		Min:                 stats.Finite(paths[0]),
		Max:                 stats.Finite(paths[n-1]),
		ProbabilityOfProfit: float64(profitable) / float64(n) * 100,
		Paths:               paths,
	}
}

// Option configures the resampling drivers.
type Option func(*opt)

type opt struct {
	log zerolog.Logger
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *opt) { o.log = l }
}

func options(opts []Option) opt {
	o := opt{log: zerolog.Nop()}
	for _, f := range opts {
		f(&o)
	}
	return o
}
