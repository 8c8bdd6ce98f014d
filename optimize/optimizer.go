// Package optimize runs an exhaustive grid search over a strategy's
// parameters and keeps the best combination under a chosen metric.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/stratlab/backtest"
	"github.com/rustyeddy/stratlab/market"
	"github.com/rustyeddy/stratlab/metrics"
	"github.com/rustyeddy/stratlab/resample"
)

var ErrNoValidCombination = errors.New("optimize: no combination produced a report")

type Config struct {
	Metric  metrics.Metric `json:"metric" yaml:"metric"`   // sharpe
	Workers int            `json:"workers" yaml:"workers"` // 0 means GOMAXPROCS
}

func DefaultConfig() Config {
	return Config{Metric: metrics.MetricSharpe}
}

func (c Config) Validate() error {
	if _, err := metrics.ParseMetric(string(c.Metric)); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("optimize: workers must be >= 0")
	}
	return nil
}

// Evaluation is the outcome of one combination.
type Evaluation struct {
	Index  int             `json:"index"`
	Params backtest.Params `json:"params"`
	Report metrics.Report  `json:"report"`
	Score  float64         `json:"score"`
	Cached bool            `json:"cached"`

	Done bool   `json:"done"` // false when cancelled before it ran
	Err  string `json:"error,omitempty"`
}

func (e Evaluation) OK() bool { return e.Done && e.Err == "" }

// Result is the search outcome. Best, Score and Report always describe a
// complete run, also when Partial is set.
type Result struct {
	Strategy string         `json:"strategy"`
	Metric   metrics.Metric `json:"metric"`

	Best      backtest.Params `json:"best"`
	BestIndex int             `json:"best_index"`
	Score     float64         `json:"score"`
	Report    metrics.Report  `json:"report"`

	Total     int  `json:"total"`
	Evaluated int  `json:"evaluated"`
	Failed    int  `json:"failed"`
	Partial   bool `json:"partial"`

	Evaluations []Evaluation `json:"evaluations"`
}

// ReportCache lets the optimizer skip combinations it has already scored on
// the same data and engine configuration.
type ReportCache interface {
	Lookup(ctx context.Context, strategy string, params backtest.Params) (metrics.Report, bool)
	Store(ctx context.Context, strategy string, params backtest.Params, r metrics.Report)
}

// Recorder observes combinations as they finish.
type Recorder interface {
	CombinationEvaluated(strategy string, ok bool, elapsed time.Duration)
}

type Optimizer struct {
	eng   *backtest.Engine
	cfg   Config
	log   zerolog.Logger
	cache ReportCache
	rec   Recorder
}

type Option func(*Optimizer)

func WithLogger(l zerolog.Logger) Option { return func(o *Optimizer) { o.log = l } }

func WithCache(c ReportCache) Option { return func(o *Optimizer) { o.cache = c } }

func WithRecorder(r Recorder) Option { return func(o *Optimizer) { o.rec = r } }

func New(eng *backtest.Engine, cfg Config, opts ...Option) (*Optimizer, error) {
	if eng == nil {
		return nil, fmt.Errorf("optimize: Engine is required")
	}
	if cfg.Metric == "" {
		cfg.Metric = metrics.MetricSharpe
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &Optimizer{eng: eng, cfg: cfg, log: zerolog.Nop()}
	for _, f := range opts {
		f(o)
	}
	return o, nil
}

// Run evaluates every combination of grid on s. Combinations run in
// parallel but the best is chosen by scanning in combination order with a
// strict comparison, so ties keep the earliest. A failing combination is
// logged and skipped. If ctx is cancelled, combinations not yet started are
// dropped and the best of the finished ones is returned with Partial set.
func (o *Optimizer) Run(ctx context.Context, s *market.Series, strat backtest.Strategy, grid Grid) (*Result, error) {
	if strat == nil {
		return nil, fmt.Errorf("optimize: Strategy is required")
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}

	combos := grid.Combinations()
	res := &Result{
		Strategy:    strat.Name(),
		Metric:      o.cfg.Metric,
		BestIndex:   -1,
		Total:       len(combos),
		Evaluations: make([]Evaluation, len(combos)),
	}
	for i, p := range combos {
		res.Evaluations[i] = Evaluation{Index: i, Params: p}
	}

	workers := o.cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range combos {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			o.evaluate(ctx, s, strat, &res.Evaluations[i])
			return nil
		})
	}
	_ = g.Wait()

	o.pick(res)
	res.Partial = res.Evaluated < res.Total

	log := o.log.Info().
		Str("strategy", res.Strategy).
		Str("metric", string(res.Metric)).
		Int("total", res.Total).
		Int("evaluated", res.Evaluated).
		Int("failed", res.Failed).
		Bool("partial", res.Partial)
	if res.BestIndex < 0 {
		log.Msg("optimization found no valid combination")
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("%w: %w", ErrNoValidCombination, err)
		}
		return res, ErrNoValidCombination
	}
	log.Str("best", res.Best.String()).Float64("score", res.Score).Msg("optimization complete")
	return res, nil
}

func (o *Optimizer) evaluate(ctx context.Context, s *market.Series, strat backtest.Strategy, ev *Evaluation) {
	started := time.Now()
	defer func() {
		if p := recover(); p != nil {
			ev.Done, ev.Err = true, fmt.Sprintf("panic: %v", p)
		}
		if ev.Done && o.rec != nil {
			o.rec.CombinationEvaluated(strat.Name(), ev.Err == "", time.Since(started))
		}
		if ev.Err != "" {
			o.log.Warn().Str("params", ev.Params.String()).Str("error", ev.Err).Msg("combination failed, skipping")
		}
	}()

	if o.cache != nil {
		if r, ok := o.cache.Lookup(ctx, strat.Name(), ev.Params); ok {
			ev.Report, ev.Score, ev.Cached, ev.Done = r, o.cfg.Metric.Value(r), true, true
			return
		}
	}

	run, err := o.eng.Run(ctx, s, strat, ev.Params)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled mid-run: not evaluated, not failed.
			return
		}
		ev.Done, ev.Err = true, err.Error()
		return
	}
	if len(run.StrategyErrors) > 0 {
		ev.Done = true
		ev.Err = fmt.Sprintf("%d strategy errors, first: %v", len(run.StrategyErrors), run.StrategyErrors[0])
		return
	}
	ev.Report = run.Report()
	ev.Score = o.cfg.Metric.Value(ev.Report)
	ev.Done = true

	if o.cache != nil {
		o.cache.Store(ctx, strat.Name(), ev.Params, ev.Report)
	}
}

func (o *Optimizer) pick(res *Result) {
	for i, ev := range res.Evaluations {
		if !ev.Done {
			continue
		}
		res.Evaluated++
		if ev.Err != "" {
			res.Failed++
			continue
		}
		if res.BestIndex < 0 || ev.Score > res.Score {
			res.BestIndex = i
			res.Best = ev.Params
			res.Score = ev.Score
			res.Report = ev.Report
		}
	}
}

// Tuner adapts the optimizer for walk-forward: each training slice is
// searched and its best parameters are used on the following test slice.
// The report cache is not consulted: it is keyed to a whole dataset.
func (o *Optimizer) Tuner(strat backtest.Strategy, grid Grid) resample.Tuner {
	uncached := *o
	uncached.cache = nil
	return func(ctx context.Context, train *market.Series) (backtest.Params, error) {
		res, err := uncached.Run(ctx, train, strat, grid)
		if err != nil {
			return nil, err
		}
		return res.Best, nil
	}
}
