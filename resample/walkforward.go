package resample

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/stratlab/backtest"
	"github.com/rustyeddy/stratlab/internal/stats"
	"github.com/rustyeddy/stratlab/market"
	"github.com/rustyeddy/stratlab/metrics"
)

var (
	ErrNoWindows     = errors.New("resample: series too short for one walk-forward window")
	ErrTrainTooShort = errors.New("resample: train_bars shorter than the engine warm-up")
)

type WalkForwardConfig struct {
	TrainBars int `json:"train_bars" yaml:"train_bars"`
	TestBars  int `json:"test_bars" yaml:"test_bars"`
}

func DefaultWalkForwardConfig() WalkForwardConfig {
	return WalkForwardConfig{TrainBars: 500, TestBars: 100}
}

func (c WalkForwardConfig) Validate() error {
	if c.TrainBars <= 0 || c.TestBars <= 0 {
		return fmt.Errorf("resample: train_bars and test_bars must be > 0")
	}
	return nil
}

// Tuner picks parameters for a window from its training slice. The
// optimize package provides one.
type Tuner func(ctx context.Context, train *market.Series) (backtest.Params, error)

// Fold is one train/test window, as bar indices into the full series
// (start inclusive, end exclusive).
type Fold struct {
	Index      int `json:"index"`
	TrainStart int `json:"train_start"`
	TrainEnd   int `json:"train_end"`
	TestStart  int `json:"test_start"`
	TestEnd    int `json:"test_end"`
}

// Folds lays out windows of TrainBars+TestBars stepping by TestBars.
func (c WalkForwardConfig) Folds(n int) []Fold {
	var out []Fold
	for start := 0; start+c.TrainBars+c.TestBars <= n; start += c.TestBars {
		out = append(out, Fold{
			Index:      len(out),
			TrainStart: start,
			TrainEnd:   start + c.TrainBars,
			TestStart:  start + c.TrainBars,
			TestEnd:    start + c.TrainBars + c.TestBars,
		})
	}
	return out
}

type FoldResult struct {
	Fold
	From   time.Time       `json:"from"`
	To     time.Time       `json:"to"`
	Params backtest.Params `json:"params"`
	Bars   int             `json:"bars"` // simulated test bars
	Report metrics.Report  `json:"report"`

	Skipped bool   `json:"skipped"`
	Err     string `json:"error,omitempty"`
}

type WalkForwardResult struct {
	Folds []FoldResult `json:"folds"`

	Windows      int     `json:"windows"` // folds that produced a report
	MeanReturn   float64 `json:"mean_return"`
	MeanSharpe   float64 `json:"mean_sharpe"`
	MeanDrawdown float64 `json:"mean_drawdown"`
	StdReturn    float64 `json:"std_return"`
	Consistency  float64 `json:"consistency"` // percent of windows with a positive return
}

// WalkForward runs the engine on every test slice. The last WarmupBars of the
// preceding training slice are prepended so that trading starts exactly at
// the test slice, which is why TrainBars may not be shorter than WarmupBars.
// With a tuner, each window's parameters come from its training slice;
// otherwise params is used throughout. A window that fails is recorded as
// skipped and left out of the aggregates.
func WalkForward(ctx context.Context, eng *backtest.Engine, s *market.Series, strat backtest.Strategy,
	params backtest.Params, cfg WalkForwardConfig, tune Tuner, opts ...Option) (WalkForwardResult, error) {
	o := options(opts)
	if eng == nil || s == nil || strat == nil {
		return WalkForwardResult{}, fmt.Errorf("resample: engine, series and strategy are required")
	}
	if err := cfg.Validate(); err != nil {
		return WalkForwardResult{}, err
	}
	if err := s.Validate(); err != nil {
		return WalkForwardResult{}, fmt.Errorf("resample: %w", err)
	}

	warm := eng.Config().WarmupBars
	if cfg.TrainBars < warm {
		return WalkForwardResult{}, fmt.Errorf("%w: train_bars %d, warmup_bars %d", ErrTrainTooShort, cfg.TrainBars, warm)
	}

	folds := cfg.Folds(s.Len())
	if len(folds) == 0 {
		return WalkForwardResult{}, fmt.Errorf("%w: %d bars, need %d", ErrNoWindows, s.Len(), cfg.TrainBars+cfg.TestBars)
	}

	var res WalkForwardResult
	for _, f := range folds {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("resample: walk-forward: %w", err)
		}

		fr := FoldResult{
			Fold:   f,
			From:   s.Bars[f.TestStart].Time,
			To:     s.Bars[f.TestEnd-1].Time,
			Params: params,
		}
		log := o.log.With().Int("fold", f.Index).Time("from", fr.From).Time("to", fr.To).Logger()

		if tune != nil {
			p, err := tune(ctx, s.Slice(f.TrainStart, f.TrainEnd))
			if err != nil {
				if ctx.Err() != nil {
					return res, fmt.Errorf("resample: walk-forward: %w", ctx.Err())
				}
				fr.Skipped, fr.Err = true, err.Error()
				log.Warn().Err(err).Msg("tuning failed, skipping window")
				res.Folds = append(res.Folds, fr)
				continue
			}
			fr.Params = p
		}

		run, err := eng.Run(ctx, s.Slice(f.TestStart-warm, f.TestEnd), strat, fr.Params)
		if err != nil {
			if ctx.Err() != nil {
				return res, fmt.Errorf("resample: walk-forward: %w", ctx.Err())
			}
			fr.Skipped, fr.Err = true, err.Error()
			log.Warn().Err(err).Msg("window run failed, skipping")
			res.Folds = append(res.Folds, fr)
			continue
		}
		fr.Bars = run.Bars
		fr.Report = run.Report()
		res.Folds = append(res.Folds, fr)

		log.Debug().
			Str("params", fr.Params.String()).
			Int("trades", fr.Report.TotalTrades).
			Float64("return", fr.Report.TotalReturn).
			Msg("window complete")
	}

	aggregate(&res)
	return res, nil
}

func aggregate(res *WalkForwardResult) {
	var rets, sharpes, dds []float64
	var positive int
	for _, f := range res.Folds {
		if f.Skipped {
			continue
		}
		rets = append(rets, f.Report.TotalReturn)
		sharpes = append(sharpes, f.Report.Sharpe)
		dds = append(dds, f.Report.MaxDrawdown)
		if f.Report.TotalReturn > 0 {
			positive++
		}
	}
	res.Windows = len(rets)
	res.MeanReturn = stats.Mean(rets)
	res.MeanSharpe = stats.Mean(sharpes)
	res.MeanDrawdown = stats.Mean(dds)
	res.StdReturn = stats.Std(rets)
	if len(rets) > 0 {
		res.Consistency = float64(positive) / float64(len(rets)) * 100
	}
}
