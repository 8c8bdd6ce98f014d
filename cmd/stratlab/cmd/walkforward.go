package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/stratlab/metrics"
	"github.com/rustyeddy/stratlab/optimize"
	"github.com/rustyeddy/stratlab/resample"
)

var walkforwardCmd = &cobra.Command{
	Use:     "walkforward",
	Aliases: []string{"wf"},
	Short:   "Validate a strategy on rolling out-of-sample windows",
	Long: `Walkforward splits the bars into rolling train/test windows that step by the
test size. With --grid each window's parameters are optimized on its
training slice; otherwise the same parameters are used throughout.

Example:
  stratlab walkforward -d data/btc_1h.csv -s ma-cross --train 500 --test 100 -g fast_ma=5,10 -g slow_ma=30,50`,
	RunE: runWalkForward,
}

var (
	wfFlags  runFlags
	wfTrain  int
	wfTest   int
	wfGrid   []string
	wfMetric string
)

func init() {
	rootCmd.AddCommand(walkforwardCmd)

	wfFlags.register(walkforwardCmd)
	walkforwardCmd.Flags().IntVar(&wfTrain, "train", 0, "training bars per window (default from config)")
	walkforwardCmd.Flags().IntVar(&wfTest, "test", 0, "test bars per window (default from config)")
	walkforwardCmd.Flags().StringArrayVarP(&wfGrid, "grid", "g", nil, "optimize each window over this grid axis (repeatable)")
	walkforwardCmd.Flags().StringVarP(&wfMetric, "metric", "m", "", "objective metric for per-window tuning")
}

func runWalkForward(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ec, err := wfFlags.engineConfig(cmd)
	if err != nil {
		return err
	}
	s, err := wfFlags.load()
	if err != nil {
		return err
	}
	strat, params, err := wfFlags.resolve()
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	eng, err := newEngine(ec)
	if err != nil {
		return err
	}

	wc := cfg.WalkForward
	if wfTrain > 0 {
		wc.TrainBars = wfTrain
	}
	if wfTest > 0 {
		wc.TestBars = wfTest
	}

	var tune resample.Tuner
	if len(wfGrid) > 0 {
		grid, err := sweepGrid(params, wfGrid)
		if err != nil {
			return err
		}
		oc := cfg.Optimizer.Config
		if wfMetric != "" {
			m, err := metrics.ParseMetric(wfMetric)
			if err != nil {
				return err
			}
			oc.Metric = m
		}
		opt, err := optimize.New(eng, oc, optimize.WithLogger(logger), optimize.WithRecorder(recorder))
		if err != nil {
			return err
		}
		tune = opt.Tuner(strat, grid)
	}

	res, err := resample.WalkForward(ctx, eng, s, strat, params, wc, tune, resample.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("walkforward: %w", err)
	}

	out := cmd.OutOrStdout()
	if wfFlags.json {
		return printJSON(out, res)
	}
	fmt.Fprintln(out, "==================================================")
	fmt.Fprintln(out, " Walk-Forward Validation")
	fmt.Fprintln(out, "==================================================")
	fmt.Fprintf(out, "Strategy:      %s\n", strat.Name())
	fmt.Fprintf(out, "Windows:       %d of %d (train %d, test %d)\n", res.Windows, len(res.Folds), wc.TrainBars, wc.TestBars)
	fmt.Fprintln(out)
	for _, f := range res.Folds {
		if f.Skipped {
			fmt.Fprintf(out, "%3d  %s  skipped: %s\n", f.Index, f.From.Format("2006-01-02"), f.Err)
			continue
		}
		fmt.Fprintf(out, "%3d  %s  %8.2f%%  dd %6.2f%%  trades %3d  %s\n",
			f.Index, f.From.Format("2006-01-02"), f.Report.TotalReturn, f.Report.MaxDrawdownPct(), f.Report.TotalTrades, f.Params)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Mean Return:   %.2f%% (std %.2f)\n", res.MeanReturn, res.StdReturn)
	fmt.Fprintf(out, "Mean Sharpe:   %.2f\n", res.MeanSharpe)
	fmt.Fprintf(out, "Mean Drawdown: %.2f%%\n", -res.MeanDrawdown*100)
	fmt.Fprintf(out, "Consistency:   %.1f%% of windows profitable\n", res.Consistency)
	fmt.Fprintln(out)
	return nil
}
