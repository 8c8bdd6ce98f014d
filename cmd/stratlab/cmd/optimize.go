package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/stratlab/metrics"
	"github.com/rustyeddy/stratlab/optimize"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Grid-search strategy parameters",
	Long: `Optimize backtests every combination of a parameter grid and keeps the one
with the best score under the chosen metric. Ties keep the earliest
combination. Interrupting the sweep prints the best of the finished runs.

Grid axes are name=v1,v2,... or name=start:stop:step.

Example:
  stratlab optimize -d data/btc_1h.csv -s ma-cross -g fast_ma=5:20:5 -g slow_ma=30,50,100 -m calmar`,
	RunE: runOptimize,
}

var (
	optFlags   runFlags
	optGrid    []string
	optMetric  string
	optWorkers int
	optTop     int
)

func init() {
	rootCmd.AddCommand(optimizeCmd)

	optFlags.register(optimizeCmd)
	optimizeCmd.Flags().StringArrayVarP(&optGrid, "grid", "g", nil, "grid axis name=v1,v2 or name=start:stop:step (default from config)")
	optimizeCmd.Flags().StringVarP(&optMetric, "metric", "m", "", fmt.Sprintf("objective metric %v", metrics.Metrics))
	optimizeCmd.Flags().IntVarP(&optWorkers, "workers", "w", -1, "parallel backtests (0 = GOMAXPROCS, default from config)")
	optimizeCmd.Flags().IntVar(&optTop, "top", 5, "number of combinations to list")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ec, err := optFlags.engineConfig(cmd)
	if err != nil {
		return err
	}
	s, err := optFlags.load()
	if err != nil {
		return err
	}
	strat, base, err := optFlags.resolve()
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	grid, err := sweepGrid(base, optGrid)
	if err != nil {
		return err
	}

	oc := cfg.Optimizer.Config
	if optMetric != "" {
		m, err := metrics.ParseMetric(optMetric)
		if err != nil {
			return err
		}
		oc.Metric = m
	}
	if optWorkers >= 0 {
		oc.Workers = optWorkers
	}

	eng, err := newEngine(ec)
	if err != nil {
		return err
	}
	opts := []optimize.Option{optimize.WithLogger(logger), optimize.WithRecorder(recorder)}
	c, closeCache := openCache(ctx)
	defer closeCache()
	if c != nil {
		opts = append(opts, optimize.WithCache(c.For(s, ec)))
	}
	opt, err := optimize.New(eng, oc, opts...)
	if err != nil {
		return err
	}

	logger.Info().Str("strategy", strat.Name()).Int("combinations", grid.Size()).Str("metric", string(oc.Metric)).Msg("optimizing")
	res, err := opt.Run(ctx, s, strat, grid)
	if err != nil && !errors.Is(err, optimize.ErrNoValidCombination) {
		return err
	}
	if res == nil {
		return err
	}

	out := cmd.OutOrStdout()
	if optFlags.json {
		return printJSON(out, res)
	}
	printOptimize(cmd, res)
	return err
}

// sweepGrid builds the grid from flags or config and pins every other
// strategy parameter at its resolved value.
func sweepGrid(base map[string]float64, axes []string) (optimize.Grid, error) {
	grid := optimize.Grid{}
	for k, v := range cfg.Optimizer.Grid {
		grid[k] = v
	}
	if len(axes) > 0 {
		g, err := parseGrid(axes)
		if err != nil {
			return nil, err
		}
		grid = g
	}
	for k, v := range base {
		if _, ok := grid[k]; !ok {
			grid[k] = []float64{v}
		}
	}
	return grid, grid.Validate()
}

func printOptimize(cmd *cobra.Command, res *optimize.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "==================================================")
	fmt.Fprintln(out, " Optimization Result")
	fmt.Fprintln(out, "==================================================")
	fmt.Fprintf(out, "Strategy:      %s\n", res.Strategy)
	fmt.Fprintf(out, "Metric:        %s\n", res.Metric)
	fmt.Fprintf(out, "Combinations:  %d evaluated of %d (%d failed)\n", res.Evaluated, res.Total, res.Failed)
	if res.Partial {
		fmt.Fprintln(out, "Partial:       interrupted, best of finished runs")
	}
	if res.Best == nil {
		fmt.Fprintln(out, "\nNo combination produced a report.")
		return
	}
	fmt.Fprintf(out, "Best:          %s\n", res.Best)
	fmt.Fprintf(out, "Score:         %.4f\n", res.Score)
	fmt.Fprintf(out, "Return:        %.2f%%\n", res.Report.TotalReturn)
	fmt.Fprintf(out, "Max Drawdown:  %.2f%%\n", res.Report.MaxDrawdownPct())
	fmt.Fprintf(out, "Trades:        %d\n", res.Report.TotalTrades)

	var ok []optimize.Evaluation
	for _, ev := range res.Evaluations {
		if ev.OK() {
			ok = append(ok, ev)
		}
	}
	sort.SliceStable(ok, func(i, j int) bool { return ok[i].Score > ok[j].Score })
	if optTop > 0 && len(ok) > optTop {
		ok = ok[:optTop]
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Top Combinations")
	fmt.Fprintln(out, "--------------------------------------------------")
	for _, ev := range ok {
		cached := ""
		if ev.Cached {
			cached = " (cached)"
		}
		fmt.Fprintf(out, "%10.4f  %s%s\n", ev.Score, ev.Params, cached)
	}
	fmt.Fprintln(out)
}
