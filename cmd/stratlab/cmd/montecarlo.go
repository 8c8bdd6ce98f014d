package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/stratlab/resample"
)

var montecarloCmd = &cobra.Command{
	Use:     "montecarlo",
	Aliases: []string{"mc"},
	Short:   "Resample a backtest's trade returns",
	Long: `Montecarlo runs a backtest and then resamples its per-trade returns with
replacement into many paths, reporting the distribution of compounded
returns. The same seed always gives the same distribution.

Example:
  stratlab montecarlo -d data/btc_1h.csv -s breakout -n 5000 --seed 42`,
	RunE: runMonteCarlo,
}

var (
	mcFlags   runFlags
	mcSims    int
	mcSeed    int64
	mcWorkers int
)

func init() {
	rootCmd.AddCommand(montecarloCmd)

	mcFlags.register(montecarloCmd)
	montecarloCmd.Flags().IntVarP(&mcSims, "simulations", "n", 0, "number of resampled paths (default from config)")
	montecarloCmd.Flags().Int64Var(&mcSeed, "seed", 0, "random seed (default from config)")
	montecarloCmd.Flags().IntVarP(&mcWorkers, "workers", "w", -1, "parallel workers (0 = GOMAXPROCS, default from config)")
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ec, err := mcFlags.engineConfig(cmd)
	if err != nil {
		return err
	}
	s, err := mcFlags.load()
	if err != nil {
		return err
	}
	strat, params, err := mcFlags.resolve()
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	eng, err := newEngine(ec)
	if err != nil {
		return err
	}
	res, err := eng.Run(ctx, s, strat, params)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	mc := cfg.MonteCarlo
	if mcSims > 0 {
		mc.Simulations = mcSims
	}
	if cmd.Flags().Changed("seed") {
		mc.Seed = mcSeed
	}
	if mcWorkers >= 0 {
		mc.Workers = mcWorkers
	}

	started := time.Now()
	dist, err := resample.MonteCarlo(ctx, res.Returns(), mc, resample.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("montecarlo: %w", err)
	}
	recorder.MonteCarloFinished(time.Since(started))

	out := cmd.OutOrStdout()
	if mcFlags.json {
		return printJSON(out, dist)
	}
	rep := res.Report()
	fmt.Fprintln(out, "==================================================")
	fmt.Fprintln(out, " Monte Carlo Resampling")
	fmt.Fprintln(out, "==================================================")
	fmt.Fprintf(out, "Strategy:      %s %s\n", strat.Name(), params)
	fmt.Fprintf(out, "Trades:        %d\n", dist.Trades)
	fmt.Fprintf(out, "Simulations:   %d (seed %d)\n", dist.Simulations, mc.Seed)
	fmt.Fprintf(out, "Backtest:      %.2f%%\n", rep.TotalReturn)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Compounded Return Distribution")
	fmt.Fprintln(out, "--------------------------------------------------")
	fmt.Fprintf(out, "Mean:          %.2f%%\n", dist.Mean)
	fmt.Fprintf(out, "Median:        %.2f%%\n", dist.Median)
	fmt.Fprintf(out, "Std Dev:       %.2f%%\n", dist.Std)
	fmt.Fprintf(out, "5th pct:       %.2f%%\n", dist.P5)
	fmt.Fprintf(out, "95th pct:      %.2f%%\n", dist.P95)
	fmt.Fprintf(out, "Worst:         %.2f%%\n", dist.Min)
	fmt.Fprintf(out, "Best:          %.2f%%\n", dist.Max)
	fmt.Fprintf(out, "P(profit):     %.2f%%\n", dist.ProbabilityOfProfit)
	fmt.Fprintln(out)
	return nil
}
