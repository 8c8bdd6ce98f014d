package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/stratlab/journal"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run one strategy over a bar file",
	Long: `Backtest steps a strategy through historical bars, manages exits with the
trailing exit policy and prints the performance report.

Supported strategies:
  - noop: never trades (baseline)
  - ma-cross: moving average crossover (fast_ma, slow_ma, ema, min_adx)
  - breakout: Donchian channel breakout (lookback, exit_lookback, atr_stop)

Example:
  stratlab backtest -d data/btc_1h.csv -s ma-cross -p fast_ma=10 -p slow_ma=30`,
	RunE: runBacktest,
}

var (
	btFlags   runFlags
	btOrgPath string
	btNoSave  bool
	btTrades  bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	btFlags.register(backtestCmd)
	backtestCmd.Flags().StringVar(&btOrgPath, "org", "", "also write an Org-mode report to this path")
	backtestCmd.Flags().BoolVar(&btNoSave, "no-journal", false, "do not record the run in the journal")
	backtestCmd.Flags().BoolVar(&btTrades, "trades", false, "print every trade")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ec, err := btFlags.engineConfig(cmd)
	if err != nil {
		return err
	}
	s, err := btFlags.load()
	if err != nil {
		return err
	}
	strat, params, err := btFlags.resolve()
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
	run := journal.NewRun(res, ec, btFlags.data)

	if !btNoSave {
		j, err := openJournal()
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		if j != nil {
			defer j.Close()
			if err := j.RecordRun(ctx, run); err != nil {
				return fmt.Errorf("record run: %w", err)
			}
			logger.Info().Str("run_id", run.ID).Str("journal", cfg.Journal.Type).Msg("run recorded")
		}
	}

	if btOrgPath != "" {
		if err := journal.WriteOrgFile(btOrgPath, run); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if btFlags.json {
		return printJSON(out, run)
	}
	journal.PrintRun(out, run)
	if btTrades && len(run.Trades) > 0 {
		fmt.Fprintln(out, journal.FormatTradesOrg(run.Trades))
	}
	if n := len(res.StrategyErrors); n > 0 {
		fmt.Fprintf(out, "Strategy errors: %d (first at bar %d: %v)\n", n, res.StrategyErrors[0].Bar, res.StrategyErrors[0].Err)
	}
	if res.Rejected > 0 {
		fmt.Fprintf(out, "Entries rejected by risk checks: %d\n", res.Rejected)
	}
	return nil
}
