package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/stratlab/journal"
)

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "List journaled runs or render one",
	Long: `Report reads the SQL journal. Without a run ID it lists recent runs;
with one it renders that run as text, Org-mode or JSON, and can export its
trades and equity curve as CSV.

Examples:
  stratlab report --strategy ma-cross --limit 10
  stratlab report 01J0Z6Q8ZC3T0V2N6B7W9X4Y5K --format org > run.org
  stratlab report 01J0Z6Q8ZC3T0V2N6B7W9X4Y5K --csv out/`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

var (
	reportFormat   string
	reportStrategy string
	reportLimit    int
	reportCSVDir   string
)

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportFormat, "format", "text", "output format: text|org|json")
	reportCmd.Flags().StringVar(&reportStrategy, "strategy", "", "only list runs of this strategy")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 20, "number of runs to list (0 = all)")
	reportCmd.Flags().StringVar(&reportCSVDir, "csv", "", "export the run's trades.csv and equity.csv to this directory")
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		runs, err := store.ListRuns(ctx, reportStrategy, reportLimit)
		if err != nil {
			return err
		}
		if reportFormat == "json" {
			return printJSON(out, runs)
		}
		for _, r := range runs {
			fmt.Fprintf(out, "%s  %s  %-10s %-10s %8.2f%%  sharpe %6.2f  trades %d\n",
				r.ID, r.Created.Format("2006-01-02 15:04"), r.Strategy, r.Symbol,
				r.Report.TotalReturn, r.Report.Sharpe, r.Report.TotalTrades)
		}
		return nil
	}

	run, err := store.GetRun(ctx, args[0])
	if err != nil {
		return err
	}

	if reportCSVDir != "" {
		if err := exportCSV(reportCSVDir, run); err != nil {
			return err
		}
	}

	switch reportFormat {
	case "text":
		journal.PrintRun(out, run)
	case "org":
		if err := journal.WriteOrg(out, run); err != nil {
			return err
		}
		if len(run.Trades) > 0 {
			fmt.Fprintln(out)
			fmt.Fprint(out, journal.FormatTradesOrg(run.Trades))
		}
	case "json":
		return printJSON(out, run)
	default:
		return fmt.Errorf("unknown format %q (supported: text, org, json)", reportFormat)
	}
	return nil
}

func exportCSV(dir string, run journal.Run) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tf, err := os.Create(filepath.Join(dir, "trades.csv"))
	if err != nil {
		return err
	}
	defer tf.Close()
	if err := journal.WriteTradesCSV(tf, run.ID, run.Trades); err != nil {
		return err
	}

	ef, err := os.Create(filepath.Join(dir, "equity.csv"))
	if err != nil {
		return err
	}
	defer ef.Close()
	return journal.WriteEquityCSV(ef, run.ID, run.Equity)
}
