package journal

import (
	"fmt"
	"io"
	"time"
)

// PrintRun writes a plain-text summary of the run.
func PrintRun(w io.Writer, r Run) {
	rep := r.Report

	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	if r.ID != "" {
		fmt.Fprintf(w, "Run ID:        %s\n", r.ID)
	}
	if !r.Created.IsZero() {
		fmt.Fprintf(w, "Created:       %s\n", r.Created.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Strategy:      %s\n", r.Strategy)
	fmt.Fprintf(w, "Symbol:        %s\n", r.Symbol)
	if r.Dataset != "" {
		fmt.Fprintf(w, "Dataset:       %s\n", r.Dataset)
	}
	if len(r.Params) > 0 {
		fmt.Fprintf(w, "Params:        %s\n", r.Params)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Period")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start:         %s\n", rep.Start.Format(time.RFC3339))
	fmt.Fprintf(w, "End:           %s\n", rep.End.Format(time.RFC3339))
	fmt.Fprintf(w, "Bars:          %d\n", r.Bars)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", rep.TotalTrades)
	fmt.Fprintf(w, "Wins:          %d\n", rep.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", rep.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", rep.WinRate)
	fmt.Fprintf(w, "Avg Trade:     %.2f\n", rep.AvgTrade)
	fmt.Fprintf(w, "Avg Holding:   %.1f bars\n", rep.AvgHolding)
	for _, row := range exitReasonRows(rep.ExitReasons) {
		fmt.Fprintf(w, "  %-18s %d\n", row.Reason, row.Count)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Balance: %.2f\n", rep.InitialCapital)
	fmt.Fprintf(w, "End Balance:   %.2f\n", rep.FinalCapital)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", rep.NetPnL)
	fmt.Fprintf(w, "Return:        %.2f%%\n", rep.TotalReturn)
	fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", rep.MaxDrawdownPct())

	if rep.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", rep.ProfitFactor)
	}
	fmt.Fprintf(w, "Sharpe:        %.2f\n", rep.Sharpe)
	fmt.Fprintf(w, "Sortino:       %.2f\n", rep.Sortino)
	fmt.Fprintf(w, "Calmar:        %.2f\n", rep.Calmar)

	if rep.Note != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Observations")
		fmt.Fprintln(w, "--------------------------------------------------")
		fmt.Fprintf(w, "- %s\n", rep.Note)
	}

	fmt.Fprintln(w)
}
