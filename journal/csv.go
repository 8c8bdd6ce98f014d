package journal

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rustyeddy/stratlab/ledger"
)

var (
	TradesHeader = []string{"run_id", "trade_id", "symbol", "side", "size", "entry_price", "exit_price", "entry_time", "exit_time", "entry_bar", "exit_bar", "pnl", "pnl_pct", "reason"}
	EquityHeader = []string{"run_id", "bar", "time", "equity", "cash", "open_positions"}
)

// CSVJournal appends every recorded run to a trades file and an equity
// file.
type CSVJournal struct {
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

func NewCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		tf.Close()
		return nil, err
	}

	j := &CSVJournal{csv.NewWriter(tf), csv.NewWriter(ef), tf, ef}
	if err := j.trades.Write(TradesHeader); err != nil {
		j.Close()
		return nil, err
	}
	if err := j.equity.Write(EquityHeader); err != nil {
		j.Close()
		return nil, err
	}
	if err := j.flush(); err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

// NewCSVDir creates trades.csv and equity.csv under dir.
func NewCSVDir(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return NewCSV(filepath.Join(dir, "trades.csv"), filepath.Join(dir, "equity.csv"))
}

func (j *CSVJournal) RecordRun(_ context.Context, run Run) error {
	if err := writeTrades(j.trades, run.ID, run.Trades); err != nil {
		return err
	}
	if err := writeEquity(j.equity, run.ID, run.Equity); err != nil {
		return err
	}
	return j.flush()
}

func (j *CSVJournal) flush() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	ferr := j.flush()
	terr := j.tf.Close()
	eerr := j.ef.Close()
	for _, err := range []error{ferr, terr, eerr} {
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteTradesCSV writes a header and one row per trade.
func WriteTradesCSV(w io.Writer, runID string, trades []ledger.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TradesHeader); err != nil {
		return err
	}
	if err := writeTrades(cw, runID, trades); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV writes a header and one row per equity point.
func WriteEquityCSV(w io.Writer, runID string, equity []ledger.EquityPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EquityHeader); err != nil {
		return err
	}
	if err := writeEquity(cw, runID, equity); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func writeTrades(w *csv.Writer, runID string, trades []ledger.Trade) error {
	for _, t := range trades {
		err := w.Write([]string{
			runID,
			t.ID,
			t.Symbol,
			t.Side.String(),
			f(t.Size),
			f(t.EntryPrice),
			f(t.ExitPrice),
			t.EntryTime.UTC().Format(time.RFC3339),
			t.ExitTime.UTC().Format(time.RFC3339),
			strconv.Itoa(t.EntryBar),
			strconv.Itoa(t.ExitBar),
			f(t.PnL),
			f(t.PnLPct),
			string(t.Reason),
		})
		if err != nil {
			return fmt.Errorf("journal: write trade %s: %w", t.ID, err)
		}
	}
	return nil
}

func writeEquity(w *csv.Writer, runID string, equity []ledger.EquityPoint) error {
	for _, e := range equity {
		err := w.Write([]string{
			runID,
			strconv.Itoa(e.Bar),
			e.Time.UTC().Format(time.RFC3339),
			f(e.Equity),
			f(e.Cash),
			strconv.Itoa(e.OpenPositions),
		})
		if err != nil {
			return fmt.Errorf("journal: write equity bar %d: %w", e.Bar, err)
		}
	}
	return nil
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
