// Package journal persists backtest runs: run metadata with its report,
// the trade log and the equity curve.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/stratlab/backtest"
	"github.com/rustyeddy/stratlab/internal/id"
	"github.com/rustyeddy/stratlab/ledger"
	"github.com/rustyeddy/stratlab/metrics"
)

var ErrRunNotFound = errors.New("journal: run not found")

// Run is one journaled backtest.
type Run struct {
	ID       string          `json:"id"`
	Created  time.Time       `json:"created"`
	Strategy string          `json:"strategy"`
	Symbol   string          `json:"symbol"`
	Dataset  string          `json:"dataset"`
	Params   backtest.Params `json:"params"`
	Config   backtest.Config `json:"config"`
	Bars     int             `json:"bars"`
	Report   metrics.Report  `json:"report"`

	Trades []ledger.Trade       `json:"trades,omitempty"`
	Equity []ledger.EquityPoint `json:"equity,omitempty"`
}

// NewRun builds a Run from an engine result with a fresh ULID.
func NewRun(res *backtest.Result, cfg backtest.Config, dataset string) Run {
	return Run{
		ID:       id.New(),
		Created:  time.Now().UTC(),
		Strategy: res.Strategy,
		Symbol:   res.Symbol,
		Dataset:  dataset,
		Params:   res.Params.Clone(),
		Config:   cfg,
		Bars:     res.Bars,
		Report:   res.Report(),
		Trades:   res.Trades,
		Equity:   res.Equity,
	}
}

type Journal interface {
	RecordRun(ctx context.Context, run Run) error
	Close() error
}
