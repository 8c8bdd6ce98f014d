package backtest

import (
	"time"

	"github.com/rustyeddy/stratlab/ledger"
)

// Recorder observes runs as they happen. The telemetry package provides a
// Prometheus implementation.
type Recorder interface {
	TradeClosed(strategy string, t ledger.Trade)
	StrategyError(strategy string)
	RunFinished(strategy string, bars int, elapsed time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) TradeClosed(string, ledger.Trade)              {}
func (nopRecorder) StrategyError(string)                          {}
func (nopRecorder) RunFinished(string, int, time.Duration, error) {}
