package backtest

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInsufficientData means the series is not longer than the warm-up.
	// Run still returns an (empty, flagged) Result alongside it.
	ErrInsufficientData = errors.New("backtest: insufficient data")

	ErrMalformedData = errors.New("backtest: malformed bar data")
)

// StrategyEvaluationError wraps a strategy failure on one bar. The engine
// logs it and skips that bar's signal.
type StrategyEvaluationError struct {
	Strategy string
	Bar      int
	Time     time.Time
	Err      error
}

func (e *StrategyEvaluationError) Error() string {
	return fmt.Sprintf("backtest: strategy %s failed at bar %d (%s): %v",
		e.Strategy, e.Bar, e.Time.Format(time.RFC3339), e.Err)
}

func (e *StrategyEvaluationError) Unwrap() error { return e.Err }
