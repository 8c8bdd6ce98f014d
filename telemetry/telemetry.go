// Package telemetry exports engine, optimizer and resampling activity as
// Prometheus metrics.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rustyeddy/stratlab/backtest"
	"github.com/rustyeddy/stratlab/ledger"
	"github.com/rustyeddy/stratlab/optimize"
)

const namespace = "stratlab"

// Metrics implements backtest.Recorder and optimize.Recorder.
type Metrics struct {
	Runs          *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	BarsSimulated *prometheus.CounterVec

	Trades         *prometheus.CounterVec
	TradePnL       *prometheus.HistogramVec
	StrategyErrors *prometheus.CounterVec

	Combinations       *prometheus.CounterVec
	CombinationSeconds *prometheus.HistogramVec

	MonteCarloRuns    prometheus.Counter
	MonteCarloSeconds prometheus.Histogram
}

var (
	_ backtest.Recorder = (*Metrics)(nil)
	_ optimize.Recorder = (*Metrics)(nil)
)

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backtest_runs_total",
				Help:      "Backtest runs by strategy and result",
			},
			[]string{"strategy", "result"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backtest_duration_seconds",
				Help:      "Wall time of one backtest run",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"strategy"},
		),
		BarsSimulated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bars_simulated_total",
				Help:      "Bars stepped after warm-up",
			},
			[]string{"strategy"},
		),
		Trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_closed_total",
				Help:      "Closed trades by strategy and exit reason",
			},
			[]string{"strategy", "reason"},
		),
		TradePnL: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "trade_return_pct",
				Help:      "Percent return of closed trades",
				Buckets:   []float64{-5, -3, -2, -1, -0.5, 0, 0.5, 1, 2, 3, 5},
			},
			[]string{"strategy"},
		),
		StrategyErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "strategy_errors_total",
				Help:      "Strategy evaluations that failed or panicked",
			},
			[]string{"strategy"},
		),
		Combinations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "optimizer_combinations_total",
				Help:      "Parameter combinations evaluated by result",
			},
			[]string{"strategy", "result"},
		),
		CombinationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "optimizer_combination_seconds",
				Help:      "Wall time per parameter combination",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"strategy"},
		),
		MonteCarloRuns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "montecarlo_runs_total",
				Help:      "Completed Monte Carlo resampling runs",
			},
		),
		MonteCarloSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "montecarlo_duration_seconds",
				Help:      "Wall time of one Monte Carlo run",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Runs, m.RunDuration, m.BarsSimulated,
		m.Trades, m.TradePnL, m.StrategyErrors,
		m.Combinations, m.CombinationSeconds,
		m.MonteCarloRuns, m.MonteCarloSeconds,
	}
}

func (m *Metrics) TradeClosed(strategy string, t ledger.Trade) {
	m.Trades.WithLabelValues(strategy, string(t.Reason)).Inc()
	m.TradePnL.WithLabelValues(strategy).Observe(t.PnLPct)
}

func (m *Metrics) StrategyError(strategy string) {
	m.StrategyErrors.WithLabelValues(strategy).Inc()
}

func (m *Metrics) RunFinished(strategy string, bars int, elapsed time.Duration, err error) {
	m.Runs.WithLabelValues(strategy, result(err == nil)).Inc()
	m.RunDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	m.BarsSimulated.WithLabelValues(strategy).Add(float64(bars))
}

func (m *Metrics) CombinationEvaluated(strategy string, ok bool, elapsed time.Duration) {
	m.Combinations.WithLabelValues(strategy, result(ok)).Inc()
	m.CombinationSeconds.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

func (m *Metrics) MonteCarloFinished(elapsed time.Duration) {
	m.MonteCarloRuns.Inc()
	m.MonteCarloSeconds.Observe(elapsed.Seconds())
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
