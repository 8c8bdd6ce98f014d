package metrics

import (
	"fmt"
	"strings"
)

// Metric names the scalar a search ranks reports by. Higher is better for
// every metric.
type Metric string

const (
	MetricSharpe       Metric = "sharpe"
	MetricSortino      Metric = "sortino"
	MetricCalmar       Metric = "calmar"
	MetricTotalReturn  Metric = "total_return"
	MetricProfitFactor Metric = "profit_factor"
	MetricWinRate      Metric = "win_rate"
)

var Metrics = []Metric{
	MetricSharpe,
	MetricSortino,
	MetricCalmar,
	MetricTotalReturn,
	MetricProfitFactor,
	MetricWinRate,
}

func ParseMetric(s string) (Metric, error) {
	if s == "" {
		return MetricSharpe, nil
	}
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Metrics {
		if m == v {
			return m, nil
		}
	}
	return "", fmt.Errorf("metrics: unknown metric %q", s)
}

// Value extracts the metric from r.
func (m Metric) Value(r Report) float64 {
	switch m {
	case MetricSortino:
		return r.Sortino
	case MetricCalmar:
		return r.Calmar
	case MetricTotalReturn:
		return r.TotalReturn
	case MetricProfitFactor:
		return r.ProfitFactor
	case MetricWinRate:
		return r.WinRate
	}
	return r.Sharpe
}
