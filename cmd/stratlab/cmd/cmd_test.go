package cmd

import (
	"bytes"
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/stratlab/backtest"
	"github.com/rustyeddy/stratlab/config"
	"github.com/rustyeddy/stratlab/market"
	"github.com/rustyeddy/stratlab/optimize"
)

func TestParseParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want backtest.Params
		err  bool
	}{
		{"empty", nil, backtest.Params{}, false},
		{"pairs", []string{"fast_ma=10", " slow_ma = 30.5"}, backtest.Params{"fast_ma": 10, "slow_ma": 30.5}, false},
		{"last wins", []string{"x=1", "x=2"}, backtest.Params{"x": 2}, false},
		{"missing equals", []string{"fast_ma"}, nil, true},
		{"missing name", []string{"=3"}, nil, true},
		{"not a number", []string{"x=abc"}, nil, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseParams(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseGrid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want optimize.Grid
		err  bool
	}{
		{"list", []string{"fast_ma=5,10,20"}, optimize.Grid{"fast_ma": {5, 10, 20}}, false},
		{"range", []string{"slow_ma=30:50:10"}, optimize.Grid{"slow_ma": {30, 40, 50}}, false},
		{"two axes", []string{"a=1", "b=2,3"}, optimize.Grid{"a": {1}, "b": {2, 3}}, false},
		{"bad value", []string{"a=1,x"}, nil, true},
		{"bad range", []string{"a=1:x:1"}, nil, true},
		{"no values", []string{"a="}, nil, true},
		{"no name", []string{"1,2"}, nil, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseGrid(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()), "stratlab %v", args)
	return out.String()
}

// The command tree keeps flag state in package variables, so the
// end-to-end flow runs sequentially in one test.
func TestCommands(t *testing.T) {
	dir := t.TempDir()

	closes := make([]float64, 400)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/15)
	}
	s := market.FromCloses("BTC-USD", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Hour, closes)
	dataPath := filepath.Join(dir, "bars.csv")
	f, err := os.Create(dataPath)
	require.NoError(t, err)
	require.NoError(t, market.WriteCSV(f, s))
	require.NoError(t, f.Close())

	cfgPath := filepath.Join(dir, "stratlab.yaml")
	out := execute(t, "config", "init", "-o", cfgPath)
	assert.Contains(t, out, "Created default configuration")

	c, err := config.LoadFromFile(cfgPath)
	require.NoError(t, err)
	c.Journal.DBPath = filepath.Join(dir, "journal.db")
	c.WalkForward.TrainBars, c.WalkForward.TestBars = 200, 100
	require.NoError(t, c.SaveToFile(cfgPath))

	out = execute(t, "config", "validate", "-f", cfgPath)
	assert.Contains(t, out, "Configuration valid")

	metricsPath := filepath.Join(dir, "metrics.prom")
	out = execute(t, "backtest", "-c", cfgPath, "-d", dataPath, "-s", "ma-cross",
		"-p", "fast_ma=5", "-p", "slow_ma=20", "--metrics-file", metricsPath)
	assert.Contains(t, out, "Backtest Result")
	assert.Contains(t, out, "Strategy:      ma-cross")
	assert.Contains(t, out, "fast_ma=5")

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "stratlab_backtest_runs_total")

	out = execute(t, "report", "-c", cfgPath)
	assert.Contains(t, out, "ma-cross")
	assert.Contains(t, out, "BTC-USD")

	out = execute(t, "optimize", "-c", cfgPath, "-d", dataPath, "-s", "ma-cross",
		"-g", "fast_ma=5,10", "-g", "slow_ma=20,40", "-m", "total_return")
	assert.Contains(t, out, "Optimization Result")
	assert.Contains(t, out, "4 evaluated of 4")

	out = execute(t, "montecarlo", "-c", cfgPath, "-d", dataPath, "-s", "ma-cross", "-n", "50", "--seed", "7")
	assert.Contains(t, out, "Simulations:   50 (seed 7)")

	out = execute(t, "walkforward", "-c", cfgPath, "-d", dataPath, "-s", "ma-cross")
	assert.Contains(t, out, "Walk-Forward Validation")
	assert.Contains(t, out, "Windows:       2 of 2")

	out = execute(t, "version")
	assert.Contains(t, out, "stratlab version")
}
