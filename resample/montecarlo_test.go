package resample

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonteCarlo_NoTrades(t *testing.T) {
	t.Parallel()

	_, err := MonteCarlo(context.Background(), nil, DefaultMonteCarloConfig())
	assert.ErrorIs(t, err, ErrNoTradeData)
}

func TestMonteCarlo_SingleTrade(t *testing.T) {
	t.Parallel()

	// One trade: every resampled path is that trade.
	res, err := MonteCarlo(context.Background(), []float64{2}, DefaultMonteCarloConfig())
	require.NoError(t, err)
	assert.Equal(t, 1000, res.Simulations)
	assert.Equal(t, 1, res.Trades)
	assert.InDelta(t, 2, res.Mean, 1e-9)
	assert.InDelta(t, 2, res.Median, 1e-9)
	assert.InDelta(t, 2, res.P5, 1e-9)
	assert.InDelta(t, 2, res.P95, 1e-9)
	assert.InDelta(t, 0, res.Std, 1e-9)
	assert.Equal(t, 100.0, res.ProbabilityOfProfit)
}

func TestMonteCarlo_OneSimulation(t *testing.T) {
	t.Parallel()

	res, err := MonteCarlo(context.Background(), []float64{1, -1, 3}, MonteCarloConfig{Simulations: 1, Seed: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Simulations)
	assert.Equal(t, res.Mean, res.Median)
	assert.Equal(t, res.P5, res.P95)
	assert.Equal(t, 0.0, res.Std)
}

func TestMonteCarlo_ReproducibleAcrossWorkers(t *testing.T) {
	t.Parallel()

	returns := []float64{2, -1, 3.5, -2, 0.5, 1, -0.7, 2.2}
	var results []MonteCarloResult
	for _, w := range []int{1, 3, 8} {
		res, err := MonteCarlo(context.Background(), returns, MonteCarloConfig{Simulations: 500, Seed: 42, Workers: w})
		require.NoError(t, err)
		results = append(results, res)
	}
	assert.Equal(t, results[0], results[1])
	assert.Equal(t, results[0], results[2])

	other, err := MonteCarlo(context.Background(), returns, MonteCarloConfig{Simulations: 500, Seed: 43, Workers: 1})
	require.NoError(t, err)
	assert.NotEqual(t, results[0].Paths, other.Paths)
}

func TestMonteCarlo_Distribution(t *testing.T) {
	t.Parallel()

	res, err := MonteCarlo(context.Background(), []float64{1, 1, 1, -1}, MonteCarloConfig{Simulations: 2000, Seed: 7})
	require.NoError(t, err)

	assert.LessOrEqual(t, res.Min, res.P5)
	assert.LessOrEqual(t, res.P5, res.Median)
	assert.LessOrEqual(t, res.Median, res.P95)
	assert.LessOrEqual(t, res.P95, res.Max)
	assert.Greater(t, res.Std, 0.0)
	// Four draws from {+1,+1,+1,-1}: a path loses with two or more -1 draws,
	// which happens with probability 1 - 0.75^4 - 4*0.75^3*0.25 ~= 26%.
	assert.InDelta(t, 73.8, res.ProbabilityOfProfit, 5)
	assert.InDelta(t, 1.01*1.01*1.01*1.01*100-100, res.Max, 1e-9)
}

func TestMonteCarlo_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := MonteCarlo(ctx, []float64{1}, MonteCarloConfig{Simulations: 100, Workers: 2})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMonteCarloConfigValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultMonteCarloConfig().Validate())
	assert.Error(t, MonteCarloConfig{}.Validate())
	assert.Error(t, MonteCarloConfig{Simulations: 1, Workers: -1}.Validate())
}
