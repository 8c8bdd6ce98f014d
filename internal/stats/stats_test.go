package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescriptive(t *testing.T) {
	t.Parallel()

	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 40, Sum(xs), 1e-12)
	assert.InDelta(t, 5, Mean(xs), 1e-12)
	assert.InDelta(t, 2, PopStd(xs), 1e-12)
	assert.InDelta(t, math.Sqrt(32.0/7), Std(xs), 1e-12)
	assert.InDelta(t, 4.5, Median(xs), 1e-12)
}

func TestDegenerate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, Std([]float64{3}))
	assert.Equal(t, 0.0, PopStd(nil))
	assert.Equal(t, 0.0, Percentile(nil, 50))
	assert.Equal(t, 0.0, Finite(math.NaN()))
	assert.Equal(t, 0.0, Finite(math.Inf(-1)))
	assert.Equal(t, 1.5, Finite(1.5))
}

func TestPercentile(t *testing.T) {
	t.Parallel()

	xs := []float64{5, 1, 4, 2, 3}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1}, {25, 2}, {50, 3}, {90, 4.6}, {100, 5}, {-1, 1}, {150, 5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Percentile(xs, tt.p), 1e-12, "p=%v", tt.p)
	}
	// input untouched
	assert.Equal(t, []float64{5, 1, 4, 2, 3}, xs)
}
