package market

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestReadCSV_HeaderAndFormats(t *testing.T) {
	t.Parallel()

	in := `time,open,high,low,close,volume
2024-01-01T00:00:00Z,100,110,95,105,12
2024-01-01 01:00:00,105,106,100,101,3
1704074400,101,102,99,100
`
	s, err := ReadCSV(strings.NewReader(in), "BTC/USDT")
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())

	assert.Equal(t, "BTC/USDT", s.Symbol)
	assert.Equal(t, 105.0, s.Bars[0].Close)
	assert.Equal(t, 12.0, s.Bars[0].Volume)
	assert.True(t, s.Bars[1].Time.Equal(t0.Add(time.Hour)))
	assert.True(t, s.Bars[2].Time.Equal(t0.Add(2*time.Hour)))
	assert.Equal(t, 0.0, s.Bars[2].Volume)
}

func TestReadCSV_BadRow(t *testing.T) {
	t.Parallel()

	_, err := ReadCSV(strings.NewReader("2024-01-01,1,2,3\n"), "X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		bars []Bar
		ok   bool
	}{
		{"empty", nil, true},
		{"good", []Bar{{Time: t0, Open: 1, High: 2, Low: 1, Close: 2}}, true},
		{"zero price", []Bar{{Time: t0, Open: 0, High: 2, Low: 1, Close: 2}}, false},
		{"high below low", []Bar{{Time: t0, Open: 1, High: 1, Low: 2, Close: 1}}, false},
		{"close outside", []Bar{{Time: t0, Open: 1, High: 2, Low: 1, Close: 3}}, false},
		{"negative volume", []Bar{{Time: t0, Open: 1, High: 2, Low: 1, Close: 2, Volume: -1}}, false},
		{"unordered", []Bar{
			{Time: t0.Add(time.Hour), Open: 1, High: 2, Low: 1, Close: 2},
			{Time: t0, Open: 1, High: 2, Low: 1, Close: 2},
		}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := NewSeries("X", tt.bars).Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedSeries))
		})
	}
}

func TestFromClosesRoundTrip(t *testing.T) {
	t.Parallel()

	s := FromCloses("ETH/USDT", t0, time.Hour, []float64{10, 12, 11})
	require.NoError(t, s.Validate())
	assert.Equal(t, 12.0, s.Bars[1].High)
	assert.Equal(t, 10.0, s.Bars[1].Low)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, s))

	back, err := ReadCSV(&buf, "ETH/USDT")
	require.NoError(t, err)
	assert.Equal(t, s.Closes(), back.Closes())
}

func TestSlice(t *testing.T) {
	t.Parallel()

	s := FromCloses("X", t0, time.Hour, []float64{1, 2, 3, 4, 5})
	sub := s.Slice(1, 3)
	assert.Equal(t, []float64{2, 3}, sub.Closes())
	assert.Equal(t, 0, s.Slice(4, 2).Len())
	assert.Equal(t, 5, s.Slice(-1, 99).Len())
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	closes := []float64{1, 2, 3}
	a := FromCloses("X", t0, time.Hour, closes)
	b := FromCloses("X", t0, time.Hour, closes)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)

	assert.NotEqual(t, a.Fingerprint(), FromCloses("Y", t0, time.Hour, closes).Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), FromCloses("X", t0, time.Minute, closes).Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), FromCloses("X", t0, time.Hour, []float64{1, 2, 3.0001}).Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), a.Slice(0, 2).Fingerprint())

	var nilSeries *Series
	assert.Len(t, nilSeries.Fingerprint(), 64)
}
