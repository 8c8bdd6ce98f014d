package journal

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSVDir(dir)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	assert.Equal(t, [][]string{TradesHeader}, readCSV(t, filepath.Join(dir, "trades.csv")))
	assert.Equal(t, [][]string{EquityHeader}, readCSV(t, filepath.Join(dir, "equity.csv")))
}

func TestCSVJournalRecordRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tradesPath := filepath.Join(dir, "t.csv")
	equityPath := filepath.Join(dir, "e.csv")
	j, err := NewCSV(tradesPath, equityPath)
	require.NoError(t, err)

	require.NoError(t, j.RecordRun(context.Background(), sampleRun("R1")))
	require.NoError(t, j.RecordRun(context.Background(), sampleRun("R2")))
	require.NoError(t, j.Close())

	trades := readCSV(t, tradesPath)
	require.Len(t, trades, 5)
	assert.Equal(t, []string{
		"R1", "T1", "BTC-USD", "long", "0.200000", "45000.000000", "45900.000000",
		"2024-03-01T01:00:00Z", "2024-03-01T03:00:00Z", "1", "3", "180.000000", "2.000000", "PROFIT_2_PCT",
	}, trades[1])
	assert.Equal(t, "short", trades[2][3])
	assert.Equal(t, "STOP_LOSS", trades[2][13])
	assert.Equal(t, "R2", trades[3][0])

	equity := readCSV(t, equityPath)
	require.Len(t, equity, 9)
	assert.Equal(t, []string{"R1", "1", "2024-03-01T01:00:00Z", "10000.000000", "1000.000000", "1"}, equity[2])
}

func TestWriteCSVToWriter(t *testing.T) {
	t.Parallel()

	run := sampleRun("R1")

	var tb bytes.Buffer
	require.NoError(t, WriteTradesCSV(&tb, run.ID, run.Trades))
	rows, err := csv.NewReader(&tb).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, TradesHeader, rows[0])

	var eb bytes.Buffer
	require.NoError(t, WriteEquityCSV(&eb, run.ID, nil))
	rows, err = csv.NewReader(&eb).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{EquityHeader}, rows)
}

func TestNewCSVBadPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := NewCSV(filepath.Join(dir, "missing", "t.csv"), filepath.Join(dir, "e.csv"))
	assert.Error(t, err)
}
