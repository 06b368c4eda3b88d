package utils

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoFeatureSet/internal/domain"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteCandlesToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "btc.csv")
	candles := []domain.Candle{
		{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 1, High: 2.5, Low: 0.5, Close: 2, Volume: 100},
	}

	require.NoError(t, WriteCandlesToCSV(candles, "BTC/USDT", "1h", path))

	records := readCSV(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"timestamp", "pair", "timeframe", "open", "high", "low", "close", "volume"}, records[0])
	assert.Equal(t, []string{"2024-01-01T00:00:00Z", "BTC/USDT", "1h", "1", "2.5", "0.5", "2", "100"}, records[1])
}

func TestWriteDatasetToCSV(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	btc := domain.NewIndexedFrame([]time.Time{t0, t0.Add(time.Hour)}).
		WithColumn(domain.ColClose, []float64{10, 11}).
		WithColumn(domain.ColDirection, []float64{2, 0}).
		WithColumn("cg_price", []float64{42000, domain.Null()})
	eth := domain.NewIndexedFrame([]time.Time{t0}).
		WithColumn(domain.ColClose, []float64{3.25}).
		WithColumn(domain.ColDirection, []float64{1})

	ds := &domain.Dataset{}
	ds.Append("BTC/USDT", "1h", btc)
	ds.Append("ETH/USDT", "1h", eth)

	path := filepath.Join(t.TempDir(), "dataset.csv")
	require.NoError(t, WriteDatasetToCSV(ds, path))

	assert.Equal(t, [][]string{
		{"timestamp", "pair", "timeframe", "close", "direction", "cg_price"},
		{"2024-01-01T00:00:00Z", "BTC/USDT", "1h", "10", "2", "42000"},
		{"2024-01-01T01:00:00Z", "BTC/USDT", "1h", "11", "0", ""},
		{"2024-01-01T00:00:00Z", "ETH/USDT", "1h", "3.25", "1", ""},
	}, readCSV(t, path))
}
