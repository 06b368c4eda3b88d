package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cryptoFeatureSet/internal/domain"
)

// WriteCandlesToCSV writes one candle series with its pair and timeframe tags.
func WriteCandlesToCSV(candles []domain.Candle, symbol, timeframe, filename string) error {
	file, err := create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Write([]string{"timestamp", "pair", "timeframe", "open", "high", "low", "close", "volume"})
	for _, c := range candles {
		writer.Write([]string{
			c.Time.UTC().Format(time.RFC3339),
			symbol,
			timeframe,
			formatFloat(c.Open),
			formatFloat(c.High),
			formatFloat(c.Low),
			formatFloat(c.Close),
			formatFloat(c.Volume),
		})
	}
	writer.Flush()
	return writer.Error()
}

// WriteDatasetToCSV writes every row of ds with the same columns as the
// persisted table. Null cells and columns a segment lacks are left empty.
func WriteDatasetToCSV(ds *domain.Dataset, filename string) error {
	file, err := create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	columns := ds.Columns()
	features := columns[3:]

	writer := csv.NewWriter(file)
	writer.Write(columns)
	record := make([]string, len(columns))
	for _, seg := range ds.Segments() {
		values := make([][]float64, len(features))
		for j, name := range features {
			values[j], _ = seg.Frame.Column(name)
		}
		for i, ts := range seg.Frame.Times() {
			record[0] = ts.UTC().Format(time.RFC3339)
			record[1] = seg.Pair
			record[2] = seg.Timeframe
			for j, name := range features {
				record[3+j] = formatCell(name, values[j], i)
			}
			writer.Write(record)
		}
	}
	writer.Flush()
	return writer.Error()
}

func create(filename string) (*os.File, error) {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %q: %w", dir, err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("creating %q: %w", filename, err)
	}
	return file, nil
}

func formatCell(name string, column []float64, row int) string {
	if column == nil || domain.IsNull(column[row]) {
		return ""
	}
	if domain.IsCategorical(name) {
		return strconv.FormatInt(int64(column[row]), 10)
	}
	return formatFloat(column[row])
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
