package indicators

import (
	"cryptoFeatureSet/internal/domain"
)

// Column is one named output series of an indicator.
type Column struct {
	Name   string
	Values []float64
}

// Indicator represents a technical indicator computed over a whole frame.
type Indicator interface {
	// Compute returns the indicator columns, aligned with the frame index.
	// It is only called when frame.Len() > Lookback().
	Compute(frame *domain.Frame) []Column

	// Lookback returns the number of leading rows for which the indicator is undefined.
	Lookback() int

	// Columns returns the names of the columns Compute produces.
	Columns() []string

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// Lookback defaults to a trailing window of Period rows.
func (b *BaseIndicator) Lookback() int {
	return b.Config.Period - 1
}

// mask replaces the first n values with nulls. TA-Lib leaves zeros in the
// lookback region.
func mask(values []float64, n int) []float64 {
	if n > len(values) {
		n = len(values)
	}
	for i := 0; i < n; i++ {
		values[i] = domain.Null()
	}
	return values
}

// series returns the named column, or nil when the frame does not carry it.
func series(frame *domain.Frame, name string) []float64 {
	values, _ := frame.Column(name)
	return values
}
