// Package features derives lagged and ratio features, merges external daily
// snapshots and labels rows with forward-looking targets.
package features

import (
	"cryptoFeatureSet/internal/domain"
)

// DerivativeConfig lists the periods derived features are built from.
type DerivativeConfig struct {
	LaggedPeriods []int
	MAPeriods     []int
	BBPeriods     []int
	RSIPeriod     int
}

// DerivativeBuilder adds lag, ratio and MACD-difference columns to an indicator frame.
type DerivativeBuilder struct {
	cfg DerivativeConfig
}

// NewDerivativeBuilder creates a builder for cfg.
func NewDerivativeBuilder(cfg DerivativeConfig) *DerivativeBuilder {
	return &DerivativeBuilder{cfg: cfg}
}

// Build returns frame with the derived columns added. Source columns the frame
// does not carry are skipped.
func (b *DerivativeBuilder) Build(frame *domain.Frame) *domain.Frame {
	out := frame

	for _, k := range b.cfg.LaggedPeriods {
		sources := []string{domain.ColClose}
		for _, p := range b.cfg.MAPeriods {
			sources = append(sources, domain.MACol(p))
		}
		if b.cfg.RSIPeriod > 0 {
			sources = append(sources, domain.RSICol(b.cfg.RSIPeriod))
		}
		for _, src := range sources {
			if values, ok := frame.Column(src); ok {
				out = out.WithColumn(domain.LagCol(src, k), Shift(values, k))
			}
		}
	}

	closes, _ := frame.Column(domain.ColClose)
	ratioTo := func(ref string) {
		if values, ok := frame.Column(ref); ok {
			out = out.WithColumn(domain.CloseRatioCol(ref), ratio(closes, values))
		}
	}
	for _, p := range b.cfg.MAPeriods {
		ratioTo(domain.MACol(p))
	}
	ratioTo(domain.ColVWAP)
	for _, p := range b.cfg.BBPeriods {
		ratioTo(domain.BBMiddleCol(p))
	}

	macd, okLine := frame.Column(domain.ColMACD)
	signal, okSignal := frame.Column(domain.ColMACDSignal)
	if okLine && okSignal {
		diff := make([]float64, len(macd))
		for i := range macd {
			diff[i] = macd[i] - signal[i]
		}
		out = out.WithColumn(domain.ColMACDDiff, diff)
	}
	return out
}

// Shift returns values moved k rows later; the first k cells are null.
func Shift(values []float64, k int) []float64 {
	out := domain.NullColumn(len(values))
	for i := k; i < len(values); i++ {
		out[i] = values[i-k]
	}
	return out
}

// ratio divides num by den element-wise; a zero denominator yields null.
func ratio(num, den []float64) []float64 {
	out := make([]float64, len(num))
	for i := range num {
		if den[i] == 0 {
			out[i] = domain.Null()
			continue
		}
		out[i] = num[i] / den[i]
	}
	return out
}
