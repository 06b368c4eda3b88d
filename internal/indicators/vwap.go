package indicators

import (
	"time"

	"cryptoFeatureSet/internal/domain"
)

// VWAP is the volume-weighted average of the typical price, reset at each UTC day.
type VWAP struct{}

// NewVWAP creates a new VWAP indicator instance
func NewVWAP() *VWAP { return &VWAP{} }

func (VWAP) Name() string      { return "VWAP" }
func (VWAP) Lookback() int     { return 0 }
func (VWAP) Columns() []string { return []string{domain.ColVWAP} }

func (VWAP) Compute(frame *domain.Frame) []Column {
	times := frame.Times()
	high := series(frame, domain.ColHigh)
	low := series(frame, domain.ColLow)
	closes := series(frame, domain.ColClose)
	volume := series(frame, domain.ColVolume)

	out := domain.NullColumn(len(times))
	var day time.Time
	var pv, vol float64
	for i, ts := range times {
		if d := domain.DayOf(ts); !d.Equal(day) {
			day, pv, vol = d, 0, 0
		}
		typical := (high[i] + low[i] + closes[i]) / 3
		pv += typical * volume[i]
		vol += volume[i]
		if vol > 0 {
			out[i] = pv / vol
		}
	}
	return []Column{{Name: domain.ColVWAP, Values: out}}
}
