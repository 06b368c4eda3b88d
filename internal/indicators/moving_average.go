package indicators

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"cryptoFeatureSet/internal/domain"
)

// MovingAverage is the simple moving average of close prices.
type MovingAverage struct {
	BaseIndicator
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(period int) *MovingAverage {
	return &MovingAverage{BaseIndicator: BaseIndicator{Config: IndicatorConfig{Period: period}}}
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return fmt.Sprintf("SMA(%d)", m.Config.Period)
}

func (m *MovingAverage) Columns() []string {
	return []string{domain.MACol(m.Config.Period)}
}

func (m *MovingAverage) Compute(frame *domain.Frame) []Column {
	out := talib.Sma(series(frame, domain.ColClose), m.Config.Period)
	return []Column{{Name: domain.MACol(m.Config.Period), Values: mask(out, m.Lookback())}}
}

// BollingerBands produces the middle band plus an upper and lower band per
// configured deviation multiplier. Bands use the population standard deviation.
type BollingerBands struct {
	BaseIndicator
	devs []float64
}

// NewBollingerBands creates Bollinger bands over period with the given deviation multipliers.
func NewBollingerBands(period int, devs []float64) *BollingerBands {
	d := make([]float64, len(devs))
	copy(d, devs)
	return &BollingerBands{BaseIndicator: BaseIndicator{Config: IndicatorConfig{Period: period}}, devs: d}
}

func (b *BollingerBands) Name() string {
	return fmt.Sprintf("BBANDS(%d)", b.Config.Period)
}

func (b *BollingerBands) Columns() []string {
	p := b.Config.Period
	names := []string{domain.BBMiddleCol(p)}
	for _, dev := range b.devs {
		names = append(names, domain.BBUpperCol(p, dev), domain.BBLowerCol(p, dev))
	}
	return names
}

func (b *BollingerBands) Compute(frame *domain.Frame) []Column {
	p := b.Config.Period
	closes := series(frame, domain.ColClose)
	lookback := b.Lookback()

	middle := mask(talib.Sma(closes, p), lookback)
	cols := []Column{{Name: domain.BBMiddleCol(p), Values: middle}}
	for _, dev := range b.devs {
		upper, _, lower := talib.BBands(closes, p, dev, dev, talib.SMA)
		cols = append(cols,
			Column{Name: domain.BBUpperCol(p, dev), Values: mask(upper, lookback)},
			Column{Name: domain.BBLowerCol(p, dev), Values: mask(lower, lookback)},
		)
	}
	return cols
}
