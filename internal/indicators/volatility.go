package indicators

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"cryptoFeatureSet/internal/domain"
)

// ADX implements the Average Directional Index.
type ADX struct {
	BaseIndicator
}

// NewADX creates a new Average Directional Index indicator instance
func NewADX(period int) *ADX {
	return &ADX{BaseIndicator: BaseIndicator{Config: IndicatorConfig{Period: period}}}
}

func (a *ADX) Name() string {
	return fmt.Sprintf("ADX(%d)", a.Config.Period)
}

// Lookback is twice the period: one window for DI smoothing and one for DX.
func (a *ADX) Lookback() int {
	return 2*a.Config.Period - 1
}

func (a *ADX) Columns() []string {
	return []string{domain.ADXCol(a.Config.Period)}
}

func (a *ADX) Compute(frame *domain.Frame) []Column {
	out := talib.Adx(
		series(frame, domain.ColHigh),
		series(frame, domain.ColLow),
		series(frame, domain.ColClose),
		a.Config.Period,
	)
	return []Column{{Name: domain.ADXCol(a.Config.Period), Values: mask(out, a.Lookback())}}
}

// Volatility is the rolling sample standard deviation of close-to-close returns.
type Volatility struct {
	BaseIndicator
}

// NewVolatility creates a volatility indicator. period must be at least 2.
func NewVolatility(period int) *Volatility {
	return &Volatility{BaseIndicator: BaseIndicator{Config: IndicatorConfig{Period: period}}}
}

func (v *Volatility) Name() string {
	return fmt.Sprintf("VOLATILITY(%d)", v.Config.Period)
}

// Lookback accounts for the first row having no return.
func (v *Volatility) Lookback() int {
	return v.Config.Period
}

func (v *Volatility) Columns() []string {
	return []string{domain.VolatilityCol(v.Config.Period)}
}

func (v *Volatility) Compute(frame *domain.Frame) []Column {
	p := v.Config.Period
	returns := talib.Rocp(series(frame, domain.ColClose), 1)
	std := talib.StdDev(returns[1:], p, 1)

	// TA-Lib divides by p; rescale to the n-1 estimator.
	scale := math.Sqrt(float64(p) / float64(p-1))
	out := domain.NullColumn(len(returns))
	for i := p - 1; i < len(std); i++ {
		out[i+1] = std[i] * scale
	}
	return []Column{{Name: domain.VolatilityCol(p), Values: out}}
}

// PriceRange is the high-low range over a trailing window, relative to close.
type PriceRange struct {
	BaseIndicator
}

// NewPriceRange creates a new price range indicator instance
func NewPriceRange(period int) *PriceRange {
	return &PriceRange{BaseIndicator: BaseIndicator{Config: IndicatorConfig{Period: period}}}
}

func (r *PriceRange) Name() string {
	return fmt.Sprintf("RANGE(%d)", r.Config.Period)
}

func (r *PriceRange) Columns() []string {
	return []string{domain.PriceRangeCol(r.Config.Period)}
}

func (r *PriceRange) Compute(frame *domain.Frame) []Column {
	p := r.Config.Period
	closes := series(frame, domain.ColClose)
	highest, lowest := series(frame, domain.ColHigh), series(frame, domain.ColLow)
	if p > 1 {
		highest, lowest = talib.Max(highest, p), talib.Min(lowest, p)
	}

	out := domain.NullColumn(len(closes))
	for i := r.Lookback(); i < len(closes); i++ {
		if closes[i] == 0 {
			continue
		}
		out[i] = (highest[i] - lowest[i]) / closes[i]
	}
	return []Column{{Name: domain.PriceRangeCol(p), Values: out}}
}
