package indicators

import (
	"context"
	"fmt"

	"cryptoFeatureSet/internal/domain"
	"cryptoFeatureSet/internal/ports"
)

// MACDParams holds the fast, slow and signal EMA periods.
type MACDParams struct {
	Fast, Slow, Signal int
}

// Config selects the indicators an Engine computes. Zero periods disable an indicator.
type Config struct {
	MAPeriods        []int
	BBPeriods        []int
	BBDevs           []float64
	RSIPeriod        int
	ADXPeriod        int
	VolatilityPeriod int
	PriceRangePeriod int
	MACD             *MACDParams
	DisableVWAP      bool
}

// Engine augments candle frames with TA-Lib backed indicator columns.
type Engine struct {
	indicators []Indicator
	logger     ports.Logger
}

// Compile-time check
var _ ports.IndicatorEngine = (*Engine)(nil)

// NewEngine builds the indicator set described by cfg.
func NewEngine(cfg Config, logger ports.Logger) *Engine {
	var set []Indicator
	for _, p := range cfg.MAPeriods {
		set = append(set, NewMovingAverage(p))
	}
	if len(cfg.BBDevs) > 0 {
		for _, p := range cfg.BBPeriods {
			set = append(set, NewBollingerBands(p, cfg.BBDevs))
		}
	}
	if cfg.RSIPeriod > 1 {
		set = append(set, NewRSI(cfg.RSIPeriod))
	}
	if cfg.MACD != nil {
		set = append(set, NewMACD(cfg.MACD.Fast, cfg.MACD.Slow, cfg.MACD.Signal))
	}
	if cfg.ADXPeriod > 0 {
		set = append(set, NewADX(cfg.ADXPeriod))
	}
	if cfg.VolatilityPeriod > 1 {
		set = append(set, NewVolatility(cfg.VolatilityPeriod))
	}
	if cfg.PriceRangePeriod > 0 {
		set = append(set, NewPriceRange(cfg.PriceRangePeriod))
	}
	if !cfg.DisableVWAP {
		set = append(set, NewVWAP())
	}
	return &Engine{indicators: set, logger: logger}
}

// Indicators returns the configured indicators in computation order.
func (e *Engine) Indicators() []Indicator {
	return e.indicators
}

// maxLookback is the longest lookback among the configured indicators.
func (e *Engine) maxLookback() int {
	longest := 0
	for _, ind := range e.indicators {
		if lb := ind.Lookback(); lb > longest {
			longest = lb
		}
	}
	return longest
}

// Augment returns frame with every configured indicator column added. A frame
// too short for an indicator gets all-null columns for it.
func (e *Engine) Augment(ctx context.Context, frame *domain.Frame) (*domain.Frame, error) {
	const op = "Engine.Augment"
	for _, col := range []string{domain.ColOpen, domain.ColHigh, domain.ColLow, domain.ColClose, domain.ColVolume} {
		if !frame.Has(col) {
			return nil, fmt.Errorf("%s failed: %w: frame has no %q column", op, ports.ErrInvalidRequest, col)
		}
	}

	out := frame
	n := frame.Len()
	for _, ind := range e.indicators {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrContextCanceled, err)
		}
		if n <= ind.Lookback() {
			e.logger.Debug(ctx, "Series shorter than indicator lookback", map[string]interface{}{
				"indicator": ind.Name(),
				"rows":      n,
				"lookback":  ind.Lookback(),
			})
			for _, name := range ind.Columns() {
				out = out.WithColumn(name, domain.NullColumn(n))
			}
			continue
		}
		for _, col := range ind.Compute(frame) {
			out = out.WithColumn(col.Name, col.Values)
		}
	}
	e.logger.Debug(ctx, "Indicators computed", map[string]interface{}{
		"indicators":  len(e.indicators),
		"rows":        n,
		"warmup_rows": e.maxLookback(),
	})
	return out, nil
}
