package features

import (
	"math"
	"sort"

	"cryptoFeatureSet/internal/domain"
)

// LabelConfig configures the forward-return and volatility-regime labels.
type LabelConfig struct {
	Horizon              int
	SidewaysThresholdPct float64
	VolatilityColumn     string
	LowQuantile          float64
	HighQuantile         float64
}

// Labeler computes the direction and vol_regime targets of one series.
type Labeler struct {
	cfg LabelConfig
}

// NewLabeler creates a labeler for cfg.
func NewLabeler(cfg LabelConfig) *Labeler {
	return &Labeler{cfg: cfg}
}

// Label adds direction, future_return_pct and, when the volatility column is
// present, vol_regime.
func (l *Labeler) Label(frame *domain.Frame) *domain.Frame {
	return l.Regime(l.Direction(frame))
}

// Direction labels each row by the close-to-close return over the horizon.
// The last Horizon rows have no future close and stay null.
func (l *Labeler) Direction(frame *domain.Frame) *domain.Frame {
	closes, _ := frame.Column(domain.ColClose)
	n := len(closes)
	h := l.cfg.Horizon
	thr := l.cfg.SidewaysThresholdPct

	direction := domain.NullColumn(n)
	future := domain.NullColumn(n)
	for i := 0; i+h < n; i++ {
		if closes[i] == 0 {
			continue
		}
		pct := (closes[i+h] - closes[i]) / closes[i] * 100
		if math.IsNaN(pct) {
			continue
		}
		future[i] = pct
		switch {
		case pct > thr:
			direction[i] = float64(domain.DirectionUp)
		case pct < -thr:
			direction[i] = float64(domain.DirectionDown)
		default:
			direction[i] = float64(domain.DirectionSideways)
		}
	}
	return frame.WithColumn(domain.ColDirection, direction).WithColumn(domain.ColFutureReturnPct, future)
}

// Regime buckets the volatility column by its own quantiles. Null volatility
// cells stay null; a frame without the column is returned unchanged.
func (l *Labeler) Regime(frame *domain.Frame) *domain.Frame {
	vol, ok := frame.Column(l.cfg.VolatilityColumn)
	if !ok {
		return frame
	}
	low := Quantile(vol, l.cfg.LowQuantile)
	high := Quantile(vol, l.cfg.HighQuantile)

	regime := domain.NullColumn(len(vol))
	for i, v := range vol {
		switch {
		case domain.IsNull(v):
		case v < low:
			regime[i] = float64(domain.VolRegimeLow)
		case v > high:
			regime[i] = float64(domain.VolRegimeHigh)
		default:
			regime[i] = float64(domain.VolRegimeMid)
		}
	}
	return frame.WithColumn(domain.ColVolRegime, regime)
}

// Quantile returns the q-quantile of the non-null values, interpolating
// linearly between order statistics. It returns null when no value is resolved.
func Quantile(values []float64, q float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !domain.IsNull(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return domain.Null()
	}
	sort.Float64s(sorted)

	pos := float64(len(sorted)-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if hi >= len(sorted) {
		hi = len(sorted) - 1
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
