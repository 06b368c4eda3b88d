package indicators

import (
	"fmt"

	"github.com/markcheno/go-talib"

	"cryptoFeatureSet/internal/domain"
)

// RSI implements the Relative Strength Index with Wilder smoothing.
type RSI struct {
	BaseIndicator
}

// NewRSI creates a new RSI indicator instance
func NewRSI(period int) *RSI {
	return &RSI{BaseIndicator: BaseIndicator{Config: IndicatorConfig{Period: period}}}
}

// Name returns the name of the indicator
func (r *RSI) Name() string {
	return fmt.Sprintf("RSI(%d)", r.Config.Period)
}

// Lookback is one row longer than the window: the first value needs Period price changes.
func (r *RSI) Lookback() int {
	return r.Config.Period
}

func (r *RSI) Columns() []string {
	return []string{domain.RSICol(r.Config.Period)}
}

func (r *RSI) Compute(frame *domain.Frame) []Column {
	out := talib.Rsi(series(frame, domain.ColClose), r.Config.Period)
	return []Column{{Name: domain.RSICol(r.Config.Period), Values: mask(out, r.Lookback())}}
}

// MACD produces the MACD line, its signal line and the histogram.
type MACD struct {
	fast, slow, signal int
}

// NewMACD creates a MACD indicator. fast must be less than slow.
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{fast: fast, slow: slow, signal: signal}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD(%d,%d,%d)", m.fast, m.slow, m.signal)
}

// Lookback covers both the slow EMA and the signal EMA seeded from it.
func (m *MACD) Lookback() int {
	return m.slow + m.signal - 2
}

func (m *MACD) Columns() []string {
	return []string{domain.ColMACD, domain.ColMACDSignal, domain.ColMACDHist}
}

func (m *MACD) Compute(frame *domain.Frame) []Column {
	closes := series(frame, domain.ColClose)
	n := len(closes)
	fastEMA := talib.Ema(closes, m.fast)
	slowEMA := talib.Ema(closes, m.slow)

	start := m.slow - 1
	line := domain.NullColumn(n)
	for i := start; i < n; i++ {
		line[i] = fastEMA[i] - slowEMA[i]
	}

	signal := domain.NullColumn(n)
	seeded := talib.Ema(line[start:], m.signal)
	for i := m.signal - 1; i < len(seeded); i++ {
		signal[start+i] = seeded[i]
	}

	hist := domain.NullColumn(n)
	lookback := m.Lookback()
	for i := lookback; i < n; i++ {
		hist[i] = line[i] - signal[i]
	}
	return []Column{
		{Name: domain.ColMACD, Values: mask(line, lookback)},
		{Name: domain.ColMACDSignal, Values: signal},
		{Name: domain.ColMACDHist, Values: hist},
	}
}
