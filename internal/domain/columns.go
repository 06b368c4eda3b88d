package domain

import (
	"fmt"
	"strconv"
)

// Base and label column names shared by every stage of the pipeline.
const (
	ColTimestamp = "timestamp"
	ColOpen      = "open"
	ColHigh      = "high"
	ColLow       = "low"
	ColClose     = "close"
	ColVolume    = "volume"
	ColPair      = "pair"
	ColTimeframe = "timeframe"

	ColVWAP       = "vwap"
	ColMACD       = "macd"
	ColMACDSignal = "macd_signal"
	ColMACDHist   = "macd_hist"
	ColMACDDiff   = "macd_diff"

	ColDirection       = "direction"
	ColFutureReturnPct = "future_return_pct"
	ColVolRegime       = "vol_regime"
)

// IsCategorical reports whether the column holds integer class labels.
func IsCategorical(name string) bool {
	return name == ColDirection || name == ColVolRegime
}

func MACol(period int) string         { return fmt.Sprintf("ma_%d", period) }
func RSICol(period int) string        { return fmt.Sprintf("rsi_%d", period) }
func ADXCol(period int) string        { return fmt.Sprintf("adx_%d", period) }
func VolatilityCol(period int) string { return fmt.Sprintf("volatility_%d", period) }
func PriceRangeCol(period int) string { return fmt.Sprintf("price_range_%d", period) }
func BBMiddleCol(period int) string   { return fmt.Sprintf("bb_%d_middle", period) }

// BBUpperCol names the upper band of a Bollinger period at a given deviation.
func BBUpperCol(period int, dev float64) string {
	return fmt.Sprintf("bb_%d_upper_%s", period, formatDev(dev))
}

// BBLowerCol names the lower band of a Bollinger period at a given deviation.
func BBLowerCol(period int, dev float64) string {
	return fmt.Sprintf("bb_%d_lower_%s", period, formatDev(dev))
}

// LagCol names a k-period lagged copy of a source column.
func LagCol(source string, k int) string { return fmt.Sprintf("%s_lag_%d", source, k) }

// CloseRatioCol names the ratio of close to a reference column.
func CloseRatioCol(reference string) string { return "close_to_" + reference }

func formatDev(dev float64) string {
	return strconv.FormatFloat(dev, 'f', -1, 64)
}
