package domain

import "time"

// Candle represents a single OHLCV interval of a trading pair.
type Candle struct {
	Time   time.Time // Start of the interval, UTC
	Open   float64   // Opening price
	High   float64   // Highest price
	Low    float64   // Lowest price
	Close  float64   // Closing price
	Volume float64   // Base asset volume
}

// Market describes one tradable pair in an exchange's market directory.
type Market struct {
	Symbol string // Canonical symbol, e.g. "BTC/USDT"
	ID     string // Exchange-native identifier, e.g. "BTCUSDT"
	Base   string
	Quote  string
	Active bool
}

// DayOf returns the UTC calendar day containing t, as midnight UTC.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
