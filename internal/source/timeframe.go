package source

import (
	"fmt"
	"time"

	"cryptoFeatureSet/internal/ports"
)

// timeframeIntervals lists the supported candle granularities.
var timeframeIntervals = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"8h":  8 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
}

// TimeframeInterval returns the candle duration of a timeframe label.
func TimeframeInterval(timeframe string) (time.Duration, error) {
	d, ok := timeframeIntervals[timeframe]
	if !ok {
		return 0, fmt.Errorf("timeframe %q: %w", timeframe, ports.ErrUnsupportedTimeframe)
	}
	return d, nil
}
