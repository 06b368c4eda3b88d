package ports

import (
	"context"
	"time"

	"cryptoFeatureSet/internal/domain"
)

// ExchangeClient defines the market-data operations the dataset build needs from an exchange.
// This abstraction allows decoupling the pipeline from specific exchange implementations.
type ExchangeClient interface {
	// LoadMarkets returns the market directory keyed by canonical symbol ("BASE/QUOTE").
	LoadMarkets(ctx context.Context) (map[string]domain.Market, error)

	// FetchCandles returns at most limit candles of symbol/timeframe opening at or after since,
	// oldest first. An empty slice means no candles exist from since onwards.
	FetchCandles(ctx context.Context, symbol, timeframe string, since time.Time, limit int) ([]domain.Candle, error)

	// MinRequestInterval is the minimum spacing the exchange expects between requests.
	MinRequestInterval() time.Duration
}

// SeriesSource resolves configured pairs and retrieves complete candle series.
type SeriesSource interface {
	// ResolveSymbol maps a configured pair onto a canonical market symbol.
	ResolveSymbol(ctx context.Context, raw string) (string, error)

	// FetchSeries returns the deduplicated, ascending candles of the last monthsBack months.
	FetchSeries(ctx context.Context, symbol, timeframe string, monthsBack, pageLimit int) ([]domain.Candle, error)
}
