package source

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"cryptoFeatureSet/internal/domain"
	"cryptoFeatureSet/internal/ports"
)

// daysPerMonth is the month length used for the lookback horizon.
const daysPerMonth = 30

// Adapter resolves canonical symbols and retrieves complete candle series
// from a paginated exchange.
type Adapter struct {
	exchange ports.ExchangeClient
	logger   ports.Logger
	limiter  *rate.Limiter
	now      func() time.Time

	mu      sync.Mutex
	markets map[string]domain.Market
	quotes  []string // Known quote assets, longest first
}

// Compile-time check
var _ ports.SeriesSource = (*Adapter)(nil)

// Option customizes an Adapter.
type Option func(*Adapter)

// WithClock replaces time.Now, used to anchor the lookback horizon.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// New creates an Adapter. Pages are spaced by the exchange's minimum request interval.
func New(exchange ports.ExchangeClient, logger ports.Logger, opts ...Option) (*Adapter, error) {
	if exchange == nil || logger == nil {
		return nil, fmt.Errorf("exchange and logger are required for source adapter")
	}
	limit := rate.Inf
	if interval := exchange.MinRequestInterval(); interval > 0 {
		limit = rate.Every(interval)
	}
	a := &Adapter{
		exchange: exchange,
		logger:   logger,
		limiter:  rate.NewLimiter(limit, 1),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Adapter) loadMarkets(ctx context.Context) (map[string]domain.Market, []string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.markets != nil {
		return a.markets, a.quotes, nil
	}
	markets, err := a.exchange.LoadMarkets(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading markets: %w", err)
	}
	seen := make(map[string]struct{})
	var quotes []string
	for _, m := range markets {
		if _, ok := seen[m.Quote]; ok || m.Quote == "" {
			continue
		}
		seen[m.Quote] = struct{}{}
		quotes = append(quotes, m.Quote)
	}
	sort.Slice(quotes, func(i, j int) bool {
		if len(quotes[i]) != len(quotes[j]) {
			return len(quotes[i]) > len(quotes[j])
		}
		return quotes[i] < quotes[j]
	})
	a.markets, a.quotes = markets, quotes
	return markets, quotes, nil
}

// ResolveSymbol maps a configured symbol to its canonical market symbol. It tries,
// in order: an exact match, the symbol with "_" separators replaced by "/", and
// a "/" inserted before a known quote-asset suffix ("BTCUSDT" -> "BTC/USDT").
func (a *Adapter) ResolveSymbol(ctx context.Context, raw string) (string, error) {
	markets, quotes, err := a.loadMarkets(ctx)
	if err != nil {
		return "", err
	}
	if _, ok := markets[raw]; ok {
		return raw, nil
	}
	s := strings.ReplaceAll(raw, "_", "/")
	if _, ok := markets[s]; ok {
		return s, nil
	}
	if !strings.Contains(s, "/") {
		for _, q := range quotes {
			if len(s) <= len(q) || !strings.HasSuffix(s, q) {
				continue
			}
			candidate := strings.TrimSuffix(s, q) + "/" + q
			if _, ok := markets[candidate]; ok {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("symbol %q: %w", raw, ports.ErrUnsupportedSymbol)
}

// FetchSeries retrieves every candle of symbol/timeframe from monthsBack*30 days ago
// until now, following the page cursor. The result is deduplicated by timestamp and
// sorted ascending. No candles in the whole horizon yields an empty slice.
func (a *Adapter) FetchSeries(ctx context.Context, symbol, timeframe string, monthsBack, pageLimit int) ([]domain.Candle, error) {
	interval, err := TimeframeInterval(timeframe)
	if err != nil {
		return nil, err
	}
	if pageLimit <= 0 {
		return nil, fmt.Errorf("page limit must be positive, got %d: %w", pageLimit, ports.ErrInvalidRequest)
	}

	end := a.now().UTC()
	cursor := end.AddDate(0, 0, -monthsBack*daysPerMonth)

	var all []domain.Candle
	pages := 0
	for {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for request slot: %w: %w", ports.ErrContextCanceled, err)
		}
		batch, err := a.exchange.FetchCandles(ctx, symbol, timeframe, cursor, pageLimit)
		if err != nil {
			return nil, fmt.Errorf("fetching %s %s page %d: %w", symbol, timeframe, pages+1, err)
		}
		pages++
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		cursor = batch[len(batch)-1].Time.Add(interval)
		if !cursor.Before(end) {
			break
		}
	}

	candles := dedupeSorted(all)
	a.logger.Debug(ctx, "Series fetched", map[string]interface{}{
		"symbol": symbol, "timeframe": timeframe, "pages": pages, "candles": len(candles),
	})
	return candles, nil
}

// dedupeSorted sorts candles by time and keeps the first candle seen per timestamp.
func dedupeSorted(candles []domain.Candle) []domain.Candle {
	if len(candles) == 0 {
		return []domain.Candle{}
	}
	sorted := make([]domain.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	out := sorted[:1]
	for _, c := range sorted[1:] {
		if c.Time.Equal(out[len(out)-1].Time) {
			continue
		}
		out = append(out, c)
	}
	return out
}
