package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"cryptoFeatureSet/internal/domain"
	"cryptoFeatureSet/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

const (
	// Base URLs
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"

	// Binance spot weight budget allows 20 requests/s for klines.
	defaultMinRequestInterval = 50 * time.Millisecond
)

// Client implements the ports.ExchangeClient interface over the Binance spot REST API.
type Client struct {
	spotClient  *binance.Client
	logger      ports.Logger
	minInterval time.Duration

	mu      sync.Mutex
	markets map[string]domain.Market // keyed by canonical symbol
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey             string
	SecretKey          string
	UseTestnet         bool
	BaseURL            string // Overrides the production/testnet URL when set
	Logger             ports.Logger
	MinRequestInterval time.Duration
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		// Market data endpoints are public.
		cfg.Logger.Debug(context.Background(), "APIKey or SecretKey is empty. Client will only use public endpoints.")
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)

	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL})

	minInterval := cfg.MinRequestInterval
	if minInterval <= 0 {
		minInterval = defaultMinRequestInterval
	}

	return &Client{
		spotClient:  client,
		logger:      cfg.Logger,
		minInterval: minInterval,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003, -1015: // Too many requests / orders
			mappedErr = ports.ErrRateLimited
		case -1001, -1006, -1007: // Disconnected / unexpected response / backend timeout
			mappedErr = ports.ErrExchangeUnavailable
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022, -2014, -2015: // Signature or API-key problems
			mappedErr = ports.ErrAuthenticationFailed
		case -1121: // Invalid symbol
			mappedErr = ports.ErrUnsupportedSymbol
		case -1120: // Invalid interval
			mappedErr = ports.ErrUnsupportedTimeframe
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1125, -1127, -1128, -1130: // Parameter/Request format errors
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrUnknown
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") ||
		strings.Contains(err.Error(), "no such host") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.spotClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// MinRequestInterval is the pause the client expects between paginated requests.
func (c *Client) MinRequestInterval() time.Duration {
	return c.minInterval
}

// LoadMarkets retrieves the exchange's market directory once and caches it.
func (c *Client) LoadMarkets(ctx context.Context) (map[string]domain.Market, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.markets != nil {
		return c.markets, nil
	}

	op := "LoadMarkets"
	info, err := c.spotClient.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	if info == nil || len(info.Symbols) == 0 {
		return nil, c.handleError(ctx, fmt.Errorf("%w: exchange info has no symbols", ports.ErrUnexpectedResponse), op)
	}

	markets := make(map[string]domain.Market, len(info.Symbols))
	for _, s := range info.Symbols {
		m := translateSymbol(s)
		markets[m.Symbol] = m
	}
	c.markets = markets
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"markets": len(markets)})
	return markets, nil
}

// FetchCandles retrieves one page of historical candles starting at since.
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, since time.Time, limit int) ([]domain.Candle, error) {
	op := "FetchCandles"
	markets, err := c.LoadMarkets(ctx)
	if err != nil {
		return nil, err
	}
	market, ok := markets[symbol]
	if !ok {
		return nil, fmt.Errorf("%s failed for %s: %w", op, symbol, ports.ErrUnsupportedSymbol)
	}

	klines, err := c.spotClient.NewKlinesService().
		Symbol(market.ID).
		Interval(timeframe).
		StartTime(since.UnixMilli()).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	candles := make([]domain.Candle, 0, len(klines))
	for _, bk := range klines {
		candle, err := translateBinanceKline(bk)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline: %w", err), op)
		}
		candles = append(candles, candle)
	}
	c.logger.Debug(ctx, op+" page received", map[string]interface{}{
		"symbol": symbol, "timeframe": timeframe, "since": since.UTC().Format(time.RFC3339), "count": len(candles),
	})
	return candles, nil
}

// --- Translation Helpers ---

func translateSymbol(s binance.Symbol) domain.Market {
	return domain.Market{
		Symbol: s.BaseAsset + "/" + s.QuoteAsset,
		ID:     s.Symbol,
		Base:   s.BaseAsset,
		Quote:  s.QuoteAsset,
		Active: s.Status == "TRADING",
	}
}

func translateBinanceKline(bk *binance.Kline) (domain.Candle, error) {
	if bk == nil {
		return domain.Candle{}, errors.New("received nil historical kline")
	}
	open, err := strconv.ParseFloat(bk.Open, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing open price '%s': %w", bk.Open, err)
	}
	high, err := strconv.ParseFloat(bk.High, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing high price '%s': %w", bk.High, err)
	}
	low, err := strconv.ParseFloat(bk.Low, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing low price '%s': %w", bk.Low, err)
	}
	cls, err := strconv.ParseFloat(bk.Close, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing close price '%s': %w", bk.Close, err)
	}
	vol, err := strconv.ParseFloat(bk.Volume, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing volume '%s': %w", bk.Volume, err)
	}

	return domain.Candle{
		Time:   time.UnixMilli(bk.OpenTime).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  cls,
		Volume: vol,
	}, nil
}
