package external

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"

	"cryptoFeatureSet/internal/domain"
	"cryptoFeatureSet/internal/ports"
)

const coinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoConfig configures the CoinGecko market chart source.
type CoinGeckoConfig struct {
	CoinID     string
	Days       int
	APIKey     string // demo key, sent as x-cg-demo-api-key
	BaseURL    string
	HTTPClient *http.Client
}

// CoinGecko serves daily price, market cap and volume of one coin in USD.
type CoinGecko struct {
	cfg        CoinGeckoConfig
	httpClient *http.Client
	logger     ports.Logger
}

// Compile-time check
var _ ports.SnapshotSource = (*CoinGecko)(nil)

// NewCoinGecko creates a CoinGecko source.
func NewCoinGecko(cfg CoinGeckoConfig, logger ports.Logger) *CoinGecko {
	if cfg.BaseURL == "" {
		cfg.BaseURL = coinGeckoBaseURL
	}
	if cfg.Days <= 0 {
		cfg.Days = 365
	}
	return &CoinGecko{cfg: cfg, httpClient: defaultHTTPClient(cfg.HTTPClient), logger: logger}
}

func (c *CoinGecko) Name() string { return "coingecko" }

// FetchSnapshot returns cg_price, cg_market_cap and cg_volume per day.
func (c *CoinGecko) FetchSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	const op = "CoinGecko.FetchSnapshot"

	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("days", strconv.Itoa(c.cfg.Days))
	q.Set("interval", "daily")
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart?%s", c.cfg.BaseURL, url.PathEscape(c.cfg.CoinID), q.Encode())

	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["x-cg-demo-api-key"] = c.cfg.APIKey
	}

	body, err := getJSON(ctx, c.httpClient, op, endpoint, headers)
	if err != nil {
		return nil, err
	}

	table := newDailyTable()
	for _, series := range []struct{ key, column string }{
		{"prices", "cg_price"},
		{"market_caps", "cg_market_cap"},
		{"total_volumes", "cg_volume"},
	} {
		points := body.Get(series.key)
		if !points.IsArray() {
			return nil, fmt.Errorf("%s failed: %w: missing %q array", op, ports.ErrUnexpectedResponse, series.key)
		}
		points.ForEach(func(_, point gjson.Result) bool {
			ms := point.Get("0")
			v, ok := numeric(point.Get("1"))
			if !ms.Exists() || !ok {
				return true
			}
			table.set(domain.DayOf(time.UnixMilli(ms.Int())), series.column, v)
			return true
		})
	}

	snap := table.snapshot(c.Name())
	c.logger.Info(ctx, "Fetched CoinGecko snapshot", map[string]interface{}{
		"coin_id": c.cfg.CoinID,
		"days":    snap.Frame.Len(),
	})
	return snap, nil
}
