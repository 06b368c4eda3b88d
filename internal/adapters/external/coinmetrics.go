package external

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"cryptoFeatureSet/internal/domain"
	"cryptoFeatureSet/internal/ports"
)

const (
	coinMetricsBaseURL  = "https://community-api.coinmetrics.io/v4"
	coinMetricsPageSize = 10000
	// maxPages bounds the next_page_url chain.
	maxPages = 100
)

// CoinMetricsConfig configures the CoinMetrics community asset-metrics source.
type CoinMetricsConfig struct {
	Asset      string
	Metrics    []string
	BaseURL    string
	HTTPClient *http.Client
}

// CoinMetrics serves daily asset metrics as cm_{metric} columns.
type CoinMetrics struct {
	cfg        CoinMetricsConfig
	httpClient *http.Client
	logger     ports.Logger
}

// Compile-time check
var _ ports.SnapshotSource = (*CoinMetrics)(nil)

// NewCoinMetrics creates a CoinMetrics source.
func NewCoinMetrics(cfg CoinMetricsConfig, logger ports.Logger) *CoinMetrics {
	if cfg.BaseURL == "" {
		cfg.BaseURL = coinMetricsBaseURL
	}
	return &CoinMetrics{cfg: cfg, httpClient: defaultHTTPClient(cfg.HTTPClient), logger: logger}
}

func (c *CoinMetrics) Name() string { return "coinmetrics" }

// FetchSnapshot follows next_page_url until the series is exhausted.
func (c *CoinMetrics) FetchSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	const op = "CoinMetrics.FetchSnapshot"
	if len(c.cfg.Metrics) == 0 {
		return nil, fmt.Errorf("%s failed: %w: no metrics configured", op, ports.ErrInvalidRequest)
	}

	q := url.Values{}
	q.Set("assets", c.cfg.Asset)
	q.Set("metrics", strings.Join(c.cfg.Metrics, ","))
	q.Set("frequency", "1d")
	q.Set("page_size", fmt.Sprint(coinMetricsPageSize))
	next := c.cfg.BaseURL + "/timeseries/asset-metrics?" + q.Encode()

	wanted := make(map[string]bool, len(c.cfg.Metrics))
	for _, m := range c.cfg.Metrics {
		wanted[m] = true
	}

	table := newDailyTable()
	pages := 0
	for next != "" {
		if pages == maxPages {
			return nil, fmt.Errorf("%s failed: %w: more than %d pages", op, ports.ErrUnexpectedResponse, maxPages)
		}
		body, err := getJSON(ctx, c.httpClient, op, next, nil)
		if err != nil {
			return nil, err
		}
		pages++

		body.Get("data").ForEach(func(_, row gjson.Result) bool {
			day, ok := parseDay(row.Get("time").String())
			if !ok {
				return true
			}
			row.ForEach(func(key, value gjson.Result) bool {
				if !wanted[key.Str] {
					return true
				}
				if v, ok := numeric(value); ok {
					table.set(day, "cm_"+key.Str, v)
				}
				return true
			})
			return true
		})
		next = body.Get("next_page_url").String()
	}

	snap := table.snapshot(c.Name())
	c.logger.Info(ctx, "Fetched CoinMetrics snapshot", map[string]interface{}{
		"asset":   c.cfg.Asset,
		"metrics": strings.Join(c.cfg.Metrics, ","),
		"pages":   pages,
		"days":    snap.Frame.Len(),
	})
	return snap, nil
}
