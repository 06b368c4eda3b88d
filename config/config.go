package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"cryptoFeatureSet/internal/adapters/logger" // Import the logger package for LogLevel
	"cryptoFeatureSet/internal/domain"
	"cryptoFeatureSet/internal/ports"
)

// Config holds the validated dataset build configuration.
type Config struct {
	// Universe
	Pairs      []string `yaml:"pairs"`
	Timeframes []string `yaml:"timeframes"`
	Months     int      `yaml:"months"` // Lookback horizon, 30-day months

	// Indicators (a zero period disables the indicator)
	BBPeriods        []int     `yaml:"bb_periods"`
	BBDevs           []float64 `yaml:"bb_devs"`
	MAPeriods        []int     `yaml:"ma_periods"`
	PriceRangePeriod int       `yaml:"price_range_period"`
	VolatilityPeriod int       `yaml:"volatility_period"`
	ADXPeriod        int       `yaml:"adx_period"`
	RSIPeriod        int       `yaml:"rsi_period"`
	MACDParams       []int     `yaml:"macd_params"` // fast, slow, signal

	// Derivatives and labels
	LaggedPeriods []int        `yaml:"lagged_periods"`
	Target        TargetConfig `yaml:"target"`

	Database DatabaseConfig `yaml:"database"`
	Paths    PathsConfig    `yaml:"paths"`
	External ExternalConfig `yaml:"external"`
	Exchange ExchangeConfig `yaml:"exchange"`

	// FailFast aborts the build on the first failed pair/timeframe instead of collecting failures.
	FailFast bool `yaml:"fail_fast"`

	// Runtime settings from the environment
	Env      Env             `yaml:"-"`
	LogLevel logger.LogLevel `yaml:"-"`
}

// TargetConfig configures the forward-looking labels.
type TargetConfig struct {
	Horizon              int     `yaml:"horizon"`
	SidewaysThresholdPct float64 `yaml:"sideways_threshold_pct"`
	RegimeLowQuantile    float64 `yaml:"regime_low_quantile"`
	RegimeHighQuantile   float64 `yaml:"regime_high_quantile"`
}

// DatabaseConfig configures the embedded store.
type DatabaseConfig struct {
	Path          string           `yaml:"path"`
	Table         string           `yaml:"table"`
	MetadataTable string           `yaml:"metadata_table"`
	Mode          domain.WriteMode `yaml:"mode"`
}

// PathsConfig holds optional output locations.
type PathsConfig struct {
	CSVExport       string `yaml:"csv_export"`
	MetricsTextfile string `yaml:"metrics_textfile"`
}

// ExternalConfig enables the daily external snapshot sources.
type ExternalConfig struct {
	EnableCoinGecko   bool     `yaml:"enable_coingecko"`
	CoinID            string   `yaml:"coin_id"`
	CoinGeckoDays     int      `yaml:"coingecko_days"`
	EnableCoinMetrics bool     `yaml:"enable_coinmetrics"`
	CoinMetricsAsset  string   `yaml:"coinmetrics_asset"`
	CoinMetricsMetric []string `yaml:"coinmetrics_metrics"`
	EnableDune        bool     `yaml:"enable_dune"`
	DuneQueryIDs      []int    `yaml:"dune_query_ids"`
	DuneDateColumn    string   `yaml:"dune_date_column"`
	LagDays           int      `yaml:"lag_days"` // Shift external dates forward to model publication delay
}

// ExchangeConfig configures the exchange collaborator.
type ExchangeConfig struct {
	PageLimit          int           `yaml:"page_limit"`
	MinRequestInterval time.Duration `yaml:"min_request_interval"`
	Testnet            bool          `yaml:"testnet"`
}

// Env holds settings read from environment variables (.env supported).
type Env struct {
	ConfigPath       string `envconfig:"CONFIG_PATH" default:"config/config.yaml"`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"INFO"`
	LogFormat        string `envconfig:"LOG_FORMAT" default:"console"`
	BinanceAPIKey    string `envconfig:"BINANCE_API_KEY"`
	BinanceAPISecret string `envconfig:"BINANCE_API_SECRET"`
	CoinGeckoAPIKey  string `envconfig:"COINGECKO_API_KEY"`
	DuneAPIKey       string `envconfig:"DUNE_API_KEY"`
}

// MACD returns the fast, slow and signal periods; ok is false when MACD is not configured.
func (c *Config) MACD() (fast, slow, signal int, ok bool) {
	if len(c.MACDParams) != 3 {
		return 0, 0, 0, false
	}
	return c.MACDParams[0], c.MACDParams[1], c.MACDParams[2], true
}

// defaults returns a Config pre-populated with the optional settings.
func defaults() *Config {
	return &Config{
		Target: TargetConfig{
			Horizon:              20,
			SidewaysThresholdPct: 1.0,
			RegimeLowQuantile:    0.33,
			RegimeHighQuantile:   0.66,
		},
		Database: DatabaseConfig{
			Table:         "features",
			MetadataTable: "metadata",
			Mode:          domain.WriteModeReplace,
		},
		External: ExternalConfig{
			CoinID:            "bitcoin",
			CoinGeckoDays:     365,
			CoinMetricsAsset:  "btc",
			CoinMetricsMetric: []string{"AdrActCnt"},
			DuneDateColumn:    "day",
		},
		Exchange: ExchangeConfig{
			PageLimit:          1000,
			MinRequestInterval: 50 * time.Millisecond,
		},
	}
}

// LoadConfig loads environment settings (.env file optional) and the YAML document they point to.
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("%w: reading environment: %w", ports.ErrConfigurationError, err)
	}
	return LoadFile(env.ConfigPath, env)
}

// LoadFile reads and validates the YAML document at path.
func LoadFile(path string, env Env) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading config file '%s': %w", ports.ErrConfigurationError, path, err)
	}
	return Parse(data, env)
}

// Parse decodes a YAML document, applies defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte, env Env) (*Config, error) {
	cfg := defaults()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decoding config document: %w", ports.ErrConfigurationError, err)
	}

	cfg.Env = env
	cfg.LogLevel = logger.ParseLevel(env.LogLevel) // Use the parser from the logger package

	if errs := cfg.validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: configuration validation failed: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return cfg, nil
}

func (c *Config) validate() []string {
	var errs []string // Collect validation errors

	if len(c.Pairs) == 0 {
		errs = append(errs, "pairs must list at least one symbol")
	}
	for _, p := range c.Pairs {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, "pairs cannot contain empty symbols")
			break
		}
	}
	if len(c.Timeframes) == 0 {
		errs = append(errs, "timeframes must list at least one timeframe")
	}
	if c.Months <= 0 {
		errs = append(errs, "months must be positive")
	}

	errs = append(errs, positiveAll("bb_periods", c.BBPeriods)...)
	errs = append(errs, positiveAll("ma_periods", c.MAPeriods)...)
	errs = append(errs, positiveAll("lagged_periods", c.LaggedPeriods)...)
	for _, d := range c.BBDevs {
		if d <= 0 {
			errs = append(errs, "bb_devs must be positive")
			break
		}
	}
	if len(c.BBPeriods) > 0 && len(c.BBDevs) == 0 {
		errs = append(errs, "bb_devs must be set when bb_periods is set")
	}
	for _, p := range []struct {
		name  string
		value int
	}{
		{"price_range_period", c.PriceRangePeriod},
		{"volatility_period", c.VolatilityPeriod},
		{"adx_period", c.ADXPeriod},
		{"rsi_period", c.RSIPeriod},
	} {
		if p.value < 0 {
			errs = append(errs, fmt.Sprintf("%s cannot be negative", p.name))
		}
	}
	if c.VolatilityPeriod == 1 || c.RSIPeriod == 1 {
		errs = append(errs, "volatility_period and rsi_period must be 0 or at least 2")
	}
	if len(c.MACDParams) > 0 {
		if fast, slow, signal, ok := c.MACD(); !ok {
			errs = append(errs, "macd_params must be [fast, slow, signal]")
		} else if fast <= 0 || slow <= 0 || signal <= 0 {
			errs = append(errs, "macd_params must be positive")
		} else if fast >= slow {
			errs = append(errs, "macd fast period must be less than slow period")
		}
	}

	if c.Target.Horizon <= 0 {
		errs = append(errs, "target.horizon must be positive")
	}
	if c.Target.SidewaysThresholdPct < 0 {
		errs = append(errs, "target.sideways_threshold_pct cannot be negative")
	}
	lq, hq := c.Target.RegimeLowQuantile, c.Target.RegimeHighQuantile
	if lq < 0 || hq > 1 || lq >= hq {
		errs = append(errs, "target regime quantiles must satisfy 0 <= low < high <= 1")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path must be set")
	}
	if c.Database.Table == "" || c.Database.MetadataTable == "" {
		errs = append(errs, "database table names cannot be empty")
	} else if c.Database.Table == c.Database.MetadataTable {
		errs = append(errs, "database.table and database.metadata_table must differ")
	}
	switch c.Database.Mode {
	case domain.WriteModeReplace, domain.WriteModeAppend:
	default:
		errs = append(errs, fmt.Sprintf("database.mode must be %q or %q", domain.WriteModeReplace, domain.WriteModeAppend))
	}

	if c.External.EnableCoinGecko {
		if c.External.CoinID == "" {
			errs = append(errs, "external.coin_id must be set when coingecko is enabled")
		}
		if c.External.CoinGeckoDays <= 0 {
			errs = append(errs, "external.coingecko_days must be positive")
		}
	}
	if c.External.EnableCoinMetrics && (c.External.CoinMetricsAsset == "" || len(c.External.CoinMetricsMetric) == 0) {
		errs = append(errs, "external.coinmetrics_asset and coinmetrics_metrics must be set when coinmetrics is enabled")
	}
	if c.External.EnableDune {
		if len(c.External.DuneQueryIDs) == 0 {
			errs = append(errs, "external.dune_query_ids must be set when dune is enabled")
		}
		if c.Env.DuneAPIKey == "" {
			errs = append(errs, "DUNE_API_KEY must be set when dune is enabled")
		}
	}
	if c.External.LagDays < 0 {
		errs = append(errs, "external.lag_days cannot be negative")
	}

	if c.Exchange.PageLimit <= 0 {
		errs = append(errs, "exchange.page_limit must be positive")
	}
	if c.Exchange.MinRequestInterval < 0 {
		errs = append(errs, "exchange.min_request_interval cannot be negative")
	}
	return errs
}

func positiveAll(name string, values []int) []string {
	for _, v := range values {
		if v <= 0 {
			return []string{fmt.Sprintf("%s must be positive", name)}
		}
	}
	return nil
}
