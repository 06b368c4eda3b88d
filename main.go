package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptoFeatureSet/config"
	"cryptoFeatureSet/internal/adapters/binanceclient"
	"cryptoFeatureSet/internal/adapters/external"
	"cryptoFeatureSet/internal/adapters/logger"
	"cryptoFeatureSet/internal/adapters/sqlite"
	"cryptoFeatureSet/internal/app"
	"cryptoFeatureSet/internal/indicators"
	"cryptoFeatureSet/internal/metrics"
	"cryptoFeatureSet/internal/ports"
	"cryptoFeatureSet/internal/source"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
		return 1
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(cfg.LogLevel, cfg.Env.LogFormat)
	if err != nil {
		log.Printf("FATAL: Failed to initialize logger: %v", err)
		return 1
	}
	defer func() { _ = appLogger.Sync() }()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.Database.Path,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		return 1
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized", map[string]interface{}{"path": cfg.Database.Path})

	// 4. Initialize Exchange Client and Series Source
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:             cfg.Env.BinanceAPIKey,
		SecretKey:          cfg.Env.BinanceAPISecret,
		UseTestnet:         cfg.Exchange.Testnet,
		Logger:             appLogger,
		MinRequestInterval: cfg.Exchange.MinRequestInterval,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		return 1
	}
	series, err := source.New(binanceClient, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize series source")
		return 1
	}

	// 5. Initialize Indicator Engine and External Sources
	engine := indicators.NewEngine(app.IndicatorConfig(cfg), appLogger)
	externals := externalSources(cfg, appLogger)
	appLogger.Info(ctx, "Pipeline initialized", map[string]interface{}{
		"indicators": len(engine.Indicators()),
		"externals":  len(externals),
	})

	// 6. Initialize Application Service
	recorder := metrics.NewRecorder()
	buildService, err := app.NewBuildService(cfg, appLogger, series, engine, externals, repo, app.WithObserver(recorder))
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize build service")
		return 1
	}

	// 7. Run the Build
	report, buildErr := buildService.Build(ctx)
	recorder.ObserveBuild(report.StartedAt, report.FinishedAt, buildErr == nil)
	if path := cfg.Paths.MetricsTextfile; path != "" {
		if err := recorder.WriteTextfile(path); err != nil {
			appLogger.Error(ctx, err, "Failed to write metrics textfile", map[string]interface{}{"path": path})
		}
	}

	if failed := report.Err(); failed != nil {
		appLogger.Warn(ctx, "Some pair/timeframe units failed", map[string]interface{}{
			"failures": len(report.Failures),
			"error":    failed.Error(),
		})
	}
	if buildErr != nil {
		appLogger.Error(ctx, buildErr, "Dataset build failed", map[string]interface{}{"build_id": report.BuildID})
		return 1
	}

	if records, err := repo.BuildRecords(ctx, cfg.Database.MetadataTable); err == nil {
		appLogger.Debug(ctx, "Build history", map[string]interface{}{"builds": len(records)})
	}
	appLogger.Info(ctx, "Dataset build finished", map[string]interface{}{
		"build_id": report.BuildID,
		"rows":     report.Rows,
		"units":    len(report.Completed),
		"skipped":  len(report.Skipped),
		"duration": report.Duration().Round(time.Millisecond).String(),
	})
	return 0
}

// externalSources builds the enabled daily snapshot sources.
func externalSources(cfg *config.Config, appLogger ports.Logger) []ports.SnapshotSource {
	var sources []ports.SnapshotSource
	ext := cfg.External
	if ext.EnableCoinGecko {
		sources = append(sources, external.NewCoinGecko(external.CoinGeckoConfig{
			CoinID: ext.CoinID,
			Days:   ext.CoinGeckoDays,
			APIKey: cfg.Env.CoinGeckoAPIKey,
		}, appLogger))
	}
	if ext.EnableCoinMetrics {
		sources = append(sources, external.NewCoinMetrics(external.CoinMetricsConfig{
			Asset:   ext.CoinMetricsAsset,
			Metrics: ext.CoinMetricsMetric,
		}, appLogger))
	}
	if ext.EnableDune {
		for _, id := range ext.DuneQueryIDs {
			sources = append(sources, external.NewDune(external.DuneConfig{
				QueryID:    id,
				APIKey:     cfg.Env.DuneAPIKey,
				DateColumn: ext.DuneDateColumn,
			}, appLogger))
		}
	}
	return sources
}
