package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"cryptoFeatureSet/config"
	"cryptoFeatureSet/internal/adapters/binanceclient"
	"cryptoFeatureSet/internal/adapters/logger"
	"cryptoFeatureSet/internal/source"
	"cryptoFeatureSet/internal/utils"
)

func main() {
	outDir := flag.String("out", "data", "directory for the candle CSV files")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(cfg.LogLevel, cfg.Env.LogFormat)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	// 3. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:             cfg.Env.BinanceAPIKey,
		SecretKey:          cfg.Env.BinanceAPISecret,
		UseTestnet:         cfg.Exchange.Testnet,
		Logger:             appLogger,
		MinRequestInterval: cfg.Exchange.MinRequestInterval,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	series, err := source.New(binanceClient, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize series source: %v", err)
	}

	ctx := context.Background()
	end := time.Now().UTC()
	for _, pair := range cfg.Pairs {
		symbol, err := series.ResolveSymbol(ctx, pair)
		if err != nil {
			appLogger.Error(ctx, err, "Error resolving pair", map[string]interface{}{"pair": pair})
			continue
		}
		for _, tf := range cfg.Timeframes {
			candles, err := series.FetchSeries(ctx, symbol, tf, cfg.Months, cfg.Exchange.PageLimit)
			if err != nil {
				appLogger.Error(ctx, err, "Error fetching candles", map[string]interface{}{"symbol": symbol, "timeframe": tf})
				continue
			}
			appLogger.Info(ctx, "Fetched candles", map[string]interface{}{"symbol": symbol, "timeframe": tf, "count": len(candles)})

			name := fmt.Sprintf("%s_%s_to_%s.csv", strings.ReplaceAll(symbol, "/", ""), tf, end.Format("20060102"))
			filename := filepath.Join(*outDir, name)
			if err := utils.WriteCandlesToCSV(candles, symbol, tf, filename); err != nil {
				appLogger.Error(ctx, err, "Error writing CSV", map[string]interface{}{"filename": filename})
				continue
			}
			appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": filename})
		}
	}
}
