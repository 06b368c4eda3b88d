package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cryptoFeatureSet/config"
	"cryptoFeatureSet/internal/domain"
	"cryptoFeatureSet/internal/features"
	"cryptoFeatureSet/internal/indicators"
	"cryptoFeatureSet/internal/ports"
	"cryptoFeatureSet/internal/utils"
)

// Observer receives build progress, typically a metrics.Recorder.
type Observer interface {
	ObserveCandles(pair, timeframe string, n int)
	ObserveRows(pair, timeframe string, n int)
	ObserveFailure(pair, timeframe string)
	ObserveExternal(source string, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveCandles(string, string, int) {}
func (nopObserver) ObserveRows(string, string, int)    {}
func (nopObserver) ObserveFailure(string, string)      {}
func (nopObserver) ObserveExternal(string, error)      {}

// BuildService assembles the labeled feature dataset and persists it.
type BuildService struct {
	cfg       *config.Config
	logger    ports.Logger
	source    ports.SeriesSource
	engine    ports.IndicatorEngine
	externals []ports.SnapshotSource
	repo      ports.DatasetRepository

	derivatives *features.DerivativeBuilder
	merger      *features.ExternalMerger
	labeler     *features.Labeler

	observer Observer
	now      func() time.Time
	newID    func() string
}

// Option customizes a BuildService.
type Option func(*BuildService)

// WithObserver reports build progress to o.
func WithObserver(o Observer) Option {
	return func(s *BuildService) { s.observer = o }
}

// WithClock replaces time.Now for build timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *BuildService) { s.now = now }
}

// WithIDGenerator replaces the random build ID generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *BuildService) { s.newID = newID }
}

// NewBuildService creates a new application service instance.
func NewBuildService(
	cfg *config.Config,
	logger ports.Logger,
	source ports.SeriesSource,
	engine ports.IndicatorEngine,
	externals []ports.SnapshotSource,
	repo ports.DatasetRepository,
	opts ...Option,
) (*BuildService, error) {
	if cfg == nil || logger == nil || source == nil || engine == nil || repo == nil {
		return nil, fmt.Errorf("missing required dependencies for BuildService: %w", ports.ErrConfigurationError)
	}

	volCol := ""
	if cfg.VolatilityPeriod > 0 {
		volCol = domain.VolatilityCol(cfg.VolatilityPeriod)
	}
	s := &BuildService{
		cfg:       cfg,
		logger:    logger,
		source:    source,
		engine:    engine,
		externals: externals,
		repo:      repo,
		derivatives: features.NewDerivativeBuilder(features.DerivativeConfig{
			LaggedPeriods: cfg.LaggedPeriods,
			MAPeriods:     cfg.MAPeriods,
			BBPeriods:     cfg.BBPeriods,
			RSIPeriod:     cfg.RSIPeriod,
		}),
		merger: features.NewExternalMerger(cfg.External.LagDays, logger),
		labeler: features.NewLabeler(features.LabelConfig{
			Horizon:              cfg.Target.Horizon,
			SidewaysThresholdPct: cfg.Target.SidewaysThresholdPct,
			VolatilityColumn:     volCol,
			LowQuantile:          cfg.Target.RegimeLowQuantile,
			HighQuantile:         cfg.Target.RegimeHighQuantile,
		}),
		observer: nopObserver{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IndicatorConfig maps the build configuration onto the default indicator engine.
func IndicatorConfig(cfg *config.Config) indicators.Config {
	ic := indicators.Config{
		MAPeriods:        cfg.MAPeriods,
		BBPeriods:        cfg.BBPeriods,
		BBDevs:           cfg.BBDevs,
		RSIPeriod:        cfg.RSIPeriod,
		ADXPeriod:        cfg.ADXPeriod,
		VolatilityPeriod: cfg.VolatilityPeriod,
		PriceRangePeriod: cfg.PriceRangePeriod,
	}
	if fast, slow, signal, ok := cfg.MACD(); ok {
		ic.MACD = &indicators.MACDParams{Fast: fast, Slow: slow, Signal: signal}
	}
	return ic
}

// Build assembles the dataset, writes it and appends the build record. When no
// unit produced rows it returns ports.ErrNoData and persists nothing.
func (s *BuildService) Build(ctx context.Context) (*BuildReport, error) {
	ds, report, err := s.Assemble(ctx)
	defer func() { report.FinishedAt = s.now() }()
	if err != nil {
		return report, err
	}

	if err := s.repo.WriteDataset(ctx, s.cfg.Database.Table, ds, s.cfg.Database.Mode); err != nil {
		s.logger.Error(ctx, err, "Failed to persist dataset", map[string]interface{}{"table": s.cfg.Database.Table})
		return report, fmt.Errorf("failed to persist dataset: %w", err)
	}
	rec := domain.BuildRecord{
		ID:         report.BuildID,
		CreatedAt:  s.now().UTC(),
		Pairs:      s.cfg.Pairs,
		Timeframes: s.cfg.Timeframes,
		RowCount:   ds.Len(),
	}
	if err := s.repo.AppendBuildRecord(ctx, s.cfg.Database.MetadataTable, rec); err != nil {
		s.logger.Error(ctx, err, "Failed to append build record", map[string]interface{}{"table": s.cfg.Database.MetadataTable})
		return report, fmt.Errorf("failed to append build record: %w", err)
	}
	report.Persisted = true

	if path := s.cfg.Paths.CSVExport; path != "" {
		if err := utils.WriteDatasetToCSV(ds, path); err != nil {
			s.logger.Error(ctx, err, "Failed to export dataset CSV", map[string]interface{}{"path": path})
			return report, fmt.Errorf("failed to export dataset CSV: %w", err)
		}
		s.logger.Info(ctx, "Dataset exported", map[string]interface{}{"path": path})
	}

	s.logger.Info(ctx, "Saved dataset", map[string]interface{}{
		"build_id": report.BuildID,
		"rows":     ds.Len(),
		"db":       s.cfg.Database.Path,
		"table":    s.cfg.Database.Table,
		"failures": len(report.Failures),
	})
	return report, nil
}

// Assemble runs every pair/timeframe unit and returns the concatenated
// dataset in pair-major, timeframe-minor order. A failing unit is recorded in
// the report and skipped unless FailFast is set.
func (s *BuildService) Assemble(ctx context.Context) (*domain.Dataset, *BuildReport, error) {
	report := &BuildReport{BuildID: s.newID(), StartedAt: s.now()}
	defer func() { report.FinishedAt = s.now() }()

	s.logger.Info(ctx, "Starting dataset build", map[string]interface{}{
		"build_id":   report.BuildID,
		"pairs":      len(s.cfg.Pairs),
		"timeframes": len(s.cfg.Timeframes),
		"months":     s.cfg.Months,
	})

	external, err := s.fetchExternal(ctx)
	if err != nil {
		return nil, report, err
	}

	ds := &domain.Dataset{}
	for _, pair := range s.cfg.Pairs {
		symbol, err := s.source.ResolveSymbol(ctx, pair)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, report, fmt.Errorf("build canceled: %w: %w", ports.ErrContextCanceled, ctxErr)
			}
			s.logger.Error(ctx, err, "Failed to resolve pair", map[string]interface{}{"pair": pair})
			for _, tf := range s.cfg.Timeframes {
				report.fail(Unit{Pair: pair, Timeframe: tf}, err)
				s.observer.ObserveFailure(pair, tf)
			}
			if s.cfg.FailFast {
				return nil, report, fmt.Errorf("failed to resolve pair %s: %w", pair, err)
			}
			continue
		}

		for _, tf := range s.cfg.Timeframes {
			unit := Unit{Pair: pair, Timeframe: tf}
			frame, err := s.buildUnit(ctx, unit, symbol, external, report)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, report, fmt.Errorf("build canceled: %w: %w", ports.ErrContextCanceled, ctxErr)
				}
				s.logger.Error(ctx, err, "Unit failed", map[string]interface{}{"pair": pair, "timeframe": tf})
				report.fail(unit, err)
				s.observer.ObserveFailure(pair, tf)
				if s.cfg.FailFast {
					return nil, report, fmt.Errorf("failed to build %s: %w", unit, err)
				}
				continue
			}
			if frame == nil || frame.Len() == 0 {
				report.Skipped = append(report.Skipped, unit)
				continue
			}
			ds.Append(pair, tf, frame)
			report.Completed = append(report.Completed, unit)
			report.Rows += frame.Len()
			s.observer.ObserveRows(pair, tf, frame.Len())
		}
	}

	if ds.Empty() {
		err := fmt.Errorf("no data fetched: %w", ports.ErrNoData)
		if failed := report.Err(); failed != nil {
			err = fmt.Errorf("no data fetched: %w: %w", ports.ErrNoData, failed)
		}
		s.logger.Error(ctx, err, "Dataset build produced no rows")
		return nil, report, err
	}
	return ds, report, nil
}

// buildUnit runs fetch through label for one unit. It returns a nil frame
// when the exchange has no candles for the unit.
func (s *BuildService) buildUnit(ctx context.Context, unit Unit, symbol string, external *domain.Frame, report *BuildReport) (*domain.Frame, error) {
	fields := map[string]interface{}{"pair": unit.Pair, "symbol": symbol, "timeframe": unit.Timeframe}
	s.logger.Info(ctx, "Fetching series", fields)

	candles, err := s.source.FetchSeries(ctx, symbol, unit.Timeframe, s.cfg.Months, s.cfg.Exchange.PageLimit)
	if err != nil {
		return nil, err
	}
	report.CandlesFetched += len(candles)
	s.observer.ObserveCandles(unit.Pair, unit.Timeframe, len(candles))
	if len(candles) == 0 {
		s.logger.Warn(ctx, "Empty data for pair/timeframe, skipping", fields)
		return nil, nil
	}

	frame, err := s.engine.Augment(ctx, domain.NewFrame(candles))
	if err != nil {
		return nil, fmt.Errorf("indicator augmentation failed: %w", err)
	}
	frame = s.derivatives.Build(frame)
	frame = s.merger.Merge(frame, external)
	frame = s.labeler.Label(frame)
	complete := frame.DropIncomplete()

	s.logger.Info(ctx, "Series labeled", map[string]interface{}{
		"pair":      unit.Pair,
		"timeframe": unit.Timeframe,
		"candles":   len(candles),
		"rows":      complete.Len(),
		"columns":   len(complete.Names()),
	})
	if complete.Len() == 0 {
		s.logger.Warn(ctx, "No complete rows after null filter, skipping", fields)
	}
	return complete, nil
}

// fetchExternal retrieves every enabled snapshot source once and combines
// them. Any source failure aborts the build, since it would change the
// column set of every unit.
func (s *BuildService) fetchExternal(ctx context.Context) (*domain.Frame, error) {
	if len(s.externals) == 0 {
		return nil, nil
	}
	snapshots := make([]*domain.Snapshot, 0, len(s.externals))
	var errs []error
	for _, src := range s.externals {
		snap, err := src.FetchSnapshot(ctx)
		s.observer.ObserveExternal(src.Name(), err)
		if err != nil {
			s.logger.Error(ctx, err, "External snapshot fetch failed", map[string]interface{}{"source": src.Name()})
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		if snap == nil || snap.Frame == nil || snap.Frame.Len() == 0 {
			s.logger.Warn(ctx, "External source returned no rows", map[string]interface{}{"source": src.Name()})
			continue
		}
		snapshots = append(snapshots, snap)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("external snapshot fetch failed: %w", errors.Join(errs...))
	}

	combined := s.merger.Combine(ctx, snapshots)
	if combined != nil {
		s.logger.Info(ctx, "External snapshots combined", map[string]interface{}{
			"sources": len(snapshots),
			"days":    combined.Len(),
			"columns": len(combined.Names()),
		})
	}
	return combined, nil
}
