package app

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoFeatureSet/config"
	"cryptoFeatureSet/internal/domain"
	"cryptoFeatureSet/internal/indicators"
	"cryptoFeatureSet/internal/metrics"
	"cryptoFeatureSet/internal/ports"
	"cryptoFeatureSet/internal/utils"
)

// Mock implementations
type mockLogger struct {
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

type mockSource struct {
	symbols    map[string]string
	series     map[string][]domain.Candle
	fetchErrs  map[string]error
	fetchCalls []string
}

func (m *mockSource) ResolveSymbol(ctx context.Context, raw string) (string, error) {
	if s, ok := m.symbols[raw]; ok {
		return s, nil
	}
	return "", ports.ErrUnsupportedSymbol
}

func (m *mockSource) FetchSeries(ctx context.Context, symbol, timeframe string, monthsBack, pageLimit int) ([]domain.Candle, error) {
	key := symbol + "|" + timeframe
	m.fetchCalls = append(m.fetchCalls, key)
	if err := m.fetchErrs[key]; err != nil {
		return nil, err
	}
	return m.series[key], nil
}

type mockSnapshotSource struct {
	name string
	snap *domain.Snapshot
	err  error
}

func (m *mockSnapshotSource) Name() string { return m.name }
func (m *mockSnapshotSource) FetchSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	return m.snap, m.err
}

type writeCall struct {
	table string
	ds    *domain.Dataset
	mode  domain.WriteMode
}

type mockRepository struct {
	writes   []writeCall
	records  []domain.BuildRecord
	writeErr error
}

func (m *mockRepository) WriteDataset(ctx context.Context, table string, ds *domain.Dataset, mode domain.WriteMode) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes = append(m.writes, writeCall{table: table, ds: ds, mode: mode})
	return nil
}

func (m *mockRepository) AppendBuildRecord(ctx context.Context, table string, rec domain.BuildRecord) error {
	m.records = append(m.records, rec)
	return nil
}

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func candles(n int, step time.Duration, phase float64) []domain.Candle {
	out := make([]domain.Candle, n)
	for i := range out {
		c := 100 + 5*math.Sin(float64(i)/3+phase) + float64(i)*0.1
		out[i] = domain.Candle{
			Time:   start.Add(time.Duration(i) * step),
			Open:   c - 0.2,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 10 + float64(i%4),
		}
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Pairs:            []string{"BTC/USDT", "ETHUSDT"},
		Timeframes:       []string{"1h", "4h"},
		Months:           1,
		MAPeriods:        []int{3},
		RSIPeriod:        3,
		VolatilityPeriod: 3,
		LaggedPeriods:    []int{1},
		Target: config.TargetConfig{
			Horizon:              2,
			SidewaysThresholdPct: 0.5,
			RegimeLowQuantile:    0.33,
			RegimeHighQuantile:   0.66,
		},
		Database: config.DatabaseConfig{
			Path:          "unused.sqlite",
			Table:         "features",
			MetadataTable: "metadata",
			Mode:          domain.WriteModeReplace,
		},
		Exchange: config.ExchangeConfig{PageLimit: 1000},
	}
}

func newSource() *mockSource {
	return &mockSource{
		symbols: map[string]string{"BTC/USDT": "BTC/USDT", "ETHUSDT": "ETH/USDT"},
		series: map[string][]domain.Candle{
			"BTC/USDT|1h": candles(48, time.Hour, 0),
			"BTC/USDT|4h": candles(30, 4*time.Hour, 1),
			"ETH/USDT|1h": candles(48, time.Hour, 2),
			"ETH/USDT|4h": candles(30, 4*time.Hour, 3),
		},
		fetchErrs: map[string]error{},
	}
}

func priceSnapshot() *domain.Snapshot {
	days := make([]time.Time, 10)
	values := make([]float64, 10)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
		values[i] = 40000 + float64(i)
	}
	return &domain.Snapshot{Source: "coingecko", Frame: domain.NewIndexedFrame(days).WithColumn("cg_price", values)}
}

func newService(t *testing.T, cfg *config.Config, src ports.SeriesSource, repo ports.DatasetRepository, log ports.Logger, externals []ports.SnapshotSource, opts ...Option) *BuildService {
	t.Helper()
	engine := indicators.NewEngine(IndicatorConfig(cfg), log)
	opts = append([]Option{
		WithIDGenerator(func() string { return "build-1" }),
		WithClock(func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }),
	}, opts...)
	svc, err := NewBuildService(cfg, log, src, engine, externals, repo, opts...)
	require.NoError(t, err)
	return svc
}

func TestNewBuildService_RequiresDependencies(t *testing.T) {
	_, err := NewBuildService(testConfig(), nil, newSource(), nil, nil, &mockRepository{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestBuildService_BuildPersistsDatasetAndRecord(t *testing.T) {
	cfg := testConfig()
	cfg.Paths.CSVExport = filepath.Join(t.TempDir(), "export", "dataset.csv")
	repo := &mockRepository{}
	log := &mockLogger{}
	externals := []ports.SnapshotSource{&mockSnapshotSource{name: "coingecko", snap: priceSnapshot()}}

	report, err := newService(t, cfg, newSource(), repo, log, externals).Build(context.Background())
	require.NoError(t, err)
	require.NoError(t, report.Err())

	require.Len(t, repo.writes, 1)
	write := repo.writes[0]
	assert.Equal(t, "features", write.table)
	assert.Equal(t, domain.WriteModeReplace, write.mode)

	var order []string
	for _, seg := range write.ds.Segments() {
		order = append(order, seg.Pair+" "+seg.Timeframe)
		assert.Equal(t, 0, seg.Frame.Len()-seg.Frame.DropIncomplete().Len(), "segment rows must be complete")
	}
	assert.Equal(t, []string{"BTC/USDT 1h", "BTC/USDT 4h", "ETHUSDT 1h", "ETHUSDT 4h"}, order)

	for _, name := range []string{"ma_3", "rsi_3", "volatility_3", "vwap", "close_lag_1", "ma_3_lag_1", "rsi_3_lag_1",
		"close_to_ma_3", "close_to_vwap", "cg_price", "direction", "future_return_pct", "vol_regime"} {
		assert.Contains(t, write.ds.FeatureColumns(), name)
	}

	require.Len(t, repo.records, 1)
	rec := repo.records[0]
	assert.Equal(t, "build-1", rec.ID)
	assert.Equal(t, cfg.Pairs, rec.Pairs)
	assert.Equal(t, cfg.Timeframes, rec.Timeframes)
	assert.Equal(t, write.ds.Len(), rec.RowCount)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), rec.CreatedAt)

	assert.True(t, report.Persisted)
	assert.Equal(t, write.ds.Len(), report.Rows)
	assert.Equal(t, 48+30+48+30, report.CandlesFetched)
	assert.Len(t, report.Completed, 4)

	_, err = os.Stat(cfg.Paths.CSVExport)
	assert.NoError(t, err)
}

func TestBuildService_LabelsAreDroppedNearSeriesEnd(t *testing.T) {
	cfg := testConfig()
	cfg.Pairs = []string{"BTC/USDT"}
	cfg.Timeframes = []string{"1h"}
	repo := &mockRepository{}

	_, err := newService(t, cfg, newSource(), repo, &mockLogger{}, nil).Build(context.Background())
	require.NoError(t, err)

	seg := repo.writes[0].ds.Segments()[0]
	times := seg.Frame.Times()
	// The last horizon candles have no future close.
	assert.Equal(t, start.Add(45*time.Hour), times[len(times)-1])
	// rsi_3_lag_1 is the longest warm-up: rsi needs 3 changes, the lag one more row.
	assert.Equal(t, start.Add(4*time.Hour), times[0])
}

func TestBuildService_EmptyFetchIsSkipped(t *testing.T) {
	src := newSource()
	src.series["ETH/USDT|4h"] = nil
	repo := &mockRepository{}
	log := &mockLogger{}

	report, err := newService(t, testConfig(), src, repo, log, nil).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Unit{{Pair: "ETHUSDT", Timeframe: "4h"}}, report.Skipped)
	assert.Len(t, repo.writes[0].ds.Segments(), 3)
	assert.Contains(t, log.warnMsgs, "Empty data for pair/timeframe, skipping")
	assert.NoError(t, report.Err())
}

func TestBuildService_NoDataPersistsNothing(t *testing.T) {
	src := newSource()
	src.series = map[string][]domain.Candle{}
	repo := &mockRepository{}

	report, err := newService(t, testConfig(), src, repo, &mockLogger{}, nil).Build(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrNoData)
	assert.Empty(t, repo.writes)
	assert.Empty(t, repo.records)
	assert.False(t, report.Persisted)
	assert.Len(t, report.Skipped, 4)
}

func TestBuildService_UnitFailureIsIsolated(t *testing.T) {
	src := newSource()
	src.fetchErrs["ETH/USDT|1h"] = ports.ErrConnectionFailed
	repo := &mockRepository{}
	recorder := metrics.NewRecorder()

	report, err := newService(t, testConfig(), src, repo, &mockLogger{}, nil, WithObserver(recorder)).Build(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, Unit{Pair: "ETHUSDT", Timeframe: "1h"}, report.Failures[0].Unit)
	assert.ErrorIs(t, report.Err(), ports.ErrConnectionFailed)
	assert.Contains(t, report.Err().Error(), "ETHUSDT 1h")

	// Work completed before and after the failing unit is kept.
	assert.Len(t, repo.writes[0].ds.Segments(), 3)
	assert.Len(t, repo.records, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.UnitFailures.WithLabelValues("ETHUSDT", "1h")))
	assert.Equal(t, 48.0, testutil.ToFloat64(recorder.CandlesFetched.WithLabelValues("BTC/USDT", "1h")))
}

func TestBuildService_UnresolvablePairFailsEachTimeframe(t *testing.T) {
	cfg := testConfig()
	cfg.Pairs = []string{"DOGE/EUR", "BTC/USDT"}
	src := newSource()
	repo := &mockRepository{}

	report, err := newService(t, cfg, src, repo, &mockLogger{}, nil).Build(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Failures, 2)
	for _, f := range report.Failures {
		assert.Equal(t, "DOGE/EUR", f.Pair)
		assert.ErrorIs(t, f.Err, ports.ErrUnsupportedSymbol)
	}
	assert.Equal(t, []string{"BTC/USDT|1h", "BTC/USDT|4h"}, src.fetchCalls)
}

func TestBuildService_FailFastAborts(t *testing.T) {
	cfg := testConfig()
	cfg.FailFast = true
	src := newSource()
	src.fetchErrs["BTC/USDT|4h"] = ports.ErrRateLimited
	repo := &mockRepository{}

	report, err := newService(t, cfg, src, repo, &mockLogger{}, nil).Build(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrRateLimited)
	assert.Empty(t, repo.writes)
	assert.Empty(t, repo.records)
	assert.Equal(t, []string{"BTC/USDT|1h", "BTC/USDT|4h"}, src.fetchCalls)
	assert.Len(t, report.Failures, 1)
}

func TestBuildService_ExternalFailureAborts(t *testing.T) {
	src := newSource()
	repo := &mockRepository{}
	externals := []ports.SnapshotSource{&mockSnapshotSource{name: "dune_7", err: ports.ErrAuthenticationFailed}}

	_, err := newService(t, testConfig(), src, repo, &mockLogger{}, externals).Build(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrAuthenticationFailed)
	assert.Empty(t, src.fetchCalls)
	assert.Empty(t, repo.writes)
}

func TestBuildService_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newService(t, testConfig(), newSource(), &mockRepository{}, &mockLogger{}, nil).Build(ctx)
	assert.ErrorIs(t, err, ports.ErrContextCanceled)
}

func TestBuildService_PersistErrorPropagates(t *testing.T) {
	repo := &mockRepository{writeErr: ports.ErrSchemaMismatch}

	report, err := newService(t, testConfig(), newSource(), repo, &mockLogger{}, nil).Build(context.Background())
	assert.ErrorIs(t, err, ports.ErrSchemaMismatch)
	assert.Empty(t, repo.records)
	assert.False(t, report.Persisted)
}

func TestBuildService_AssembleIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	var outputs [][]byte
	for i := 0; i < 2; i++ {
		externals := []ports.SnapshotSource{&mockSnapshotSource{name: "coingecko", snap: priceSnapshot()}}
		svc := newService(t, testConfig(), newSource(), &mockRepository{}, &mockLogger{}, externals)

		ds, _, err := svc.Assemble(context.Background())
		require.NoError(t, err)

		path := filepath.Join(dir, "run.csv")
		require.NoError(t, utils.WriteDatasetToCSV(ds, path))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		outputs = append(outputs, data)
	}
	assert.True(t, bytes.Equal(outputs[0], outputs[1]))
}

func TestIndicatorConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BBPeriods = []int{20}
	cfg.BBDevs = []float64{2}
	cfg.MACDParams = []int{12, 26, 9}
	cfg.ADXPeriod = 14
	cfg.PriceRangePeriod = 10

	ic := IndicatorConfig(cfg)
	assert.Equal(t, []int{3}, ic.MAPeriods)
	assert.Equal(t, []int{20}, ic.BBPeriods)
	assert.Equal(t, []float64{2}, ic.BBDevs)
	assert.Equal(t, 14, ic.ADXPeriod)
	assert.Equal(t, 10, ic.PriceRangePeriod)
	require.NotNil(t, ic.MACD)
	assert.Equal(t, indicators.MACDParams{Fast: 12, Slow: 26, Signal: 9}, *ic.MACD)

	cfg.MACDParams = nil
	assert.Nil(t, IndicatorConfig(cfg).MACD)
}
