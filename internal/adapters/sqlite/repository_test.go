package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoFeatureSet/internal/domain"
	"cryptoFeatureSet/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a database in a nested, not yet existing directory.
func setupTestDB(t *testing.T) *Repository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "db", "nested", "features.sqlite")
	repo, err := NewRepository(Config{DBPath: dbPath, Logger: &mockLogger{}})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func segmentFrame(rows int, extra ...string) *domain.Frame {
	times := make([]time.Time, rows)
	for i := range times {
		times[i] = t0.Add(time.Duration(i) * time.Hour)
	}
	f := domain.NewIndexedFrame(times)
	for _, name := range append([]string{domain.ColClose, "ma_3", domain.ColDirection, domain.ColVolRegime}, extra...) {
		values := make([]float64, rows)
		for i := range values {
			switch name {
			case domain.ColDirection:
				values[i] = float64(i % 3)
			case domain.ColVolRegime:
				values[i] = 1
			default:
				values[i] = 100 + float64(i) + 0.25
			}
		}
		f = f.WithColumn(name, values)
	}
	return f
}

func sampleDataset() *domain.Dataset {
	ds := &domain.Dataset{}
	ds.Append("BTC/USDT", "1h", segmentFrame(3))
	ds.Append("BTC/USDT", "4h", segmentFrame(2))
	ds.Append("ETH/USDT", "1h", segmentFrame(4))
	return ds
}

func TestNewRepository_Validation(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = NewRepository(Config{Logger: &mockLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestRepository_WriteDatasetRoundTrip(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	ds := sampleDataset()

	require.NoError(t, repo.WriteDataset(ctx, "features", ds, domain.WriteModeReplace))

	table, err := repo.LoadTable(ctx, "features")
	require.NoError(t, err)
	assert.Equal(t, ds.Columns(), table.Columns)
	require.Len(t, table.Rows, ds.Len())

	first := table.Rows[0]
	assert.Equal(t, "2024-05-01T00:00:00Z", first[domain.ColTimestamp])
	assert.Equal(t, "BTC/USDT", first[domain.ColPair])
	assert.Equal(t, "1h", first[domain.ColTimeframe])
	assert.Equal(t, 100.25, first[domain.ColClose])
	assert.Equal(t, int64(0), first[domain.ColDirection])
	assert.Equal(t, int64(1), first[domain.ColVolRegime])

	// Pair-major, timeframe-minor order is preserved.
	assert.Equal(t, "4h", table.Rows[3][domain.ColTimeframe])
	assert.Equal(t, "ETH/USDT", table.Rows[5][domain.ColPair])
}

func TestRepository_ReplaceOverwrites(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.WriteDataset(ctx, "features", sampleDataset(), domain.WriteModeReplace))

	smaller := &domain.Dataset{}
	smaller.Append("SOL/USDT", "1h", segmentFrame(1, "rsi_14"))
	require.NoError(t, repo.WriteDataset(ctx, "features", smaller, domain.WriteModeReplace))

	table, err := repo.LoadTable(ctx, "features")
	require.NoError(t, err)
	assert.Len(t, table.Rows, 1)
	assert.Contains(t, table.Columns, "rsi_14")
}

func TestRepository_AppendMode(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	// First append creates the table.
	require.NoError(t, repo.WriteDataset(ctx, "features", sampleDataset(), domain.WriteModeAppend))
	require.NoError(t, repo.WriteDataset(ctx, "features", sampleDataset(), domain.WriteModeAppend))

	table, err := repo.LoadTable(ctx, "features")
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2*sampleDataset().Len())

	wider := &domain.Dataset{}
	wider.Append("BTC/USDT", "1h", segmentFrame(1, "adx_14"))
	err = repo.WriteDataset(ctx, "features", wider, domain.WriteModeAppend)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "adx_14")

	// The rejected write must not leave partial rows behind.
	table, err = repo.LoadTable(ctx, "features")
	require.NoError(t, err)
	assert.Len(t, table.Rows, 2*sampleDataset().Len())
}

func TestRepository_SegmentsWithDifferentColumns(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	ds := &domain.Dataset{}
	ds.Append("BTC/USDT", "1h", segmentFrame(1, "cg_price"))
	ds.Append("ETH/USDT", "1h", segmentFrame(1))
	require.NoError(t, repo.WriteDataset(ctx, "features", ds, domain.WriteModeReplace))

	table, err := repo.LoadTable(ctx, "features")
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 100.25, table.Rows[0]["cg_price"])
	assert.Nil(t, table.Rows[1]["cg_price"])
}

func TestRepository_WriteDatasetErrors(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	assert.ErrorIs(t, repo.WriteDataset(ctx, "features", &domain.Dataset{}, domain.WriteModeReplace), ports.ErrNoData)
	assert.ErrorIs(t, repo.WriteDataset(ctx, "", sampleDataset(), domain.WriteModeReplace), ports.ErrInvalidRequest)
	assert.ErrorIs(t, repo.WriteDataset(ctx, "features", sampleDataset(), "upsert"), ports.ErrInvalidRequest)
}

func TestRepository_BuildRecordsAppendOnly(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	first := domain.BuildRecord{
		ID:         "b1",
		CreatedAt:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Pairs:      []string{"BTC/USDT", "ETH/USDT"},
		Timeframes: []string{"1h"},
		RowCount:   10,
	}
	second := domain.BuildRecord{
		ID:         "b2",
		CreatedAt:  time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC),
		Pairs:      []string{"SOL/USDT"},
		Timeframes: []string{"1h", "4h"},
		RowCount:   5,
	}
	require.NoError(t, repo.AppendBuildRecord(ctx, "metadata", first))
	// A dataset replace in between must not touch the metadata relation.
	require.NoError(t, repo.WriteDataset(ctx, "features", sampleDataset(), domain.WriteModeReplace))
	require.NoError(t, repo.AppendBuildRecord(ctx, "metadata", second))

	records, err := repo.BuildRecords(ctx, "metadata")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first.ID, records[0].ID)
	assert.True(t, first.CreatedAt.Equal(records[0].CreatedAt))
	assert.Equal(t, first.Pairs, records[0].Pairs)
	assert.Equal(t, second.Timeframes, records[1].Timeframes)
	assert.Equal(t, 5, records[1].RowCount)

	table, err := repo.LoadTable(ctx, "metadata")
	require.NoError(t, err)
	assert.Equal(t, []string{"build_id", "created_at", "pairs", "timeframes", "row_count"}, table.Columns)
	assert.Equal(t, "2024-06-01T12:00:00Z", table.Rows[0]["created_at"])
	assert.Equal(t, `["BTC/USDT","ETH/USDT"]`, table.Rows[0]["pairs"])
}

func TestRepository_LoadTableMissing(t *testing.T) {
	repo := setupTestDB(t)
	_, err := repo.LoadTable(context.Background(), "nope")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}
