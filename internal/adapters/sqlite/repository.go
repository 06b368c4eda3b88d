package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"cryptoFeatureSet/internal/domain"
	"cryptoFeatureSet/internal/ports"
)

// timestampLayout is the text form of persisted candle timestamps.
const timestampLayout = time.RFC3339

// Repository implements ports.DatasetRepository using SQLite.
type Repository struct {
	db     *sqlx.DB
	logger ports.Logger
}

// Compile-time check
var _ ports.DatasetRepository = (*Repository)(nil)

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository opens (creating if needed) the database file and its parent directory.
func NewRepository(cfg Config) (*Repository, error) {
	const op = "sqlite.NewRepository"
	if cfg.Logger == nil {
		return nil, fmt.Errorf("%s failed: %w: logger is required", op, ports.ErrConfigurationError)
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("%s failed: %w: database path is required", op, ports.ErrConfigurationError)
	}
	ctx := context.Background()

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		err = fmt.Errorf("%s failed: %w: creating data directory %q: %w", op, ports.ErrDBConnection, dir, err)
		cfg.Logger.Error(ctx, err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sqlx.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("%s failed: %w: opening %q: %w", op, ports.ErrDBConnection, cfg.DBPath, err)
		cfg.Logger.Error(ctx, err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		err = fmt.Errorf("%s failed: %w: pinging %q: %w", op, ports.ErrDBConnection, cfg.DBPath, err)
		cfg.Logger.Error(ctx, err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite serializes writers; one connection avoids SQLITE_BUSY inside transactions.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	cfg.Logger.Info(ctx, "SQLite database connection established", map[string]interface{}{"path": cfg.DBPath})
	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// WriteDataset stores every row of ds in table inside one transaction.
// WriteModeReplace drops and recreates the table. WriteModeAppend creates it
// when absent and otherwise requires every dataset column to already exist.
func (r *Repository) WriteDataset(ctx context.Context, table string, ds *domain.Dataset, mode domain.WriteMode) error {
	const op = "Repository.WriteDataset"
	if table == "" {
		return fmt.Errorf("%s failed: %w: table name is empty", op, ports.ErrInvalidRequest)
	}
	if ds == nil || ds.Empty() {
		return fmt.Errorf("%s failed: %w", op, ports.ErrNoData)
	}
	columns := ds.Columns()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrDBConnection, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	switch mode {
	case domain.WriteModeReplace:
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
			return fmt.Errorf("%s failed: %w: dropping %s: %w", op, ports.ErrQueryFailed, table, err)
		}
		if err := createTable(ctx, tx, table, columns); err != nil {
			return fmt.Errorf("%s failed: %w", op, err)
		}
	case domain.WriteModeAppend:
		existing, err := tableColumns(ctx, tx, table)
		if err != nil {
			return fmt.Errorf("%s failed: %w", op, err)
		}
		if len(existing) == 0 {
			if err := createTable(ctx, tx, table, columns); err != nil {
				return fmt.Errorf("%s failed: %w", op, err)
			}
		} else if missing := missingColumns(columns, existing); len(missing) > 0 {
			return fmt.Errorf("%s failed: %w: table %s has no column(s) %s",
				op, ports.ErrSchemaMismatch, table, strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("%s failed: %w: unknown write mode %q", op, ports.ErrInvalidRequest, mode)
	}

	rows, err := insertDataset(ctx, tx, table, columns, ds)
	if err != nil {
		return fmt.Errorf("%s failed: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s failed: %w: commit: %w", op, ports.ErrQueryFailed, err)
	}

	r.logger.Info(ctx, "Dataset written", map[string]interface{}{
		"table":   table,
		"mode":    string(mode),
		"rows":    rows,
		"columns": len(columns),
	})
	return nil
}

// AppendBuildRecord appends rec to the metadata table, creating it if needed.
func (r *Repository) AppendBuildRecord(ctx context.Context, table string, rec domain.BuildRecord) error {
	const op = "Repository.AppendBuildRecord"
	if table == "" {
		return fmt.Errorf("%s failed: %w: table name is empty", op, ports.ErrInvalidRequest)
	}

	pairs, err := json.Marshal(nonNil(rec.Pairs))
	if err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrInvalidRequest, err)
	}
	timeframes, err := json.Marshal(nonNil(rec.Timeframes))
	if err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrInvalidRequest, err)
	}

	create := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		build_id TEXT,
		created_at TEXT NOT NULL,
		pairs TEXT NOT NULL,
		timeframes TEXT NOT NULL,
		row_count INTEGER
	)`, quoteIdent(table))
	if _, err := r.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("%s failed: %w: creating %s: %w", op, ports.ErrQueryFailed, table, err)
	}

	insert := fmt.Sprintf(
		"INSERT INTO %s (build_id, created_at, pairs, timeframes, row_count) VALUES (:build_id, :created_at, :pairs, :timeframes, :row_count)",
		quoteIdent(table))
	row := buildRecordRow{
		BuildID:    sql.NullString{String: rec.ID, Valid: rec.ID != ""},
		CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		Pairs:      string(pairs),
		Timeframes: string(timeframes),
		RowCount:   sql.NullInt64{Int64: int64(rec.RowCount), Valid: true},
	}
	if _, err := r.db.NamedExecContext(ctx, insert, row); err != nil {
		return fmt.Errorf("%s failed: %w: %w", op, ports.ErrQueryFailed, err)
	}

	r.logger.Info(ctx, "Build record appended", map[string]interface{}{
		"table":    table,
		"build_id": rec.ID,
		"rows":     rec.RowCount,
	})
	return nil
}

// BuildRecords returns the metadata rows in insertion order.
func (r *Repository) BuildRecords(ctx context.Context, table string) ([]domain.BuildRecord, error) {
	const op = "Repository.BuildRecords"
	var rows []buildRecordRow
	query := fmt.Sprintf("SELECT build_id, created_at, pairs, timeframes, row_count FROM %s ORDER BY rowid", quoteIdent(table))
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrQueryFailed, err)
	}

	records := make([]domain.BuildRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrUnexpectedResponse, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Table is a relation reloaded from the store.
type Table struct {
	Columns []string
	Rows    []map[string]interface{}
}

// LoadTable reads a whole relation. Values keep their SQLite storage types:
// TEXT as string, INTEGER as int64, REAL as float64, NULL as nil.
func (r *Repository) LoadTable(ctx context.Context, table string) (*Table, error) {
	const op = "Repository.LoadTable"
	rows, err := r.db.QueryxContext(ctx, "SELECT * FROM "+quoteIdent(table)+" ORDER BY rowid")
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, fmt.Errorf("%s failed: %w: table %s: %w", op, ports.ErrNotFound, table, err)
		}
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrQueryFailed, err)
	}
	out := &Table{Columns: cols}
	for rows.Next() {
		row := make(map[string]interface{}, len(cols))
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("%s failed: %w: scanning row: %w", op, ports.ErrQueryFailed, err)
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrQueryFailed, err)
	}
	return out, nil
}

type buildRecordRow struct {
	BuildID    sql.NullString `db:"build_id"`
	CreatedAt  string         `db:"created_at"`
	Pairs      string         `db:"pairs"`
	Timeframes string         `db:"timeframes"`
	RowCount   sql.NullInt64  `db:"row_count"`
}

func (row buildRecordRow) toDomain() (domain.BuildRecord, error) {
	rec := domain.BuildRecord{ID: row.BuildID.String, RowCount: int(row.RowCount.Int64)}
	created, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return rec, fmt.Errorf("created_at %q: %w", row.CreatedAt, err)
	}
	rec.CreatedAt = created
	if err := json.Unmarshal([]byte(row.Pairs), &rec.Pairs); err != nil {
		return rec, fmt.Errorf("pairs %q: %w", row.Pairs, err)
	}
	if err := json.Unmarshal([]byte(row.Timeframes), &rec.Timeframes); err != nil {
		return rec, fmt.Errorf("timeframes %q: %w", row.Timeframes, err)
	}
	return rec, nil
}

type tableColumn struct {
	CID     int            `db:"cid"`
	Name    string         `db:"name"`
	Type    string         `db:"type"`
	NotNull int            `db:"notnull"`
	Default sql.NullString `db:"dflt_value"`
	PK      int            `db:"pk"`
}

// tableColumns returns the column names of table, or none if it does not exist.
func tableColumns(ctx context.Context, tx *sqlx.Tx, table string) ([]string, error) {
	var info []tableColumn
	if err := tx.SelectContext(ctx, &info, "PRAGMA table_info("+quoteIdent(table)+")"); err != nil {
		return nil, fmt.Errorf("%w: reading schema of %s: %w", ports.ErrQueryFailed, table, err)
	}
	names := make([]string, len(info))
	for i, c := range info {
		names[i] = c.Name
	}
	return names, nil
}

func createTable(ctx context.Context, tx *sqlx.Tx, table string, columns []string) error {
	defs := make([]string, len(columns))
	for i, name := range columns {
		defs[i] = quoteIdent(name) + " " + columnType(name)
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ports.ErrQueryFailed, table, err)
	}
	return nil
}

func columnType(name string) string {
	switch {
	case name == domain.ColTimestamp, name == domain.ColPair, name == domain.ColTimeframe:
		return "TEXT"
	case domain.IsCategorical(name):
		return "INTEGER"
	default:
		return "REAL"
	}
}

func insertDataset(ctx context.Context, tx *sqlx.Tx, table string, columns []string, ds *domain.Dataset) (int, error) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	stmt, err := tx.PreparexContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), placeholders))
	if err != nil {
		return 0, fmt.Errorf("%w: preparing insert: %w", ports.ErrQueryFailed, err)
	}
	defer stmt.Close()

	features := columns[3:]
	args := make([]interface{}, len(columns))
	written := 0
	for _, seg := range ds.Segments() {
		values := make([][]float64, len(features))
		for j, name := range features {
			values[j], _ = seg.Frame.Column(name)
		}
		for i, ts := range seg.Frame.Times() {
			args[0] = ts.UTC().Format(timestampLayout)
			args[1] = seg.Pair
			args[2] = seg.Timeframe
			for j, name := range features {
				args[3+j] = cell(name, values[j], i)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return written, fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
				}
				return written, fmt.Errorf("%w: inserting %s %s row %d: %w", ports.ErrQueryFailed, seg.Pair, seg.Timeframe, i, err)
			}
			written++
		}
	}
	return written, nil
}

// cell converts one frame value to its storage form. Absent columns and null
// cells are stored as NULL.
func cell(name string, column []float64, row int) interface{} {
	if column == nil || domain.IsNull(column[row]) {
		return nil
	}
	if domain.IsCategorical(name) {
		return int64(column[row])
	}
	return column[row]
}

func missingColumns(want, have []string) []string {
	present := make(map[string]struct{}, len(have))
	for _, h := range have {
		present[h] = struct{}{}
	}
	var missing []string
	for _, w := range want {
		if _, ok := present[w]; !ok {
			missing = append(missing, w)
		}
	}
	return missing
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
