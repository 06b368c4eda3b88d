package external

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"cryptoFeatureSet/internal/domain"
	"cryptoFeatureSet/internal/ports"
)

const duneBaseURL = "https://api.dune.com"

// DuneConfig configures a Dune saved-query source.
type DuneConfig struct {
	QueryID    int
	APIKey     string
	DateColumn string
	BaseURL    string
	HTTPClient *http.Client
}

// Dune serves the latest results of one saved query. Each numeric result
// column becomes dune_{query}_{column}; the date column keys the rows.
type Dune struct {
	cfg        DuneConfig
	httpClient *http.Client
	logger     ports.Logger
}

// Compile-time check
var _ ports.SnapshotSource = (*Dune)(nil)

// NewDune creates a Dune source for one query.
func NewDune(cfg DuneConfig, logger ports.Logger) *Dune {
	if cfg.BaseURL == "" {
		cfg.BaseURL = duneBaseURL
	}
	if cfg.DateColumn == "" {
		cfg.DateColumn = "day"
	}
	return &Dune{cfg: cfg, httpClient: defaultHTTPClient(cfg.HTTPClient), logger: logger}
}

func (d *Dune) Name() string { return fmt.Sprintf("dune_%d", d.cfg.QueryID) }

func (d *Dune) FetchSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	const op = "Dune.FetchSnapshot"
	if d.cfg.APIKey == "" {
		return nil, fmt.Errorf("%s failed: %w: API key is required", op, ports.ErrAuthenticationFailed)
	}

	endpoint := fmt.Sprintf("%s/api/v1/query/%d/results", d.cfg.BaseURL, d.cfg.QueryID)
	body, err := getJSON(ctx, d.httpClient, op, endpoint, map[string]string{"X-Dune-API-Key": d.cfg.APIKey})
	if err != nil {
		return nil, err
	}

	rows := body.Get("result.rows")
	if !rows.IsArray() {
		return nil, fmt.Errorf("%s failed: %w: missing result.rows", op, ports.ErrUnexpectedResponse)
	}

	table := newDailyTable()
	skipped := 0
	prefix := d.Name() + "_"
	rows.ForEach(func(_, row gjson.Result) bool {
		day, ok := parseDay(row.Get(d.cfg.DateColumn).String())
		if !ok {
			skipped++
			return true
		}
		row.ForEach(func(key, value gjson.Result) bool {
			if key.Str == d.cfg.DateColumn {
				return true
			}
			if v, ok := numeric(value); ok {
				table.set(day, prefix+key.Str, v)
			}
			return true
		})
		return true
	})

	snap := table.snapshot(d.Name())
	fields := map[string]interface{}{
		"query_id": d.cfg.QueryID,
		"days":     snap.Frame.Len(),
	}
	if skipped > 0 {
		fields["skipped_rows"] = skipped
		d.logger.Warn(ctx, "Dune rows without a parsable date were skipped", fields)
	} else {
		d.logger.Info(ctx, "Fetched Dune snapshot", fields)
	}
	return snap, nil
}
