// Package external implements ports.SnapshotSource for the daily on-chain and
// market data providers merged into the feature set.
package external

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"cryptoFeatureSet/internal/domain"
	"cryptoFeatureSet/internal/ports"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "cryptoFeatureSet/1.0"
)

func defaultHTTPClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultTimeout}
}

// getJSON performs a GET and returns the parsed body. Non-2xx statuses and
// transport failures are mapped onto the ports sentinel errors.
func getJSON(ctx context.Context, client *http.Client, op, url string, headers map[string]string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s failed: %w: %w", op, ports.ErrInvalidRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return gjson.Result{}, fmt.Errorf("%s failed: %w: %w", op, ports.ErrContextCanceled, err)
		case errors.Is(err, context.DeadlineExceeded):
			return gjson.Result{}, fmt.Errorf("%s failed: %w: %w", op, ports.ErrTimeout, err)
		default:
			return gjson.Result{}, fmt.Errorf("%s failed: %w: %w", op, ports.ErrConnectionFailed, err)
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s failed: %w: reading body: %w", op, ports.ErrConnectionFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var sentinel error
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			sentinel = ports.ErrRateLimited
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			sentinel = ports.ErrAuthenticationFailed
		case resp.StatusCode == http.StatusNotFound:
			sentinel = ports.ErrNotFound
		case resp.StatusCode >= 500:
			sentinel = ports.ErrExchangeUnavailable
		default:
			sentinel = ports.ErrUnexpectedResponse
		}
		return gjson.Result{}, fmt.Errorf("%s failed: %w: status %d: %s", op, sentinel, resp.StatusCode, truncate(string(body), 200))
	}

	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%s failed: %w: body is not valid JSON", op, ports.ErrUnexpectedResponse)
	}
	return gjson.ParseBytes(body), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// numeric reads a JSON number or numeric string.
func numeric(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Number:
		return r.Float(), true
	case gjson.String:
		v, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		return v, err == nil
	default:
		return 0, false
	}
}

// parseDay reads the calendar day from an RFC3339 timestamp, a
// "2006-01-02 15:04:05..." style timestamp or a bare date.
func parseDay(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return domain.DayOf(t), true
	}
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dailyTable accumulates metric values keyed by UTC day. A later value for
// the same day and column overwrites an earlier one.
type dailyTable struct {
	names []string
	cells map[time.Time]map[string]float64
}

func newDailyTable() *dailyTable {
	return &dailyTable{cells: make(map[time.Time]map[string]float64)}
}

func (t *dailyTable) set(day time.Time, name string, value float64) {
	row, ok := t.cells[day]
	if !ok {
		row = make(map[string]float64)
		t.cells[day] = row
	}
	if !t.has(name) {
		t.names = append(t.names, name)
	}
	row[name] = value
}

func (t *dailyTable) has(name string) bool {
	for _, n := range t.names {
		if n == name {
			return true
		}
	}
	return false
}

// snapshot converts the table into a date-sorted Snapshot.
func (t *dailyTable) snapshot(source string) *domain.Snapshot {
	days := make([]time.Time, 0, len(t.cells))
	for d := range t.cells {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	frame := domain.NewIndexedFrame(days)
	for _, name := range t.names {
		values := domain.NullColumn(len(days))
		for i, d := range days {
			if v, ok := t.cells[d][name]; ok {
				values[i] = v
			}
		}
		frame = frame.WithColumn(name, values)
	}
	return &domain.Snapshot{Source: source, Frame: frame}
}
