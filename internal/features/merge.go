package features

import (
	"context"
	"sort"
	"time"

	"cryptoFeatureSet/internal/domain"
	"cryptoFeatureSet/internal/ports"
)

// ExternalMerger aligns daily external snapshots onto intraday candle frames.
type ExternalMerger struct {
	lagDays int
	logger  ports.Logger
}

// NewExternalMerger creates a merger. lagDays shifts every external date
// forward, so a value published for day d is joined to candles of d+lagDays.
func NewExternalMerger(lagDays int, logger ports.Logger) *ExternalMerger {
	return &ExternalMerger{lagDays: lagDays, logger: logger}
}

// Combine outer-joins the snapshots on date into one date-indexed frame sorted
// ascending. A column name already taken by an earlier snapshot gets a
// "_{source}" suffix. It returns nil when no snapshot carries any row.
func (m *ExternalMerger) Combine(ctx context.Context, snapshots []*domain.Snapshot) *domain.Frame {
	dateSet := make(map[time.Time]struct{})
	var usable []*domain.Snapshot
	for _, s := range snapshots {
		if s == nil || s.Frame == nil || s.Frame.Len() == 0 {
			continue
		}
		usable = append(usable, s)
		for _, t := range s.Frame.Times() {
			dateSet[domain.DayOf(t)] = struct{}{}
		}
	}
	if len(usable) == 0 {
		return nil
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	row := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		row[d] = i
	}

	combined := domain.NewIndexedFrame(dates)
	for _, s := range usable {
		times := s.Frame.Times()
		for _, name := range s.Frame.Names() {
			src, _ := s.Frame.Column(name)
			dst := domain.NullColumn(len(dates))
			for i, t := range times {
				dst[row[domain.DayOf(t)]] = src[i]
			}
			target := name
			if combined.Has(target) {
				target = name + "_" + s.Source
				m.logger.Warn(ctx, "External column name collision, renamed", map[string]interface{}{
					"source":  s.Source,
					"column":  name,
					"renamed": target,
				})
			}
			combined = combined.WithColumn(target, dst)
		}
	}
	return combined
}

// Merge left-joins the candle frame to the combined external frame on the UTC
// day of each candle and forward-fills the joined columns. Candle rows before
// the first external value keep null cells. A nil external frame returns frame
// unchanged.
func (m *ExternalMerger) Merge(frame, external *domain.Frame) *domain.Frame {
	if external == nil {
		return frame
	}

	row := make(map[time.Time]int, external.Len())
	for i, d := range external.Times() {
		row[domain.DayOf(d).AddDate(0, 0, m.lagDays)] = i
	}

	times := frame.Times()
	out := frame
	for _, name := range external.Names() {
		src, _ := external.Column(name)
		dst := domain.NullColumn(len(times))
		last := domain.Null()
		for i, t := range times {
			if j, ok := row[domain.DayOf(t)]; ok && !domain.IsNull(src[j]) {
				last = src[j]
			}
			dst[i] = last
		}
		target := name
		if frame.Has(target) {
			target = name + "_external"
		}
		out = out.WithColumn(target, dst)
	}
	return out
}
