package domain

import "time"

// Segment is the labeled, filtered table of one (pair,timeframe) combination.
type Segment struct {
	Pair      string
	Timeframe string
	Frame     *Frame
}

// Dataset is an append-only, ordered collection of segments. Segments are kept
// as-is instead of being copied into one table; consumers iterate them in order.
type Dataset struct {
	segments []Segment
}

// Append adds a segment at the end of the dataset.
func (d *Dataset) Append(pair, timeframe string, frame *Frame) {
	d.segments = append(d.segments, Segment{Pair: pair, Timeframe: timeframe, Frame: frame})
}

// Segments returns the segments in insertion order.
func (d *Dataset) Segments() []Segment { return d.segments }

// Len returns the total row count across segments.
func (d *Dataset) Len() int {
	n := 0
	for _, s := range d.segments {
		n += s.Frame.Len()
	}
	return n
}

// Empty reports whether the dataset holds no rows.
func (d *Dataset) Empty() bool { return d.Len() == 0 }

// FeatureColumns returns the union of numeric column names, in first-seen order.
func (d *Dataset) FeatureColumns() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range d.segments {
		for _, name := range s.Frame.names {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// Columns returns the full column set of the persisted table.
func (d *Dataset) Columns() []string {
	return append([]string{ColTimestamp, ColPair, ColTimeframe}, d.FeatureColumns()...)
}

// BuildRecord is the audit entry appended once per successful build.
type BuildRecord struct {
	ID         string
	CreatedAt  time.Time
	Pairs      []string
	Timeframes []string
	RowCount   int
}

// Snapshot is one external daily source: a Frame indexed by UTC calendar day.
type Snapshot struct {
	Source string
	Frame  *Frame
}
