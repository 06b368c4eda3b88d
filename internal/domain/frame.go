package domain

import (
	"fmt"
	"math"
	"time"
)

// Frame is a column-oriented time series. Missing values are NaN.
//
// A Frame is never mutated after construction: every With* method returns a
// new Frame that shares the untouched column slices with its parent. Column
// slices handed to WithColumn become owned by the Frame and must not be
// written to by the caller afterwards.
type Frame struct {
	times   []time.Time
	names   []string
	columns map[string][]float64
}

// Null is the value of an unresolved cell.
func Null() float64 { return math.NaN() }

// IsNull reports whether v is an unresolved cell.
func IsNull(v float64) bool { return math.IsNaN(v) }

// NullColumn returns n unresolved cells.
func NullColumn(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// NewIndexedFrame creates a Frame with an index and no columns.
func NewIndexedFrame(times []time.Time) *Frame {
	idx := make([]time.Time, len(times))
	copy(idx, times)
	return &Frame{times: idx, columns: make(map[string][]float64)}
}

// NewFrame builds a Frame holding the OHLCV columns of candles, indexed by candle time.
func NewFrame(candles []Candle) *Frame {
	n := len(candles)
	times := make([]time.Time, n)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	cls := make([]float64, n)
	vol := make([]float64, n)
	for i, c := range candles {
		times[i] = c.Time.UTC()
		open[i] = c.Open
		high[i] = c.High
		low[i] = c.Low
		cls[i] = c.Close
		vol[i] = c.Volume
	}
	return &Frame{
		times: times,
		names: []string{ColOpen, ColHigh, ColLow, ColClose, ColVolume},
		columns: map[string][]float64{
			ColOpen: open, ColHigh: high, ColLow: low, ColClose: cls, ColVolume: vol,
		},
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.times) }

// Times returns the row index. The slice must be treated as read-only.
func (f *Frame) Times() []time.Time { return f.times }

// Names returns the column names in insertion order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.columns[name]
	return ok
}

// Column returns the values of a column. The slice must be treated as read-only.
func (f *Frame) Column(name string) ([]float64, bool) {
	col, ok := f.columns[name]
	return col, ok
}

// WithColumn returns a Frame with the column added, or replaced in place if it exists.
// It panics if len(values) differs from the row count.
func (f *Frame) WithColumn(name string, values []float64) *Frame {
	if len(values) != len(f.times) {
		panic(fmt.Sprintf("domain: column %q has %d values, frame has %d rows", name, len(values), len(f.times)))
	}
	next := f.shallowCopy()
	if _, exists := next.columns[name]; !exists {
		next.names = append(next.names, name)
	}
	next.columns[name] = values
	return next
}

// DropIncomplete returns a Frame holding only the rows where no column is null.
func (f *Frame) DropIncomplete() *Frame {
	keep := make([]int, 0, len(f.times))
	for i := range f.times {
		complete := true
		for _, name := range f.names {
			if IsNull(f.columns[name][i]) {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}
	return f.take(keep)
}

func (f *Frame) take(rows []int) *Frame {
	out := &Frame{
		times:   make([]time.Time, len(rows)),
		names:   f.Names(),
		columns: make(map[string][]float64, len(f.columns)),
	}
	for j, i := range rows {
		out.times[j] = f.times[i]
	}
	for _, name := range f.names {
		src := f.columns[name]
		dst := make([]float64, len(rows))
		for j, i := range rows {
			dst[j] = src[i]
		}
		out.columns[name] = dst
	}
	return out
}

func (f *Frame) shallowCopy() *Frame {
	cols := make(map[string][]float64, len(f.columns)+1)
	for k, v := range f.columns {
		cols[k] = v
	}
	return &Frame{times: f.times, names: f.Names(), columns: cols}
}
