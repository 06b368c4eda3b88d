package app

import (
	"errors"
	"fmt"
	"time"
)

// Unit identifies one pair/timeframe combination.
type Unit struct {
	Pair      string
	Timeframe string
}

func (u Unit) String() string { return u.Pair + " " + u.Timeframe }

// UnitFailure records why a unit produced no rows.
type UnitFailure struct {
	Unit
	Err error
}

// BuildReport summarizes one build. It is returned even when the build fails.
type BuildReport struct {
	BuildID    string
	StartedAt  time.Time
	FinishedAt time.Time

	Completed []Unit // units that contributed rows
	Skipped   []Unit // units with no candles or no complete rows
	Failures  []UnitFailure

	CandlesFetched int
	Rows           int
	Persisted      bool
}

// Duration is the wall time of the build.
func (r *BuildReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Err joins the unit failures, or returns nil when every unit succeeded.
func (r *BuildReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = fmt.Errorf("%s: %w", f.Unit, f.Err)
	}
	return errors.Join(errs...)
}

func (r *BuildReport) fail(u Unit, err error) {
	r.Failures = append(r.Failures, UnitFailure{Unit: u, Err: err})
}
