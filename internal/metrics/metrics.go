// Package metrics records dataset build metrics for Prometheus. A batch build
// has no scrape endpoint, so the registry is exported to a node-exporter
// textfile when the build finishes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "feature_set"

// Recorder holds the build metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	CandlesFetched  *prometheus.CounterVec
	RowsEmitted     *prometheus.CounterVec
	UnitFailures    *prometheus.CounterVec
	ExternalFetches *prometheus.CounterVec
	BuildDuration   prometheus.Gauge
	LastSuccess     prometheus.Gauge
}

// NewRecorder creates a Recorder with all metrics registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		CandlesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "candles_fetched_total",
			Help:      "Candles retrieved from the exchange",
		}, []string{"pair", "timeframe"}),
		RowsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "rows_emitted_total",
			Help:      "Labeled rows added to the dataset after the null filter",
		}, []string{"pair", "timeframe"}),
		UnitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "unit_failures_total",
			Help:      "Pair/timeframe units that failed",
		}, []string{"pair", "timeframe"}),
		ExternalFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "fetches_total",
			Help:      "External snapshot fetches by source and status",
		}, []string{"source", "status"}), // status: success|error
		BuildDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "duration_seconds",
			Help:      "Wall time of the last build",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last build that persisted a dataset",
		}),
	}
	r.registry.MustRegister(
		r.CandlesFetched,
		r.RowsEmitted,
		r.UnitFailures,
		r.ExternalFetches,
		r.BuildDuration,
		r.LastSuccess,
	)
	return r
}

// Registry exposes the underlying registry, e.g. for tests or an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) ObserveCandles(pair, timeframe string, n int) {
	r.CandlesFetched.WithLabelValues(pair, timeframe).Add(float64(n))
}

func (r *Recorder) ObserveRows(pair, timeframe string, n int) {
	r.RowsEmitted.WithLabelValues(pair, timeframe).Add(float64(n))
}

func (r *Recorder) ObserveFailure(pair, timeframe string) {
	r.UnitFailures.WithLabelValues(pair, timeframe).Inc()
}

func (r *Recorder) ObserveExternal(source string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.ExternalFetches.WithLabelValues(source, status).Inc()
}

// ObserveBuild records the build duration, and the completion time on success.
func (r *Recorder) ObserveBuild(started time.Time, finished time.Time, success bool) {
	r.BuildDuration.Set(finished.Sub(started).Seconds())
	if success {
		r.LastSuccess.Set(float64(finished.Unix()))
	}
}

// WriteTextfile writes the registry in the text exposition format, atomically
// replacing path.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
