// Package metrics defines the Prometheus collectors updated by the runner.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "iperfx"

// Run outcome label values.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusTimeout = "timeout"
	StatusSpawn   = "spawn_error"
)

var (
	runsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_started_total",
		Help:      "Count of subprocess runs started",
	}, []string{
		"mode",
	})

	runsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_completed_total",
		Help:      "Count of subprocess runs completed",
	}, []string{
		"mode",
		"status",
	})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of completed runs",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{
		"mode",
	})

	parseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "parse_failures_total",
		Help:      "Count of runs whose output contained no parseable JSON report",
	})
)

// RecordStart counts a started run.
func RecordStart(mode string) {
	runsStarted.WithLabelValues(mode).Inc()
}

// RecordCompletion counts a completed run and observes its duration.
func RecordCompletion(mode, status string, d time.Duration) {
	runsCompleted.WithLabelValues(mode, status).Inc()
	runDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordParseFailure counts a run whose report could not be recovered.
func RecordParseFailure() {
	parseFailures.Inc()
}
