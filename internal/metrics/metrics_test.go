package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/m-lab/iperfx/internal/metrics"
)

func TestCollectorNames(t *testing.T) {
	metrics.RecordStart("client")
	metrics.RecordCompletion("client", metrics.StatusOK, time.Second)
	metrics.RecordParseFailure()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"iperfx_runs_started_total",
		"iperfx_runs_completed_total",
		"iperfx_run_duration_seconds",
		"iperfx_parse_failures_total",
	} {
		if !names[want] {
			t.Errorf("collector %s not registered", want)
		}
	}
}
