// Package results defines the archival record of a single iperf3 run and the
// policy for recovering a structured report from captured output.
package results

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/m-lab/iperfx/pkg/iperf"
	"github.com/m-lab/iperfx/pkg/iperf/spec"
)

// NameValue is a BigQuery-compatible type for name/value pairs.
type NameValue struct {
	Name  string
	Value string
}

// Provenance records where and by whom a run was produced. NodeInfo and
// SchedInfo are sorted name/value pairs so the archival document stays
// schema-compatible and byte-stable across runs on the same host.
type Provenance struct {
	// EnvironmentName is the name of the environment that produced the run.
	EnvironmentName string
	// Description is the environment's free-form description.
	Description string `json:",omitempty"`
	// Version is the environment's version label.
	Version string
	// CreatedAt is when the environment was constructed.
	CreatedAt time.Time
	// CreatedBy is the user the environment was constructed as.
	CreatedBy string
	// Tags are the environment's labels.
	Tags []string `json:",omitempty"`
	// NodeInfo describes the host (hostname, cpu model, memory, ...).
	NodeInfo []NameValue `json:",omitempty"`
	// SchedInfo describes the batch-scheduler allocation, when present.
	SchedInfo []NameValue `json:",omitempty"`
}

// RunResult is the complete record of one tool invocation. Every run
// produces exactly one RunResult, whether the tool succeeded, failed, timed
// out or could not be started at all.
type RunResult struct {
	// EnvironmentName is the environment the run belonged to.
	EnvironmentName string
	// RunID identifies the run. Generated when the environment had none.
	RunID string
	// StartTime is when the subprocess was started (or when starting it
	// failed). EndTime is when it exited or was killed.
	StartTime time.Time
	EndTime   time.Time

	// Mode records which side of the test ran.
	Mode spec.Mode

	// ClientConfig or ServerConfig is the configuration the argument vector
	// was compiled from. Exactly one is set, matching Mode.
	ClientConfig *iperf.ClientConfig `json:",omitempty"`
	ServerConfig *iperf.ServerConfig `json:",omitempty"`

	// Command is the full command line that was executed.
	Command []string

	// Stdout and Stderr are the complete captured streams. They are kept
	// out of the metadata document; the run directory holds them as files.
	Stdout string `json:"-" bigquery:"-"`
	Stderr string `json:"-" bigquery:"-"`

	// ExitCode is the tool's exit status. -1 records a timeout or a spawn
	// failure; Stderr then carries a descriptive message.
	ExitCode int

	// Structured is the parsed JSON report, when one could be recovered.
	// Kept out of the metadata document; results.json holds it.
	Structured map[string]any `json:"-" bigquery:"-"`

	// HasStructured records whether a structured report was recovered.
	HasStructured bool

	// OutputDir is the run directory. StdoutFile, StderrFile and
	// ResultsFile are the artifact paths inside it, empty when the
	// corresponding artifact was not written.
	OutputDir   string
	StdoutFile  string `json:",omitempty"`
	StderrFile  string `json:",omitempty"`
	ResultsFile string `json:",omitempty"`

	// Provenance snapshots the environment that produced the run.
	Provenance Provenance
}

// Succeeded reports whether the tool exited cleanly.
func (r *RunResult) Succeeded() bool {
	return r.ExitCode == 0
}

// Duration is the wall-clock length of the run.
func (r *RunResult) Duration() time.Duration {
	if r.EndTime.IsZero() || r.StartTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// Config returns the configuration used for the run.
func (r *RunResult) Config() iperf.Config {
	if r.ClientConfig != nil {
		return r.ClientConfig
	}
	if r.ServerConfig != nil {
		return r.ServerConfig
	}
	return nil
}

// ParseStdout recovers a structured report from captured stdout. The whole
// buffer is tried first; if that fails, each line is tried on its own and
// the first line that parses wins, so reports survive interleaved
// human-readable output. A failed parse is not an error: the second return
// value reports whether anything was recovered.
func ParseStdout(stdout string, jsonOutput bool) (map[string]any, bool) {
	if !jsonOutput || stdout == "" {
		return nil, false
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(stdout), &doc); err == nil {
		return doc, true
	}
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var lineDoc map[string]any
		if err := json.Unmarshal([]byte(line), &lineDoc); err == nil {
			return lineDoc, true
		}
	}
	return nil, false
}
