// Package persistence writes the per-run artifact files. Every run owns one
// directory, created before the subprocess starts, and every artifact in it
// is written exactly once.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/m-lab/iperfx/pkg/results"
)

// Artifact file names inside a run directory.
const (
	CommandFile  = "command.txt"
	StdoutFile   = "stdout.txt"
	StderrFile   = "stderr.txt"
	ResultsFile  = "results.json"
	MetadataFile = "result_metadata.json"
	PidFile      = "server.pid"
	ServerLog    = "server.log"
)

const dirTimeFormat = "20060102_150405"

// RunDirName returns the directory name for a run: the environment name, the
// first 8 characters of the run ID and a second-resolution timestamp, so
// concurrent runs of the same environment land in distinct directories.
func RunDirName(envName, runID string, ts time.Time) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s_%s_%s", envName, short, ts.Format(dirTimeFormat))
}

// CreateRunDir creates the run directory under outputDir and returns its
// path. The directory exists before the subprocess starts and becomes its
// working directory.
func CreateRunDir(outputDir, envName, runID string, ts time.Time) (string, error) {
	dir := path.Join(outputDir, RunDirName(envName, runID, ts))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("cannot create run directory %s: %w", dir, err)
	}
	return dir, nil
}

// WriteCommand records the full command line as a single line in
// command.txt and returns the file path.
func WriteCommand(dir string, command []string) (string, error) {
	p := path.Join(dir, CommandFile)
	err := os.WriteFile(p, []byte(strings.Join(command, " ")+"\n"), 0644)
	if err != nil {
		return "", err
	}
	return p, nil
}

// WritePid records a background server's process ID in server.pid.
func WritePid(dir string, pid int) (string, error) {
	p := path.Join(dir, PidFile)
	err := os.WriteFile(p, []byte(fmt.Sprintf("%d\n", pid)), 0644)
	if err != nil {
		return "", err
	}
	return p, nil
}

// SaveResult writes a run's artifacts into its directory: the captured
// streams (only when non-empty), the structured report (only when one was
// recovered) and the metadata document (always, without the bulky bodies).
// The artifact paths are recorded on the result as they are written.
func SaveResult(r *results.RunResult) error {
	if r.OutputDir == "" {
		return fmt.Errorf("run result has no output directory")
	}
	if r.Stdout != "" {
		p := path.Join(r.OutputDir, StdoutFile)
		if err := os.WriteFile(p, []byte(r.Stdout), 0644); err != nil {
			return fmt.Errorf("cannot write stdout: %w", err)
		}
		r.StdoutFile = p
	}
	if r.Stderr != "" {
		p := path.Join(r.OutputDir, StderrFile)
		if err := os.WriteFile(p, []byte(r.Stderr), 0644); err != nil {
			return fmt.Errorf("cannot write stderr: %w", err)
		}
		r.StderrFile = p
	}
	if r.HasStructured {
		data, err := json.MarshalIndent(r.Structured, "", "  ")
		if err != nil {
			return fmt.Errorf("cannot marshal structured results: %w", err)
		}
		p := path.Join(r.OutputDir, ResultsFile)
		if err := os.WriteFile(p, data, 0644); err != nil {
			return fmt.Errorf("cannot write results: %w", err)
		}
		r.ResultsFile = p
	}
	meta, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal metadata: %w", err)
	}
	p := path.Join(r.OutputDir, MetadataFile)
	if err := os.WriteFile(p, meta, 0644); err != nil {
		return fmt.Errorf("cannot write metadata: %w", err)
	}
	return nil
}

// LoadResult reads a run's metadata document back from its directory. The
// captured streams and the structured report stay in their own files and
// are not loaded.
func LoadResult(dir string) (*results.RunResult, error) {
	data, err := os.ReadFile(path.Join(dir, MetadataFile))
	if err != nil {
		return nil, err
	}
	r := &results.RunResult{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("cannot parse metadata in %s: %w", dir, err)
	}
	return r, nil
}

// LoadStructured reads a run's structured report from results.json.
func LoadStructured(dir string) (map[string]any, error) {
	data, err := os.ReadFile(path.Join(dir, ResultsFile))
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cannot parse results in %s: %w", dir, err)
	}
	return doc, nil
}
