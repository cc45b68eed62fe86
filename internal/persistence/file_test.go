package persistence_test

import (
	"os"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/m-lab/iperfx/internal/persistence"
	"github.com/m-lab/iperfx/pkg/iperf"
	"github.com/m-lab/iperfx/pkg/iperf/spec"
	"github.com/m-lab/iperfx/pkg/results"
)

func TestRunDirName(t *testing.T) {
	ts := time.Date(2025, 8, 4, 10, 30, 45, 0, time.UTC)
	got := persistence.RunDirName("hpc_test", "0123456789abcdef", ts)
	want := "hpc_test_01234567_20250804_103045"
	if got != want {
		t.Errorf("RunDirName: got %q, want %q", got, want)
	}

	// Run IDs shorter than 8 characters are used whole.
	got = persistence.RunDirName("hpc_test", "abc", ts)
	want = "hpc_test_abc_20250804_103045"
	if got != want {
		t.Errorf("RunDirName with short id: got %q, want %q", got, want)
	}
}

func TestCreateRunDir(t *testing.T) {
	base := t.TempDir()
	dir, err := persistence.CreateRunDir(base, "env", "12345678", time.Now())
	if err != nil {
		t.Fatalf("CreateRunDir failed: %v", err)
	}
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		t.Fatalf("run directory %s was not created: %v", dir, err)
	}
	if !strings.HasPrefix(path.Base(dir), "env_12345678_") {
		t.Errorf("unexpected directory name: %s", dir)
	}
}

func TestWriteCommand(t *testing.T) {
	dir := t.TempDir()
	p, err := persistence.WriteCommand(dir, []string{"iperf3", "--client", "node1"})
	if err != nil {
		t.Fatalf("WriteCommand failed: %v", err)
	}
	content, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("cannot read command file: %v", err)
	}
	if string(content) != "iperf3 --client node1\n" {
		t.Errorf("unexpected command file content: %q", content)
	}
}

func TestWritePid(t *testing.T) {
	dir := t.TempDir()
	p, err := persistence.WritePid(dir, 4242)
	if err != nil {
		t.Fatalf("WritePid failed: %v", err)
	}
	content, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("cannot read pid file: %v", err)
	}
	if string(content) != "4242\n" {
		t.Errorf("unexpected pid file content: %q", content)
	}
}

func testResult(t *testing.T, dir string) *results.RunResult {
	t.Helper()
	cfg, err := iperf.NewClientConfig("node1")
	if err != nil {
		t.Fatalf("NewClientConfig failed: %v", err)
	}
	cfg.JSONOutput = true
	start := time.Date(2025, 8, 4, 10, 0, 0, 0, time.UTC)
	return &results.RunResult{
		EnvironmentName: "hpc_test",
		RunID:           "0123456789abcdef",
		StartTime:       start,
		EndTime:         start.Add(10 * time.Second),
		Mode:            spec.ModeClient,
		ClientConfig:    cfg,
		Command:         []string{"iperf3", "--client", "node1", "--json"},
		ExitCode:        0,
		OutputDir:       dir,
		Provenance: results.Provenance{
			EnvironmentName: "hpc_test",
			Version:         "1.0",
			CreatedAt:       start,
			CreatedBy:       "tester",
			NodeInfo:        []results.NameValue{{Name: "hostname", Value: "node0"}},
		},
	}
}

func TestSaveResult_AllArtifacts(t *testing.T) {
	dir := t.TempDir()
	r := testResult(t, dir)
	r.Stdout = `{"start": {}}`
	r.Stderr = "some warning\n"
	r.Structured = map[string]any{"start": map[string]any{}}
	r.HasStructured = true

	if err := persistence.SaveResult(r); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}

	for _, name := range []string{
		persistence.StdoutFile,
		persistence.StderrFile,
		persistence.ResultsFile,
		persistence.MetadataFile,
	} {
		if _, err := os.Stat(path.Join(dir, name)); err != nil {
			t.Errorf("artifact %s missing: %v", name, err)
		}
	}
	if r.StdoutFile == "" || r.StderrFile == "" || r.ResultsFile == "" {
		t.Errorf("artifact paths not recorded: %+v", r)
	}

	// The metadata document must not carry the bulky bodies.
	meta, err := os.ReadFile(path.Join(dir, persistence.MetadataFile))
	if err != nil {
		t.Fatalf("cannot read metadata: %v", err)
	}
	if strings.Contains(string(meta), "some warning") {
		t.Error("metadata contains captured stderr")
	}
}

func TestSaveResult_EmptyStreamsWriteNoFiles(t *testing.T) {
	dir := t.TempDir()
	r := testResult(t, dir)

	if err := persistence.SaveResult(r); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}
	if _, err := os.Stat(path.Join(dir, persistence.StdoutFile)); !os.IsNotExist(err) {
		t.Error("stdout.txt written for an empty stream")
	}
	if _, err := os.Stat(path.Join(dir, persistence.StderrFile)); !os.IsNotExist(err) {
		t.Error("stderr.txt written for an empty stream")
	}
	if _, err := os.Stat(path.Join(dir, persistence.ResultsFile)); !os.IsNotExist(err) {
		t.Error("results.json written without a structured report")
	}
	if _, err := os.Stat(path.Join(dir, persistence.MetadataFile)); err != nil {
		t.Errorf("metadata must always be written: %v", err)
	}
}

func TestSaveResult_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	r := testResult(t, dir)
	r.Structured = map[string]any{"end": map[string]any{"sum_sent": map[string]any{"bytes": 100.0}}}
	r.HasStructured = true
	if err := persistence.SaveResult(r); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}

	loaded, err := persistence.LoadResult(dir)
	if err != nil {
		t.Fatalf("LoadResult failed: %v", err)
	}
	if loaded.EnvironmentName != r.EnvironmentName {
		t.Errorf("EnvironmentName: got %q, want %q", loaded.EnvironmentName, r.EnvironmentName)
	}
	if loaded.RunID != r.RunID {
		t.Errorf("RunID: got %q, want %q", loaded.RunID, r.RunID)
	}
	if !loaded.StartTime.Equal(r.StartTime) || !loaded.EndTime.Equal(r.EndTime) {
		t.Errorf("timestamps not preserved: %v %v", loaded.StartTime, loaded.EndTime)
	}
	if loaded.ClientConfig == nil {
		t.Fatal("client config not preserved")
	}
	if loaded.ClientConfig.ServerHost != "node1" || !loaded.ClientConfig.JSONOutput {
		t.Errorf("config fields not preserved: %+v", loaded.ClientConfig)
	}
	if loaded.Mode != spec.ModeClient {
		t.Errorf("Mode: got %q, want client", loaded.Mode)
	}

	doc, err := persistence.LoadStructured(dir)
	if err != nil {
		t.Fatalf("LoadStructured failed: %v", err)
	}
	if _, ok := doc["end"]; !ok {
		t.Errorf("structured report not preserved: %v", doc)
	}
}

func TestSaveResult_NoOutputDir(t *testing.T) {
	if err := persistence.SaveResult(&results.RunResult{}); err == nil {
		t.Error("expected an error for a result without an output directory")
	}
}
