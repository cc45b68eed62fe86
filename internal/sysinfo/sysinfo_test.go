package sysinfo

import (
	"os"
	"path"
	"testing"
)

const cpuinfo = `processor	: 0
vendor_id	: GenuineIntel
model name	: Intel(R) Xeon(R) Platinum 8460Y+
cpu MHz		: 2000.000

processor	: 1
vendor_id	: GenuineIntel
model name	: Intel(R) Xeon(R) Platinum 8460Y+
cpu MHz		: 2000.000
`

const meminfo = `MemTotal:       527982044 kB
MemFree:        401223332 kB
MemAvailable:   486360384 kB
`

func TestNodeInfoFrom(t *testing.T) {
	proc := t.TempDir()
	if err := os.WriteFile(path.Join(proc, "cpuinfo"), []byte(cpuinfo), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path.Join(proc, "meminfo"), []byte(meminfo), 0644); err != nil {
		t.Fatal(err)
	}

	info := nodeInfoFrom(proc)
	if info["cpu_model"] != "Intel(R) Xeon(R) Platinum 8460Y+" {
		t.Errorf("cpu_model: got %q", info["cpu_model"])
	}
	if info["cpu_count"] != "2" {
		t.Errorf("cpu_count: got %q, want 2", info["cpu_count"])
	}
	if info["memory_gb"] != "503.5" {
		t.Errorf("memory_gb: got %q, want 503.5", info["memory_gb"])
	}
	if info["platform"] == "" {
		t.Error("platform missing")
	}
}

func TestNodeInfoFrom_UnreadableProcDegrades(t *testing.T) {
	info := nodeInfoFrom(path.Join(t.TempDir(), "does-not-exist"))
	// Host facts that do not need procfs are still present.
	if info["platform"] == "" || info["cpu_count"] == "" {
		t.Errorf("basic facts missing: %v", info)
	}
	if _, ok := info["memory_gb"]; ok {
		t.Error("memory_gb should be absent without procfs")
	}
}

func TestSchedInfo(t *testing.T) {
	t.Setenv("SLURM_JOB_ID", "12345")
	t.Setenv("SLURM_JOB_PARTITION", "compute")
	t.Setenv("SLURM_NODELIST", "node[001-004]")

	info := SchedInfo()
	if info["job_id"] != "12345" {
		t.Errorf("job_id: got %q", info["job_id"])
	}
	if info["job_partition"] != "compute" {
		t.Errorf("job_partition: got %q", info["job_partition"])
	}
	if info["nodelist"] != "node[001-004]" {
		t.Errorf("nodelist: got %q", info["nodelist"])
	}
	if _, ok := info["slurm_job_id"]; ok {
		t.Error("keys must not keep the SLURM_ prefix")
	}
}

func TestSchedInfo_OutsideJob(t *testing.T) {
	for _, v := range slurmVars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
	if info := SchedInfo(); len(info) != 0 {
		t.Errorf("expected empty scheduler info, got %v", info)
	}
}
