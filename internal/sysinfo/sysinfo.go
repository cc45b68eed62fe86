// Package sysinfo gathers best-effort facts about the host and its batch
// allocation for run provenance. Everything here degrades silently: a field
// that cannot be read is left out, never an error.
package sysinfo

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"
)

// NodeInfo describes the host: hostname, platform, CPU and memory. On
// non-Linux hosts the procfs-derived entries are absent.
func NodeInfo() map[string]string {
	return nodeInfoFrom(procfs.DefaultMountPoint)
}

func nodeInfoFrom(procPath string) map[string]string {
	info := map[string]string{
		"platform":  runtime.GOOS + "/" + runtime.GOARCH,
		"cpu_count": strconv.Itoa(runtime.NumCPU()),
	}
	if hostname, err := os.Hostname(); err == nil {
		info["hostname"] = hostname
		if strings.Contains(hostname, ".") {
			info["fqdn"] = hostname
		}
	}
	fs, err := procfs.NewFS(procPath)
	if err != nil {
		return info
	}
	if cpus, err := fs.CPUInfo(); err == nil && len(cpus) > 0 {
		info["cpu_model"] = cpus[0].ModelName
		info["cpu_count"] = strconv.Itoa(len(cpus))
	}
	if mem, err := fs.Meminfo(); err == nil && mem.MemTotal != nil {
		info["memory_gb"] = fmt.Sprintf("%.1f", float64(*mem.MemTotal)/1024/1024)
	}
	return info
}

// slurmVars are the allocation variables recorded when a run happens inside
// a SLURM job. Each is stored under its lowercased name with the SLURM_
// prefix stripped (SLURM_JOB_ID becomes job_id).
var slurmVars = []string{
	"SLURM_JOB_ID",
	"SLURM_JOB_NAME",
	"SLURM_JOB_PARTITION",
	"SLURM_JOB_ACCOUNT",
	"SLURM_JOB_NUM_NODES",
	"SLURM_NTASKS",
	"SLURM_CPUS_PER_TASK",
	"SLURM_MEM_PER_NODE",
	"SLURM_NODELIST",
	"SLURM_PROCID",
	"SLURM_LOCALID",
}

// SchedInfo describes the batch-scheduler allocation the process runs in.
// The map is empty outside a job.
func SchedInfo() map[string]string {
	info := map[string]string{}
	for _, v := range slurmVars {
		if val, ok := os.LookupEnv(v); ok {
			info[strings.ToLower(strings.TrimPrefix(v, "SLURM_"))] = val
		}
	}
	return info
}
