package runner

import (
	"fmt"
	"os"
	"os/exec"
	"path"
	"sync"
	"syscall"
	"time"

	"github.com/m-lab/iperfx/internal/metrics"
	"github.com/m-lab/iperfx/internal/persistence"
	"github.com/m-lab/iperfx/pkg/env"
	"github.com/m-lab/iperfx/pkg/iperf"
	"github.com/m-lab/iperfx/pkg/results"
)

// ServerProcess is a background iperf3 server. StartServer transfers
// ownership of the subprocess to the caller: the Runner keeps no reference
// and never polls it. The caller decides when to stop it, typically after
// recording the PID with WritePidFile.
type ServerProcess struct {
	// Cmd is the underlying command. Its Process field is valid for the
	// lifetime of the handle.
	Cmd *exec.Cmd

	// Pid is the subprocess PID.
	Pid int

	// OutputDir is the run directory. The server's combined output goes to
	// server.log inside it.
	OutputDir string

	// StartTime is when the subprocess was started.
	StartTime time.Time

	logFile  *os.File
	waitOnce sync.Once
	waitErr  error
}

// StartServer spawns a background iperf3 server and returns its handle. The
// run directory is prepared exactly like a synchronous run's: it is created
// first, becomes the subprocess working directory, and receives command.txt.
// The server's stdout and stderr are redirected to server.log in the run
// directory, since a pipe nobody drains would eventually stall the child.
func (r *Runner) StartServer(cfg *iperf.ServerConfig, environment *env.Environment) (*ServerProcess, error) {
	if cfg == nil {
		return nil, fmt.Errorf("no server configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if environment == nil {
		environment = env.New()
	}

	runID := environment.NextRunID()
	now := r.timeNow().UTC()
	dir, err := persistence.CreateRunDir(environment.OutputDir, environment.Name, runID, now)
	if err != nil {
		return nil, err
	}
	command := iperf.Command(r.binary, cfg)
	if _, err := persistence.WriteCommand(dir, command); err != nil {
		r.logger.Warn("cannot record command line", "dir", dir, "error", err)
	}

	logFile, err := os.Create(path.Join(dir, persistence.ServerLog))
	if err != nil {
		return nil, fmt.Errorf("cannot create server log: %w", err)
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = r.childEnv(cfg)

	r.emitter.OnStart(cfg.Mode(), command)
	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("cannot start server: %w", err)
	}
	metrics.RecordStart(string(cfg.Mode()))

	p := &ServerProcess{
		Cmd:       cmd,
		Pid:       cmd.Process.Pid,
		OutputDir: dir,
		StartTime: r.timeNow().UTC(),
		logFile:   logFile,
	}
	r.logger.Info("server started", "pid", p.Pid, "run_id", runID, "dir", dir)
	r.emitter.OnSpawn(p.Pid, dir)
	return p, nil
}

// WritePidFile records the PID in server.pid inside the run directory and
// returns the file path.
func (p *ServerProcess) WritePidFile() (string, error) {
	return persistence.WritePid(p.OutputDir, p.Pid)
}

// Running reports whether the subprocess is still alive.
func (p *ServerProcess) Running() bool {
	return p.Cmd.Process.Signal(syscall.Signal(0)) == nil
}

// Signal sends a signal to the subprocess.
func (p *ServerProcess) Signal(sig os.Signal) error {
	return p.Cmd.Process.Signal(sig)
}

// Wait blocks until the subprocess exits and returns its exit error, if
// any. Safe to call more than once.
func (p *ServerProcess) Wait() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.Cmd.Wait()
		p.logFile.Close()
	})
	return p.waitErr
}

// Stop asks the server to exit with an interrupt and kills it when it has
// not exited within grace.
func (p *ServerProcess) Stop(grace time.Duration) error {
	if err := p.Signal(os.Interrupt); err != nil {
		// Already gone, or beyond signaling: make sure it is dead.
		p.Cmd.Process.Kill()
		p.Wait()
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- p.Wait() }()
	select {
	case <-done:
		return nil
	case <-time.After(grace):
		p.Cmd.Process.Kill()
		<-done
		return fmt.Errorf("server pid %d did not exit within %v, killed", p.Pid, grace)
	}
}

// LoadResult reads the archival record persisted in a run directory.
func LoadResult(dir string) (*results.RunResult, error) {
	return persistence.LoadResult(dir)
}

// LoadStructured reads the structured report persisted in a run directory.
func LoadStructured(dir string) (map[string]any, error) {
	return persistence.LoadStructured(dir)
}
