// Package runner executes iperf3 as a subprocess. A Runner is constructed
// once per tool binary and checks the tool actually runs before accepting
// work. Synchronous runs capture everything the tool produces and always
// come back as a complete result record; background server runs hand the
// caller an explicit process handle instead.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/iperfx/internal/congestion"
	"github.com/m-lab/iperfx/internal/metrics"
	"github.com/m-lab/iperfx/internal/persistence"
	"github.com/m-lab/iperfx/pkg/env"
	"github.com/m-lab/iperfx/pkg/iperf"
	"github.com/m-lab/iperfx/pkg/iperf/report"
	"github.com/m-lab/iperfx/pkg/iperf/spec"
	"github.com/m-lab/iperfx/pkg/results"
)

// DefaultBinary is the tool binary resolved through PATH when no explicit
// path is given.
const DefaultBinary = "iperf3"

// ErrToolUnavailable is returned by New when the tool cannot be executed.
var ErrToolUnavailable = errors.New("iperf3 is not available")

// Runner executes iperf3 invocations against a single tool binary.
type Runner struct {
	binary   string
	version  string
	logger   *log.Logger
	emitter  Emitter
	extraEnv map[string]string
	timeNow  func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithEmitter replaces the default human-readable emitter.
func WithEmitter(e Emitter) Option {
	return func(r *Runner) { r.emitter = e }
}

// WithEnv adds environment variables to every child process, on top of the
// inherited process environment.
func WithEnv(extra map[string]string) Option {
	return func(r *Runner) { r.extraEnv = extra }
}

// WithTimestampFunc replaces the clock used for run timestamps and run
// directory names. Tests use it to get predictable directories.
func WithTimestampFunc(f func() time.Time) Option {
	return func(r *Runner) { r.timeNow = f }
}

// New probes the tool once by running `binary --version`, bounded by
// spec.ProbeTimeout, and returns a Runner only when the probe succeeds. A
// missing, broken or hung binary surfaces here, not in the middle of a
// measurement campaign.
func New(binary string, opts ...Option) (*Runner, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	r := &Runner{
		binary:  binary,
		logger:  log.Default(),
		emitter: HumanReadable{},
		timeNow: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	ctx, cancel := context.WithTimeout(context.Background(), spec.ProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, binary, "--version").Output()
	if err != nil {
		return nil, fmt.Errorf("%w: probing %s: %v", ErrToolUnavailable, binary, err)
	}
	r.version = strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	r.logger.Debug("tool probe succeeded", "binary", binary, "version", r.version)
	return r, nil
}

// MustNew is like New but halts the process when the tool is unusable.
// Only for use in main-like contexts.
func MustNew(binary string, opts ...Option) *Runner {
	r, err := New(binary, opts...)
	rtx.Must(err, "iperf3 is not usable")
	return r
}

// Version is the tool's version banner captured by the readiness probe.
func (r *Runner) Version() string {
	return r.version
}

// Binary is the tool path this Runner executes.
func (r *Runner) Binary() string {
	return r.binary
}

// Run executes one synchronous test and returns its complete record. Run
// never returns an error: a tool failure, a timeout or even a failure to
// spawn is recorded in the result with exit code -1 and a descriptive
// message on stderr. When timeout is positive the subprocess is killed
// forcibly at expiry.
//
// The run directory is created before the subprocess starts and becomes
// its working directory; the record is persisted there exactly once.
func (r *Runner) Run(ctx context.Context, cfg iperf.Config, environment *env.Environment, timeout time.Duration) *results.RunResult {
	res, _ := r.RunE(ctx, cfg, environment, timeout)
	return res
}

// RunE is Run with pre-spawn failures surfaced as an error: an invalid
// configuration or a failed run-directory allocation returns the aborted
// record alongside a non-nil error. Once the subprocess has spawned the
// error is always nil and the record alone tells the story.
func (r *Runner) RunE(ctx context.Context, cfg iperf.Config, environment *env.Environment, timeout time.Duration) (*results.RunResult, error) {
	if environment == nil {
		environment = env.New()
	}
	res := &results.RunResult{
		EnvironmentName: environment.Name,
		RunID:           environment.NextRunID(),
		Provenance:      environment.Provenance(),
	}

	switch c := cfg.(type) {
	case *iperf.ClientConfig:
		res.Mode = spec.ModeClient
		res.ClientConfig = c
	case *iperf.ServerConfig:
		res.Mode = spec.ModeServer
		res.ServerConfig = c
	default:
		return r.abort(res, "cannot determine test mode from configuration")
	}
	if err := cfg.Validate(); err != nil {
		return r.abort(res, err.Error())
	}
	if c := res.ClientConfig; c != nil && c.Congestion != "" && !congestion.Supported(c.Congestion) {
		r.logger.Warn("congestion control algorithm not offered by this kernel",
			"algorithm", c.Congestion)
	}

	res.Command = iperf.Command(r.binary, cfg)

	now := r.timeNow().UTC()
	dir, err := persistence.CreateRunDir(environment.OutputDir, environment.Name, res.RunID, now)
	if err != nil {
		return r.abort(res, err.Error())
	}
	res.OutputDir = dir
	if _, err := persistence.WriteCommand(dir, res.Command); err != nil {
		r.logger.Warn("cannot record command line", "dir", dir, "error", err)
	}

	r.logger.Info("starting run",
		"mode", res.Mode, "run_id", res.RunID, "dir", dir)
	r.emitter.OnStart(res.Mode, res.Command)
	metrics.RecordStart(string(res.Mode))

	if ctx == nil {
		ctx = context.Background()
	}
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, res.Command[0], res.Command[1:]...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = r.childEnv(cfg)

	res.StartTime = r.timeNow().UTC()
	runErr := cmd.Start()
	if runErr == nil {
		r.emitter.OnSpawn(cmd.Process.Pid, dir)
		runErr = cmd.Wait()
	}
	res.EndTime = r.timeNow().UTC()
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	status := metrics.StatusOK
	switch {
	case runErr == nil:
		res.ExitCode = 0
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.ExitCode = -1
		res.Stderr = fmt.Sprintf("command timed out after %v", timeout)
		status = metrics.StatusTimeout
	case errors.Is(runCtx.Err(), context.Canceled):
		res.ExitCode = -1
		res.Stderr = "command canceled"
		status = metrics.StatusFailed
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			status = metrics.StatusFailed
		} else {
			// The process never started: bad path, permissions, ...
			res.ExitCode = -1
			res.Stderr = runErr.Error()
			status = metrics.StatusSpawn
		}
	}

	jsonWanted := jsonRequested(cfg)
	res.Structured, res.HasStructured = results.ParseStdout(res.Stdout, jsonWanted)
	if jsonWanted && res.Stdout != "" && !res.HasStructured {
		metrics.RecordParseFailure()
		r.logger.Warn("no parseable JSON report in output", "run_id", res.RunID)
	}

	metrics.RecordCompletion(string(res.Mode), status, res.Duration())

	if err := persistence.SaveResult(res); err != nil {
		r.logger.Error("cannot persist run result", "dir", dir, "error", err)
		r.emitter.OnError(err)
	}

	r.emitter.OnComplete(res)
	if res.HasStructured {
		if rep, err := report.FromMap(res.Structured); err == nil {
			r.emitter.OnSummary(rep)
		}
	}
	return res, nil
}

// abort finalizes a record for a run that never reached the spawn point.
func (r *Runner) abort(res *results.RunResult, msg string) (*results.RunResult, error) {
	now := r.timeNow().UTC()
	res.StartTime = now
	res.EndTime = now
	res.ExitCode = -1
	res.Stderr = msg
	err := errors.New(msg)
	r.emitter.OnError(err)
	return res, err
}

// childEnv builds the subprocess environment: the inherited environment,
// the Runner's extra variables in stable order, and the tool's password
// variable when client authentication is configured. iperf3 reads the
// password from IPERF3_PASSWORD; it never belongs on the command line.
func (r *Runner) childEnv(cfg iperf.Config) []string {
	environ := os.Environ()
	keys := make([]string, 0, len(r.extraEnv))
	for k := range r.extraEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		environ = append(environ, k+"="+r.extraEnv[k])
	}
	if c, ok := cfg.(*iperf.ClientConfig); ok && c.Password != "" {
		environ = append(environ, "IPERF3_PASSWORD="+c.Password)
	}
	return environ
}

func jsonRequested(cfg iperf.Config) bool {
	switch c := cfg.(type) {
	case *iperf.ClientConfig:
		return c.JSONOutput
	case *iperf.ServerConfig:
		return c.JSONOutput
	}
	return false
}
