package runner

import (
	"fmt"
	"strings"

	"github.com/m-lab/iperfx/pkg/iperf/report"
	"github.com/m-lab/iperfx/pkg/iperf/spec"
	"github.com/m-lab/iperfx/pkg/results"
)

// Emitter is an interface for emitting run lifecycle events.
type Emitter interface {
	// OnStart is called before the subprocess is spawned.
	OnStart(mode spec.Mode, command []string)
	// OnSpawn is called once the subprocess is running.
	OnSpawn(pid int, dir string)
	// OnComplete is called with the finished run record.
	OnComplete(res *results.RunResult)
	// OnError is called on errors.
	OnError(err error)
	// OnSummary is called when a structured report was recovered.
	OnSummary(rep *report.Report)
}

// HumanReadable prints human-readable output to stdout.
// It can be configured to include debug output, too.
type HumanReadable struct {
	Debug bool
}

// OnStart prints the mode and the command about to run.
func (e HumanReadable) OnStart(mode spec.Mode, command []string) {
	fmt.Printf("Starting %s run\n", mode)
	if e.Debug {
		fmt.Printf("DEBUG: %s\n", strings.Join(command, " "))
	}
}

// OnSpawn prints the subprocess PID and its run directory.
func (e HumanReadable) OnSpawn(pid int, dir string) {
	if e.Debug {
		fmt.Printf("DEBUG: pid %d, output in %s\n", pid, dir)
	}
}

// OnComplete prints the run outcome.
func (HumanReadable) OnComplete(res *results.RunResult) {
	if res.Succeeded() {
		fmt.Printf("Run %s complete in %.2fs (results: %s)\n",
			res.RunID, res.Duration().Seconds(), res.OutputDir)
		return
	}
	fmt.Printf("Run %s failed with exit code %d\n", res.RunID, res.ExitCode)
	if res.Stderr != "" {
		fmt.Println(strings.TrimSpace(res.Stderr))
	}
}

// OnError is called on errors.
func (HumanReadable) OnError(err error) {
	fmt.Println(err)
}

// OnSummary prints the totals of a recovered report.
func (HumanReadable) OnSummary(rep *report.Report) {
	if rep.Error != "" {
		fmt.Printf("Tool reported an error: %s\n", rep.Error)
		return
	}
	fmt.Println()
	fmt.Printf("Test results:\n")
	fmt.Printf("  sent:     %8.2f Mb/s\n", rep.SentMbps())
	fmt.Printf("  received: %8.2f Mb/s\n", rep.ReceivedMbps())
	if n := rep.Retransmits(); n > 0 {
		fmt.Printf("  retransmits: %d\n", n)
	}
	if s := rep.NumStreams(); s > 1 {
		fmt.Printf("  streams: %d\n", s)
	}
	if cc := rep.End.SenderTCPCongestion; cc != "" {
		fmt.Printf("  cc algo: %s\n", cc)
	}
}

// Checks that HumanReadable implements Emitter.
var _ Emitter = &HumanReadable{}

// Quiet suppresses all lifecycle output except errors. Used when the caller
// wants the raw JSON report on stdout and nothing else.
type Quiet struct{}

// OnStart does nothing.
func (Quiet) OnStart(spec.Mode, []string) {}

// OnSpawn does nothing.
func (Quiet) OnSpawn(int, string) {}

// OnComplete does nothing.
func (Quiet) OnComplete(*results.RunResult) {}

// OnError prints the error.
func (Quiet) OnError(err error) {
	fmt.Println(err)
}

// OnSummary does nothing.
func (Quiet) OnSummary(*report.Report) {}

// Checks that Quiet implements Emitter.
var _ Emitter = &Quiet{}
