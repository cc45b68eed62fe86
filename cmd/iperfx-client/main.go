// iperfx-client runs one iperf3 client test end to end: it loads an
// environment profile, derives and validates a client configuration, runs
// the tool and persists the complete result record.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/iperfx/pkg/env"
	"github.com/m-lab/iperfx/pkg/iperf/spec"
	"github.com/m-lab/iperfx/pkg/runner"
	"github.com/m-lab/iperfx/pkg/version"
)

var (
	flagServer     = flag.String("server.host", "", "Server to connect to (required unless set in a profile)")
	flagPort       = flag.Int("port", spec.DefaultPort, "Server port")
	flagDuration   = flag.Int("duration", spec.DefaultDurationSec, "Test duration in seconds")
	flagBytes      = flag.String("bytes", "", "Stop after transmitting this many bytes, e.g. 1G")
	flagBlockCount = flag.String("blockcount", "", "Stop after this many blocks")
	flagUDP        = flag.Bool("udp", false, "Use UDP instead of TCP")
	flagSCTP       = flag.Bool("sctp", false, "Use SCTP instead of TCP")
	flagBitrate    = flag.String("bitrate", "", "Target bitrate, e.g. 10G")
	flagParallel   = flag.Int("parallel", spec.DefaultParallel, "Number of parallel streams")
	flagReverse    = flag.Bool("reverse", false, "Server sends, client receives")
	flagBidir      = flag.Bool("bidir", false, "Test in both directions at once")
	flagTitle      = flag.String("title", "", "Title string tagged onto the tool's output")
	flagTimeout    = flag.Duration("timeout", 0, "Overall run timeout (0 disables)")
	flagOutput     = flag.String("output", "", "Directory for run results (overrides the profile)")
	flagConfig     = flag.String("config", "", "YAML environment profile to load")
	flagEnvFile    = flag.String("env-file", "", "dotenv-style environment file to load")
	flagNoJSON     = flag.Bool("no-json", false, "Do not request JSON output from the tool")
	flagBinary     = flag.String("binary", runner.DefaultBinary, "Path to the iperf3 binary")
	flagQuiet      = flag.Bool("quiet", false, "Suppress lifecycle output, print raw stdout only")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagVersion    = flag.Bool("version", false, "Print the version and exit")
)

// loadEnvironment layers the profile sources: defaults, the optional YAML
// profile, the process environment and the optional dotenv file.
func loadEnvironment() (*env.Environment, error) {
	if *flagConfig == "" {
		return env.Load(*flagEnvFile)
	}
	e, err := env.LoadYAML(*flagConfig)
	if err != nil {
		return nil, err
	}
	if err := e.ApplyProcessEnv(); err != nil {
		return nil, err
	}
	if *flagEnvFile != "" {
		if err := e.ApplyEnvFile(*flagEnvFile); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "failed to read args from env")

	if *flagVersion {
		fmt.Println(version.Version)
		return
	}

	log.SetReportCaller(true)
	log.SetReportTimestamp(true)
	if *flagDebug {
		log.SetLevel(log.DebugLevel)
	}

	e, err := loadEnvironment()
	rtx.Must(err, "failed to load environment")

	// Command-line flags take final precedence, but only the ones the
	// caller actually set.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["server.host"] {
		e.ServerHost = *flagServer
	}
	if set["port"] {
		e.Port = *flagPort
	}
	if set["duration"] {
		e.Duration = *flagDuration
	}
	if set["bitrate"] {
		e.Bitrate = *flagBitrate
	}
	if set["parallel"] {
		e.Parallel = *flagParallel
	}
	if set["reverse"] {
		e.Reverse = *flagReverse
	}
	if set["bidir"] {
		e.Bidir = *flagBidir
	}
	if set["output"] {
		e.OutputDir = *flagOutput
	}
	if *flagUDP {
		e.Protocol = spec.ProtocolUDP
	}
	if *flagSCTP {
		e.Protocol = spec.ProtocolSCTP
	}
	if *flagNoJSON {
		e.JSONOutput = false
	}

	cfg, err := e.ClientConfig()
	rtx.Must(err, "invalid client configuration")
	// Validate reports the conflict when one of these is combined with an
	// explicit -duration.
	cfg.Bytes = *flagBytes
	cfg.BlockCount = *flagBlockCount
	cfg.Title = *flagTitle
	rtx.Must(cfg.Validate(), "invalid client configuration")

	opts := []runner.Option{}
	if *flagQuiet {
		opts = append(opts, runner.WithEmitter(runner.Quiet{}))
	} else if *flagDebug {
		opts = append(opts, runner.WithEmitter(runner.HumanReadable{Debug: true}))
	}
	r, err := runner.New(*flagBinary, opts...)
	rtx.Must(err, "iperf3 is not usable")

	res := r.Run(context.Background(), cfg, e, *flagTimeout)
	if *flagQuiet && res.Stdout != "" {
		fmt.Print(res.Stdout)
	}
	if !res.Succeeded() {
		os.Exit(1)
	}
}
