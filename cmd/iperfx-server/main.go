// iperfx-server runs an iperf3 server through the same configuration and
// persistence pipeline as client runs. In foreground mode the server runs
// synchronously and its record is persisted when it exits; with -daemon the
// server is detached, its PID recorded in server.pid, and iperfx-server
// returns immediately.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/iperfx/pkg/env"
	"github.com/m-lab/iperfx/pkg/iperf/spec"
	"github.com/m-lab/iperfx/pkg/runner"
	"github.com/m-lab/iperfx/pkg/version"
)

var (
	flagDaemon      = flag.Bool("daemon", false, "Start the server in the background and exit")
	flagOneOff      = flag.Bool("one-off", false, "Serve exactly one client, then exit")
	flagPort        = flag.Int("port", spec.DefaultPort, "Port to listen on")
	flagIdleTimeout = flag.Int("idle-timeout", 0, "Exit after this many idle seconds (0 disables)")
	flagBinary      = flag.String("binary", runner.DefaultBinary, "Path to the iperf3 binary")
	flagConfig      = flag.String("config", "", "YAML environment profile to load")
	flagEnvFile     = flag.String("env-file", "", "dotenv-style environment file to load")
	flagOutput      = flag.String("output", "", "Directory for run results (overrides the profile)")
	flagDebug       = flag.Bool("debug", false, "Enable debug logging")
	flagVersion     = flag.Bool("version", false, "Print the version and exit")
)

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

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["port"] {
		e.Port = *flagPort
	}
	if set["output"] {
		e.OutputDir = *flagOutput
	}

	cfg, err := e.ServerConfig()
	rtx.Must(err, "invalid server configuration")
	cfg.OneOff = *flagOneOff
	cfg.IdleTimeout = *flagIdleTimeout
	rtx.Must(cfg.Validate(), "invalid server configuration")

	r, err := runner.New(*flagBinary)
	rtx.Must(err, "iperf3 is not usable")

	if *flagDaemon {
		p, err := r.StartServer(cfg, e)
		rtx.Must(err, "failed to start background server")
		pidFile, err := p.WritePidFile()
		rtx.Must(err, "failed to write pid file")
		log.Info("server running in the background", "pid", p.Pid, "pidfile", pidFile)
		return
	}

	promSrv := prometheusx.MustServeMetrics()
	defer promSrv.Close()

	// The server blocks until the tool exits: a one-off server after its
	// single client, an idle-timeout server when the timeout fires, and an
	// unbounded server when it is interrupted.
	res := r.Run(context.Background(), cfg, e, 0)
	if !res.Succeeded() {
		os.Exit(1)
	}
}
