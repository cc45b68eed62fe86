// iperfx-plot renders charts and CSV tables from stored run directories.
// Run directories are given as positional arguments, or discovered under a
// root directory with -dir. Charts are written next to each run's other
// artifacts.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/iperfx/internal/persistence"
	"github.com/m-lab/iperfx/pkg/iperf/report"
	"github.com/m-lab/iperfx/pkg/plot"
	"github.com/m-lab/iperfx/pkg/runner"
	"github.com/m-lab/iperfx/pkg/version"
)

var (
	flagDir     = flag.String("dir", "", "Root directory to scan for run directories")
	flagOut     = flag.String("out", "plot", "Output file name prefix")
	flagCSV     = flag.Bool("csv", false, "Also export the interval series as CSV")
	flagCompare = flag.Bool("compare", false, "Render a mean-throughput comparison across all runs")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagVersion = flag.Bool("version", false, "Print the version and exit")
)

// discoverRuns lists the run directories under root: every directory that
// holds a result metadata document.
func discoverRuns(root string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*", persistence.MetadataFile))
	if err != nil {
		return nil, err
	}
	dirs := make([]string, 0, len(matches))
	for _, m := range matches {
		dirs = append(dirs, filepath.Dir(m))
	}
	return dirs, nil
}

// loadReport reads a run's structured report back as a typed Report.
func loadReport(dir string) (*report.Report, error) {
	doc, err := runner.LoadStructured(dir)
	if err != nil {
		return nil, fmt.Errorf("%s has no structured results: %w", dir, err)
	}
	return report.FromMap(doc)
}

func plotRun(dir string) (*report.Report, error) {
	rep, err := loadReport(dir)
	if err != nil {
		return nil, err
	}
	title := filepath.Base(dir)
	if err := plot.ThroughputTimeSeries(rep, title,
		filepath.Join(dir, *flagOut+"_throughput.png")); err != nil {
		return nil, err
	}
	err = plot.StreamComparison(rep, title,
		filepath.Join(dir, *flagOut+"_streams.png"))
	if err != nil && !errors.Is(err, plot.ErrSingleStream) {
		return nil, err
	}
	if err := plot.Retransmits(rep, title,
		filepath.Join(dir, *flagOut+"_retransmits.png")); err != nil {
		return nil, err
	}
	if *flagCSV {
		if err := plot.WriteIntervalCSV(rep,
			filepath.Join(dir, *flagOut+"_intervals.csv")); err != nil {
			return nil, err
		}
	}
	return rep, nil
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "failed to read args from env")

	if *flagVersion {
		fmt.Println(version.Version)
		return
	}

	log.SetReportTimestamp(true)
	if *flagDebug {
		log.SetLevel(log.DebugLevel)
	}

	dirs := flag.Args()
	if *flagDir != "" {
		found, err := discoverRuns(*flagDir)
		rtx.Must(err, "failed to scan %s", *flagDir)
		dirs = append(dirs, found...)
	}
	if len(dirs) == 0 {
		log.Error("no run directories given; pass them as arguments or use -dir")
		os.Exit(1)
	}

	var reports []*report.Report
	var names []string
	failed := false
	for _, dir := range dirs {
		rep, err := plotRun(dir)
		if err != nil {
			log.Error("cannot plot run", "dir", dir, "error", err)
			failed = true
			continue
		}
		log.Info("plotted run", "dir", dir, "sent_mbps", fmt.Sprintf("%.2f", rep.SentMbps()))
		reports = append(reports, rep)
		names = append(names, filepath.Base(dir))
	}

	if *flagCompare && len(reports) > 1 {
		out := *flagOut + "_comparison.png"
		rtx.Must(plot.ComparisonChart(reports, names, "Mean sent throughput", out),
			"failed to render comparison chart")
		log.Info("wrote comparison chart", "file", out)
	}

	if failed {
		os.Exit(1)
	}
}
