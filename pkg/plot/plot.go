// Package plot renders stored run reports as PNG charts and CSV tables.
package plot

import (
	"errors"
	"fmt"
	"image/color"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/m-lab/iperfx/pkg/iperf/report"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoIntervals is returned when a report carries no interval series.
var ErrNoIntervals = errors.New("report has no intervals")

// ErrSingleStream is returned when a per-stream comparison is requested for
// a single-stream test.
var ErrSingleStream = errors.New("report has a single stream, nothing to compare")

var (
	lineColor = color.RGBA{R: 54, G: 162, B: 235, A: 255}
	barColor  = color.RGBA{R: 255, G: 99, B: 132, A: 255}
)

// ThroughputTimeSeries renders the per-interval aggregate throughput as a
// line chart and writes it to outPNG.
func ThroughputTimeSeries(rep *report.Report, title, outPNG string) error {
	if rep == nil || len(rep.Intervals) == 0 {
		return ErrNoIntervals
	}

	pts := make(plotter.XYs, 0, len(rep.Intervals))
	for _, iv := range rep.Intervals {
		pts = append(pts, plotter.XY{X: iv.Sum.End, Y: iv.Sum.BitsPerSecond / 1e6})
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Throughput (Mbit/s)"
	p.Y.Min = 0

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = lineColor
	line.Width = vg.Points(2)
	p.Add(plotter.NewGrid(), line)

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	scatter.Color = lineColor
	p.Add(scatter)

	return p.Save(8*vg.Inch, 4*vg.Inch, outPNG)
}

// StreamComparison renders the mean per-stream throughput of a parallel test
// as a bar chart. Single-stream tests have nothing to compare.
func StreamComparison(rep *report.Report, title, outPNG string) error {
	if rep == nil || len(rep.Intervals) == 0 {
		return ErrNoIntervals
	}
	means := streamMeans(rep)
	if len(means) < 2 {
		return ErrSingleStream
	}

	values := make(plotter.Values, 0, len(means))
	for _, m := range means {
		values = append(values, m)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Stream"
	p.Y.Label.Text = "Mean throughput (Mbit/s)"
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return err
	}
	bars.Color = barColor
	p.Add(bars)

	names := make([]string, len(means))
	for i := range names {
		names[i] = fmt.Sprintf("%d", i+1)
	}
	p.NominalX(names...)

	return p.Save(8*vg.Inch, 4*vg.Inch, outPNG)
}

// Retransmits renders the per-interval retransmit counts as a bar chart.
// When the whole test had no retransmits there is nothing worth a chart:
// Retransmits returns nil without writing a file.
func Retransmits(rep *report.Report, title, outPNG string) error {
	if rep == nil || len(rep.Intervals) == 0 {
		return ErrNoIntervals
	}

	values := make(plotter.Values, 0, len(rep.Intervals))
	total := int64(0)
	for _, iv := range rep.Intervals {
		values = append(values, float64(iv.Sum.Retransmits))
		total += iv.Sum.Retransmits
	}
	if total == 0 {
		return nil
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Interval"
	p.Y.Label.Text = "Retransmits"
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(10))
	if err != nil {
		return err
	}
	bars.Color = barColor
	p.Add(bars)

	return p.Save(8*vg.Inch, 4*vg.Inch, outPNG)
}

// ComparisonChart renders the mean sent throughput of several runs side by
// side, one bar per run, labeled by the given names.
func ComparisonChart(reports []*report.Report, names []string, title, outPNG string) error {
	if len(reports) == 0 {
		return ErrNoIntervals
	}
	if len(names) != len(reports) {
		return fmt.Errorf("got %d names for %d reports", len(names), len(reports))
	}

	values := make(plotter.Values, 0, len(reports))
	for _, rep := range reports {
		values = append(values, rep.SentMbps())
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Run"
	p.Y.Label.Text = "Mean sent throughput (Mbit/s)"
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return err
	}
	bars.Color = lineColor
	p.Add(bars)
	p.NominalX(names...)

	return p.Save(8*vg.Inch, 4*vg.Inch, outPNG)
}

// IntervalRow is one interval of a report in CSV form.
type IntervalRow struct {
	Start       float64 `csv:"start_s"`
	End         float64 `csv:"end_s"`
	Seconds     float64 `csv:"seconds"`
	Bytes       int64   `csv:"bytes"`
	Mbps        float64 `csv:"mbps"`
	Retransmits int64   `csv:"retransmits"`
}

// WriteIntervalCSV exports the report's interval series to a CSV file.
func WriteIntervalCSV(rep *report.Report, outCSV string) error {
	if rep == nil || len(rep.Intervals) == 0 {
		return ErrNoIntervals
	}
	rows := make([]IntervalRow, 0, len(rep.Intervals))
	for _, iv := range rep.Intervals {
		rows = append(rows, IntervalRow{
			Start:       iv.Sum.Start,
			End:         iv.Sum.End,
			Seconds:     iv.Sum.Seconds,
			Bytes:       iv.Sum.Bytes,
			Mbps:        iv.Sum.BitsPerSecond / 1e6,
			Retransmits: iv.Sum.Retransmits,
		})
	}
	f, err := os.Create(outCSV)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.MarshalFile(&rows, f)
}

// streamMeans computes each stream's mean throughput in Mbit/s over all
// non-omitted intervals, keyed by position in the interval stream lists.
func streamMeans(rep *report.Report) []float64 {
	var sums []float64
	var counts []int
	for _, iv := range rep.Intervals {
		for i, s := range iv.Streams {
			if s.Omitted {
				continue
			}
			for len(sums) <= i {
				sums = append(sums, 0)
				counts = append(counts, 0)
			}
			sums[i] += s.BitsPerSecond / 1e6
			counts[i]++
		}
	}
	means := make([]float64, len(sums))
	for i := range sums {
		if counts[i] > 0 {
			means[i] = sums[i] / float64(counts[i])
		}
	}
	return means
}
