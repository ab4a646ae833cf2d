package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"TransportBench/internal/model"
)

var timelineHeader = []string{
	"Second", "Timestamp", "Packets", "Bytes", "Bandwidth (Mbps)",
	"Jitter (ms)", "Retransmissions", "Loss (%)",
}

// CSVWriter writes the timeline and the summary of a run as two CSV files.
// Either path may be empty to skip that file.
type CSVWriter struct {
	timelinePath string
	summaryPath  string
}

// NewCSVWriter creates a CSV writer.
func NewCSVWriter(timelinePath, summaryPath string) (*CSVWriter, error) {
	if timelinePath == "" && summaryPath == "" {
		return nil, fmt.Errorf("csv writer requires a timeline or summary path")
	}
	return &CSVWriter{timelinePath: timelinePath, summaryPath: summaryPath}, nil
}

// Name returns the writer name.
func (w *CSVWriter) Name() string {
	return "csv"
}

// Write persists the report.
func (w *CSVWriter) Write(report *model.Report) error {
	if w.timelinePath != "" {
		if err := writeFile(w.timelinePath, func(out io.Writer) error {
			return WriteTimeline(out, report)
		}); err != nil {
			return err
		}
	}
	if w.summaryPath != "" {
		if err := writeFile(w.summaryPath, func(out io.Writer) error {
			return WriteSummary(out, report)
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create '%s': %w", path, err)
	}
	defer file.Close()
	if err := fn(file); err != nil {
		return fmt.Errorf("failed to write '%s': %w", path, err)
	}
	return nil
}

// WriteTimeline writes one row per window.
func WriteTimeline(out io.Writer, report *model.Report) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(timelineHeader); err != nil {
		return err
	}
	for _, w := range report.Windows {
		row := []string{
			strconv.Itoa(w.Index),
			w.Start.Format(time.RFC3339Nano),
			strconv.Itoa(w.Packets),
			strconv.Itoa(w.Bytes),
			formatFloat(w.BandwidthMbps),
			formatFloat(w.JitterMs),
			w.Retransmissions.String(),
			formatOptional(w.LossPercent),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummary writes the run summary as Metric, Value rows. The
// congestion-control row is written when the variant is known, and the
// whole-trace rows when the report carries trace figures.
func WriteSummary(out io.Writer, report *model.Report) error {
	s := report.Summary
	rows := [][]string{{"Metric", "Value"}}
	if report.CongestionControl != "" {
		rows = append(rows, []string{"Congestion Control Protocol", report.CongestionControl})
	}
	rows = append(rows,
		[]string{"Duration (seconds)", strconv.Itoa(report.TotalDurationSeconds)},
		[]string{"Total Packets", strconv.Itoa(s.TotalPackets)},
		[]string{"Total Bytes", strconv.Itoa(s.TotalBytes)},
		[]string{"Average Bandwidth (Mbps)", formatFloat(s.AvgBandwidthMbps)},
		[]string{"Average Jitter (ms)", formatFloat(s.AvgJitterMs)},
		[]string{"Total Retransmissions", s.TotalRetransmissions.String()},
		[]string{"Average Loss (%)", formatOptional(s.AvgLossPercent)},
		[]string{"RTT (ms)", formatOptional(s.RTTMs)},
		[]string{"Bandwidth Min (Mbps)", formatFloat(s.Stability.MinMbps)},
		[]string{"Bandwidth Max (Mbps)", formatFloat(s.Stability.MaxMbps)},
		[]string{"Bandwidth Std Dev (Mbps)", formatFloat(s.Stability.StdDevMbps)},
		[]string{"Bandwidth CV (%)", formatFloat(s.Stability.CVPercent)},
		[]string{"Bandwidth Stability", s.Stability.Rating()},
	)
	if t := report.Trace; t != nil {
		rows = append(rows,
			[]string{"Trace Duration (seconds)", formatFloat(t.DurationSeconds)},
			[]string{"Trace Bandwidth (Mbps)", formatFloat(t.BandwidthMbps)},
			[]string{"Trace Jitter (ms)", formatFloat(t.JitterMs)},
			[]string{"Trace Retransmissions", t.Retransmissions.String()},
			[]string{"Trace Loss (%)", formatOptional(t.LossPercent)},
		)
	}

	cw := csv.NewWriter(out)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(round2(v), 'f', 2, 64)
}

func formatOptional(o model.Optional[float64]) string {
	v, ok := o.Get()
	if !ok {
		return model.NotApplicable
	}
	return formatFloat(v)
}
