package export

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"TransportBench/internal/model"
)

// Document is the persisted JSON form of a run. Its field names are shared
// with existing tooling and must not change.
type Document struct {
	Protocol             string           `json:"protocol"`
	Label                string           `json:"label,omitempty"`
	CongestionControl    string           `json:"congestion_control,omitempty"`
	RunID                string           `json:"run_id"`
	StartTime            time.Time        `json:"start_time"`
	EndTime              time.Time        `json:"end_time"`
	TotalDurationSeconds int              `json:"total_duration_seconds"`
	MetricsPerSecond     []SecondDocument `json:"metrics_per_second"`
	Summary              SummaryDocument  `json:"summary"`
	Trace                *TraceDocument   `json:"trace,omitempty"`
}

// SecondDocument is one window of the timeline.
type SecondDocument struct {
	Second          int                     `json:"second"`
	Timestamp       time.Time               `json:"timestamp"`
	Packets         int                     `json:"packets"`
	Bytes           int                     `json:"bytes"`
	BandwidthMbps   float64                 `json:"bandwidth_mbps"`
	JitterMs        float64                 `json:"jitter_ms"`
	Retransmissions model.Optional[int]     `json:"retransmissions"`
	LossPercent     model.Optional[float64] `json:"loss_percent"`
}

// SummaryDocument is the run summary.
type SummaryDocument struct {
	TotalPackets         int                     `json:"total_packets"`
	TotalBytes           int                     `json:"total_bytes"`
	AvgBandwidthMbps     float64                 `json:"avg_bandwidth_mbps"`
	AvgJitterMs          float64                 `json:"avg_jitter_ms"`
	TotalRetransmissions model.Optional[int]     `json:"total_retransmissions"`
	AvgLossPercent       model.Optional[float64] `json:"avg_loss_percent"`
	RTTMs                model.Optional[float64] `json:"rtt_ms"`
	BandwidthStability   StabilityDocument       `json:"bandwidth_stability"`
}

// StabilityDocument is the spread of per-second bandwidth over a run.
type StabilityDocument struct {
	MinMbps    float64 `json:"min_mbps"`
	MaxMbps    float64 `json:"max_mbps"`
	StdDevMbps float64 `json:"std_dev_mbps"`
	CVPercent  float64 `json:"cv_percent"`
	Rating     string  `json:"rating"`
}

// TraceDocument holds the whole-trace figures of an offline run.
type TraceDocument struct {
	DurationSeconds float64                 `json:"duration_seconds"`
	BandwidthMbps   float64                 `json:"bandwidth_mbps"`
	JitterMs        float64                 `json:"jitter_ms"`
	Retransmissions model.Optional[int]     `json:"retransmissions"`
	LossPercent     model.Optional[float64] `json:"loss_percent"`
}

// round2 rounds to two decimals. Values are kept at full precision
// everywhere else and only rounded when persisted.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// NewDocument converts a report into its persisted form.
func NewDocument(r *model.Report) *Document {
	doc := &Document{
		Protocol:             string(r.Protocol),
		Label:                r.Label,
		CongestionControl:    r.CongestionControl,
		RunID:                r.RunID,
		StartTime:            r.StartTime,
		EndTime:              r.EndTime,
		TotalDurationSeconds: r.TotalDurationSeconds,
		MetricsPerSecond:     make([]SecondDocument, 0, len(r.Windows)),
		Summary: SummaryDocument{
			TotalPackets:         r.Summary.TotalPackets,
			TotalBytes:           r.Summary.TotalBytes,
			AvgBandwidthMbps:     round2(r.Summary.AvgBandwidthMbps),
			AvgJitterMs:          round2(r.Summary.AvgJitterMs),
			TotalRetransmissions: r.Summary.TotalRetransmissions,
			AvgLossPercent:       r.Summary.AvgLossPercent.Map(round2),
			RTTMs:                r.Summary.RTTMs.Map(round2),
			BandwidthStability: StabilityDocument{
				MinMbps:    round2(r.Summary.Stability.MinMbps),
				MaxMbps:    round2(r.Summary.Stability.MaxMbps),
				StdDevMbps: round2(r.Summary.Stability.StdDevMbps),
				CVPercent:  round2(r.Summary.Stability.CVPercent),
				Rating:     r.Summary.Stability.Rating(),
			},
		},
	}
	for _, w := range r.Windows {
		doc.MetricsPerSecond = append(doc.MetricsPerSecond, SecondDocument{
			Second:          w.Index,
			Timestamp:       w.Start,
			Packets:         w.Packets,
			Bytes:           w.Bytes,
			BandwidthMbps:   round2(w.BandwidthMbps),
			JitterMs:        round2(w.JitterMs),
			Retransmissions: w.Retransmissions,
			LossPercent:     w.LossPercent.Map(round2),
		})
	}
	if t := r.Trace; t != nil {
		doc.Trace = &TraceDocument{
			DurationSeconds: round2(t.DurationSeconds),
			BandwidthMbps:   round2(t.BandwidthMbps),
			JitterMs:        round2(t.JitterMs),
			Retransmissions: t.Retransmissions,
			LossPercent:     t.LossPercent.Map(round2),
		}
	}
	return doc
}

// ReadDocument loads a JSON report written by JSONWriter.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report '%s': %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode report '%s': %w", path, err)
	}
	return &doc, nil
}
