package storage

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"TransportBench/internal/config"
	"TransportBench/internal/model"
)

const createRunSummariesStatement = `
CREATE TABLE IF NOT EXISTS run_summaries (
    RunID                String,
    Label                String,
    Protocol             LowCardinality(String),
    StartTime            DateTime64(6),
    EndTime              DateTime64(6),
    DurationSeconds      UInt32,
    TotalPackets         UInt64,
    TotalBytes           UInt64,
    AvgBandwidthMbps     Float64,
    AvgJitterMs          Float64,
    TotalRetransmissions Nullable(Int64),
    AvgLossPercent       Nullable(Float64),
    RTTMs                Nullable(Float64),
    CongestionControl    LowCardinality(String),
    BandwidthMinMbps     Float64,
    BandwidthMaxMbps     Float64,
    BandwidthStdDevMbps  Float64,
    BandwidthCVPercent   Float64,
    TraceDurationSeconds Nullable(Float64),
    TraceBandwidthMbps   Nullable(Float64),
    TraceJitterMs        Nullable(Float64),
    TraceRetransmissions Nullable(Int64),
    TraceLossPercent     Nullable(Float64)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(StartTime)
ORDER BY (StartTime, RunID);
`

const createWindowMetricsStatement = `
CREATE TABLE IF NOT EXISTS window_metrics (
    RunID           String,
    Second          UInt32,
    Timestamp       DateTime64(6),
    Packets         UInt64,
    Bytes           UInt64,
    BandwidthMbps   Float64,
    JitterMs        Float64,
    Retransmissions Nullable(Int64),
    LossPercent     Nullable(Float64)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (RunID, Second);
`

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return conn, nil
}

// summaryRow returns the run_summaries column values of a report, in
// table order. The trace columns are NULL for runs without trace figures.
func summaryRow(r *model.Report) []any {
	s := r.Summary
	row := []any{
		r.RunID,
		r.Label,
		string(r.Protocol),
		r.StartTime,
		r.EndTime,
		uint32(r.TotalDurationSeconds),
		uint64(s.TotalPackets),
		uint64(s.TotalBytes),
		s.AvgBandwidthMbps,
		s.AvgJitterMs,
		nullableInt(s.TotalRetransmissions),
		s.AvgLossPercent.Ptr(),
		s.RTTMs.Ptr(),
		r.CongestionControl,
		s.Stability.MinMbps,
		s.Stability.MaxMbps,
		s.Stability.StdDevMbps,
		s.Stability.CVPercent,
	}
	if t := r.Trace; t != nil {
		return append(row, &t.DurationSeconds, &t.BandwidthMbps, &t.JitterMs, nullableInt(t.Retransmissions), t.LossPercent.Ptr())
	}
	return append(row, (*float64)(nil), (*float64)(nil), (*float64)(nil), (*int64)(nil), (*float64)(nil))
}

// windowRow returns the window_metrics column values of a window.
func windowRow(runID string, w model.WindowMetrics) []any {
	return []any{
		runID,
		uint32(w.Index),
		w.Start,
		uint64(w.Packets),
		uint64(w.Bytes),
		w.BandwidthMbps,
		w.JitterMs,
		nullableInt(w.Retransmissions),
		w.LossPercent.Ptr(),
	}
}

func nullableInt(o model.Optional[int]) *int64 {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	n := int64(v)
	return &n
}

func optionalInt(p *int64) model.Optional[int] {
	if p == nil {
		return model.None[int]()
	}
	return model.Some(int(*p))
}

func optionalFloat(p *float64) model.Optional[float64] {
	if p == nil {
		return model.None[float64]()
	}
	return model.Some(*p)
}
