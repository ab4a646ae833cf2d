package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"TransportBench/internal/config"
	"TransportBench/internal/model"
)

// RunFilter narrows ListRuns. Zero fields do not filter.
type RunFilter struct {
	Protocol          string
	CongestionControl string
	Label             string
	Since             time.Time
	Limit             int
}

// Querier defines the interface for querying stored runs.
type Querier interface {
	ListRuns(ctx context.Context, filter RunFilter) ([]*model.Report, error)
	RunWindows(ctx context.Context, runID string) ([]model.WindowMetrics, error)
}

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn driver.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

// buildListRunsQuery builds the run listing query and its arguments.
func buildListRunsQuery(filter RunFilter) (string, []any) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT
			RunID, Label, Protocol, StartTime, EndTime, DurationSeconds,
			TotalPackets, TotalBytes, AvgBandwidthMbps, AvgJitterMs,
			TotalRetransmissions, AvgLossPercent, RTTMs, CongestionControl,
			BandwidthMinMbps, BandwidthMaxMbps, BandwidthStdDevMbps, BandwidthCVPercent,
			TraceDurationSeconds, TraceBandwidthMbps, TraceJitterMs,
			TraceRetransmissions, TraceLossPercent
		FROM run_summaries
	`)

	var whereClauses []string
	args := []any{}

	if filter.Protocol != "" {
		whereClauses = append(whereClauses, "Protocol = ?")
		args = append(args, filter.Protocol)
	}
	if filter.CongestionControl != "" {
		whereClauses = append(whereClauses, "CongestionControl = ?")
		args = append(args, filter.CongestionControl)
	}
	if filter.Label != "" {
		whereClauses = append(whereClauses, "Label = ?")
		args = append(args, filter.Label)
	}
	if !filter.Since.IsZero() {
		whereClauses = append(whereClauses, "StartTime >= ?")
		args = append(args, filter.Since)
	}

	if len(whereClauses) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY StartTime DESC")

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d", limit))

	return queryBuilder.String(), args
}

// ListRuns returns stored run summaries, newest first. The returned reports
// carry no windows.
func (q *clickhouseQuerier) ListRuns(ctx context.Context, filter RunFilter) ([]*model.Report, error) {
	query, args := buildListRunsQuery(filter)
	rows, err := q.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var reports []*model.Report
	for rows.Next() {
		var (
			r              model.Report
			protocol       string
			duration       uint32
			packets, bytes uint64
			retrans        *int64
			loss, rtt      *float64
			st             = &r.Summary.Stability
			trace          traceColumns
		)
		if err := rows.Scan(
			&r.RunID, &r.Label, &protocol, &r.StartTime, &r.EndTime, &duration,
			&packets, &bytes, &r.Summary.AvgBandwidthMbps, &r.Summary.AvgJitterMs,
			&retrans, &loss, &rtt, &r.CongestionControl,
			&st.MinMbps, &st.MaxMbps, &st.StdDevMbps, &st.CVPercent,
			&trace.duration, &trace.bandwidth, &trace.jitter, &trace.retrans, &trace.loss,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		r.Protocol = model.Protocol(protocol)
		r.TotalDurationSeconds = int(duration)
		r.Summary.TotalPackets = int(packets)
		r.Summary.TotalBytes = int(bytes)
		r.Summary.TotalRetransmissions = optionalInt(retrans)
		r.Summary.AvgLossPercent = optionalFloat(loss)
		r.Summary.RTTMs = optionalFloat(rtt)
		r.Trace = trace.figures()
		reports = append(reports, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read run summaries: %w", err)
	}
	return reports, nil
}

// traceColumns are the nullable trace columns of a run_summaries row.
type traceColumns struct {
	duration, bandwidth, jitter *float64
	retrans                     *int64
	loss                        *float64
}

// figures returns nil for a run stored without trace figures.
func (c traceColumns) figures() *model.TraceFigures {
	if c.duration == nil {
		return nil
	}
	fig := &model.TraceFigures{
		DurationSeconds: *c.duration,
		Retransmissions: optionalInt(c.retrans),
		LossPercent:     optionalFloat(c.loss),
	}
	if c.bandwidth != nil {
		fig.BandwidthMbps = *c.bandwidth
	}
	if c.jitter != nil {
		fig.JitterMs = *c.jitter
	}
	return fig
}

// RunWindows returns the windows of one run in index order.
func (q *clickhouseQuerier) RunWindows(ctx context.Context, runID string) ([]model.WindowMetrics, error) {
	rows, err := q.conn.Query(ctx, `
		SELECT
			Second, Timestamp, Packets, Bytes, BandwidthMbps, JitterMs,
			Retransmissions, LossPercent
		FROM window_metrics
		WHERE RunID = ?
		ORDER BY Second
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var windows []model.WindowMetrics
	for rows.Next() {
		var (
			w              model.WindowMetrics
			second         uint32
			packets, bytes uint64
			retrans        *int64
			loss           *float64
		)
		if err := rows.Scan(&second, &w.Start, &packets, &bytes, &w.BandwidthMbps, &w.JitterMs, &retrans, &loss); err != nil {
			return nil, fmt.Errorf("failed to scan window: %w", err)
		}
		w.Index = int(second)
		w.Packets = int(packets)
		w.Bytes = int(bytes)
		w.Retransmissions = optionalInt(retrans)
		w.LossPercent = optionalFloat(loss)
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read windows: %w", err)
	}
	return windows, nil
}
