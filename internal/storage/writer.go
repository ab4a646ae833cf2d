package storage

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"TransportBench/internal/config"
	"TransportBench/internal/factory"
	"TransportBench/internal/model"
)

func init() {
	factory.RegisterWriter("clickhouse", func(def config.WriterDef) (model.Writer, error) {
		w, err := NewClickHouseWriter(def.ClickHouse)
		if err != nil {
			return nil, err
		}
		return w, nil
	})
}

// ClickHouseWriter stores runs in ClickHouse. It implements model.Writer for
// finished runs and model.WindowSink for windows of a live run; a window
// already stored through WriteWindows is not stored again by Write.
type ClickHouseWriter struct {
	conn driver.Conn

	mu     sync.Mutex
	stored map[string]int // run id -> windows stored
}

// NewClickHouseWriter connects to ClickHouse and ensures the tables exist.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return newClickHouseWriter(conn)
}

// newClickHouseWriter takes ownership of conn; it is closed when the tables
// cannot be created.
func newClickHouseWriter(conn driver.Conn) (*ClickHouseWriter, error) {
	for _, stmt := range []string{createRunSummariesStatement, createWindowMetricsStatement} {
		if err := conn.Exec(context.Background(), stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	log.Println("Successfully connected to ClickHouse and ensured tables exist.")

	return &ClickHouseWriter{conn: conn, stored: make(map[string]int)}, nil
}

// Name returns the writer name.
func (w *ClickHouseWriter) Name() string {
	return "clickhouse"
}

// Write stores the run summary and any windows not stored yet.
func (w *ClickHouseWriter) Write(report *model.Report) error {
	if report.RunID == "" {
		return fmt.Errorf("report has no run id")
	}
	if err := w.WriteWindows(report.RunID, report.Windows); err != nil {
		return err
	}

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO run_summaries")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	if err := batch.Append(summaryRow(report)...); err != nil {
		return fmt.Errorf("failed to append run summary to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	w.mu.Lock()
	delete(w.stored, report.RunID)
	w.mu.Unlock()

	log.Printf("Wrote summary of run '%s' to ClickHouse", report.RunID)
	return nil
}

// WriteWindows stores the windows of runID beyond those already stored.
// windows must be the index-ordered windows of the run, or a suffix of them.
func (w *ClickHouseWriter) WriteWindows(runID string, windows []model.WindowMetrics) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	stored := w.stored[runID]
	var pending []model.WindowMetrics
	for _, win := range windows {
		if win.Index >= stored {
			pending = append(pending, win)
		}
	}
	if len(pending) == 0 {
		return nil // Nothing to write
	}

	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO window_metrics")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, win := range pending {
		if err := batch.Append(windowRow(runID, win)...); err != nil {
			return fmt.Errorf("failed to append window %d to batch: %w", win.Index, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	w.stored[runID] = pending[len(pending)-1].Index + 1
	log.Printf("Wrote %d windows to ClickHouse for run '%s'", len(pending), runID)
	return nil
}

// Close closes the connection.
func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
