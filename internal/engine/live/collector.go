// Package live aggregates observations while they are still being captured.
package live

import (
	"context"
	"log"
	"sync"
	"time"

	"TransportBench/internal/engine/flowstate"
	"TransportBench/internal/engine/summary"
	"TransportBench/internal/engine/window"
	"TransportBench/internal/metrics"
	"TransportBench/internal/model"
)

const defaultInputBuffer = 10000

// Config configures a Collector.
type Config struct {
	RunID             string
	Label             string
	Protocol          model.Protocol
	CongestionControl string

	// InputBuffer is the capacity of the Input channel.
	InputBuffer int
	// SnapshotInterval is how often closed windows are forwarded to Sinks.
	// Zero disables periodic forwarding; remaining windows are still
	// forwarded on Stop.
	SnapshotInterval time.Duration
	Sinks            []model.WindowSink
}

// Collector runs the window aggregator in per-window retransmission scope
// for a live capture. Producers may call Observe from any goroutine or send
// on Input; a single mutex guards every read-modify-write of the aggregator
// together with the final flush.
type Collector struct {
	cfg Config

	mu      sync.Mutex
	agg     *window.Aggregator
	stopped bool
	report  *model.Report

	input    chan model.PacketObservation
	done     chan struct{}
	workerWg sync.WaitGroup
	snapWg   sync.WaitGroup
	stopOnce sync.Once

	// forwarded counts windows already handed to sinks; owned by the
	// snapshotter until it exits, then by Stop.
	forwarded int
}

// NewCollector creates a collector for one run.
func NewCollector(cfg Config) *Collector {
	if cfg.InputBuffer <= 0 {
		cfg.InputBuffer = defaultInputBuffer
	}
	c := &Collector{
		cfg:   cfg,
		input: make(chan model.PacketObservation, cfg.InputBuffer),
		done:  make(chan struct{}),
	}
	proto := string(cfg.Protocol)
	c.agg = window.New(
		flowstate.New(cfg.Protocol, flowstate.ScopePerWindow),
		window.WithWindowHook(func(w model.WindowMetrics) {
			metrics.WindowsTotal.WithLabelValues(proto).Inc()
			metrics.WindowBandwidth.WithLabelValues(proto).Observe(w.BandwidthMbps)
			metrics.WindowJitter.WithLabelValues(proto).Set(w.JitterMs)
			if n, ok := w.Retransmissions.Get(); ok {
				metrics.RetransmissionsTotal.WithLabelValues(proto).Add(float64(n))
			}
		}),
	)
	return c
}

// Start launches the input worker and, when configured, the snapshotter.
func (c *Collector) Start() {
	metrics.ActiveRuns.Inc()
	log.Printf("Collector: run '%s' started with %s retransmission scope.", c.cfg.RunID, c.agg.Tracker().Scope())

	// One worker keeps channel order intact.
	c.workerWg.Add(1)
	go c.worker()

	if c.cfg.SnapshotInterval > 0 && len(c.cfg.Sinks) > 0 {
		c.snapWg.Add(1)
		go c.runSnapshotter()
		log.Printf("Collector: forwarding closed windows every %s to %d sink(s).", c.cfg.SnapshotInterval, len(c.cfg.Sinks))
	}
}

// Input returns the channel observations may be sent on. Producers must stop
// sending before calling Stop.
func (c *Collector) Input() chan<- model.PacketObservation {
	return c.input
}

// Observe adds one observation. It is safe for concurrent use.
func (c *Collector) Observe(obs model.PacketObservation) {
	proto := string(c.cfg.Protocol)

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		metrics.DroppedObservationsTotal.WithLabelValues("after_stop").Inc()
		log.Printf("Collector: observation at %s arrived after stop, dropping it.", obs.Timestamp.Format(time.RFC3339Nano))
		return
	}
	lateBefore, jumpsBefore := c.agg.Late(), c.agg.Jumps()
	c.agg.Observe(obs)
	late := c.agg.Late() > lateBefore
	jumped := c.agg.Jumps() > jumpsBefore
	c.mu.Unlock()

	metrics.ObservationsTotal.WithLabelValues(proto).Inc()
	if late {
		metrics.LateObservationsTotal.WithLabelValues(proto).Inc()
	}
	if jumped {
		metrics.TimestampJumpsTotal.WithLabelValues(proto).Inc()
	}
}

func (c *Collector) worker() {
	defer c.workerWg.Done()
	for obs := range c.input {
		c.Observe(obs)
	}
}

// runSnapshotter periodically forwards newly closed windows to the sinks.
func (c *Collector) runSnapshotter() {
	defer c.snapWg.Done()
	ticker := time.NewTicker(c.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.forward()
		case <-c.done:
			return
		}
	}
}

// forward hands windows closed since the last call to every sink.
func (c *Collector) forward() {
	c.mu.Lock()
	pending := c.agg.Since(c.forwarded)
	c.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	for _, sink := range c.cfg.Sinks {
		if err := sink.WriteWindows(c.cfg.RunID, pending); err != nil {
			log.Printf("Collector: error forwarding %d window(s): %v", len(pending), err)
		}
	}
	c.forwarded += len(pending)
}

// Windows returns the windows closed so far.
func (c *Collector) Windows() []model.WindowMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agg.Windows()
}

// Stop drains the input channel, flushes the last partial window and
// returns the report of the run. Calling Stop more than once returns the
// same report.
func (c *Collector) Stop() *model.Report {
	c.stopOnce.Do(func() {
		log.Println("Collector stopping...")
		close(c.input)
		c.workerWg.Wait()

		close(c.done)
		c.snapWg.Wait()

		c.mu.Lock()
		c.stopped = true
		windows := c.agg.Flush()
		info := summary.RunInfo{
			RunID:             c.cfg.RunID,
			Label:             c.cfg.Label,
			Protocol:          c.cfg.Protocol,
			CongestionControl: c.cfg.CongestionControl,
			StartTime:         c.agg.Start(),
			EndTime:           c.agg.Last(),
		}
		c.report = summary.NewReport(info, windows)
		c.mu.Unlock()

		c.forward()
		metrics.ActiveRuns.Dec()
		log.Printf("Collector stopped: %d packets in %d window(s).", c.report.Summary.TotalPackets, len(windows))
	})
	return c.report
}

// Run feeds observations from src until src is closed or ctx is cancelled,
// then stops the collector. Observations already buffered in src when ctx
// is cancelled are still aggregated.
func (c *Collector) Run(ctx context.Context, src <-chan model.PacketObservation) *model.Report {
	c.Start()
	for {
		select {
		case obs, ok := <-src:
			if !ok {
				return c.Stop()
			}
			c.Observe(obs)
		case <-ctx.Done():
			c.drain(src)
			return c.Stop()
		}
	}
}

func (c *Collector) drain(src <-chan model.PacketObservation) {
	for {
		select {
		case obs, ok := <-src:
			if !ok {
				return
			}
			c.Observe(obs)
		default:
			return
		}
	}
}
