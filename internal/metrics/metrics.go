// Package metrics defines the Prometheus instruments of the live engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ObservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transportbench_observations_total",
			Help: "Number of packet observations fed to the live collector.",
		},
		[]string{"protocol"},
	)
	LateObservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transportbench_late_observations_total",
			Help: "Observations whose timestamp fell into an already closed window.",
		},
		[]string{"protocol"},
	)
	TimestampJumpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transportbench_timestamp_jumps_total",
			Help: "Observations so far ahead of the current window that the gap was skipped.",
		},
		[]string{"protocol"},
	)
	DroppedObservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transportbench_dropped_observations_total",
			Help: "Observations that could not be delivered, by stage.",
		},
		[]string{"stage"},
	)
	WindowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transportbench_windows_total",
			Help: "Number of 1-second windows emitted.",
		},
		[]string{"protocol"},
	)
	RetransmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transportbench_retransmissions_total",
			Help: "Retransmissions counted in emitted windows.",
		},
		[]string{"protocol"},
	)
	WindowBandwidth = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "transportbench_window_bandwidth_mbps",
			Help: "A histogram of per-window bandwidth.",
			Buckets: []float64{
				.1, .15, .25, .4, .6,
				1, 1.5, 2.5, 4, 6,
				10, 15, 25, 40, 60,
				100, 150, 250, 400, 600,
				1000},
		},
		[]string{"protocol"},
	)
	WindowJitter = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "transportbench_window_jitter_ms",
			Help: "Jitter of the most recently emitted window.",
		},
		[]string{"protocol"},
	)
	ActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transportbench_active_runs",
			Help: "Live collectors currently accepting observations.",
		},
	)
	WriterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transportbench_writer_errors_total",
			Help: "Failed writes, by writer.",
		},
		[]string{"writer"},
	)
)
