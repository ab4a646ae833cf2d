// Package offline analyses a finite, already captured trace in one pass.
package offline

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"TransportBench/internal/engine/flowstate"
	"TransportBench/internal/engine/summary"
	"TransportBench/internal/engine/window"
	"TransportBench/internal/model"
)

// Source yields the observations of a trace in capture order. Next returns
// io.EOF once the trace is exhausted.
type Source interface {
	Next() (model.PacketObservation, error)
}

// Options describe the run being analysed.
type Options struct {
	RunID             string
	Label             string
	Protocol          model.Protocol
	CongestionControl string
}

// Analyzer runs the window aggregator with whole-trace retransmission scope
// and computes the whole-trace figures alongside the window series.
type Analyzer struct {
	opts     Options
	agg      *window.Aggregator
	sized    int         // bytes over all observations
	carrier  int         // observations with transport metadata
	arrivals []time.Time // capture order
}

// NewAnalyzer creates an analyzer for one trace.
func NewAnalyzer(opts Options) *Analyzer {
	return &Analyzer{
		opts: opts,
		agg:  window.New(flowstate.New(opts.Protocol, flowstate.ScopeWholeTrace)),
	}
}

// Observe feeds one observation.
func (a *Analyzer) Observe(obs model.PacketObservation) {
	a.sized += obs.Size
	a.arrivals = append(a.arrivals, obs.Timestamp)
	if obs.Transport != nil {
		a.carrier++
	}
	a.agg.Observe(obs)
}

// Report finalizes the trace and returns its report.
func (a *Analyzer) Report() *model.Report {
	windows := a.agg.Flush()
	report := summary.NewReport(summary.RunInfo{
		RunID:             a.opts.RunID,
		Label:             a.opts.Label,
		Protocol:          a.opts.Protocol,
		CongestionControl: a.opts.CongestionControl,
		StartTime:         a.agg.Start(),
		EndTime:           a.agg.Last(),
	}, windows)

	report.Summary.RTTMs = a.agg.Tracker().RTT()
	report.Trace = a.traceFigures(report.Summary.TotalRetransmissions)

	if late := a.Late(); late > 0 {
		log.Printf("Analyzer: %d packet(s) were out of capture order and counted in a later window.", late)
	}
	if jumps := a.agg.Jumps(); jumps > 0 {
		log.Printf("Analyzer: skipped %d implausible timestamp gap(s).", jumps)
	}
	if n := a.agg.Tracker().RTTSamples(); n > 0 {
		log.Printf("Analyzer: RTT estimated from %d handshake(s).", n)
	}
	return report
}

// Late returns the number of observations that arrived out of order.
func (a *Analyzer) Late() int {
	return a.agg.Late()
}

func (a *Analyzer) traceFigures(retrans model.Optional[int]) *model.TraceFigures {
	duration := 0.0
	if a.agg.Started() {
		duration = a.agg.Last().Sub(a.agg.Start()).Seconds()
	}
	fig := &model.TraceFigures{
		DurationSeconds: ClampDuration(duration),
		JitterMs:        window.Jitter(a.arrivals),
	}
	fig.BandwidthMbps = float64(a.sized) * 8 / (fig.DurationSeconds * 1e6)

	if !a.opts.Protocol.Sequenced() {
		return fig
	}
	n, _ := retrans.Get()
	fig.Retransmissions = model.Some(n)
	loss := 0.0
	if a.carrier > 0 {
		loss = float64(n) / float64(a.carrier) * 100
	}
	fig.LossPercent = model.Some(loss)
	return fig
}

// ClampDuration keeps degenerate traces (one packet, zero elapsed time) from
// dividing by zero: durations below one second count as one second.
func ClampDuration(seconds float64) float64 {
	if seconds < 1 {
		return 1
	}
	return seconds
}

// Analyze replays src to exhaustion. A source failure ends the replay early;
// the report of everything read so far is returned together with the error.
func Analyze(src Source, opts Options) (*model.Report, error) {
	a := NewAnalyzer(opts)
	for {
		obs, err := src.Next()
		if errors.Is(err, io.EOF) {
			return a.Report(), nil
		}
		if err != nil {
			return a.Report(), fmt.Errorf("trace replay stopped after %d packets: %w", a.agg.Observed(), err)
		}
		a.Observe(obs)
	}
}

// AnalyzeObservations analyses an in-memory trace.
func AnalyzeObservations(observations []model.PacketObservation, opts Options) *model.Report {
	a := NewAnalyzer(opts)
	for _, obs := range observations {
		a.Observe(obs)
	}
	return a.Report()
}
