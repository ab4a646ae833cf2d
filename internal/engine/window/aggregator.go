// Package window turns an ordered stream of packet observations into
// fixed 1-second WindowMetrics.
//
// Windows are anchored at the first observation: window 0 starts at that
// timestamp and window n covers [start+n s, start+(n+1) s). A window closes
// when an observation lands in a later window, or on Flush. Every elapsed
// second produces exactly one window, including seconds in which nothing
// was observed.
//
// An observation that belongs to an already closed window is accepted into
// the current window and counted by Late. Closed windows are never mutated.
//
// An observation more than the maximum gap (DefaultMaxGap unless set with
// WithMaxGap) ahead of the current window does not produce the empty windows
// in between. The current window is closed, the anchor is moved forward so
// that the observation opens the next index, and the jump is counted by
// Jumps.
package window

import (
	"log"
	"math"
	"time"

	"TransportBench/internal/engine/flowstate"
	"TransportBench/internal/model"
)

// Width is the nominal width of a window.
const Width = time.Second

// DefaultMaxGap is the longest silence filled with empty windows.
const DefaultMaxGap = time.Hour

// Aggregator is the boundary-driven window reducer. It is not safe for
// concurrent use; the live collector serialises access to it.
type Aggregator struct {
	tracker  *flowstate.Tracker
	onWindow func(model.WindowMetrics)
	maxGap   int // in windows

	started bool
	first   time.Time
	start   time.Time // anchor of window 0
	last    time.Time
	index   int
	acc     accumulator

	closed []model.WindowMetrics
	total  int
	late   int
	jumps  int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithWindowHook registers fn to be called with every window as it closes.
func WithWindowHook(fn func(model.WindowMetrics)) Option {
	return func(a *Aggregator) {
		a.onWindow = fn
	}
}

// WithMaxGap sets the longest silence that is filled with empty windows.
// Values below one window are ignored.
func WithMaxGap(d time.Duration) Option {
	return func(a *Aggregator) {
		if n := int(d / Width); n > 0 {
			a.maxGap = n
		}
	}
}

// New creates an aggregator that classifies retransmissions with tracker.
func New(tracker *flowstate.Tracker, opts ...Option) *Aggregator {
	a := &Aggregator{tracker: tracker, maxGap: int(DefaultMaxGap / Width)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Observe assigns obs to its window, closing every window that lies before it.
func (a *Aggregator) Observe(obs model.PacketObservation) {
	if !a.started {
		a.started = true
		a.first = obs.Timestamp
		a.start = obs.Timestamp
		a.last = obs.Timestamp
		a.index = 0
	}

	target := a.indexOf(obs.Timestamp)
	if target < a.index {
		a.late++
	}
	if target-a.index > a.maxGap {
		target = a.skipGap(obs.Timestamp, target)
	}
	for target > a.index {
		a.closeWindow()
	}

	if obs.Timestamp.After(a.last) {
		a.last = obs.Timestamp
	}
	a.total++
	a.acc.add(&obs, a.tracker.Classify(&obs))
}

// indexOf returns floor((t - start) / Width). Timestamps before the stream
// start yield a negative index.
func (a *Aggregator) indexOf(t time.Time) int {
	return int(math.Floor(float64(t.Sub(a.start)) / float64(Width)))
}

// skipGap closes the current window, if it holds anything, and re-anchors
// the stream so that ts falls into the window right after it. It returns the
// new target index.
func (a *Aggregator) skipGap(ts time.Time, target int) int {
	a.jumps++
	log.Printf("Window: observation at %s is %d windows ahead of window %d, skipping the gap.",
		ts.Format(time.RFC3339Nano), target-a.index, a.index)

	if a.acc.packets > 0 {
		a.closeWindow()
	}
	a.start = a.start.Add(time.Duration(target-a.index) * Width)
	return a.index
}

// closeWindow freezes the accumulator as the window at the current index and
// moves on to the next index.
func (a *Aggregator) closeWindow() {
	w := a.acc.finalize(a.index, a.start.Add(time.Duration(a.index)*Width), a.tracker.Sequenced())
	a.closed = append(a.closed, w)
	if a.onWindow != nil {
		a.onWindow(w)
	}
	a.tracker.ResetWindow()
	a.acc.reset()
	a.index++
}

// Flush closes the current window if it holds any observation and returns
// every window emitted so far. Observations arriving after a flush continue
// in the next window.
func (a *Aggregator) Flush() []model.WindowMetrics {
	if a.acc.packets > 0 {
		a.closeWindow()
	}
	return a.Windows()
}

// Windows returns a copy of the windows closed so far.
func (a *Aggregator) Windows() []model.WindowMetrics {
	out := make([]model.WindowMetrics, len(a.closed))
	copy(out, a.closed)
	return out
}

// Since returns a copy of the windows closed after the first n.
func (a *Aggregator) Since(n int) []model.WindowMetrics {
	if n >= len(a.closed) {
		return nil
	}
	if n < 0 {
		n = 0
	}
	out := make([]model.WindowMetrics, len(a.closed)-n)
	copy(out, a.closed[n:])
	return out
}

// Observed returns the number of observations fed so far.
func (a *Aggregator) Observed() int {
	return a.total
}

// Late returns how many observations belonged to an already closed window.
func (a *Aggregator) Late() int {
	return a.late
}

// Jumps returns how many gaps longer than the maximum gap were skipped.
func (a *Aggregator) Jumps() int {
	return a.jumps
}

// Started reports whether any observation has been seen.
func (a *Aggregator) Started() bool {
	return a.started
}

// Start returns the timestamp of the first observation.
func (a *Aggregator) Start() time.Time {
	return a.first
}

// Last returns the latest observation timestamp.
func (a *Aggregator) Last() time.Time {
	return a.last
}

// Tracker returns the flow state tracker used for classification.
func (a *Aggregator) Tracker() *flowstate.Tracker {
	return a.tracker
}
