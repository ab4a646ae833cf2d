// Package flowstate holds the cross-packet TCP state needed to classify
// retransmissions and to estimate the round-trip time of a run.
package flowstate

import (
	"time"

	"TransportBench/internal/model"
)

// Scope selects how long retransmission state lives.
type Scope int

const (
	// ScopeWholeTrace keeps the seen-set for the entire capture (offline analysis).
	ScopeWholeTrace Scope = iota
	// ScopePerWindow clears the seen-set every time a window closes (live analysis).
	ScopePerWindow
)

func (s Scope) String() string {
	switch s {
	case ScopeWholeTrace:
		return "whole-trace"
	case ScopePerWindow:
		return "per-window"
	default:
		return "unknown"
	}
}

type segmentKey struct {
	src string
	dst string
	seq uint32
}

type pairKey struct {
	src string
	dst string
}

// Tracker classifies retransmissions and maintains a running RTT estimate.
// It is owned by a single aggregator and is not safe for concurrent use.
type Tracker struct {
	protocol model.Protocol
	scope    Scope

	seen       map[segmentKey]struct{}
	pendingSYN map[pairKey]time.Time // last SYN per (src,dst)

	rttMs    float64
	rttValid bool
	samples  int
}

// New creates a tracker for one run.
func New(protocol model.Protocol, scope Scope) *Tracker {
	return &Tracker{
		protocol:   protocol,
		scope:      scope,
		seen:       make(map[segmentKey]struct{}),
		pendingSYN: make(map[pairKey]time.Time),
	}
}

// Scope returns the retransmission scope of the tracker.
func (t *Tracker) Scope() Scope {
	return t.scope
}

// Sequenced reports whether this run yields retransmission figures at all.
func (t *Tracker) Sequenced() bool {
	return t.protocol.Sequenced()
}

// Classify records the observation and reports whether it is a retransmission,
// i.e. whether its (src, dst, seq) key was already seen in the active scope.
// Observations without transport metadata, and every observation of a
// non-sequenced protocol, are never classified.
func (t *Tracker) Classify(obs *model.PacketObservation) bool {
	if !t.protocol.Sequenced() || obs.Transport == nil {
		return false
	}
	tr := obs.Transport

	if t.scope == ScopeWholeTrace {
		t.trackHandshake(obs.Timestamp, tr)
	}

	key := segmentKey{src: tr.SrcAddr, dst: tr.DstAddr, seq: tr.Seq}
	if _, ok := t.seen[key]; ok {
		return true
	}
	t.seen[key] = struct{}{}
	return false
}

// trackHandshake pairs a SYN with the SYN-ACK travelling the reverse direction.
func (t *Tracker) trackHandshake(ts time.Time, tr *model.TransportInfo) {
	switch {
	case tr.Has(model.FlagSYN) && !tr.Has(model.FlagACK):
		t.pendingSYN[pairKey{src: tr.SrcAddr, dst: tr.DstAddr}] = ts
	case tr.Has(model.FlagSYN | model.FlagACK):
		pair := pairKey{src: tr.DstAddr, dst: tr.SrcAddr}
		synAt, ok := t.pendingSYN[pair]
		if !ok {
			return
		}
		// The SYN is acknowledged now; a duplicated SYN-ACK must not pair with it again.
		delete(t.pendingSYN, pair)
		t.addRTTSample(float64(ts.Sub(synAt)) / float64(time.Millisecond))
	}
}

// addRTTSample folds a candidate into the estimate. The first candidate is
// taken as is; each later one is averaged with the previous estimate.
func (t *Tracker) addRTTSample(candidateMs float64) {
	t.samples++
	if !t.rttValid {
		t.rttMs = candidateMs
		t.rttValid = true
		return
	}
	t.rttMs = (t.rttMs + candidateMs) / 2
}

// RTT returns the running RTT estimate in milliseconds. It is absent when no
// SYN/SYN-ACK pair was observed or when the tracker is not in whole-trace scope.
func (t *Tracker) RTT() model.Optional[float64] {
	if !t.rttValid {
		return model.None[float64]()
	}
	return model.Some(t.rttMs)
}

// RTTSamples returns the number of SYN/SYN-ACK pairs folded into the estimate.
func (t *Tracker) RTTSamples() int {
	return t.samples
}

// ResetWindow is called whenever a window closes. It only has an effect in
// per-window scope, where retransmission counting restarts every second.
func (t *Tracker) ResetWindow() {
	if t.scope != ScopePerWindow {
		return
	}
	t.seen = make(map[segmentKey]struct{})
}
