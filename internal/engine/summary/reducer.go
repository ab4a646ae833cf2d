// Package summary reduces a sequence of finalized windows to a run summary.
package summary

import (
	"math"

	"TransportBench/internal/model"
)

// Reduce folds windows into a RunSummary. Counts are summed over all
// windows; bandwidth, jitter and loss are averaged over windows that carried
// at least one packet, and so is the bandwidth stability. Retransmission and loss figures stay absent unless at
// least one window reports them. RTTMs is never set here.
func Reduce(windows []model.WindowMetrics) model.RunSummary {
	var (
		s                       model.RunSummary
		nonEmpty                int
		sumBandwidth, sumJitter float64
		retrans                 int
		haveRetrans             bool
		sumLoss                 float64
		lossWindows             int
		bandwidths              []float64
	)

	for _, w := range windows {
		s.TotalPackets += w.Packets
		s.TotalBytes += w.Bytes
		if n, ok := w.Retransmissions.Get(); ok {
			retrans += n
			haveRetrans = true
		}
		if w.Packets == 0 {
			continue
		}
		nonEmpty++
		sumBandwidth += w.BandwidthMbps
		bandwidths = append(bandwidths, w.BandwidthMbps)
		sumJitter += w.JitterMs
		if loss, ok := w.LossPercent.Get(); ok {
			sumLoss += loss
			lossWindows++
		}
	}

	if haveRetrans {
		s.TotalRetransmissions = model.Some(retrans)
	}
	if nonEmpty > 0 {
		s.AvgBandwidthMbps = sumBandwidth / float64(nonEmpty)
		s.AvgJitterMs = sumJitter / float64(nonEmpty)
	}
	if lossWindows > 0 {
		s.AvgLossPercent = model.Some(sumLoss / float64(lossWindows))
	}
	s.Stability = Stability(bandwidths)
	return s
}

// Stability computes the spread of a bandwidth series. An empty series
// yields the zero value.
func Stability(bandwidths []float64) model.BandwidthStability {
	if len(bandwidths) == 0 {
		return model.BandwidthStability{}
	}
	st := model.BandwidthStability{MinMbps: bandwidths[0], MaxMbps: bandwidths[0]}
	var sum float64
	for _, bw := range bandwidths {
		st.MinMbps = min(st.MinMbps, bw)
		st.MaxMbps = max(st.MaxMbps, bw)
		sum += bw
	}
	mean := sum / float64(len(bandwidths))

	var variance float64
	for _, bw := range bandwidths {
		variance += (bw - mean) * (bw - mean)
	}
	st.StdDevMbps = math.Sqrt(variance / float64(len(bandwidths)))
	if mean > 0 {
		st.CVPercent = st.StdDevMbps / mean * 100
	}
	return st
}

// DurationSeconds returns the run duration in whole seconds, i.e. the index
// of the last window plus one. An empty run lasts 0 seconds.
func DurationSeconds(windows []model.WindowMetrics) int {
	if len(windows) == 0 {
		return 0
	}
	return windows[len(windows)-1].Index + 1
}
