package window

import (
	"math"
	"time"

	"TransportBench/internal/model"
)

// accumulator is the mutable state of the window being filled.
type accumulator struct {
	packets  int
	bytes    int
	retrans  int
	arrivals []time.Time
}

func (acc *accumulator) add(obs *model.PacketObservation, retransmission bool) {
	acc.packets++
	acc.bytes += obs.Size
	acc.arrivals = append(acc.arrivals, obs.Timestamp)
	if retransmission {
		acc.retrans++
	}
}

func (acc *accumulator) reset() {
	acc.packets = 0
	acc.bytes = 0
	acc.retrans = 0
	acc.arrivals = acc.arrivals[:0]
}

func (acc *accumulator) finalize(index int, start time.Time, sequenced bool) model.WindowMetrics {
	w := model.WindowMetrics{
		Index:         index,
		Start:         start,
		Packets:       acc.packets,
		Bytes:         acc.bytes,
		BandwidthMbps: BandwidthMbps(acc.bytes),
		JitterMs:      Jitter(acc.arrivals),
	}
	if sequenced {
		w.Retransmissions = model.Some(acc.retrans)
		loss := 0.0
		if acc.packets > 0 {
			loss = float64(acc.retrans) / float64(acc.packets) * 100
		}
		w.LossPercent = model.Some(loss)
	}
	return w
}

// BandwidthMbps converts a 1-second byte count to megabits per second. No
// correction is applied for the time actually spanned by the packets.
func BandwidthMbps(bytes int) float64 {
	return float64(bytes) * 8 / 1e6
}

// Jitter returns the mean absolute deviation, in milliseconds, of the
// consecutive inter-arrival times from their mean. Fewer than two arrivals
// yield 0. Arrivals are taken in the order given.
func Jitter(arrivals []time.Time) float64 {
	if len(arrivals) < 2 {
		return 0
	}
	deltas := make([]float64, len(arrivals)-1)
	var sum float64
	for i := 1; i < len(arrivals); i++ {
		d := float64(arrivals[i].Sub(arrivals[i-1])) / float64(time.Millisecond)
		deltas[i-1] = d
		sum += d
	}
	mean := sum / float64(len(deltas))

	var dev float64
	for _, d := range deltas {
		dev += math.Abs(d - mean)
	}
	return dev / float64(len(deltas))
}
