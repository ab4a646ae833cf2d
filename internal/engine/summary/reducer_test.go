package summary

import (
	"math"
	"testing"

	"TransportBench/internal/model"
)

func tcpWindow(index, packets, bytes int, jitter float64, retrans int) model.WindowMetrics {
	loss := 0.0
	if packets > 0 {
		loss = float64(retrans) / float64(packets) * 100
	}
	return model.WindowMetrics{
		Index:           index,
		Packets:         packets,
		Bytes:           bytes,
		BandwidthMbps:   float64(bytes) * 8 / 1e6,
		JitterMs:        jitter,
		Retransmissions: model.Some(retrans),
		LossPercent:     model.Some(loss),
	}
}

func TestReduce_Empty(t *testing.T) {
	s := Reduce(nil)
	if s.TotalPackets != 0 || s.TotalBytes != 0 || s.AvgBandwidthMbps != 0 || s.AvgJitterMs != 0 {
		t.Errorf("Expected zero summary, got %+v", s)
	}
	if s.TotalRetransmissions.Valid() || s.AvgLossPercent.Valid() || s.RTTMs.Valid() {
		t.Errorf("Expected absent optionals, got %+v", s)
	}
	if DurationSeconds(nil) != 0 {
		t.Errorf("Expected 0 s duration for an empty run")
	}
}

func TestReduce_TotalsAndAverages(t *testing.T) {
	windows := []model.WindowMetrics{
		tcpWindow(0, 10, 1_000_000, 2, 1),
		tcpWindow(1, 20, 3_000_000, 4, 4),
	}
	s := Reduce(windows)

	if s.TotalPackets != 30 || s.TotalBytes != 4_000_000 {
		t.Errorf("Unexpected totals: %+v", s)
	}
	if n, ok := s.TotalRetransmissions.Get(); !ok || n != 5 {
		t.Errorf("Expected 5 retransmissions, got %v", s.TotalRetransmissions)
	}
	if math.Abs(s.AvgBandwidthMbps-16) > 1e-9 {
		t.Errorf("Expected 16 Mbps average, got %f", s.AvgBandwidthMbps)
	}
	if math.Abs(s.AvgJitterMs-3) > 1e-9 {
		t.Errorf("Expected 3 ms average jitter, got %f", s.AvgJitterMs)
	}
	if loss, _ := s.AvgLossPercent.Get(); math.Abs(loss-15) > 1e-9 {
		t.Errorf("Expected 15%% average loss, got %f", loss)
	}
	if DurationSeconds(windows) != 2 {
		t.Errorf("Expected 2 s duration, got %d", DurationSeconds(windows))
	}
}

func TestReduce_EmptyWindowsExcludedFromAverages(t *testing.T) {
	windows := []model.WindowMetrics{
		tcpWindow(0, 10, 1_000_000, 2, 0),
		tcpWindow(1, 0, 0, 0, 0),
		tcpWindow(2, 10, 1_000_000, 2, 0),
	}
	s := Reduce(windows)
	if math.Abs(s.AvgBandwidthMbps-8) > 1e-9 {
		t.Errorf("Gap window should not dilute bandwidth, got %f", s.AvgBandwidthMbps)
	}
	if DurationSeconds(windows) != 3 {
		t.Errorf("Expected 3 s duration, got %d", DurationSeconds(windows))
	}
}

func TestReduce_NotApplicablePropagates(t *testing.T) {
	windows := []model.WindowMetrics{
		{Index: 0, Packets: 5, Bytes: 6000, BandwidthMbps: 0.048},
		{Index: 1, Packets: 3, Bytes: 3600, BandwidthMbps: 0.0288},
	}
	s := Reduce(windows)
	if s.TotalRetransmissions.Valid() {
		t.Errorf("Retransmissions should stay N/A, got %v", s.TotalRetransmissions)
	}
	if s.AvgLossPercent.Valid() {
		t.Errorf("Loss should stay N/A, got %v", s.AvgLossPercent)
	}
	if s.TotalPackets != 8 {
		t.Errorf("Expected 8 packets, got %d", s.TotalPackets)
	}
}

func TestReduce_BandwidthStability(t *testing.T) {
	windows := []model.WindowMetrics{
		tcpWindow(0, 10, 1_000_000, 0, 0), // 8 Mbps
		tcpWindow(1, 0, 0, 0, 0),
		tcpWindow(2, 10, 1_500_000, 0, 0), // 12 Mbps
		tcpWindow(3, 10, 1_000_000, 0, 0), // 8 Mbps
		tcpWindow(4, 10, 1_500_000, 0, 0), // 12 Mbps
	}
	st := Reduce(windows).Stability

	if st.MinMbps != 8 || st.MaxMbps != 12 {
		t.Errorf("Expected min 8 and max 12 Mbps over non-empty windows, got %f and %f", st.MinMbps, st.MaxMbps)
	}
	if math.Abs(st.StdDevMbps-2) > 1e-9 {
		t.Errorf("Expected 2 Mbps standard deviation, got %f", st.StdDevMbps)
	}
	if math.Abs(st.CVPercent-20) > 1e-9 {
		t.Errorf("Expected 20%% coefficient of variation, got %f", st.CVPercent)
	}
	if st.Rating() != "unstable" {
		t.Errorf("Expected rating 'unstable' at 20%%, got %q", st.Rating())
	}
}

func TestStability(t *testing.T) {
	if st := Stability(nil); st != (model.BandwidthStability{}) {
		t.Errorf("Expected zero stability for an empty series, got %+v", st)
	}
	flat := Stability([]float64{5, 5, 5})
	if flat.StdDevMbps != 0 || flat.CVPercent != 0 || flat.Rating() != "stable" {
		t.Errorf("Constant bandwidth should be stable with no deviation, got %+v", flat)
	}
	idle := Stability([]float64{0, 0})
	if idle.CVPercent != 0 {
		t.Errorf("Zero mean bandwidth must not divide by zero, got %+v", idle)
	}
	moderate := model.BandwidthStability{CVPercent: 15}
	if moderate.Rating() != "moderately stable" {
		t.Errorf("Expected 'moderately stable' at 15%%, got %q", moderate.Rating())
	}
}
