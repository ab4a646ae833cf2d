package model

import (
	"fmt"
	"strings"
	"time"
)

// Protocol identifies the transport protocol under test.
type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
	ProtocolQUIC Protocol = "quic"
)

// ParseProtocol maps a config or command-line value onto a Protocol.
// Congestion-control names (cubic, bbr) are TCP runs; see CongestionControl.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tcp", "cubic", "bbr", "tcp-cubic", "tcp-bbr":
		return ProtocolTCP, nil
	case "udp":
		return ProtocolUDP, nil
	case "quic":
		return ProtocolQUIC, nil
	default:
		return "", fmt.Errorf("unknown protocol: %q", s)
	}
}

// CongestionControl returns the congestion-control variant named by a
// protocol value ("cubic" for "cubic" or "tcp-cubic"), or "" when the value
// names none.
func CongestionControl(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cubic", "tcp-cubic":
		return "cubic"
	case "bbr", "tcp-bbr":
		return "bbr"
	default:
		return ""
	}
}

// Sequenced reports whether the protocol exposes sequence numbers on the wire.
// Only sequenced protocols yield retransmission, loss and RTT figures.
func (p Protocol) Sequenced() bool {
	return p == ProtocolTCP
}

// BPFFilter returns the capture filter for traffic on the given port.
func (p Protocol) BPFFilter(port int) string {
	switch p {
	case ProtocolTCP:
		return fmt.Sprintf("tcp port %d", port)
	case ProtocolUDP, ProtocolQUIC:
		return fmt.Sprintf("udp port %d", port)
	default:
		return fmt.Sprintf("port %d", port)
	}
}

// TCP flag bits carried in TransportInfo.Flags.
const (
	FlagFIN uint8 = 0x01
	FlagSYN uint8 = 0x02
	FlagRST uint8 = 0x04
	FlagPSH uint8 = 0x08
	FlagACK uint8 = 0x10
)

// TransportInfo is the transport-layer metadata of an observed packet.
type TransportInfo struct {
	SrcAddr string
	DstAddr string
	Seq     uint32
	Ack     uint32
	Flags   uint8
}

// Has reports whether all bits of flag are set.
func (t *TransportInfo) Has(flag uint8) bool {
	return t.Flags&flag == flag
}

// PacketObservation is one observed packet.
type PacketObservation struct {
	Timestamp time.Time
	Size      int
	// Transport is nil when the capture does not understand the transport layer.
	Transport *TransportInfo
}

// WindowMetrics is the frozen result of one 1-second window.
type WindowMetrics struct {
	Index           int
	Start           time.Time
	Packets         int
	Bytes           int
	BandwidthMbps   float64
	JitterMs        float64
	Retransmissions Optional[int]
	LossPercent     Optional[float64]
}

// RunSummary is the reduction of all windows of a run.
type RunSummary struct {
	TotalPackets         int
	TotalBytes           int
	TotalRetransmissions Optional[int]
	AvgBandwidthMbps     float64
	AvgJitterMs          float64
	AvgLossPercent       Optional[float64]
	RTTMs                Optional[float64]
	Stability            BandwidthStability
}

// BandwidthStability describes how much per-window bandwidth varied over the
// non-empty windows of a run. StdDevMbps is the population standard
// deviation; CVPercent is StdDevMbps relative to the mean bandwidth.
type BandwidthStability struct {
	MinMbps    float64
	MaxMbps    float64
	StdDevMbps float64
	CVPercent  float64
}

// Rating classifies the coefficient of variation.
func (b BandwidthStability) Rating() string {
	switch {
	case b.CVPercent < 10:
		return "stable"
	case b.CVPercent < 20:
		return "moderately stable"
	default:
		return "unstable"
	}
}

// TraceFigures are whole-trace figures of an offline run. They are computed
// independently of the per-window series: JitterMs is the mean absolute
// deviation over all inter-arrival times of the trace, not an average of
// window jitters.
type TraceFigures struct {
	DurationSeconds float64
	BandwidthMbps   float64
	JitterMs        float64
	Retransmissions Optional[int]
	LossPercent     Optional[float64]
}

// Report is everything produced by one run. CongestionControl names the TCP
// variant under test (cubic, bbr) and is empty when unknown.
type Report struct {
	RunID                string
	Label                string
	Protocol             Protocol
	CongestionControl    string
	StartTime            time.Time
	EndTime              time.Time
	TotalDurationSeconds int
	Windows              []WindowMetrics
	Summary              RunSummary
	Trace                *TraceFigures
}
