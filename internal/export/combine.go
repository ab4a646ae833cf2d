package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"TransportBench/internal/model"
)

// Combine writes a side-by-side comparison of the client and server reports
// of one experiment. Counts are summed and rates averaged. For QUIC, whose
// retransmissions are not observable, packet loss is estimated from the
// packet count asymmetry between the two ends. Net data loss compares the
// bytes seen by the client to those sent by the server.
func Combine(out io.Writer, client, server *Document) error {
	cs, ss := client.Summary, server.Summary
	rows := [][]string{
		{"Metric Name", "Client", "Server", "Total/Average"},
	}
	if cc := congestionControl(client, server); cc != "" {
		rows = append(rows, []string{"Congestion Control Protocol", orNA(client.CongestionControl), orNA(server.CongestionControl), cc})
	}
	rows = append(rows, [][]string{
		{
			"Duration (seconds)",
			strconv.Itoa(client.TotalDurationSeconds),
			strconv.Itoa(server.TotalDurationSeconds),
			strconv.Itoa(max(client.TotalDurationSeconds, server.TotalDurationSeconds)),
		},
		{
			"Total Packets",
			strconv.Itoa(cs.TotalPackets),
			strconv.Itoa(ss.TotalPackets),
			strconv.Itoa(cs.TotalPackets + ss.TotalPackets),
		},
		{
			"Total Bytes",
			strconv.Itoa(cs.TotalBytes),
			strconv.Itoa(ss.TotalBytes),
			strconv.Itoa(cs.TotalBytes + ss.TotalBytes),
		},
		{
			"Bandwidth (Mbps)",
			formatFloat(cs.AvgBandwidthMbps),
			formatFloat(ss.AvgBandwidthMbps),
			formatFloat((cs.AvgBandwidthMbps + ss.AvgBandwidthMbps) / 2),
		},
		{
			"Jitter (ms)",
			formatFloat(cs.AvgJitterMs),
			formatFloat(ss.AvgJitterMs),
			formatFloat((cs.AvgJitterMs + ss.AvgJitterMs) / 2),
		},
		{
			"RTT (ms)",
			formatOptional(cs.RTTMs),
			formatOptional(ss.RTTMs),
			formatOptional(meanOf(cs.RTTMs, ss.RTTMs)),
		},
		{
			"Retransmissions",
			cs.TotalRetransmissions.String(),
			ss.TotalRetransmissions.String(),
			sumOf(cs.TotalRetransmissions, ss.TotalRetransmissions).String(),
		},
	}...)

	if isQUIC(client) || isQUIC(server) {
		loss := AsymmetryLoss(cs.TotalPackets, ss.TotalPackets)
		rows = append(rows, []string{"Packet Loss (%)", formatFloat(loss), model.NotApplicable, formatFloat(loss)})
	} else {
		rows = append(rows, []string{
			"Packet Loss (%)",
			formatOptional(cs.AvgLossPercent),
			formatOptional(ss.AvgLossPercent),
			formatOptional(meanOf(cs.AvgLossPercent, ss.AvgLossPercent)),
		})
	}

	netLoss := NetDataLoss(cs.TotalBytes, ss.TotalBytes)
	rows = append(rows, []string{"Net Data Loss (%)", formatFloat(netLoss), model.NotApplicable, formatFloat(netLoss)})

	cw := csv.NewWriter(out)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// congestionControl returns the variant shared by both ends, the one end's
// variant when only one is known, or "" when they disagree.
func congestionControl(client, server *Document) string {
	switch {
	case client.CongestionControl == "":
		return server.CongestionControl
	case server.CongestionControl == "" || server.CongestionControl == client.CongestionControl:
		return client.CongestionControl
	default:
		return ""
	}
}

func orNA(s string) string {
	if s == "" {
		return model.NotApplicable
	}
	return s
}

func isQUIC(doc *Document) bool {
	p, err := model.ParseProtocol(doc.Protocol)
	return err == nil && p == model.ProtocolQUIC
}

// AsymmetryLoss estimates loss as the share of packets seen by the busier
// end that the other end never saw.
func AsymmetryLoss(clientPackets, serverPackets int) float64 {
	expected := max(clientPackets, serverPackets)
	if expected == 0 {
		return 0
	}
	lost := expected - min(clientPackets, serverPackets)
	return float64(lost) / float64(expected) * 100
}

// NetDataLoss is the share of the server's bytes missing at the client,
// never negative.
func NetDataLoss(clientBytes, serverBytes int) float64 {
	if serverBytes <= 0 {
		return 0
	}
	return max(0, float64(serverBytes-clientBytes)/float64(serverBytes)*100)
}

// meanOf averages the present values.
func meanOf(a, b model.Optional[float64]) model.Optional[float64] {
	var sum float64
	n := 0
	for _, o := range []model.Optional[float64]{a, b} {
		if v, ok := o.Get(); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return model.None[float64]()
	}
	return model.Some(sum / float64(n))
}

// sumOf adds the present values.
func sumOf(a, b model.Optional[int]) model.Optional[int] {
	av, aok := a.Get()
	bv, bok := b.Get()
	if !aok && !bok {
		return model.None[int]()
	}
	return model.Some(av + bv)
}
