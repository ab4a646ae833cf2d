package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"TransportBench/internal/model"
)

// Compare writes the summaries of several runs side by side, one column per
// run, followed by rank rows: bandwidth ranks highest first, jitter and loss
// rank lowest first. Runs without a figure are N/A and unranked.
func Compare(out io.Writer, docs []*Document) error {
	if len(docs) < 2 {
		return fmt.Errorf("comparison needs at least 2 reports, got %d", len(docs))
	}

	header := []string{"Metric"}
	for _, doc := range docs {
		header = append(header, columnName(doc))
	}
	rows := [][]string{header}

	row := func(name string, cell func(*Document) string) {
		r := []string{name}
		for _, doc := range docs {
			r = append(r, cell(doc))
		}
		rows = append(rows, r)
	}
	row("Total Packets", func(d *Document) string { return strconv.Itoa(d.Summary.TotalPackets) })
	row("Total Bytes", func(d *Document) string { return strconv.Itoa(d.Summary.TotalBytes) })
	row("Avg Bandwidth (Mbps)", func(d *Document) string { return formatFloat(d.Summary.AvgBandwidthMbps) })
	row("Avg Jitter (ms)", func(d *Document) string { return formatFloat(d.Summary.AvgJitterMs) })
	row("Total Retransmissions", func(d *Document) string { return d.Summary.TotalRetransmissions.String() })
	row("Avg Loss (%)", func(d *Document) string { return formatOptional(d.Summary.AvgLossPercent) })
	row("RTT (ms)", func(d *Document) string { return formatOptional(d.Summary.RTTMs) })
	row("Bandwidth CV (%)", func(d *Document) string { return formatFloat(d.Summary.BandwidthStability.CVPercent) })

	bandwidth := make([]model.Optional[float64], len(docs))
	jitter := make([]model.Optional[float64], len(docs))
	loss := make([]model.Optional[float64], len(docs))
	for i, doc := range docs {
		bandwidth[i] = model.Some(doc.Summary.AvgBandwidthMbps)
		jitter[i] = model.Some(doc.Summary.AvgJitterMs)
		loss[i] = doc.Summary.AvgLossPercent
	}
	rows = append(rows,
		rankRow("Bandwidth Rank", Rank(bandwidth, true)),
		rankRow("Jitter Rank", Rank(jitter, false)),
		rankRow("Loss Rank", Rank(loss, false)),
	)

	cw := csv.NewWriter(out)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// columnName names a run in the comparison header.
func columnName(doc *Document) string {
	switch {
	case doc.Label != "":
		return doc.Label
	case doc.CongestionControl != "":
		return strings.ToUpper(doc.CongestionControl)
	default:
		return strings.ToUpper(doc.Protocol)
	}
}

// Rank returns the 1-based competition rank of every present value: equal
// values share a rank and the next rank is skipped. Absent values stay
// absent.
func Rank(values []model.Optional[float64], higherIsBetter bool) []model.Optional[int] {
	ranks := make([]model.Optional[int], len(values))
	for i, o := range values {
		v, ok := o.Get()
		if !ok {
			continue
		}
		better := 0
		for _, other := range values {
			w, ok := other.Get()
			if !ok {
				continue
			}
			if (higherIsBetter && w > v) || (!higherIsBetter && w < v) {
				better++
			}
		}
		ranks[i] = model.Some(better + 1)
	}
	return ranks
}

func rankRow(name string, ranks []model.Optional[int]) []string {
	r := []string{name}
	for _, rank := range ranks {
		r = append(r, rank.String())
	}
	return r
}
