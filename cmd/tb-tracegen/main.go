package main

import (
	"flag"
	"log"
	"os"
	"time"

	"TransportBench/internal/model"
	"TransportBench/pkg/tracegen"
)

func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	protocolFlag := flag.String("protocol", "tcp", "Protocol of the flow (tcp, cubic, bbr, udp, quic)")
	duration := flag.Duration("d", 10*time.Second, "Duration of the flow")
	rate := flag.Int("pps", 1000, "Data packets per second")
	size := flag.Int("size", 1200, "Payload size in bytes")
	retransmit := flag.Float64("retransmit", 0, "Probability that a TCP segment is retransmitted")
	rtt := flag.Duration("rtt", 20*time.Millisecond, "Handshake round-trip time")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	protocol, err := model.ParseProtocol(*protocolFlag)
	if err != nil {
		log.Fatalf("Invalid protocol: %v", err)
	}

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	log.Printf("Generating a %s %s flow into %s...", *duration, protocol, *outputFile)
	stats, err := tracegen.Generate(f, tracegen.Options{
		Protocol:         protocol,
		Duration:         *duration,
		PacketsPerSecond: *rate,
		PayloadSize:      *size,
		RetransmitRate:   *retransmit,
		RTT:              *rtt,
		Seed:             *seed,
	})
	if err != nil {
		log.Fatalf("Failed to generate trace: %v", err)
	}

	log.Printf("Successfully generated %d packets (%d bytes, %d retransmissions) into %s.",
		stats.Packets, stats.Bytes, stats.Retransmissions, *outputFile)
}
