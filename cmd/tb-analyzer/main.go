package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"TransportBench/internal/alerter"
	"TransportBench/internal/config"
	"TransportBench/internal/engine/offline"
	_ "TransportBench/internal/export"
	"TransportBench/internal/factory"
	"TransportBench/internal/model"
	_ "TransportBench/internal/storage"
	"TransportBench/pkg/pcap"
)

func main() {
	// 1. Parse flags and the pcap file path
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	protocolFlag := flag.String("protocol", "", "Protocol of the trace (tcp, cubic, bbr, udp, quic). Overrides run.protocol.")
	label := flag.String("label", "", "Label of the run. Overrides run.label.")
	filter := flag.String("filter", "", "BPF filter applied to the trace.")
	runID := flag.String("run-id", "", "Run id. A random one is generated when empty.")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <path_to_pcap_file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	pcapFilePath := flag.Arg(0)

	// 2. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *protocolFlag != "" {
		cfg.Run.Protocol = *protocolFlag
	}
	if *label != "" {
		cfg.Run.Label = *label
	}
	protocol, err := model.ParseProtocol(cfg.Run.Protocol)
	if err != nil {
		log.Fatalf("Invalid protocol: %v", err)
	}
	if *runID == "" {
		*runID = uuid.NewString()
	}
	log.Println("Configuration loaded successfully.")

	// 3. Initialize writers and the alerter
	writers, err := factory.Create(cfg)
	if err != nil {
		log.Fatalf("Failed to create writers: %v", err)
	}
	alert, err := alerter.FromConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to create alerter: %v", err)
	}

	pcapReader, err := pcap.NewReader(pcapFilePath, *filter)
	if err != nil {
		log.Fatalf("Failed to open pcap file: %v", err)
	}
	defer pcapReader.Close()
	log.Printf("Reading packets from '%s' as %s...", pcapFilePath, protocol)

	// 4. Replay the trace. A read error keeps the partial result.
	report, err := offline.Analyze(pcapReader, offline.Options{
		RunID:             *runID,
		Label:             cfg.Run.Label,
		Protocol:          protocol,
		CongestionControl: cfg.CongestionControl(),
	})
	if err != nil {
		log.Printf("Warning: %v", err)
	}
	log.Printf("Finished reading %d packets: %d window(s), %.2f Mbps average (%s).",
		pcapReader.Read(), len(report.Windows), report.Summary.AvgBandwidthMbps, report.Summary.Stability.Rating())

	// 5. Persist and evaluate the run
	if failed := factory.WriteAll(writers, report); failed > 0 {
		log.Printf("%d writer(s) failed.", failed)
	}
	if alert != nil {
		alert.Check(report)
	}
	log.Printf("Analysis of run '%s' complete.", report.RunID)
}
