package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/gopacket"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"TransportBench/internal/alerter"
	"TransportBench/internal/config"
	"TransportBench/internal/engine/live"
	_ "TransportBench/internal/export"
	"TransportBench/internal/factory"
	"TransportBench/internal/model"
	"TransportBench/internal/probe"
	"TransportBench/internal/probe/persistent"
	_ "TransportBench/internal/storage"
	"TransportBench/pkg/pcap"
)

func main() {
	// --- Command-Line Flag Parsing ---
	mode := flag.String("mode", "local", "Operating mode: 'local' to capture and collect metrics, 'pub' to capture and publish to NATS.")
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	iface := flag.String("iface", "", "Interface to capture packets from. Overrides capture.iface.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *iface != "" {
		cfg.Capture.Interface = *iface
	}
	if cfg.Capture.Interface == "" {
		log.Println("Error: an interface is required (-iface or capture.iface).")
		flag.Usage()
		os.Exit(1)
	}

	// Cancelled on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Mode Dispatch ---
	switch *mode {
	case "local":
		runLocal(ctx, cfg)
	case "pub":
		runPublisher(ctx, cfg)
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode: %s\n", *mode)
		flag.Usage()
		os.Exit(1)
	}
}

func openCapture(cfg *config.Config) *pcap.LiveSource {
	src, err := pcap.OpenLive(pcap.LiveConfig{
		Interface:   cfg.Capture.Interface,
		Filter:      cfg.CaptureFilter(),
		SnapshotLen: cfg.Capture.SnapshotLen,
		Promiscuous: cfg.Capture.Promiscuous,
	})
	if err != nil {
		log.Fatalf("Failed to open capture: %v", err)
	}
	log.Printf("Capturing %s traffic on %s (filter %q).", cfg.Protocol(), cfg.Capture.Interface, cfg.CaptureFilter())
	return src
}

func serveMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("Metrics server starting on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server failed: %v", err)
		}
	}()
}

// runLocal captures packets and collects metrics in this process until a
// shutdown signal, then writes the run.
func runLocal(ctx context.Context, cfg *config.Config) {
	log.Println("Starting tb-probe in LOCAL mode...")

	writers, err := factory.Create(cfg)
	if err != nil {
		log.Fatalf("Failed to create writers: %v", err)
	}
	alert, err := alerter.FromConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to create alerter: %v", err)
	}
	interval, err := cfg.SnapshotInterval()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	src := openCapture(cfg)
	defer src.Close()

	var tap func(gopacket.Packet)
	var saver *persistent.Worker
	if cfg.Capture.Persistence.Enabled {
		saver, err = persistent.NewWorker(cfg.Capture.Persistence, src.LinkType(), uint32(cfg.Capture.SnapshotLen))
		if err != nil {
			log.Fatalf("Failed to start persistence: %v", err)
		}
		tap = saver.Enqueue
	}

	serveMetrics(cfg.Engine.MetricsAddr)

	collector := live.NewCollector(live.Config{
		RunID:             uuid.NewString(),
		Label:             cfg.Run.Label,
		Protocol:          cfg.Protocol(),
		CongestionControl: cfg.CongestionControl(),
		InputBuffer:       cfg.Engine.InputBuffer,
		SnapshotInterval:  interval,
		Sinks:             factory.WindowSinks(writers),
	})

	observations := make(chan model.PacketObservation, cfg.Engine.InputBuffer)
	captureDone := make(chan struct{})
	go func() {
		defer close(captureDone)
		if err := src.Capture(ctx, observations, tap); err != nil {
			log.Printf("Capture error: %v", err)
		}
		if saver != nil {
			saver.Stop()
		}
	}()

	// Capture closes observations on shutdown, so every captured packet is
	// aggregated before the collector stops.
	report := collector.Run(context.Background(), observations)
	<-captureDone
	log.Println("Shutdown signal received, writing results...")

	if failed := factory.WriteAll(writers, report); failed > 0 {
		log.Printf("%d writer(s) failed.", failed)
	}
	if alert != nil {
		alert.Check(report)
	}
	log.Println("Shutdown complete.")
}

// runPublisher captures packets and publishes them to NATS for tb-engine.
func runPublisher(ctx context.Context, cfg *config.Config) {
	log.Println("Starting tb-probe in PUB mode...")

	pub, err := probe.NewPublisher(cfg.Probe)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	src := openCapture(cfg)
	defer src.Close()

	observations := make(chan model.PacketObservation, 1024)
	go func() {
		if err := src.Capture(ctx, observations, nil); err != nil {
			log.Printf("Capture error: %v", err)
		}
	}()

	for obs := range observations {
		if err := pub.Publish(obs); err != nil {
			log.Printf("Failed to publish packet: %v", err)
			continue
		}
		if n := pub.Published(); n%1000 == 0 {
			log.Printf("%d packets published...", n)
		}
	}

	log.Println("Shutdown signal received, cleaning up...")
	if err := pub.PublishStop(); err != nil {
		log.Printf("Failed to announce end of capture: %v", err)
	}
}
