package main

import (
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"TransportBench/internal/alerter"
	"TransportBench/internal/config"
	"TransportBench/internal/engine/live"
	_ "TransportBench/internal/export"
	"TransportBench/internal/factory"
	"TransportBench/internal/probe"
	_ "TransportBench/internal/storage"
)

func main() {
	log.Println("Starting tb-engine...")
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	interval, err := cfg.SnapshotInterval()
	if err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Initialize writers, the alerter and the collector
	writers, err := factory.Create(cfg)
	if err != nil {
		log.Fatalf("Failed to create writers: %v", err)
	}
	alert, err := alerter.FromConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to create alerter: %v", err)
	}
	collector := live.NewCollector(live.Config{
		RunID:             uuid.NewString(),
		Label:             cfg.Run.Label,
		Protocol:          cfg.Protocol(),
		CongestionControl: cfg.CongestionControl(),
		InputBuffer:       cfg.Engine.InputBuffer,
		SnapshotInterval:  interval,
		Sinks:             factory.WindowSinks(writers),
	})

	// 3. Expose metrics and health
	healthServer := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	if cfg.Engine.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Engine.GRPCAddr)
		if err != nil {
			log.Fatalf("Failed to listen on %s: %v", cfg.Engine.GRPCAddr, err)
		}
		go func() {
			log.Printf("gRPC health server starting on %s", cfg.Engine.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				log.Printf("gRPC server failed: %v", err)
			}
		}()
	}
	if cfg.Engine.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Printf("Metrics server starting on %s", cfg.Engine.MetricsAddr)
			if err := http.ListenAndServe(cfg.Engine.MetricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Metrics server failed: %v", err)
			}
		}()
	}

	// 4. Subscribe and start collecting
	sub, err := probe.NewSubscriber(cfg.Probe)
	if err != nil {
		log.Fatalf("Failed to create subscriber: %v", err)
	}
	stopChan := make(chan struct{}, 1)
	onStop := func() {
		select {
		case stopChan <- struct{}{}:
		default:
		}
	}
	collector.Start()
	if err := sub.Start(collector.Observe, onStop); err != nil {
		log.Fatalf("Subscriber failed to start: %v", err)
	}
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// 5. Wait for a shutdown signal or the end of the capture
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		log.Println("Shutdown signal received, stopping collector...")
	case <-stopChan:
		log.Println("Capture ended, stopping collector...")
	}

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	sub.Close()
	report := collector.Stop()

	if failed := factory.WriteAll(writers, report); failed > 0 {
		log.Printf("%d writer(s) failed.", failed)
	}
	if alert != nil {
		alert.Check(report)
	}

	grpcServer.GracefulStop()
	log.Println("Shutdown complete.")
}
