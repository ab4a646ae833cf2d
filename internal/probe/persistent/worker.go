package persistent

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"TransportBench/internal/config"
	"TransportBench/internal/metrics"
)

// Worker saves a copy of a live capture to a pcap file so the run can be
// analyzed again offline.
type Worker struct {
	packetChan chan gopacket.Packet
	file       *os.File
	writer     *pcapgo.Writer
	wg         sync.WaitGroup
	stopOnce   sync.Once
	written    int
}

// NewWorker creates the output file in cfg.Path and starts the writer
// goroutine. linkType and snapLen must match the capture.
func NewWorker(cfg config.PersistenceConfig, linkType layers.LinkType, snapLen uint32) (*Worker, error) {
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create persistence directory: %w", err)
	}

	bufferSize := cfg.ChannelBufferSize
	if bufferSize <= 0 {
		bufferSize = 10000 // Default value
	}

	fileName := fmt.Sprintf("%s.pcap", time.Now().Format("2006-01-02_15-04-05"))
	file, err := os.OpenFile(filepath.Join(cfg.Path, fileName), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	writer := pcapgo.NewWriter(file)
	if err := writer.WriteFileHeader(snapLen, linkType); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write pcap file header: %w", err)
	}

	w := &Worker{
		packetChan: make(chan gopacket.Packet, bufferSize),
		file:       file,
		writer:     writer,
	}
	w.wg.Add(1)
	go w.run()

	log.Printf("Persistent worker started, writing to: %s", file.Name())
	return w, nil
}

// Path returns the path of the output file.
func (w *Worker) Path() string {
	return w.file.Name()
}

// A single writer keeps packets in capture order.
func (w *Worker) run() {
	defer w.wg.Done()
	for packet := range w.packetChan {
		if err := w.writer.WritePacket(packet.Metadata().CaptureInfo, packet.Data()); err != nil {
			log.Printf("PersistentWorker: Error writing packet: %v", err)
			continue
		}
		w.written++
	}
}

// Enqueue hands a packet to the writer. The capture is never blocked: when
// the buffer is full the packet is dropped from the saved copy only.
func (w *Worker) Enqueue(packet gopacket.Packet) {
	select {
	case w.packetChan <- packet:
	default:
		metrics.DroppedObservationsTotal.WithLabelValues("persistence").Inc()
	}
}

// Stop writes the remaining packets and closes the file. It must not be
// called concurrently with Enqueue.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.packetChan)
		w.wg.Wait()
		if err := w.file.Close(); err != nil {
			log.Printf("PersistentWorker: Error closing file: %v", err)
		}
		log.Printf("Persistent worker stopped after writing %d packets.", w.written)
	})
}

// Written returns the number of packets saved. Valid after Stop.
func (w *Worker) Written() int {
	return w.written
}
