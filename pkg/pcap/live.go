package pcap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"TransportBench/internal/engine/protocol"
	"TransportBench/internal/model"
)

// readTimeout bounds each blocking read so cancellation is noticed promptly.
const readTimeout = 250 * time.Millisecond

// LiveConfig describes a live capture.
type LiveConfig struct {
	Interface   string
	Filter      string
	SnapshotLen int32
	Promiscuous bool
}

// LiveSource captures packets from a network interface.
type LiveSource struct {
	handle *pcap.Handle
	source *gopacket.PacketSource
}

// OpenLive opens the interface for capture.
func OpenLive(cfg LiveConfig) (*LiveSource, error) {
	if cfg.SnapshotLen <= 0 {
		cfg.SnapshotLen = 1600
	}
	handle, err := pcap.OpenLive(cfg.Interface, cfg.SnapshotLen, cfg.Promiscuous, readTimeout)
	if err != nil {
		return nil, fmt.Errorf("error opening device %s: %w", cfg.Interface, err)
	}
	if cfg.Filter != "" {
		if err := handle.SetBPFFilter(cfg.Filter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("failed to set BPF filter %q: %w", cfg.Filter, err)
		}
	}
	return &LiveSource{
		handle: handle,
		source: gopacket.NewPacketSource(handle, handle.LinkType()),
	}, nil
}

// LinkType returns the link type of the capture, needed to persist it.
func (s *LiveSource) LinkType() layers.LinkType {
	return s.handle.LinkType()
}

// Close closes the pcap handle.
func (s *LiveSource) Close() {
	s.handle.Close()
}

// Capture delivers observations to out until ctx is cancelled or the
// capture ends, then closes out. The consumer must keep reading out until
// it is closed. When tap is non-nil it receives every raw
// packet before it is observed.
func (s *LiveSource) Capture(ctx context.Context, out chan<- model.PacketObservation, tap func(gopacket.Packet)) error {
	defer close(out)
	captured := 0
	for {
		if ctx.Err() != nil {
			log.Printf("Capture stopped after %d packets.", captured)
			return nil
		}
		packet, err := s.source.NextPacket()
		switch {
		case err == nil:
		case errors.Is(err, pcap.NextErrorTimeoutExpired):
			continue
		case errors.Is(err, io.EOF):
			return nil
		default:
			return fmt.Errorf("capture failed after %d packets: %w", captured, err)
		}

		if tap != nil {
			tap(packet)
		}
		captured++
		// Blocking send: the consumer reads until out is closed, so a
		// captured packet is never lost on shutdown.
		out <- protocol.FromPacket(packet)
	}
}
