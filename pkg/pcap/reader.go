package pcap

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"TransportBench/internal/engine/protocol"
	"TransportBench/internal/model"
)

// Reader replays the packets of a saved trace as observations.
type Reader struct {
	handle *pcap.Handle
	source *gopacket.PacketSource
	read   int
}

// NewReader opens a pcap or pcapng file. filter, when non-empty, is applied
// as a BPF filter.
func NewReader(filePath, filter string) (*Reader, error) {
	handle, err := pcap.OpenOffline(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace '%s': %w", filePath, err)
	}
	if filter != "" {
		if err := handle.SetBPFFilter(filter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("failed to set BPF filter %q: %w", filter, err)
		}
	}
	source := gopacket.NewPacketSource(handle, handle.LinkType())
	source.Lazy = true
	source.NoCopy = true
	return &Reader{handle: handle, source: source}, nil
}

// Close closes the pcap handle.
func (r *Reader) Close() {
	r.handle.Close()
}

// Next returns the next observation of the trace, or io.EOF at its end.
func (r *Reader) Next() (model.PacketObservation, error) {
	packet, err := r.source.NextPacket()
	if errors.Is(err, io.EOF) {
		return model.PacketObservation{}, io.EOF
	}
	if err != nil {
		return model.PacketObservation{}, fmt.Errorf("failed to read packet %d: %w", r.read+1, err)
	}
	r.read++
	return protocol.FromPacket(packet), nil
}

// Read returns the number of packets read so far.
func (r *Reader) Read() int {
	return r.read
}
