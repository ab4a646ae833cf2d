package protocol

import (
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"TransportBench/internal/model"
)

var ts = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func ethernet() *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
}

func ipv4(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: proto,
		SrcIP:    net.IPv4(10, 0, 0, 1),
		DstIP:    net.IPv4(10, 0, 0, 2),
	}
}

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		t.Fatalf("Failed to serialize packet: %v", err)
	}
	return buf.Bytes()
}

// decode builds a captured Ethernet frame the way a packet source does.
func decode(data []byte) gopacket.Packet {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	md := packet.Metadata()
	md.Timestamp = ts
	md.CaptureLength = len(data)
	md.Length = len(data)
	return packet
}

func TestFromPacket_TCPSegment(t *testing.T) {
	ip := ipv4(layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 5201, Seq: 12345, Ack: 678, SYN: true, ACK: true, Window: 64240}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("Failed to set network layer: %v", err)
	}
	data := serialize(t, ethernet(), ip, tcp, gopacket.Payload([]byte("hello")))

	obs := FromPacket(decode(data))
	if !obs.Timestamp.Equal(ts) {
		t.Errorf("Expected capture timestamp %s, got %s", ts, obs.Timestamp)
	}
	if obs.Size != len(data) {
		t.Errorf("Expected size %d, got %d", len(data), obs.Size)
	}
	if obs.Transport == nil {
		t.Fatal("Expected transport metadata for a TCP segment")
	}
	tr := obs.Transport
	if tr.SrcAddr != "10.0.0.1:40000" || tr.DstAddr != "10.0.0.2:5201" {
		t.Errorf("Unexpected addresses %s -> %s", tr.SrcAddr, tr.DstAddr)
	}
	if tr.Seq != 12345 || tr.Ack != 678 {
		t.Errorf("Unexpected seq/ack %d/%d", tr.Seq, tr.Ack)
	}
	if !tr.Has(model.FlagSYN|model.FlagACK) || tr.Has(model.FlagFIN) {
		t.Errorf("Unexpected flags %#x", tr.Flags)
	}
}

func TestFromPacket_UDPDatagramHasNoTransport(t *testing.T) {
	ip := ipv4(layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: 4433, DstPort: 50000}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("Failed to set network layer: %v", err)
	}
	data := serialize(t, ethernet(), ip, udp, gopacket.Payload(make([]byte, 1200)))

	obs := FromPacket(decode(data))
	if obs.Transport != nil {
		t.Errorf("UDP datagram must not carry sequence metadata, got %+v", obs.Transport)
	}
	if obs.Size != len(data) {
		t.Errorf("UDP datagram must still be sized, got %d", obs.Size)
	}
}

func TestFromPacket_GarbageStillCounted(t *testing.T) {
	obs := FromPacket(decode([]byte{0xde, 0xad, 0xbe, 0xef}))
	if obs.Transport != nil {
		t.Error("Undecodable frame must not carry transport metadata")
	}
	if obs.Size != 4 || !obs.Timestamp.Equal(ts) {
		t.Errorf("Undecodable frame must still be observed, got %+v", obs)
	}
}

func TestFromPacket_UsesWireLength(t *testing.T) {
	ip := ipv4(layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: 1, DstPort: 2, Seq: 1, ACK: true}
	_ = tcp.SetNetworkLayerForChecksum(ip)
	data := serialize(t, ethernet(), ip, tcp)

	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	packet.Metadata().Timestamp = ts
	packet.Metadata().CaptureLength = len(data)
	packet.Metadata().Length = 1514

	if obs := FromPacket(packet); obs.Size != 1514 {
		t.Errorf("Expected wire length 1514, got %d", obs.Size)
	}
}
