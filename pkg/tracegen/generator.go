package tracegen

import (
	"fmt"
	"io"
	"math/rand"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"TransportBench/internal/model"
)

// Options describe a synthetic benchmark flow.
type Options struct {
	Protocol model.Protocol
	Start    time.Time
	Duration time.Duration
	// PacketsPerSecond is the data packet rate of the sender.
	PacketsPerSecond int
	PayloadSize      int
	// RetransmitRate is the probability that a TCP segment is sent twice.
	RetransmitRate float64
	// RTT separates the SYN from the SYN-ACK of a TCP handshake.
	RTT  time.Duration
	Seed int64
}

// Stats describe a generated trace.
type Stats struct {
	Packets         int
	Bytes           int
	Retransmissions int
}

var (
	clientIP  = net.IP{10, 0, 0, 1}
	serverIP  = net.IP{10, 0, 0, 2}
	clientMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	serverMAC = net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA}
)

const (
	clientPort = 40000
	serverPort = 5201
	quicPort   = 443
)

type generator struct {
	opts   Options
	writer *pcapgo.Writer
	buf    gopacket.SerializeBuffer
	stats  Stats
}

// Generate writes a pcap trace of one client to server flow to out.
func Generate(out io.Writer, opts Options) (Stats, error) {
	if opts.PacketsPerSecond <= 0 {
		opts.PacketsPerSecond = 100
	}
	if opts.PayloadSize <= 0 {
		opts.PayloadSize = 1200
	}
	if opts.Duration <= 0 {
		opts.Duration = time.Second
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now()
	}

	g := &generator{opts: opts, writer: pcapgo.NewWriter(out), buf: gopacket.NewSerializeBuffer()}
	if err := g.writer.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return g.stats, fmt.Errorf("failed to write pcap header: %w", err)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	interval := time.Second / time.Duration(opts.PacketsPerSecond)
	ts := opts.Start

	sequenced := opts.Protocol.Sequenced()
	seq := uint32(rng.Int31())
	if sequenced {
		if err := g.tcp(ts, false, seq, 0, &layers.TCP{SYN: true}); err != nil {
			return g.stats, err
		}
		ts = ts.Add(opts.RTT)
		if err := g.tcp(ts, true, uint32(rng.Int31()), seq+1, &layers.TCP{SYN: true, ACK: true}); err != nil {
			return g.stats, err
		}
		seq++
	}

	payload := make([]byte, opts.PayloadSize)
	rng.Read(payload)
	end := opts.Start.Add(opts.Duration)
	for ts = ts.Add(interval); ts.Before(end); ts = ts.Add(interval) {
		if !sequenced {
			if err := g.udp(ts, payload); err != nil {
				return g.stats, err
			}
			continue
		}
		if err := g.tcp(ts, false, seq, 1, &layers.TCP{ACK: true, PSH: true}, payload); err != nil {
			return g.stats, err
		}
		if rng.Float64() < opts.RetransmitRate {
			ts = ts.Add(interval / 2)
			if err := g.tcp(ts, false, seq, 1, &layers.TCP{ACK: true, PSH: true}, payload); err != nil {
				return g.stats, err
			}
			g.stats.Retransmissions++
		}
		seq += uint32(len(payload))
	}
	return g.stats, nil
}

func (g *generator) tcp(ts time.Time, fromServer bool, seq, ack uint32, tcp *layers.TCP, payload ...[]byte) error {
	eth := &layers.Ethernet{SrcMAC: clientMAC, DstMAC: serverMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{SrcIP: clientIP, DstIP: serverIP, Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP}
	tcp.SrcPort, tcp.DstPort = clientPort, serverPort
	if fromServer {
		eth.SrcMAC, eth.DstMAC = serverMAC, clientMAC
		ip.SrcIP, ip.DstIP = serverIP, clientIP
		tcp.SrcPort, tcp.DstPort = serverPort, clientPort
	}
	tcp.Seq, tcp.Ack, tcp.Window = seq, ack, 14600
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return err
	}

	ls := []gopacket.SerializableLayer{eth, ip, tcp}
	for _, p := range payload {
		ls = append(ls, gopacket.Payload(p))
	}
	return g.write(ts, ls...)
}

func (g *generator) udp(ts time.Time, payload []byte) error {
	dst := layers.UDPPort(serverPort)
	if g.opts.Protocol == model.ProtocolQUIC {
		dst = quicPort
	}
	eth := &layers.Ethernet{SrcMAC: clientMAC, DstMAC: serverMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{SrcIP: clientIP, DstIP: serverIP, Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP}
	udp := &layers.UDP{SrcPort: clientPort, DstPort: dst}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return err
	}
	return g.write(ts, eth, ip, udp, gopacket.Payload(payload))
}

func (g *generator) write(ts time.Time, ls ...gopacket.SerializableLayer) error {
	opts := gopacket.SerializeOptions{
		ComputeChecksums: true,
		FixLengths:       true,
	}
	if err := gopacket.SerializeLayers(g.buf, opts, ls...); err != nil {
		return fmt.Errorf("failed to serialize layers: %w", err)
	}
	data := g.buf.Bytes()
	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(data),
		Length:        len(data),
	}
	if err := g.writer.WritePacket(ci, data); err != nil {
		return fmt.Errorf("failed to write packet: %w", err)
	}
	g.stats.Packets++
	g.stats.Bytes += len(data)
	return nil
}
