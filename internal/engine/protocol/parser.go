package protocol

import (
	"net"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"TransportBench/internal/model"
)

// FromPacket builds an observation from a decoded packet. Every packet is
// observed; Transport is only filled for TCP segments carried over IPv4 or
// IPv6. A packet whose transport layer fails to decode is still counted.
func FromPacket(packet gopacket.Packet) model.PacketObservation {
	obs := model.PacketObservation{
		Timestamp: time.Now(), // Overwritten by capture metadata when available
		Size:      len(packet.Data()),
	}
	if md := packet.Metadata(); md != nil {
		if !md.Timestamp.IsZero() {
			obs.Timestamp = md.Timestamp
		}
		// Wire length, not the possibly truncated snapshot length.
		if md.Length > 0 {
			obs.Size = md.Length
		}
	}

	var srcIP, dstIP net.IP
	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		srcIP, dstIP = ip.SrcIP, ip.DstIP
	} else if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		srcIP, dstIP = ip.SrcIP, ip.DstIP
	} else {
		return obs
	}

	l := packet.Layer(layers.LayerTypeTCP)
	if l == nil {
		// UDP (and therefore QUIC) carries no observable sequence numbers.
		return obs
	}
	tcp := l.(*layers.TCP)
	obs.Transport = &model.TransportInfo{
		SrcAddr: net.JoinHostPort(srcIP.String(), strconv.Itoa(int(tcp.SrcPort))),
		DstAddr: net.JoinHostPort(dstIP.String(), strconv.Itoa(int(tcp.DstPort))),
		Seq:     tcp.Seq,
		Ack:     tcp.Ack,
		Flags:   tcpFlags(tcp),
	}
	return obs
}

func tcpFlags(tcp *layers.TCP) uint8 {
	var f uint8
	if tcp.FIN {
		f |= model.FlagFIN
	}
	if tcp.SYN {
		f |= model.FlagSYN
	}
	if tcp.RST {
		f |= model.FlagRST
	}
	if tcp.PSH {
		f |= model.FlagPSH
	}
	if tcp.ACK {
		f |= model.FlagACK
	}
	return f
}
