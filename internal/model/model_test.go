package model

import "testing"

func TestParseProtocolAndCongestionControl(t *testing.T) {
	cases := []struct {
		in      string
		proto   Protocol
		variant string
	}{
		{"tcp", ProtocolTCP, ""},
		{"cubic", ProtocolTCP, "cubic"},
		{" TCP-BBR ", ProtocolTCP, "bbr"},
		{"quic", ProtocolQUIC, ""},
		{"udp", ProtocolUDP, ""},
	}
	for _, c := range cases {
		p, err := ParseProtocol(c.in)
		if err != nil || p != c.proto {
			t.Errorf("ParseProtocol(%q) = %q, %v; want %q", c.in, p, err, c.proto)
		}
		if got := CongestionControl(c.in); got != c.variant {
			t.Errorf("CongestionControl(%q) = %q, want %q", c.in, got, c.variant)
		}
	}
	if _, err := ParseProtocol("sctp"); err == nil {
		t.Error("Expected an error for an unknown protocol")
	}
}
