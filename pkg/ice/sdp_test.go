package ice

import (
	"net"
	"testing"
)

func TestParseCandidateFromSDPHostLine(t *testing.T) {
	c, err := ParseCandidateFromSDP("candidate:123 1 UDP 12345 192.168.1.1 1234 typ host")
	if err != nil {
		t.Fatalf("ParseCandidateFromSDP: %v", err)
	}
	if c.Foundation != "123" || c.Component != 1 || c.Transport != TransportUDP ||
		c.Priority != 12345 || c.Type != TypeHost {
		t.Fatalf("unexpected candidate: %+v", c)
	}
	if !c.ConnAddr.IP.Equal(net.ParseIP("192.168.1.1")) || c.ConnAddr.Port != 1234 {
		t.Fatalf("unexpected conn addr: %+v", c.ConnAddr)
	}
}

func TestToSDPAndParseRoundTrip(t *testing.T) {
	original := Candidate{
		Foundation: "7",
		Component:  1,
		Transport:  TransportUDP,
		Priority:   2130706431,
		ConnAddr:   net.UDPAddr{IP: net.ParseIP("198.51.100.4"), Port: 9000},
		Type:       TypeHost,
	}

	parsed, err := ParseCandidateFromSDP(original.ToSDP())
	if err != nil {
		t.Fatalf("ParseCandidateFromSDP: %v", err)
	}

	if parsed.Foundation != original.Foundation ||
		parsed.Component != original.Component ||
		parsed.Transport != original.Transport ||
		parsed.Priority != original.Priority ||
		parsed.Type != original.Type ||
		!parsed.ConnAddr.IP.Equal(original.ConnAddr.IP) ||
		parsed.ConnAddr.Port != original.ConnAddr.Port {
		t.Fatalf("round trip mismatch: original=%+v parsed=%+v", original, parsed)
	}
}

func TestParseCandidateFromSDPRejectsMalformedLine(t *testing.T) {
	if _, err := ParseCandidateFromSDP("garbage"); err == nil {
		t.Fatal("expected error for malformed candidate line")
	}
}
