package ice

import (
	"net"
	"testing"
)

func TestComputePriorityOrdersTypesCorrectly(t *testing.T) {
	types := []CandidateType{TypeRelayed, TypeServerReflexive, TypePeerReflexive, TypeHost}
	var priorities []uint32
	for _, ct := range types {
		c := Candidate{Component: 1, Type: ct}
		c.ComputePriority(65535)
		priorities = append(priorities, c.Priority)
	}
	for i := 1; i < len(priorities); i++ {
		if priorities[i] <= priorities[i-1] {
			t.Fatalf("expected strictly increasing priority for relay < srflx < prflx < host, got %v", priorities)
		}
	}
}

func TestComputePriorityPenalizesHigherComponent(t *testing.T) {
	a := Candidate{Component: 1, Type: TypeHost}
	a.ComputePriority(65535)
	b := Candidate{Component: 2, Type: TypeHost}
	b.ComputePriority(65535)

	if b.Priority >= a.Priority {
		t.Fatalf("component 2 priority %d should be lower than component 1 priority %d", b.Priority, a.Priority)
	}
}

func TestToSDPIncludesRelatedAddressWhenPresent(t *testing.T) {
	related := net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 4000}
	c := Candidate{
		Foundation: "1",
		Component:  1,
		Transport:  TransportUDP,
		Priority:   12345,
		ConnAddr:   net.UDPAddr{IP: net.ParseIP("203.0.113.9"), Port: 5000},
		Type:       TypeServerReflexive,
		RelatedAddr: &related,
	}
	line := c.ToSDP()
	if !contains(line, "raddr 10.0.0.1 rport 4000") {
		t.Fatalf("expected raddr/rport in %q", line)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
