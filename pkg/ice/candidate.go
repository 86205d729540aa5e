// Package ice implements a bespoke ICE-lite connectivity establishment
// agent: candidate gathering over UDP, pair formation, priority-driven
// connectivity checks, and SDP-style candidate serialization. It talks
// the wire-level STUN protocol via pkg/nat/stun and obtains relay
// allocations via pkg/nat/turn; it does not depend on a full ICE
// implementation from the ecosystem because the protocol surface here
// is deliberately narrowed to what a two-party voice call needs.
package ice

import (
	"fmt"
	"net"
)

// Transport is the candidate's transport protocol.
type Transport int

const (
	TransportUDP Transport = iota
	TransportTCP
)

func (t Transport) String() string {
	if t == TransportTCP {
		return "TCP"
	}
	return "UDP"
}

// CandidateType classifies how a candidate's address was obtained.
type CandidateType int

const (
	TypeHost CandidateType = iota
	TypeServerReflexive
	TypePeerReflexive
	TypeRelayed
)

func (t CandidateType) String() string {
	switch t {
	case TypeHost:
		return "host"
	case TypeServerReflexive:
		return "srflx"
	case TypePeerReflexive:
		return "prflx"
	case TypeRelayed:
		return "relay"
	default:
		return "unknown"
	}
}

// typePreference implements the typePref term of the candidate
// priority formula: Host=126, PeerReflexive=110, ServerReflexive=100,
// Relayed=0.
func (t CandidateType) typePreference() uint32 {
	switch t {
	case TypeHost:
		return 126
	case TypePeerReflexive:
		return 110
	case TypeServerReflexive:
		return 100
	case TypeRelayed:
		return 0
	default:
		return 0
	}
}

// Candidate is one address a peer can be reached at.
type Candidate struct {
	Foundation    string
	Component     int
	Transport     Transport
	Priority      uint32
	ConnAddr      net.UDPAddr
	BaseAddr      net.UDPAddr
	Type          CandidateType
	RelatedAddr   *net.UDPAddr
}

// ComputePriority fills in Priority from the formula
// 2^24*typePref + 2^8*localPref + (256 - componentId).
func (c *Candidate) ComputePriority(localPref uint32) {
	comp := uint32(256 - c.Component)
	c.Priority = (1<<24)*c.Type.typePreference() + (1<<8)*localPref + comp
}

func connAddrKey(a net.UDPAddr) string {
	return a.String()
}

// ToSDP renders the candidate in the
// "candidate:<foundation> <component> <transport> <priority> <ip> <port> typ <type>[ raddr <ip> rport <port>]"
// form.
func (c Candidate) ToSDP() string {
	line := fmt.Sprintf("candidate:%s %d %s %d %s %d typ %s",
		c.Foundation, c.Component, c.Transport, c.Priority,
		c.ConnAddr.IP.String(), c.ConnAddr.Port, c.Type)
	if c.RelatedAddr != nil {
		line += fmt.Sprintf(" raddr %s rport %d", c.RelatedAddr.IP.String(), c.RelatedAddr.Port)
	}
	return line
}
