package ice

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ParseCandidateFromSDP parses a "candidate:..." line produced by
// Candidate.ToSDP, as sent by a remote peer over the signaling
// channel.
func ParseCandidateFromSDP(line string) (Candidate, error) {
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return Candidate{}, fmt.Errorf("ice: malformed candidate line %q", line)
	}

	foundationField := fields[0]
	const prefix = "candidate:"
	if !strings.HasPrefix(foundationField, prefix) {
		return Candidate{}, fmt.Errorf("ice: candidate line missing %q prefix", prefix)
	}
	foundation := strings.TrimPrefix(foundationField, prefix)

	component, err := strconv.Atoi(fields[1])
	if err != nil {
		return Candidate{}, fmt.Errorf("ice: invalid component %q: %w", fields[1], err)
	}

	var transport Transport
	switch strings.ToUpper(fields[2]) {
	case "UDP":
		transport = TransportUDP
	case "TCP":
		transport = TransportTCP
	default:
		return Candidate{}, fmt.Errorf("ice: unknown transport %q", fields[2])
	}

	priority, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return Candidate{}, fmt.Errorf("ice: invalid priority %q: %w", fields[3], err)
	}

	ip := net.ParseIP(fields[4])
	if ip == nil {
		return Candidate{}, fmt.Errorf("ice: invalid ip %q", fields[4])
	}
	port, err := strconv.Atoi(fields[5])
	if err != nil {
		return Candidate{}, fmt.Errorf("ice: invalid port %q: %w", fields[5], err)
	}

	if fields[6] != "typ" {
		return Candidate{}, fmt.Errorf("ice: expected 'typ', got %q", fields[6])
	}
	var candType CandidateType
	switch fields[7] {
	case "host":
		candType = TypeHost
	case "srflx":
		candType = TypeServerReflexive
	case "prflx":
		candType = TypePeerReflexive
	case "relay":
		candType = TypeRelayed
	default:
		return Candidate{}, fmt.Errorf("ice: unknown candidate type %q", fields[7])
	}

	cand := Candidate{
		Foundation: foundation,
		Component:  component,
		Transport:  transport,
		Priority:   uint32(priority),
		ConnAddr:   net.UDPAddr{IP: ip, Port: port},
		Type:       candType,
	}

	if len(fields) >= 12 && fields[8] == "raddr" && fields[10] == "rport" {
		raddrIP := net.ParseIP(fields[9])
		rport, rerr := strconv.Atoi(fields[11])
		if raddrIP != nil && rerr == nil {
			cand.RelatedAddr = &net.UDPAddr{IP: raddrIP, Port: rport}
		}
	}

	return cand, nil
}
