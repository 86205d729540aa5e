package ice

import "time"

// PairState is the connectivity-check lifecycle of a CandidatePair.
type PairState int

const (
	PairFrozen PairState = iota
	PairWaiting
	PairInProgress
	PairSucceeded
	PairFailed
)

func (s PairState) String() string {
	switch s {
	case PairFrozen:
		return "frozen"
	case PairWaiting:
		return "waiting"
	case PairInProgress:
		return "in-progress"
	case PairSucceeded:
		return "succeeded"
	case PairFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CandidatePair is one (local, remote) address combination under
// consideration.
type CandidatePair struct {
	Local  Candidate
	Remote Candidate

	Priority   uint64
	State      PairState
	Nominated  bool
	LastCheck  time.Time
	RTT        time.Duration
}

// ComputePairPriority fills Priority using
// 2^32*min(G,D) + 2*max(G,D) + (G>D ? 1 : 0), where G and D are the
// greater and lesser of the two candidates' priorities. This formula
// is symmetric under swapping local and remote.
func (p *CandidatePair) ComputePairPriority() {
	g := uint64(p.Local.Priority)
	d := uint64(p.Remote.Priority)
	if d > g {
		g, d = d, g
	}
	p.Priority = (1<<32)*d + 2*g
	if g > d {
		p.Priority++
	}
}

func pairKey(local, remote Candidate) string {
	return local.ConnAddr.String() + "|" + remote.ConnAddr.String()
}
