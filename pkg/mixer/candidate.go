package mixer

import "math"

// Role is a participant's current position in the topology.
type Role int

const (
	RolePeer Role = iota
	RoleMixer
)

// Candidate carries the metrics Score needs for one participant
// (local or remote).
type Candidate struct {
	PeerID            string
	BandwidthBps      float64
	LatencyVarianceMs float64
	CPUPercent        float64
	MemPercent        float64
	SessionDurationS  float64
}

// Weights are the subscore weights used by Score; they must sum to 1.
type Weights struct {
	Bandwidth float64
	Stability float64
	Resource  float64
	Duration  float64
}

// DefaultWeights matches the reference scoring formula: 0.40
// bandwidth, 0.25 stability, 0.20 resource, 0.15 duration.
var DefaultWeights = Weights{Bandwidth: 0.40, Stability: 0.25, Resource: 0.20, Duration: 0.15}

const epsilon = 1e-9

func bandwidthScore(c Candidate) float64 {
	return math.Min(c.BandwidthBps/10_000_000, 1)
}

func stabilityScore(c Candidate) float64 {
	if c.LatencyVarianceMs == 0 {
		return 1
	}
	return 1 / (1 + math.Sqrt(c.LatencyVarianceMs)/100)
}

func resourceScore(c Candidate) float64 {
	cpu := 1 - math.Min(c.CPUPercent/100, 1)
	mem := 1 - math.Min(c.MemPercent/100, 1)
	return (cpu + mem) / 2
}

func durationScore(c Candidate) float64 {
	ratio := c.SessionDurationS / 3600
	score := ratio * ratio
	return math.Min(score, 1)
}

// Score combines the four subscores under w, defaulting to
// DefaultWeights when w is the zero value.
func Score(c Candidate, w Weights) float64 {
	if w == (Weights{}) {
		w = DefaultWeights
	}
	return w.Bandwidth*bandwidthScore(c) +
		w.Stability*stabilityScore(c) +
		w.Resource*resourceScore(c) +
		w.Duration*durationScore(c)
}
