package mixer

import (
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
)

// RotationInterval is the default interval check_rotation uses to
// decide a sitting Mixer should be re-elected.
const RotationInterval = 30 * time.Minute

// tieThreshold is the relative-difference cutoff below which the top
// two (or more) candidates are considered tied.
const tieThreshold = 0.05

// Manager monitors the participant population for one room and
// chooses between FullMesh and SFU, electing and rotating a Mixer as
// needed. A participant elsewhere in the system is represented purely
// by its peer-id string; Manager never hands out a pointer back to
// itself, so nothing but this package can mutate election state.
type Manager struct {
	mu sync.Mutex

	localPeerID string
	weights     Weights

	remotes map[string]Candidate
	local   Candidate

	topology   Topology
	mixerID    string
	mixerStart time.Time
}

// NewManager starts a manager for localPeerID with no remote
// participants and FullMesh topology.
func NewManager(localPeerID string) *Manager {
	return &Manager{
		localPeerID: localPeerID,
		weights:     DefaultWeights,
		remotes:     make(map[string]Candidate),
		local:       Candidate{PeerID: localPeerID},
		topology:    TopologyFullMesh,
	}
}

// SetLocalMetrics updates the local node's own candidate metrics.
func (m *Manager) SetLocalMetrics(c Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.PeerID = m.localPeerID
	m.local = c
}

// UpsertParticipant adds or updates a remote participant's metrics and
// re-evaluates topology.
func (m *Manager) UpsertParticipant(c Candidate, now time.Time) {
	m.mu.Lock()
	m.remotes[c.PeerID] = c
	m.mu.Unlock()
	m.reconcileTopology(now)
}

// RemoveParticipant drops a remote participant, e.g. on disconnect,
// and re-evaluates topology.
func (m *Manager) RemoveParticipant(peerID string, now time.Time) {
	m.mu.Lock()
	delete(m.remotes, peerID)
	if m.mixerID == peerID {
		m.mixerID = ""
	}
	m.mu.Unlock()
	m.reconcileTopology(now)
}

// ParticipantCount is local + every tracked remote.
func (m *Manager) ParticipantCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.remotes) + 1
}

// Topology returns the manager's current topology decision.
func (m *Manager) Topology() Topology {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.topology
}

// reconcileTopology applies the threshold switch and, when crossing
// upward into SFU without a sitting mixer, elects one.
func (m *Manager) reconcileTopology(now time.Time) {
	m.mu.Lock()
	count := len(m.remotes) + 1
	wasSFU := m.topology == TopologySFU
	nowSFU := count > SFUThreshold
	m.mu.Unlock()

	if nowSFU {
		m.mu.Lock()
		m.topology = TopologySFU
		needsElection := m.mixerID == ""
		m.mu.Unlock()
		if !wasSFU || needsElection {
			_ = m.electMixer(now)
		}
		return
	}

	m.mu.Lock()
	m.topology = TopologyFullMesh
	m.mu.Unlock()
}

func (m *Manager) candidatesLocked() []Candidate {
	candidates := make([]Candidate, 0, len(m.remotes)+1)
	candidates = append(candidates, m.local)
	for _, c := range m.remotes {
		candidates = append(candidates, c)
	}
	return candidates
}

// selectWinner sorts candidates by score descending and applies the
// tie-break rule: any candidate within tieThreshold of the top score
// is a contender, and the lexicographically smallest peer id among
// contenders wins, which is deterministic across every client
// evaluating the same candidate set.
func selectWinner(candidates []Candidate, w Weights) (string, error) {
	if len(candidates) == 0 {
		return "", ErrNoCandidates
	}

	type scored struct {
		Candidate
		score float64
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{Candidate: c, score: Score(c, w)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	top := ranked[0].score
	denom := top
	if denom < epsilon {
		denom = epsilon
	}

	winner := ranked[0].PeerID
	for _, r := range ranked[1:] {
		if (top-r.score)/denom >= tieThreshold {
			break
		}
		if r.PeerID < winner {
			winner = r.PeerID
		}
	}
	return winner, nil
}

// electMixer runs select_mixer: scores every candidate, picks a
// winner, and records it in place of the previous mixer. The selection
// runs under an exponential backoff (at most 2 seconds) that retries
// only while selectWinner returns an error, which happens only for an
// empty candidate list; the local entry is always in the list.
func (m *Manager) electMixer(now time.Time) error {
	var winner string
	operation := func() error {
		m.mu.Lock()
		candidates := m.candidatesLocked()
		weights := m.weights
		m.mu.Unlock()

		chosen, err := selectWinner(candidates, weights)
		if err != nil {
			return err
		}
		winner = chosen
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Second
	if err := backoff.Retry(operation, b); err != nil {
		return err
	}

	m.mu.Lock()
	m.mixerID = winner
	m.mixerStart = now
	m.mu.Unlock()
	return nil
}

// CheckRotation reports whether the sitting mixer has held the role
// for at least RotationInterval.
func (m *Manager) CheckRotation(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.topology != TopologySFU || m.mixerID == "" {
		return false
	}
	return now.Sub(m.mixerStart) >= RotationInterval
}

// RotateMixer zeroes the current mixer's session duration so its
// duration_score no longer favors it, then re-runs election.
func (m *Manager) RotateMixer(now time.Time) error {
	m.mu.Lock()
	if m.mixerID == m.localPeerID {
		m.local.SessionDurationS = 0
	} else if c, ok := m.remotes[m.mixerID]; ok {
		c.SessionDurationS = 0
		m.remotes[m.mixerID] = c
	}
	m.mu.Unlock()

	return m.electMixer(now)
}

// MixerID returns the current mixer's peer id, empty if none.
func (m *Manager) MixerID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mixerID
}

// IsLocalMixer reports whether this node is the current mixer.
func (m *Manager) IsLocalMixer() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mixerID == m.localPeerID
}

// GetConnectionTargets returns every remote peer to connect to under
// the current topology: all remotes in FullMesh, or the singleton
// holding the mixer in SFU (empty if the local peer is the mixer).
func (m *Manager) GetConnectionTargets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.topology == TopologyFullMesh {
		targets := make([]string, 0, len(m.remotes))
		for id := range m.remotes {
			targets = append(targets, id)
		}
		sort.Strings(targets)
		return targets
	}

	if m.mixerID == "" || m.mixerID == m.localPeerID {
		return nil
	}
	return []string{m.mixerID}
}
