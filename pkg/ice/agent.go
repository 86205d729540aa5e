package ice

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/randutil"
	pionstun "github.com/pion/stun/v3"
	"github.com/wlynxg/anet"

	natstun "github.com/agora-voice/agora/pkg/nat/stun"
	nattur "github.com/agora-voice/agora/pkg/nat/turn"
)

// DefaultCheckBudget bounds perform_connectivity_checks.
const DefaultCheckBudget = 5 * time.Second

// perCheckTimeout is how long one connectivity check waits for a
// response before the pair is marked Failed.
const perCheckTimeout = 500 * time.Millisecond

// interCheckSleep is the pause between connectivity-check iterations.
const interCheckSleep = 50 * time.Millisecond

// localPreference is used uniformly for every gathered candidate; a
// single interface/host per agent means there is nothing to rank
// candidates of the same type against each other.
const localPreference = 65535

// Config configures an Agent.
type Config struct {
	StunServers    []string
	TurnServers    []nattur.ServerConfig
	NominationMode NominationMode
	CheckBudget    time.Duration
	LoggerFactory  logging.LoggerFactory
}

func (c Config) withDefaults() Config {
	if c.CheckBudget == 0 {
		c.CheckBudget = DefaultCheckBudget
	}
	return c
}

// Agent drives candidate gathering, pairing, and connectivity checks
// for one peer connection attempt.
type Agent struct {
	cfg  Config
	log  logging.LeveledLogger
	role Role

	tieBreaker uint64
	foundationGen randutil.Generator

	mu         sync.Mutex
	state      AgentState
	local      []Candidate
	remote     []Candidate
	pairs      []*CandidatePair
	pairIndex  map[string]*CandidatePair
	checklist  map[string]bool
	selected   *CandidatePair
	closed     bool

	sockets    map[string]*net.UDPConn
	relays     []*nattur.Allocation
	foundations map[string]string
}

// New constructs an Agent with RoleControlling by default.
func New(cfg Config) (*Agent, error) {
	cfg = cfg.withDefaults()
	tb, err := randomUint64()
	if err != nil {
		return nil, err
	}

	a := &Agent{
		cfg:         cfg,
		role:        RoleControlling,
		tieBreaker:  tb,
		foundationGen: randutil.NewCryptoRandomGenerator(),
		state:       StateNew,
		pairIndex:   make(map[string]*CandidatePair),
		checklist:   make(map[string]bool),
		sockets:     make(map[string]*net.UDPConn),
		foundations: make(map[string]string),
	}
	if cfg.LoggerFactory != nil {
		a.log = cfg.LoggerFactory.NewLogger("ice")
	}
	return a, nil
}

func randomUint64() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// SetRole overrides the default Controlling role.
func (a *Agent) SetRole(r Role) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.role = r
}

// State returns the current connection state.
func (a *Agent) State() AgentState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// LocalCandidates returns a snapshot of gathered local candidates.
func (a *Agent) LocalCandidates() []Candidate {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Candidate, len(a.local))
	copy(out, a.local)
	return out
}

// foundationFor returns a stable foundation string for a (type, base
// address) bucket, minting a new random one the first time a bucket is
// seen.
func (a *Agent) foundationFor(t CandidateType, base net.IP) string {
	key := t.String() + "|" + base.String()
	if f, ok := a.foundations[key]; ok {
		return f
	}
	f := a.foundationGen.GenerateString(8, "0123456789")
	a.foundations[key] = f
	return f
}

// GatherCandidates runs the three gathering phases: host, server
// reflexive, relayed.
func (a *Agent) GatherCandidates() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.gatherHostLocked(); err != nil {
		return err
	}
	a.gatherServerReflexiveLocked()
	a.gatherRelayedLocked()

	if len(a.local) == 0 {
		return ErrNoCandidatesGathered
	}
	return nil
}

func (a *Agent) gatherHostLocked() error {
	addrs, err := anet.InterfaceAddrs()
	if err != nil {
		return err
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() || ipNet.IP.To4() == nil {
			continue
		}

		conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: ipNet.IP, Port: 0})
		if err != nil {
			continue
		}
		local := *conn.LocalAddr().(*net.UDPAddr)
		a.sockets[local.String()] = conn

		cand := Candidate{
			Component: 1,
			Transport: TransportUDP,
			ConnAddr:  local,
			BaseAddr:  local,
			Type:      TypeHost,
		}
		cand.Foundation = a.foundationFor(TypeHost, local.IP)
		cand.ComputePriority(localPreference)
		a.local = append(a.local, cand)

		if a.log != nil {
			a.log.Debugf("gathered host candidate %s", cand.ToSDP())
		}
	}
	return nil
}

func (a *Agent) baseCandidateForReflexive() (Candidate, bool) {
	for _, c := range a.local {
		if c.Type != TypeHost {
			continue
		}
		if c.ConnAddr.IP.IsLoopback() || c.ConnAddr.IP.IsLinkLocalUnicast() {
			continue
		}
		return c, true
	}
	return Candidate{}, false
}

func (a *Agent) gatherServerReflexiveLocked() {
	if len(a.cfg.StunServers) == 0 {
		return
	}
	base, ok := a.baseCandidateForReflexive()
	if !ok {
		return
	}

	client := natstun.New(a.cfg.StunServers...)
	for _, server := range a.cfg.StunServers {
		mapped, err := client.Bind(server)
		if err != nil {
			if a.log != nil {
				a.log.Warnf("stun bind to %s failed: %v", server, err)
			}
			continue
		}

		cand := Candidate{
			Component:   1,
			Transport:   TransportUDP,
			ConnAddr:    net.UDPAddr{IP: mapped.IP, Port: mapped.Port},
			BaseAddr:    base.BaseAddr,
			Type:        TypeServerReflexive,
			RelatedAddr: &base.BaseAddr,
		}
		cand.Foundation = a.foundationFor(TypeServerReflexive, base.BaseAddr.IP)
		cand.ComputePriority(localPreference)
		a.local = append(a.local, cand)

		if a.log != nil {
			a.log.Debugf("gathered server-reflexive candidate %s", cand.ToSDP())
		}
	}
}

func (a *Agent) gatherRelayedLocked() {
	for _, server := range a.cfg.TurnServers {
		alloc, err := nattur.Allocate(server)
		if err != nil {
			if a.log != nil {
				a.log.Warnf("turn allocate at %s failed: %v", server.Addr, err)
			}
			continue
		}
		a.relays = append(a.relays, alloc)

		relayAddr, ok := alloc.RelayedAddr.(*net.UDPAddr)
		if !ok {
			continue
		}
		serverAddr, err := net.ResolveUDPAddr("udp4", server.Addr)
		if err != nil {
			continue
		}

		cand := Candidate{
			Component:   1,
			Transport:   TransportUDP,
			ConnAddr:    *relayAddr,
			BaseAddr:    *serverAddr,
			Type:        TypeRelayed,
			RelatedAddr: serverAddr,
		}
		cand.Foundation = a.foundationFor(TypeRelayed, serverAddr.IP)
		cand.ComputePriority(localPreference)
		a.local = append(a.local, cand)

		if a.log != nil {
			a.log.Debugf("gathered relayed candidate %s", cand.ToSDP())
		}
	}
}

// AddRemoteCandidate registers a candidate learned from the peer and
// re-runs pair formation.
func (a *Agent) AddRemoteCandidate(c Candidate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.remote = append(a.remote, c)
	a.formPairsLocked()
}

// formPairsLocked forms every new (local, remote) pair, sorts by
// priority descending, and promotes one pair per unseen foundation
// from Frozen to Waiting.
func (a *Agent) formPairsLocked() {
	for _, local := range a.local {
		for _, remote := range a.remote {
			key := pairKey(local, remote)
			if _, exists := a.pairIndex[key]; exists {
				continue
			}
			pair := &CandidatePair{Local: local, Remote: remote, State: PairFrozen}
			pair.ComputePairPriority()
			a.pairs = append(a.pairs, pair)
			a.pairIndex[key] = pair
		}
	}

	sort.SliceStable(a.pairs, func(i, j int) bool {
		return a.pairs[i].Priority > a.pairs[j].Priority
	})

	for _, pair := range a.pairs {
		foundation := pair.Local.Foundation + "/" + pair.Remote.Foundation
		if a.checklist[foundation] {
			continue
		}
		a.checklist[foundation] = true
		if pair.State == PairFrozen {
			pair.State = PairWaiting
		}
	}

	if len(a.checklist) > 0 && a.state == StateNew {
		a.state = StateChecking
	}
}

// waitingOrInProgress returns pending pairs in current priority order.
func (a *Agent) waitingOrInProgress() []*CandidatePair {
	var out []*CandidatePair
	for _, p := range a.pairs {
		if p.State == PairWaiting || p.State == PairInProgress {
			out = append(out, p)
		}
	}
	return out
}

// PerformConnectivityChecks runs the check loop until the configured
// budget elapses or no pending pairs remain, then finalizes the
// selected pair.
func (a *Agent) PerformConnectivityChecks(ctx context.Context) error {
	deadline := time.Now().Add(a.cfg.CheckBudget)
	var nominated *CandidatePair

	for time.Now().Before(deadline) {
		a.mu.Lock()
		pending := a.waitingOrInProgress()
		a.mu.Unlock()
		if len(pending) == 0 {
			break
		}

		for _, pair := range pending {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			a.mu.Lock()
			pair.State = PairInProgress
			pair.LastCheck = time.Now()
			a.mu.Unlock()

			ok, rtt, err := a.checkPair(pair)
			a.mu.Lock()
			if ok && err == nil {
				pair.State = PairSucceeded
				pair.RTT = rtt
				if a.cfg.NominationMode == NominationAggressive {
					pair.Nominated = true
					nominated = pair
				}
			} else {
				pair.State = PairFailed
			}
			a.mu.Unlock()

			if nominated != nil {
				break
			}
		}

		if nominated != nil {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interCheckSleep):
		}
	}

	return a.finalize(nominated)
}

// checkPair binds a fresh socket on the pair's local base IP (ephemeral
// port, not the base address's own port), sends a STUN
// BINDING_REQUEST to the remote connection address, and waits up to
// perCheckTimeout for a response from that exact address.
func (a *Agent) checkPair(pair *CandidatePair) (bool, time.Duration, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: pair.Local.BaseAddr.IP, Port: 0})
	if err != nil {
		return false, 0, err
	}
	defer conn.Close()

	msg := pionstun.MustBuild(pionstun.TransactionID, pionstun.BindingRequest)
	start := time.Now()

	if _, err := conn.WriteToUDP(msg.Raw, &pair.Remote.ConnAddr); err != nil {
		return false, 0, err
	}

	if err := conn.SetReadDeadline(time.Now().Add(perCheckTimeout)); err != nil {
		return false, 0, err
	}

	buf := make([]byte, 1500)
	n, from, err := conn.ReadFromUDP(buf)
	if err != nil {
		return false, 0, nil
	}
	if !from.IP.Equal(pair.Remote.ConnAddr.IP) || from.Port != pair.Remote.ConnAddr.Port {
		return false, 0, nil
	}

	resp := &pionstun.Message{Raw: buf[:n]}
	if err := resp.Decode(); err != nil {
		return false, 0, nil
	}
	if resp.Type.Class != pionstun.ClassSuccessResponse {
		return false, 0, nil
	}

	return true, time.Since(start), nil
}

// finalize implements the nomination/finalization step.
func (a *Agent) finalize(nominated *CandidatePair) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if nominated != nil {
		a.selected = nominated
		a.state = StateConnected
		return nil
	}

	var best *CandidatePair
	for _, p := range a.pairs {
		if p.State != PairSucceeded {
			continue
		}
		if best == nil || p.Priority > best.Priority {
			best = p
		}
	}

	if best == nil {
		a.state = StateFailed
		return ErrNoPairSucceeded
	}

	a.selected = best
	a.state = StateConnected
	return nil
}

// SelectedPair returns the pair chosen at the end of connectivity
// checks.
func (a *Agent) SelectedPair() (*CandidatePair, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.selected == nil {
		return nil, ErrNotConnected
	}
	return a.selected, nil
}

// Close releases every bound socket and TURN allocation.
func (a *Agent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrAlreadyClosed
	}
	a.closed = true
	a.state = StateClosed

	for _, conn := range a.sockets {
		conn.Close()
	}
	for _, relay := range a.relays {
		relay.Close()
	}
	return nil
}
