package securechannel

import (
	"time"

	"github.com/pion/transport/v3/replaydetector"
)

// ReplayRetention is how long an observed counter is remembered before it
// is pruned from the window. It must exceed any realistic packet
// reordering delay across a relayed or ICE-routed path.
const ReplayRetention = 5 * time.Minute

// replayWindowSize bounds how far behind the highest-seen counter a
// packet may still land and be accepted, mirroring the sliding window
// pion's own DTLS and SRTP stacks use for anti-replay. 1024 comfortably
// covers reordering across a mixer-relayed path at Opus frame rates.
const replayWindowSize = 1024

const maxCounter = ^uint64(0)

// ReplayWindow tracks nonce counters already seen on one direction of a
// Channel, so a retransmitted or maliciously replayed ciphertext is
// rejected. Duplicate suppression within replayWindowSize of the highest
// counter is delegated to replaydetector's sliding bitmap; entries older
// than ReplayRetention are additionally pruned by wall clock so a
// long-lived channel's memory stays bounded even under a slow peer.
type ReplayWindow struct {
	detector replaydetector.ReplayDetector
	seenAt   map[uint64]time.Time
}

// NewReplayWindow returns an empty window.
func NewReplayWindow() *ReplayWindow {
	return &ReplayWindow{
		detector: replaydetector.New(replayWindowSize, maxCounter),
		seenAt:   make(map[uint64]time.Time),
	}
}

// Check reports whether counter is still a candidate for decryption:
// not already committed as seen, and within the sliding window behind
// the highest counter committed so far. It prunes stale entries first
// but does not itself record counter as seen. Callers must invoke the
// returned commit function once the packet has been authenticated, so
// a tampered packet at a given counter never poisons that counter for
// a later legitimate one.
func (w *ReplayWindow) Check(counter uint64, now time.Time) (commit func(), err error) {
	w.prune(now)

	if _, dup := w.seenAt[counter]; dup {
		return nil, ErrReplayDetected
	}
	accept, ok := w.detector.Check(counter)
	if !ok {
		return nil, ErrReplayDetected
	}
	return func() {
		accept()
		w.seenAt[counter] = now
	}, nil
}

// Observe is Check immediately followed by commit, for callers that
// have no separate authentication step to gate on (e.g. tests
// exercising the window directly).
func (w *ReplayWindow) Observe(counter uint64, now time.Time) error {
	commit, err := w.Check(counter, now)
	if err != nil {
		return err
	}
	commit()
	return nil
}

func (w *ReplayWindow) prune(now time.Time) {
	cutoff := now.Add(-ReplayRetention)
	for counter, seenAt := range w.seenAt {
		if seenAt.Before(cutoff) {
			delete(w.seenAt, counter)
		}
	}
}

// Size returns the number of counters currently retained. Exposed for
// tests that check the window actually prunes.
func (w *ReplayWindow) Size() int {
	return len(w.seenAt)
}
