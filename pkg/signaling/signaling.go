// Package signaling declares the SignalingChannel port TCP
// simultaneous-open consumes to exchange candidate endpoints out of
// band before racing connections.
package signaling

import (
	"context"
	"time"
)

// Channel is a consumed, not implemented, collaborator: whatever
// carries room-join metadata (a rendezvous server, a DHT record, a
// pasted invite) also carries this tiny ready/endpoints exchange.
type Channel interface {
	// SendReady publishes the set of endpoints this peer can be dialed
	// on for an upcoming simultaneous-open attempt.
	SendReady(ctx context.Context, endpoints []string) error

	// WaitForPeerReady blocks until the peer's endpoint list arrives or
	// timeout elapses.
	WaitForPeerReady(ctx context.Context, timeout time.Duration) ([]string, error)
}
