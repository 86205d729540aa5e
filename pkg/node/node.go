// Package node composes the engines a running peer needs into a
// single NetworkNode: one ICE agent per connection attempt, one
// securechannel.KeyManager shared across every room the node has joined,
// and one mixer.Manager per room tracking topology and mixer election.
// Identity and peer transport remain owned by the host process; a
// NetworkNode never holds more than a peer-id string for any
// participant it did not locally author metrics for.
package node

import (
	"time"

	"github.com/agora-voice/agora/pkg/identity"
	"github.com/agora-voice/agora/pkg/ice"
	"github.com/agora-voice/agora/pkg/mixer"
	"github.com/agora-voice/agora/pkg/securechannel"
	"github.com/agora-voice/agora/pkg/transport"
)

// Config configures a NetworkNode.
type Config struct {
	Identity  *identity.Identity
	ICEConfig ice.Config
}

// NetworkNode ties the secure session layer, NAT traversal, and mixer
// election together for one local peer.
type NetworkNode struct {
	identity *identity.Identity
	iceCfg   ice.Config

	keys   *securechannel.KeyManager
	secure *transport.SecureAudioChannel
	mixers map[string]*mixer.Manager
}

// New builds a NetworkNode around an already-loaded identity.
func New(cfg Config) *NetworkNode {
	keys := securechannel.NewKeyManager()
	return &NetworkNode{
		identity: cfg.Identity,
		iceCfg:   cfg.ICEConfig,
		keys:     keys,
		secure:   transport.NewSecureAudioChannel(keys),
		mixers:   make(map[string]*mixer.Manager),
	}
}

// PeerID is this node's stable, publicly derived identifier.
func (n *NetworkNode) PeerID() string {
	return n.identity.PeerID()
}

// NewICEAgent starts a fresh ICE agent for one connection attempt,
// using the node's shared STUN/TURN configuration.
func (n *NetworkNode) NewICEAgent() (*ice.Agent, error) {
	return ice.New(n.iceCfg)
}

// JoinRoom provisions a session key and a mixer manager for roomID.
// The key is derived from a Noise handshake's shared secret so both
// sides converge without a separate exchange; pass nil to mint a fresh
// random key instead (e.g. the room's first member).
func (n *NetworkNode) JoinRoom(roomID string, sharedSecret []byte, now time.Time) error {
	var err error
	if sharedSecret != nil {
		err = n.keys.CreateRoomWithSecret(roomID, sharedSecret, now)
	} else {
		err = n.keys.CreateRoom(roomID, now)
	}
	if err != nil {
		return err
	}

	n.mixers[roomID] = mixer.NewManager(n.PeerID())
	return nil
}

// LeaveRoom drops all key and mixer state for roomID.
func (n *NetworkNode) LeaveRoom(roomID string) {
	n.keys.RemoveRoom(roomID)
	delete(n.mixers, roomID)
}

// SecureChannel returns the shared secure audio transport layer.
func (n *NetworkNode) SecureChannel() *transport.SecureAudioChannel {
	return n.secure
}

// Mixer returns the MixerManager for roomID, if joined.
func (n *NetworkNode) Mixer(roomID string) (*mixer.Manager, bool) {
	m, ok := n.mixers[roomID]
	return m, ok
}

// CheckRotations runs the key manager's scheduled rotation scan.
func (n *NetworkNode) CheckRotations(now time.Time) ([]securechannel.KeyRotationEvent, error) {
	return n.keys.CheckRotation(now)
}
