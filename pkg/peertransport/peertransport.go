// Package peertransport declares the PeerTransport port: a consumed,
// not implemented, collaborator that delivers audio packets and
// control messages to named peers and surfaces connection-level
// events. Whoever wires an ICE agent plus a socket layer to this
// module implements it; this package only names the surface.
package peertransport

import (
	"context"

	"github.com/agora-voice/agora/pkg/audio"
)

// Event is the tagged union of asynchronous notifications a
// PeerTransport implementation delivers to its owner.
type Event interface {
	isEvent()
}

type PeerConnected struct{ PeerID string }
type PeerDisconnected struct{ PeerID string }
type PeerIdentified struct {
	PeerID    string
	PublicKey []byte
}
type ProvidersFound struct {
	RoomID string
	Peers  []string
}
type NatStatusChanged struct{ IsPublic bool }
type RoomJoined struct{ RoomID string }
type RoomLeft struct{ RoomID string }
type TransportError struct{ Err error }

func (PeerConnected) isEvent()    {}
func (PeerDisconnected) isEvent() {}
func (PeerIdentified) isEvent()   {}
func (ProvidersFound) isEvent()   {}
func (NatStatusChanged) isEvent() {}
func (RoomJoined) isEvent()       {}
func (RoomLeft) isEvent()         {}
func (TransportError) isEvent()   {}

// ControlMessage is an out-of-band message exchanged between peers
// outside the audio data path (e.g. mixer role announcements, mute
// state).
type ControlMessage struct {
	PeerID  string
	Payload []byte
}

// PeerTransport delivers audio and control traffic to named peers and
// reports connection lifecycle events on Events().
type PeerTransport interface {
	// Events returns the channel events are published on; it is closed
	// once Stop completes.
	Events() <-chan Event

	SendAudio(ctx context.Context, peerID string, packet audio.Packet) error
	BroadcastAudio(ctx context.Context, roomID string, packet audio.Packet) error
	SendControl(ctx context.Context, msg ControlMessage) error

	JoinRoom(ctx context.Context, roomID string) error
	LeaveRoom(ctx context.Context, roomID string) error
	ConnectToPeer(ctx context.Context, addr string) error

	Stop(ctx context.Context) error
}
