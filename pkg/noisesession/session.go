// Package noisesession implements the mutual handshake Agora peers run
// before any audio or control traffic is exchanged: Noise_XX_25519_ChaChaPoly_BLAKE2s.
// Both sides prove possession of a Noise static key generated for this
// session and bind it to their Agora identity via a signed assertion
// carried in the handshake payload, and the handshake yields the shared
// secret that seeds the room's securechannel.KeyManager.
package noisesession

import (
	"fmt"
	"sync"

	"github.com/flynn/noise"

	"github.com/agora-voice/agora/pkg/identity"
)

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2s)

// Session drives one Noise_XX handshake to completion and exposes the
// resulting transport keys and verified peer identity.
//
// For an initiator:
//  1. NewInitiator, then Start() to get message 1
//  2. HandleMessage2(msg) to get message 3; handshake completes here
//
// For a responder:
//  1. NewResponder, then HandleMessage1(msg) to get message 2
//  2. HandleMessage3(msg); handshake completes here
type Session struct {
	mu    sync.Mutex
	role  Role
	state State

	local        *identity.Identity
	hs           *noise.HandshakeState
	staticPublic []byte

	peerID        string
	peerPublicKey []byte

	sendCipher *noise.CipherState
	recvCipher *noise.CipherState
	sharedHash []byte
}

// NewInitiator starts a Session that will send the first handshake
// message. local is the caller's Agora identity, used to sign the
// identity assertion carried in later messages.
func NewInitiator(local *identity.Identity) (*Session, error) {
	return newSession(local, true)
}

// NewResponder starts a Session that will wait for the first handshake
// message before responding.
func NewResponder(local *identity.Identity) (*Session, error) {
	return newSession(local, false)
}

func newSession(local *identity.Identity, initiator bool) (*Session, error) {
	staticKeypair, err := cipherSuite.GenerateKeypair(nil)
	if err != nil {
		return nil, fmt.Errorf("noisesession: generate static keypair: %w", err)
	}

	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: staticKeypair,
	})
	if err != nil {
		return nil, fmt.Errorf("noisesession: new handshake state: %w", err)
	}

	role := RoleResponder
	if initiator {
		role = RoleInitiator
	}

	return &Session{
		role:         role,
		state:        StateInit,
		local:        local,
		hs:           hs,
		staticPublic: staticKeypair.Public,
	}, nil
}

// Start produces handshake message 1 (initiator only): a bare ephemeral
// key, no payload.
func (s *Session) Start() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleInitiator {
		return nil, fmt.Errorf("%w: Start only valid for initiator", ErrInvalidState)
	}
	if s.state != StateInit {
		return nil, fmt.Errorf("%w: expected init, got %s", ErrInvalidState, s.state)
	}

	msg, _, _, err := s.hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("noisesession: write message 1: %w", err)
	}
	s.state = StateWaitingMessage2
	return msg, nil
}

// HandleMessage1 processes handshake message 1 (responder only) and
// returns message 2, which carries the responder's static key plus a
// signed identity assertion over it.
func (s *Session) HandleMessage1(msg []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleResponder {
		return nil, fmt.Errorf("%w: HandleMessage1 only valid for responder", ErrInvalidState)
	}
	if s.state != StateInit {
		return nil, fmt.Errorf("%w: expected init, got %s", ErrInvalidState, s.state)
	}

	if _, _, _, err := s.hs.ReadMessage(nil, msg); err != nil {
		s.state = StateFailed
		return nil, fmt.Errorf("noisesession: read message 1: %w", err)
	}

	payload, err := signAssertion(s.local, s.staticPublic)
	if err != nil {
		return nil, err
	}

	out, send, recv, err := s.hs.WriteMessage(nil, payload)
	if err != nil {
		s.state = StateFailed
		return nil, fmt.Errorf("noisesession: write message 2: %w", err)
	}
	if send != nil || recv != nil {
		return nil, fmt.Errorf("%w: handshake completed early on message 2", ErrHandshakeFailed)
	}

	s.state = StateWaitingMessage3
	return out, nil
}

// HandleMessage2 processes handshake message 2 (initiator only): it
// verifies the responder's identity assertion and returns message 3,
// which carries the initiator's own assertion and completes the
// handshake locally.
func (s *Session) HandleMessage2(msg []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleInitiator {
		return nil, fmt.Errorf("%w: HandleMessage2 only valid for initiator", ErrInvalidState)
	}
	if s.state != StateWaitingMessage2 {
		return nil, fmt.Errorf("%w: expected waiting-message-2, got %s", ErrInvalidState, s.state)
	}

	payload, _, _, err := s.hs.ReadMessage(nil, msg)
	if err != nil {
		s.state = StateFailed
		return nil, fmt.Errorf("noisesession: read message 2: %w", err)
	}

	peerID, peerPublicKey, err := verifyAssertion(payload, s.hs.PeerStatic())
	if err != nil {
		s.state = StateFailed
		return nil, err
	}
	s.peerID = peerID
	s.peerPublicKey = peerPublicKey

	outPayload, err := signAssertion(s.local, s.staticPublic)
	if err != nil {
		return nil, err
	}

	out, send, recv, err := s.hs.WriteMessage(nil, outPayload)
	if err != nil {
		s.state = StateFailed
		return nil, fmt.Errorf("noisesession: write message 3: %w", err)
	}
	if send == nil || recv == nil {
		return nil, fmt.Errorf("%w: handshake did not complete on message 3", ErrHandshakeFailed)
	}

	s.sendCipher = send
	s.recvCipher = recv
	s.sharedHash = s.hs.ChannelBinding()
	s.state = StateComplete
	return out, nil
}

// HandleMessage3 processes handshake message 3 (responder only),
// verifying the initiator's identity assertion and completing the
// handshake.
func (s *Session) HandleMessage3(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleResponder {
		return fmt.Errorf("%w: HandleMessage3 only valid for responder", ErrInvalidState)
	}
	if s.state != StateWaitingMessage3 {
		return fmt.Errorf("%w: expected waiting-message-3, got %s", ErrInvalidState, s.state)
	}

	payload, send, recv, err := s.hs.ReadMessage(nil, msg)
	if err != nil {
		s.state = StateFailed
		return fmt.Errorf("noisesession: read message 3: %w", err)
	}
	if send == nil || recv == nil {
		return fmt.Errorf("%w: handshake did not complete on message 3", ErrHandshakeFailed)
	}

	peerID, peerPublicKey, err := verifyAssertion(payload, s.hs.PeerStatic())
	if err != nil {
		s.state = StateFailed
		return err
	}

	s.peerID = peerID
	s.peerPublicKey = peerPublicKey
	// Cipherstates are returned (initiator-to-responder,
	// responder-to-initiator), i.e. (peer-to-us, us-to-peer) for the
	// responder; swap them into send/recv from its own point of view.
	s.sendCipher = recv
	s.recvCipher = send
	s.sharedHash = s.hs.ChannelBinding()
	s.state = StateComplete
	return nil
}

// State returns the current handshake state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PeerID returns the verified Agora peer id of the remote side. Valid
// only once State() is StateComplete.
func (s *Session) PeerID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComplete {
		return "", ErrHandshakeNotReady
	}
	return s.peerID, nil
}

// PeerPublicKey returns the verified Agora identity public key of the
// remote side.
func (s *Session) PeerPublicKey() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComplete {
		return nil, ErrHandshakeNotReady
	}
	out := make([]byte, len(s.peerPublicKey))
	copy(out, s.peerPublicKey)
	return out, nil
}

// SharedSecret returns a value derived from the handshake transcript hash
// suitable as input to DeriveSessionKeyFromSharedSecret. It is stable
// across both peers once the handshake completes, since both sides reach
// the same Noise symmetric state.
func (s *Session) SharedSecret() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComplete {
		return nil, ErrHandshakeNotReady
	}
	out := make([]byte, len(s.sharedHash))
	copy(out, s.sharedHash)
	return out, nil
}

// Encrypt seals plaintext using the handshake's forward-secure transport
// key for the direction this Session sends on. Callers generally prefer
// deriving a securechannel.Channel from SharedSecret, but this is exposed
// for sending the very first few messages before that channel exists.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComplete {
		return nil, ErrHandshakeNotReady
	}
	return s.sendCipher.Encrypt(nil, nil, plaintext)
}

// Decrypt opens a message sealed by the peer's Encrypt.
func (s *Session) Decrypt(ciphertext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateComplete {
		return nil, ErrHandshakeNotReady
	}
	return s.recvCipher.Decrypt(nil, nil, ciphertext)
}
