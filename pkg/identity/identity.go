// Package identity manages the long-lived asymmetric keypair that names a
// peer on the Agora network. A peer identifier is a pure function of the
// public key, so it is stable across restarts and reproducible from a
// persisted private key alone.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
)

// PrivateKeySize is the size of the ed25519 seed Agora persists. This is
// the 32-byte secret the spec calls the identity's private signing key,
// distinct from ed25519's 64-byte expanded private key.
const PrivateKeySize = ed25519.SeedSize

// PublicKeySize is the size of the derived ed25519 public key.
const PublicKeySize = ed25519.PublicKeySize

// PeerIDPrefix is prepended to every derived peer identifier.
const PeerIDPrefix = "12D3KooW"

// peerIDHashLen is the number of SHA-256 bytes folded into a peer id.
const peerIDHashLen = 20

var base32Lower = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// Errors returned by this package.
var (
	ErrInvalidPrivateKeyLength = errors.New("identity: private key must be 32 bytes")
	ErrInvalidPublicKeyLength  = errors.New("identity: public key must be 32 bytes")
)

// Identity holds a peer's signing keypair and an optional display name.
// The private key never leaves the owning process except through Export.
type Identity struct {
	private     ed25519.PrivateKey
	public      ed25519.PublicKey
	peerID      string
	displayName string
}

// Generate creates a new Identity from a cryptographically secure random
// seed.
func Generate() (*Identity, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}
	return newIdentity(private, public), nil
}

// FromPrivateKey reconstructs an Identity from a persisted 32-byte seed.
// Loading the same seed always reproduces the same peer id.
func FromPrivateKey(seed []byte) (*Identity, error) {
	if len(seed) != PrivateKeySize {
		return nil, ErrInvalidPrivateKeyLength
	}
	private := ed25519.NewKeyFromSeed(seed)
	public := private.Public().(ed25519.PublicKey)
	return newIdentity(private, public), nil
}

func newIdentity(private ed25519.PrivateKey, public ed25519.PublicKey) *Identity {
	return &Identity{
		private: private,
		public:  public,
		peerID:  DerivePeerID(public),
	}
}

// DerivePeerID computes the peer identifier for a public key: the fixed
// prefix concatenated with the lowercase Base32 (no padding) encoding of
// the first 20 bytes of SHA-256(publicKey).
func DerivePeerID(publicKey []byte) string {
	sum := sha256.Sum256(publicKey)
	return PeerIDPrefix + base32Lower.EncodeToString(sum[:peerIDHashLen])
}

// PublicKey returns the raw 32-byte ed25519 public key.
func (id *Identity) PublicKey() []byte {
	out := make([]byte, PublicKeySize)
	copy(out, id.public)
	return out
}

// PeerID returns the peer's stable identifier, derived from PublicKey.
func (id *Identity) PeerID() string {
	return id.peerID
}

// DisplayName returns the optional human-readable name.
func (id *Identity) DisplayName() string {
	return id.displayName
}

// SetDisplayName updates the optional display name.
func (id *Identity) SetDisplayName(name string) {
	id.displayName = name
}

// Sign signs a message with the identity's private key.
func (id *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(id.private, message)
}

// Verify checks a signature against a public key.
func Verify(publicKey, message, signature []byte) bool {
	if len(publicKey) != PublicKeySize {
		return false
	}
	return ed25519.Verify(publicKey, message, signature)
}

// Export returns the 32-byte private seed for persistence by the host
// process. Callers are responsible for storing this securely; Agora never
// writes it to disk itself.
func (id *Identity) Export() []byte {
	out := make([]byte, PrivateKeySize)
	copy(out, id.private.Seed())
	return out
}
