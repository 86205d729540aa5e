package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// SessionKeySize is the length in bytes of a 256-bit symmetric session key.
const SessionKeySize = 32

// fingerprintLen is the number of SHA-256 bytes a fingerprint is built from.
const fingerprintLen = 8

// GenerateSessionKey draws a fresh 256-bit key from a cryptographically
// secure random source.
func GenerateSessionKey() ([SessionKeySize]byte, error) {
	var key [SessionKeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return key, fmt.Errorf("crypto: generate session key: %w", err)
	}
	return key, nil
}

// DeriveForPeer derives a 256-bit key bound to a specific peer via
// HKDF-SHA256 with an empty salt, IKM = key, info = peerID.
func DeriveForPeer(key [SessionKeySize]byte, peerID []byte) ([SessionKeySize]byte, error) {
	var out [SessionKeySize]byte
	derived, err := HKDFSHA256(key[:], nil, peerID, SessionKeySize)
	if err != nil {
		return out, err
	}
	copy(out[:], derived)
	return out, nil
}

// DeriveSessionKeyFromSharedSecret derives a fresh session key from an ECDH
// (or Noise handshake) shared secret via HKDF-SHA256 with an empty salt,
// info = roomID. Same inputs always yield the same key.
func DeriveSessionKeyFromSharedSecret(shared []byte, roomID string) ([SessionKeySize]byte, error) {
	var out [SessionKeySize]byte
	derived, err := HKDFSHA256(shared, nil, []byte(roomID), SessionKeySize)
	if err != nil {
		return out, err
	}
	copy(out[:], derived)
	return out, nil
}

// ComputeFingerprint renders a short, human-checkable fingerprint of a
// public key: the first 8 bytes of SHA-256(publicKey), hex-encoded,
// uppercased, and colon-separated every 2 hex digits.
func ComputeFingerprint(publicKey []byte) string {
	sum := SHA256(publicKey)
	encoded := strings.ToUpper(hex.EncodeToString(sum[:fingerprintLen]))

	var b strings.Builder
	for i := 0; i < len(encoded); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(encoded[i : i+2])
	}
	return b.String()
}
