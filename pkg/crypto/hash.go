// Package crypto provides the cryptographic primitives shared by Agora's
// secure channel, Noise handshake, and identity packages: hashing and
// key derivation. AEAD framing lives in package securechannel, since it
// is stateful (nonce counters, replay windows) rather than a pure
// primitive.
package crypto

import "crypto/sha256"

// SHA-256 output sizes.
const (
	// SHA256LenBits is the SHA-256 output length in bits.
	SHA256LenBits = 256

	// SHA256LenBytes is the SHA-256 output length in bytes.
	SHA256LenBytes = 32
)

// SHA256 computes the SHA-256 cryptographic hash of a message.
//
// Returns a 32-byte (256-bit) hash digest.
func SHA256(message []byte) [SHA256LenBytes]byte {
	return sha256.Sum256(message)
}

