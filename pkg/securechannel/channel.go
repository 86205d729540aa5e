// Package securechannel implements Agora's per-room encrypted transport:
// a ChaCha20-Poly1305 AEAD channel with replay protection, and a
// KeyManager that rotates room keys on a schedule while keeping a
// grace-window previous key alive for in-flight packets.
package securechannel

import (
	"encoding/binary"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// nonceSize is the wire nonce length: 4 zero bytes followed by an 8-byte
// little-endian counter, matching chacha20poly1305.NonceSize.
const nonceSize = chacha20poly1305.NonceSize

// Channel is a single-direction-counter encrypted pipe over one
// SessionKey. A Channel is safe for concurrent use.
type Channel struct {
	mu      sync.Mutex
	key     *SessionKey
	aead    cipher
	counter uint64
	replay  *ReplayWindow
}

// cipher is the subset of cipher.AEAD Channel depends on, named locally
// so tests can substitute a fake without importing crypto/cipher here.
type cipher interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
	Overhead() int
}

// NewChannel builds a Channel over key. Key expiry is not checked here;
// Encrypt checks it on every call.
func NewChannel(key *SessionKey) (*Channel, error) {
	aead, err := chacha20poly1305.New(key.Bytes[:])
	if err != nil {
		return nil, err
	}
	return &Channel{
		key:    key,
		aead:   aead,
		replay: NewReplayWindow(),
	}, nil
}

// Encrypt seals plaintext under the channel's current key and an
// internally incremented counter, returning the wire-format message:
// a 12-byte nonce followed by the ChaCha20-Poly1305 ciphertext and tag.
// It refuses to encrypt with an expired key.
func (c *Channel) Encrypt(plaintext, additionalData []byte, now time.Time) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key.IsExpired(now) {
		return nil, ErrKeyExpired
	}

	nonce := encodeNonce(c.counter)
	sealed := c.aead.Seal(nil, nonce, plaintext, additionalData)
	c.counter++

	out := make([]byte, 0, nonceSize+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt opens a wire-format message produced by Encrypt on the peer
// end of this channel. It rejects messages whose counter has already
// been observed (replay) and messages that fail AEAD authentication.
func (c *Channel) Decrypt(wire, additionalData []byte, now time.Time) ([]byte, error) {
	if len(wire) < nonceSize+c.aead.Overhead() {
		return nil, ErrMessageTooShort
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	nonce := wire[:nonceSize]
	ciphertext := wire[nonceSize:]

	counter := decodeNonce(nonce)
	commit, err := c.replay.Check(counter, now)
	if err != nil {
		return nil, err
	}

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	commit()
	return plaintext, nil
}

// RotateKey swaps in a new key, resetting the send counter and replay
// window. Callers are responsible for continuing to accept messages
// under the old key during a grace window; that concern lives in
// KeyManager, which holds the previous Channel alongside the new one.
func (c *Channel) RotateKey(key *SessionKey) error {
	aead, err := chacha20poly1305.New(key.Bytes[:])
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = key
	c.aead = aead
	c.counter = 0
	c.replay = NewReplayWindow()
	return nil
}

// KeyID returns the id of the key currently backing the channel.
func (c *Channel) KeyID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key.ID
}

func encodeNonce(counter uint64) []byte {
	nonce := make([]byte, nonceSize)
	binary.LittleEndian.PutUint64(nonce[4:], counter)
	return nonce
}

func decodeNonce(nonce []byte) uint64 {
	return binary.LittleEndian.Uint64(nonce[4:])
}
