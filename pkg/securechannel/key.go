package securechannel

import "time"

// DefaultKeyLifetime is how long a SessionKey remains valid for new
// Encrypt calls once created.
const DefaultKeyLifetime = time.Hour

// KeySize is the length in bytes of a session key.
const KeySize = 32

// SessionKey is a single AEAD key bound to a room, with a creation time
// and an expiry after which Encrypt refuses to use it. A key that has
// expired for encryption may still be used to decrypt messages sent just
// before rotation, via the grace window in KeyManager.
type SessionKey struct {
	ID        uint64
	Bytes     [KeySize]byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewSessionKey wraps raw key bytes with a creation time and the default
// lifetime.
func NewSessionKey(id uint64, raw [KeySize]byte, now time.Time) *SessionKey {
	return NewSessionKeyWithLifetime(id, raw, now, DefaultKeyLifetime)
}

// NewSessionKeyWithLifetime wraps raw key bytes with a creation time and
// an explicit lifetime, for rooms configured with a non-default
// rotation schedule.
func NewSessionKeyWithLifetime(id uint64, raw [KeySize]byte, now time.Time, lifetime time.Duration) *SessionKey {
	return &SessionKey{
		ID:        id,
		Bytes:     raw,
		CreatedAt: now,
		ExpiresAt: now.Add(lifetime),
	}
}

// IsExpired reports whether the key is no longer valid for new
// encryption operations as of now.
func (k *SessionKey) IsExpired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}
