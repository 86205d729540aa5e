package securechannel

import (
	"encoding/binary"
	"sync"
	"time"

	agoracrypto "github.com/agora-voice/agora/pkg/crypto"
)

// deriveNextKey derives a room's next rotation key from its current
// key via HKDF-SHA256, keyed on the new key id so every rotation in a
// room's lifetime produces an independent key even though it chains
// from the previous one.
func deriveNextKey(current [32]byte, newID uint64) ([32]byte, error) {
	var info [8]byte
	binary.LittleEndian.PutUint64(info[:], newID)

	derived, err := agoracrypto.HKDFSHA256(current[:], nil, info[:], agoracrypto.SessionKeySize)
	if err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], derived)
	return out, nil
}

// RotationInterval is how often KeyManager issues a fresh key for a room
// under automatic rotation, absent a per-room RoomKeyConfig override.
const RotationInterval = time.Hour

// PreviousKeyGrace is how long a rotated-out key is still accepted for
// Decrypt, covering messages already in flight when rotation happened.
const PreviousKeyGrace = 2 * time.Minute

// RoomKeyConfig overrides a room's key lifetime and rotation interval.
// The zero value means "use the package defaults"
// (DefaultKeyLifetime / RotationInterval).
type RoomKeyConfig struct {
	KeyLifetime      time.Duration
	RotationInterval time.Duration
}

func (c RoomKeyConfig) withDefaults() RoomKeyConfig {
	if c.KeyLifetime <= 0 {
		c.KeyLifetime = DefaultKeyLifetime
	}
	if c.RotationInterval <= 0 {
		c.RotationInterval = RotationInterval
	}
	return c
}

// KeyRotationEvent is emitted by CheckRotation when a room's key has been
// replaced, so callers can distribute the new key to room members.
type KeyRotationEvent struct {
	RoomID    string
	NewKeyID  uint64
	RotatedAt time.Time
}

// roomKeys holds the live encrypted channel for a room plus, during the
// grace window after a rotation, the channel backed by the previous key
// so late-arriving packets still decrypt. keyID numbers this room's own
// keys independently of every other room, starting at 1, so a room's
// first key always has id 1 regardless of how many other rooms a
// KeyManager has already created.
type roomKeys struct {
	cfg            RoomKeyConfig
	current        *Channel
	previous       *Channel
	previousExpiry time.Time
	nextRotation   time.Time
	keyID          uint64
}

// KeyManager owns the SessionKey lifecycle for every room a node
// participates in: creation, scheduled rotation, and a bounded grace
// window for decrypting against the key just rotated out.
type KeyManager struct {
	mu    sync.Mutex
	rooms map[string]*roomKeys
}

// NewKeyManager returns an empty manager.
func NewKeyManager() *KeyManager {
	return &KeyManager{rooms: make(map[string]*roomKeys)}
}

// CreateRoom generates a fresh key for roomID and schedules its first
// automatic rotation under the package default lifetime and interval.
// It returns ErrRoomExists if the room is already tracked.
func (m *KeyManager) CreateRoom(roomID string, now time.Time) error {
	return m.CreateRoomWithConfig(roomID, RoomKeyConfig{}, now)
}

// CreateRoomWithConfig behaves like CreateRoom but lets the caller
// override the room's key lifetime and rotation interval, e.g. a test
// harness exercising an accelerated rotation schedule.
func (m *KeyManager) CreateRoomWithConfig(roomID string, cfg RoomKeyConfig, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[roomID]; ok {
		return ErrRoomExists
	}

	cfg = cfg.withDefaults()
	raw, err := agoracrypto.GenerateSessionKey()
	if err != nil {
		return err
	}
	channel, err := NewChannel(NewSessionKeyWithLifetime(1, raw, now, cfg.KeyLifetime))
	if err != nil {
		return err
	}

	m.rooms[roomID] = &roomKeys{
		cfg:          cfg,
		current:      channel,
		nextRotation: now.Add(cfg.RotationInterval),
		keyID:        1,
	}
	return nil
}

// CreateRoomWithSecret behaves like CreateRoom but derives the initial
// key deterministically from a shared secret (e.g. the output of a Noise
// handshake) rather than drawing fresh randomness, so both ends of a
// freshly paired session converge on the same key without a separate
// exchange.
func (m *KeyManager) CreateRoomWithSecret(roomID string, shared []byte, now time.Time) error {
	return m.CreateRoomWithSecretAndConfig(roomID, shared, RoomKeyConfig{}, now)
}

// CreateRoomWithSecretAndConfig behaves like CreateRoomWithSecret but
// lets the caller override the room's key lifetime and rotation
// interval.
func (m *KeyManager) CreateRoomWithSecretAndConfig(roomID string, shared []byte, cfg RoomKeyConfig, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[roomID]; ok {
		return ErrRoomExists
	}

	raw, err := agoracrypto.DeriveSessionKeyFromSharedSecret(shared, roomID)
	if err != nil {
		return err
	}

	cfg = cfg.withDefaults()
	key := NewSessionKeyWithLifetime(1, raw, now, cfg.KeyLifetime)
	channel, err := NewChannel(key)
	if err != nil {
		return err
	}

	m.rooms[roomID] = &roomKeys{
		cfg:          cfg,
		current:      channel,
		nextRotation: now.Add(cfg.RotationInterval),
		keyID:        1,
	}
	return nil
}

// Encrypt seals plaintext for roomID under its current key.
func (m *KeyManager) Encrypt(roomID string, plaintext, additionalData []byte, now time.Time) ([]byte, error) {
	m.mu.Lock()
	room, ok := m.rooms[roomID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room.current.Encrypt(plaintext, additionalData, now)
}

// Decrypt opens a message for roomID, trying the current key first and
// falling back to the previous key while it remains within its grace
// window. This lets a rotation in progress not drop packets encrypted
// just before the switch.
func (m *KeyManager) Decrypt(roomID string, wire, additionalData []byte, now time.Time) ([]byte, error) {
	m.mu.Lock()
	room, ok := m.rooms[roomID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrRoomNotFound
	}

	plaintext, err := room.current.Decrypt(wire, additionalData, now)
	if err == nil {
		return plaintext, nil
	}
	if err != ErrDecryptionFailed {
		return nil, err
	}

	m.mu.Lock()
	previous := room.previous
	expiry := room.previousExpiry
	m.mu.Unlock()

	if previous == nil || now.After(expiry) {
		return nil, err
	}
	return previous.Decrypt(wire, additionalData, now)
}

// CurrentKeyID returns the key id currently sealing traffic for roomID.
func (m *KeyManager) CurrentKeyID(roomID string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return 0, ErrRoomNotFound
	}
	return room.current.KeyID(), nil
}

// CheckRotation advances every room whose scheduled rotation time has
// passed, demoting its current key to previous (retained for
// PreviousKeyGrace) and installing a fresh current key. It returns one
// KeyRotationEvent per room rotated.
func (m *KeyManager) CheckRotation(now time.Time) ([]KeyRotationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var events []KeyRotationEvent
	for roomID, room := range m.rooms {
		if now.Before(room.nextRotation) {
			continue
		}
		event, err := m.rotateLocked(roomID, room, now)
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

// RotateKeyNow forces an immediate rotation for roomID regardless of its
// schedule, e.g. in response to a detected compromise or a membership
// change.
func (m *KeyManager) RotateKeyNow(roomID string, now time.Time) (KeyRotationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return KeyRotationEvent{}, ErrRoomNotFound
	}
	return m.rotateLocked(roomID, room, now)
}

func (m *KeyManager) rotateLocked(roomID string, room *roomKeys, now time.Time) (KeyRotationEvent, error) {
	room.keyID++
	newID := room.keyID
	raw, err := deriveNextKey(room.current.key.Bytes, newID)
	if err != nil {
		return KeyRotationEvent{}, err
	}
	newKey := NewSessionKeyWithLifetime(newID, raw, now, room.cfg.KeyLifetime)

	room.previous = room.current
	room.previousExpiry = now.Add(PreviousKeyGrace)

	newChannel, err := NewChannel(newKey)
	if err != nil {
		return KeyRotationEvent{}, err
	}
	room.current = newChannel
	room.nextRotation = now.Add(room.cfg.RotationInterval)

	return KeyRotationEvent{
		RoomID:    roomID,
		NewKeyID:  newKey.ID,
		RotatedAt: now,
	}, nil
}

// RemoveRoom drops all key state for roomID, e.g. once the last member
// leaves.
func (m *KeyManager) RemoveRoom(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomID)
}
