package securechannel

import (
	"testing"
	"time"
)

func TestKeyManagerCreateRoomRejectsDuplicate(t *testing.T) {
	m := NewKeyManager()
	now := time.Now()

	if err := m.CreateRoom("room-1", now); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := m.CreateRoom("room-1", now); err != ErrRoomExists {
		t.Fatalf("err = %v, want ErrRoomExists", err)
	}
}

func TestKeyManagerEncryptDecryptUnknownRoom(t *testing.T) {
	m := NewKeyManager()
	now := time.Now()

	if _, err := m.Encrypt("ghost", []byte("x"), nil, now); err != ErrRoomNotFound {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
	if _, err := m.Decrypt("ghost", []byte("x"), nil, now); err != ErrRoomNotFound {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestKeyManagerTwoRoomsFromSharedSecretAgreeOnKey(t *testing.T) {
	now := time.Now()
	shared := []byte("noise-handshake-output-shared-secret")

	alice := NewKeyManager()
	bob := NewKeyManager()

	if err := alice.CreateRoomWithSecret("room-1", shared, now); err != nil {
		t.Fatalf("alice CreateRoomWithSecret: %v", err)
	}
	if err := bob.CreateRoomWithSecret("room-1", shared, now); err != nil {
		t.Fatalf("bob CreateRoomWithSecret: %v", err)
	}

	wire, err := alice.Encrypt("room-1", []byte("hello"), nil, now)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := bob.Decrypt("room-1", wire, nil, now)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestKeyManagerRotateKeyNowEmitsEvent(t *testing.T) {
	m := NewKeyManager()
	now := time.Now()
	if err := m.CreateRoom("room-1", now); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	event, err := m.RotateKeyNow("room-1", now)
	if err != nil {
		t.Fatalf("RotateKeyNow: %v", err)
	}
	if event.RoomID != "room-1" {
		t.Fatalf("RoomID = %q, want room-1", event.RoomID)
	}
}

func TestKeyManagerDecryptUsesPreviousKeyDuringGrace(t *testing.T) {
	m := NewKeyManager()
	now := time.Now()
	if err := m.CreateRoom("room-1", now); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	wire, err := m.Encrypt("room-1", []byte("before-rotation"), nil, now)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := m.RotateKeyNow("room-1", now); err != nil {
		t.Fatalf("RotateKeyNow: %v", err)
	}

	// Packet encrypted under the old key must still decrypt within the
	// grace window, since it may have been in flight during rotation.
	got, err := m.Decrypt("room-1", wire, nil, now.Add(time.Second))
	if err != nil {
		t.Fatalf("Decrypt within grace: %v", err)
	}
	if string(got) != "before-rotation" {
		t.Fatalf("got %q, want %q", got, "before-rotation")
	}

	// Past the grace window the old key must no longer work.
	if _, err := m.Decrypt("room-1", wire, nil, now.Add(PreviousKeyGrace+time.Second)); err == nil {
		t.Fatal("expected decrypt to fail once grace window has elapsed")
	}
}

func TestKeyManagerCheckRotationAdvancesScheduledRooms(t *testing.T) {
	m := NewKeyManager()
	now := time.Now()
	if err := m.CreateRoom("room-1", now); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	events, err := m.CheckRotation(now)
	if err != nil {
		t.Fatalf("CheckRotation: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no rotation yet, got %d events", len(events))
	}

	events, err = m.CheckRotation(now.Add(RotationInterval + time.Second))
	if err != nil {
		t.Fatalf("CheckRotation: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 rotation event, got %d", len(events))
	}
	if events[0].RoomID != "room-1" {
		t.Fatalf("RoomID = %q, want room-1", events[0].RoomID)
	}
}

func TestKeyManagerSecondRoomStartsAtKeyIDOne(t *testing.T) {
	m := NewKeyManager()
	now := time.Now()

	if err := m.CreateRoom("room-1", now); err != nil {
		t.Fatalf("CreateRoom room-1: %v", err)
	}
	if _, err := m.RotateKeyNow("room-1", now); err != nil {
		t.Fatalf("RotateKeyNow room-1: %v", err)
	}
	if err := m.CreateRoom("room-2", now); err != nil {
		t.Fatalf("CreateRoom room-2: %v", err)
	}

	id, err := m.CurrentKeyID("room-2")
	if err != nil {
		t.Fatalf("CurrentKeyID: %v", err)
	}
	if id != 1 {
		t.Fatalf("room-2 initial key id = %d, want 1", id)
	}
}

// TestKeyManagerShortLifetimeAndRotationSchedule is scenario S2: a room
// configured with a 10-second key lifetime and a 50-millisecond
// rotation interval rotates on its own schedule rather than the
// package defaults, and a key past its lifetime refuses to encrypt.
func TestKeyManagerShortLifetimeAndRotationSchedule(t *testing.T) {
	m := NewKeyManager()
	now := time.Now()
	cfg := RoomKeyConfig{
		KeyLifetime:      10 * time.Second,
		RotationInterval: 50 * time.Millisecond,
	}

	if err := m.CreateRoomWithConfig("room-1", cfg, now); err != nil {
		t.Fatalf("CreateRoomWithConfig: %v", err)
	}

	events, err := m.CheckRotation(now.Add(49 * time.Millisecond))
	if err != nil {
		t.Fatalf("CheckRotation: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no rotation before interval elapses, got %d", len(events))
	}

	events, err = m.CheckRotation(now.Add(51 * time.Millisecond))
	if err != nil {
		t.Fatalf("CheckRotation: %v", err)
	}
	if len(events) != 1 || events[0].NewKeyID != 2 {
		t.Fatalf("events = %+v, want 1 event with NewKeyID 2", events)
	}

	if _, err := m.Encrypt("room-1", []byte("still fresh"), nil, now.Add(9*time.Second)); err != nil {
		t.Fatalf("Encrypt within lifetime: %v", err)
	}
	if _, err := m.Encrypt("room-1", []byte("stale"), nil, now.Add(11*time.Second)); err != ErrKeyExpired {
		t.Fatalf("err = %v, want ErrKeyExpired once the 10s lifetime elapses", err)
	}
}

func TestKeyManagerRemoveRoom(t *testing.T) {
	m := NewKeyManager()
	now := time.Now()
	if err := m.CreateRoom("room-1", now); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	m.RemoveRoom("room-1")

	if _, err := m.Encrypt("room-1", []byte("x"), nil, now); err != ErrRoomNotFound {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}
