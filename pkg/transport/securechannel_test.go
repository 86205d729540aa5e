package transport

import (
	"testing"
	"time"

	"github.com/agora-voice/agora/pkg/audio"
	"github.com/agora-voice/agora/pkg/securechannel"
)

func TestEncryptDecryptPacketRoundTrip(t *testing.T) {
	now := time.Now()
	keys := securechannel.NewKeyManager()
	if err := keys.CreateRoom("room-1", now); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	sac := NewSecureAudioChannel(keys)

	original := audio.Packet{
		Sequence:   42,
		Timestamp:  now,
		PeerID:     "peer-a",
		Frame:      []byte{1, 2, 3, 4, 5},
		SampleRate: audio.SampleRate,
		Channels:   1,
	}

	encrypted, err := sac.EncryptPacket("room-1", original, now)
	if err != nil {
		t.Fatalf("EncryptPacket: %v", err)
	}
	if encrypted.Sequence != original.Sequence || encrypted.PeerID != original.PeerID {
		t.Fatalf("metadata not preserved: %+v", encrypted)
	}

	decoded, err := sac.DecryptPacket("room-1", encrypted, now)
	if err != nil {
		t.Fatalf("DecryptPacket: %v", err)
	}

	if decoded.Sequence != original.Sequence ||
		decoded.PeerID != original.PeerID ||
		decoded.SampleRate != original.SampleRate ||
		decoded.Channels != original.Channels ||
		string(decoded.Frame) != string(original.Frame) ||
		!decoded.Timestamp.Equal(original.Timestamp) {
		t.Fatalf("decoded packet mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestDecryptPacketRejectsUnknownRoom(t *testing.T) {
	sac := NewSecureAudioChannel(securechannel.NewKeyManager())
	_, err := sac.DecryptPacket("missing-room", EncryptedAudioPacket{}, time.Now())
	if err != securechannel.ErrRoomNotFound {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestDecryptPacketUsesPreviousKeyDuringRotationGrace(t *testing.T) {
	now := time.Now()
	keys := securechannel.NewKeyManager()
	if err := keys.CreateRoom("room-1", now); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	sac := NewSecureAudioChannel(keys)

	packet := audio.Packet{Sequence: 1, Timestamp: now, PeerID: "peer-a", Frame: []byte{9, 9}, SampleRate: audio.SampleRate, Channels: 1}
	encrypted, err := sac.EncryptPacket("room-1", packet, now)
	if err != nil {
		t.Fatalf("EncryptPacket: %v", err)
	}

	if _, err := keys.RotateKeyNow("room-1", now); err != nil {
		t.Fatalf("RotateKeyNow: %v", err)
	}

	decoded, err := sac.DecryptPacket("room-1", encrypted, now.Add(time.Second))
	if err != nil {
		t.Fatalf("DecryptPacket after rotation: %v", err)
	}
	if string(decoded.Frame) != string(packet.Frame) {
		t.Fatalf("frame mismatch after rotation-grace decrypt")
	}
}
