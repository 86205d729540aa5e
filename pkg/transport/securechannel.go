package transport

import (
	"time"

	"github.com/agora-voice/agora/pkg/audio"
	"github.com/agora-voice/agora/pkg/securechannel"
)

// EncryptedAudioPacket is what actually crosses the wire: enough
// metadata to route and select a decryption key without having
// touched the ciphertext yet.
type EncryptedAudioPacket struct {
	Sequence   uint64
	PeerID     string
	KeyID      uint64
	Ciphertext []byte
}

// SecureAudioChannel layers a securechannel.KeyManager over
// audio.Packet, so callers never handle raw AEAD wire bytes directly.
type SecureAudioChannel struct {
	keys *securechannel.KeyManager
}

// NewSecureAudioChannel wraps an existing KeyManager.
func NewSecureAudioChannel(keys *securechannel.KeyManager) *SecureAudioChannel {
	return &SecureAudioChannel{keys: keys}
}

// EncryptPacket encodes p to bytes, seals it through the room's current
// key, and wraps the result with routing metadata.
func (s *SecureAudioChannel) EncryptPacket(roomID string, p audio.Packet, now time.Time) (EncryptedAudioPacket, error) {
	encoded, err := encodePacket(p)
	if err != nil {
		return EncryptedAudioPacket{}, err
	}

	wire, err := s.keys.Encrypt(roomID, encoded, []byte(roomID), now)
	if err != nil {
		return EncryptedAudioPacket{}, err
	}

	keyID, err := s.keys.CurrentKeyID(roomID)
	if err != nil {
		return EncryptedAudioPacket{}, err
	}

	return EncryptedAudioPacket{
		Sequence:   p.Sequence,
		PeerID:     p.PeerID,
		KeyID:      keyID,
		Ciphertext: wire,
	}, nil
}

// DecryptPacket reverses EncryptPacket: the manager tries the room's
// current key and, within its grace window, the previous one.
func (s *SecureAudioChannel) DecryptPacket(roomID string, ep EncryptedAudioPacket, now time.Time) (audio.Packet, error) {
	plaintext, err := s.keys.Decrypt(roomID, ep.Ciphertext, []byte(roomID), now)
	if err != nil {
		return audio.Packet{}, err
	}
	return decodePacket(plaintext)
}
