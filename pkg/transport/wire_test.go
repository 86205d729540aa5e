package transport

import (
	"testing"
	"time"

	"github.com/agora-voice/agora/pkg/audio"
)

func TestEncodeDecodePacketRoundTrip(t *testing.T) {
	original := audio.Packet{
		Sequence:   7,
		Timestamp:  time.Now().UTC(),
		PeerID:     "abcd1234",
		Frame:      []byte{10, 20, 30},
		SampleRate: 48000,
		Channels:   1,
	}

	data, err := encodePacket(original)
	if err != nil {
		t.Fatalf("encodePacket: %v", err)
	}
	decoded, err := decodePacket(data)
	if err != nil {
		t.Fatalf("decodePacket: %v", err)
	}

	if decoded.Sequence != original.Sequence ||
		decoded.PeerID != original.PeerID ||
		decoded.SampleRate != original.SampleRate ||
		decoded.Channels != original.Channels ||
		string(decoded.Frame) != string(original.Frame) ||
		decoded.Timestamp.UnixNano() != original.Timestamp.UnixNano() {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestDecodePacketRejectsTruncatedData(t *testing.T) {
	if _, err := decodePacket([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error decoding truncated packet data")
	}
}
