// Package transport layers the secure channel over audio packets: it
// encodes an audio.Packet to a fixed binary wire format, encrypts it
// through a securechannel.KeyManager, and wraps the ciphertext with
// the routing metadata a receiver needs before it can even look up the
// right room key.
package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/agora-voice/agora/pkg/audio"
)

func timeFromUnixNano(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}

// encodePacket serializes an audio.Packet to a compact binary form:
// sequence, timestamp (unix nanos), peer id (length-prefixed), sample
// rate, channels, then the frame length (uint32) and the raw encoded
// frame bytes.
func encodePacket(p audio.Packet) ([]byte, error) {
	var buf bytes.Buffer

	if err := binary.Write(&buf, binary.BigEndian, p.Sequence); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, p.Timestamp.UnixNano()); err != nil {
		return nil, err
	}
	if err := writeString(&buf, p.PeerID); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, p.SampleRate); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, p.Channels); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(p.Frame))); err != nil {
		return nil, err
	}
	if _, err := buf.Write(p.Frame); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodePacket(data []byte) (audio.Packet, error) {
	var p audio.Packet
	buf := bytes.NewReader(data)

	if err := binary.Read(buf, binary.BigEndian, &p.Sequence); err != nil {
		return p, err
	}
	var nanos int64
	if err := binary.Read(buf, binary.BigEndian, &nanos); err != nil {
		return p, err
	}
	p.Timestamp = timeFromUnixNano(nanos)

	peerID, err := readString(buf)
	if err != nil {
		return p, err
	}
	p.PeerID = peerID

	if err := binary.Read(buf, binary.BigEndian, &p.SampleRate); err != nil {
		return p, err
	}
	if err := binary.Read(buf, binary.BigEndian, &p.Channels); err != nil {
		return p, err
	}

	var frameLen uint32
	if err := binary.Read(buf, binary.BigEndian, &frameLen); err != nil {
		return p, err
	}
	frame := make([]byte, frameLen)
	if _, err := buf.Read(frame); err != nil {
		return p, fmt.Errorf("transport: short frame: %w", err)
	}
	p.Frame = frame

	return p, nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if err := binary.Write(buf, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := buf.WriteString(s)
	return err
}

func readString(buf *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(buf, binary.BigEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := buf.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}
