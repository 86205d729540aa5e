// Package audio defines the canonical frame type shared by the codec,
// denoiser, echo canceller, and pipeline, plus the wire packet types the
// secure transport layers on top of.
package audio

import (
	"errors"
	"time"
)

// SampleRate is the only sample rate every component in this package
// operates on. A capture/playback collaborator providing another rate
// must resample before handing samples to the pipeline.
const SampleRate = 48000

// FrameSize is the canonical frame length in samples: 20 ms at 48 kHz.
const FrameSize = 960

// ErrFrameSize is returned by any operation given a frame whose length
// is not exactly FrameSize.
var ErrFrameSize = errors.New("audio: frame must be exactly 960 samples")

// Frame is 20 ms of 48 kHz mono float32 audio.
type Frame [FrameSize]float32

// CheckLen validates that samples has exactly FrameSize entries.
func CheckLen(samples []float32) error {
	if len(samples) != FrameSize {
		return ErrFrameSize
	}
	return nil
}

// Packet is the in-process representation of one encoded audio frame
// ready for secure transport.
type Packet struct {
	Sequence   uint64
	Timestamp  time.Time
	PeerID     string
	Frame      []byte // codec-encoded frame bytes
	SampleRate uint32
	Channels   uint8
}
