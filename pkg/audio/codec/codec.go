// Package codec wraps the Opus voice codec for Agora's 48 kHz mono,
// 20 ms frame pipeline.
package codec

import (
	"fmt"

	"github.com/hraban/opus"

	"github.com/agora-voice/agora/pkg/audio"
)

// Application selects the Opus encoder's tuning profile.
type Application int

const (
	AppVoip Application = iota
	AppAudio
	AppLowDelay
)

func (a Application) toOpus() int {
	switch a {
	case AppAudio:
		return opus.AppAudio
	case AppLowDelay:
		return opus.AppRestrictedLowdelay
	default:
		return opus.AppVoIP
	}
}

// Bitrate bounds, matching spec.md's clamp(bps, 6000, 510000).
const (
	MinBitrate     = 6000
	MaxBitrate     = 510000
	DefaultBitrate = 32000
)

// MaxEncodedBytes bounds a single encoded frame's size.
const MaxEncodedBytes = 4000

// Config configures a new Encoder/Decoder pair.
type Config struct {
	Bitrate             int
	Application         Application
	Complexity          int
	ForwardErrorCorrect bool
	DTX                 bool
	PacketLossPercent   int
}

func (c Config) withDefaults() Config {
	if c.Bitrate == 0 {
		c.Bitrate = DefaultBitrate
	}
	c.Bitrate = clamp(c.Bitrate, MinBitrate, MaxBitrate)
	if c.Complexity == 0 {
		c.Complexity = 9
	}
	return c
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// EncodedFrame wraps an encoded frame with the bookkeeping the secure
// transport and jitter buffer need.
type EncodedFrame struct {
	Data      []byte
	Sequence  uint64
	Timestamp uint64 // sequence * audio.FrameSize, in samples
	Bitrate   int
}

// Encoder is a stateful Opus encoder operating on audio.Frame-sized
// input.
type Encoder struct {
	enc      *opus.Encoder
	cfg      Config
	sequence uint64
}

// NewEncoder builds an Encoder configured per cfg (defaults applied).
func NewEncoder(cfg Config) (*Encoder, error) {
	cfg = cfg.withDefaults()

	enc, err := opus.NewEncoder(audio.SampleRate, 1, cfg.Application.toOpus())
	if err != nil {
		return nil, fmt.Errorf("codec: new encoder: %w", err)
	}
	if err := enc.SetBitrate(cfg.Bitrate); err != nil {
		return nil, fmt.Errorf("codec: set bitrate: %w", err)
	}
	if err := enc.SetComplexity(cfg.Complexity); err != nil {
		return nil, fmt.Errorf("codec: set complexity: %w", err)
	}
	if err := enc.SetInBandFEC(cfg.ForwardErrorCorrect); err != nil {
		return nil, fmt.Errorf("codec: set fec: %w", err)
	}
	if err := enc.SetDTX(cfg.DTX); err != nil {
		return nil, fmt.Errorf("codec: set dtx: %w", err)
	}
	if cfg.PacketLossPercent != 0 {
		if err := enc.SetPacketLossPerc(cfg.PacketLossPercent); err != nil {
			return nil, fmt.Errorf("codec: set packet loss perc: %w", err)
		}
	}

	return &Encoder{enc: enc, cfg: cfg}, nil
}

// Encode encodes one audio.FrameSize-sample frame, returning at most
// MaxEncodedBytes and incrementing the internal frame counter.
func (e *Encoder) Encode(frame []float32) ([]byte, error) {
	if err := audio.CheckLen(frame); err != nil {
		return nil, err
	}
	out := make([]byte, MaxEncodedBytes)
	n, err := e.enc.EncodeFloat32(frame, out)
	if err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	e.sequence++
	return out[:n], nil
}

// EncodeFrame encodes frame and wraps it with sequence/timestamp/bitrate
// bookkeeping.
func (e *Encoder) EncodeFrame(frame []float32) (EncodedFrame, error) {
	seq := e.sequence
	data, err := e.Encode(frame)
	if err != nil {
		return EncodedFrame{}, err
	}
	return EncodedFrame{
		Data:      data,
		Sequence:  seq,
		Timestamp: seq * audio.FrameSize,
		Bitrate:   e.cfg.Bitrate,
	}, nil
}

// SetBitrate clamps bps to the valid range and reconfigures the encoder.
func (e *Encoder) SetBitrate(bps int) error {
	bps = clamp(bps, MinBitrate, MaxBitrate)
	if err := e.enc.SetBitrate(bps); err != nil {
		return fmt.Errorf("codec: set bitrate: %w", err)
	}
	e.cfg.Bitrate = bps
	return nil
}

// Decoder is a stateful Opus decoder producing audio.FrameSize-sample
// frames.
type Decoder struct {
	dec *opus.Decoder
}

// NewDecoder builds a Decoder for 48 kHz mono.
func NewDecoder() (*Decoder, error) {
	dec, err := opus.NewDecoder(audio.SampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("codec: new decoder: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// Decode decodes an Opus packet into up to audio.FrameSize samples.
func (d *Decoder) Decode(data []byte) ([]float32, error) {
	out := make([]float32, audio.FrameSize)
	n, err := d.dec.DecodeFloat32(data, out)
	if err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	return out[:n], nil
}

// DecodeWithFEC decodes data, or if useFEC is set, attempts to recover
// the frame preceding it from the forward error correction information
// carried in this packet.
func (d *Decoder) DecodeWithFEC(data []byte, useFEC bool) ([]float32, error) {
	out := make([]float32, audio.FrameSize)
	n, err := d.dec.DecodeFloat32FEC(data, out, useFEC)
	if err != nil {
		return nil, fmt.Errorf("codec: decode fec: %w", err)
	}
	return out[:n], nil
}

// DecodePacketLoss synthesizes a replacement frame when no packet
// arrived, using Opus's native packet-loss concealment.
func (d *Decoder) DecodePacketLoss() ([]float32, error) {
	out := make([]float32, audio.FrameSize)
	n, err := d.dec.DecodeFloat32(nil, out)
	if err != nil {
		return nil, fmt.Errorf("codec: decode packet loss: %w", err)
	}
	return out[:n], nil
}
