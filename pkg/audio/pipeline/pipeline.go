// Package pipeline owns the capture/playback rings and the dedicated
// backend goroutine that bridges a real-time ioport.AudioIO to the rest
// of the audio stack, following pkg/transport.UDP's start/stop/closeCh/
// sync.WaitGroup lifecycle shape.
package pipeline

import (
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/agora-voice/agora/pkg/audio"
	"github.com/agora-voice/agora/pkg/ioport"
)

// maxRingFrames bounds the capture/playback rings to roughly 10 frames
// of latency; older samples are trimmed on every push.
const maxRingFrames = 10

const maxRingSamples = maxRingFrames * audio.FrameSize

// readinessTimeout is how long Start waits for the backend goroutine to
// signal it has attached to the AudioIO collaborator.
const readinessTimeout = 5 * time.Second

// pollInterval is the granularity at which the backend goroutine checks
// for a Stop command, matching spec.md's 10ms cancellation granularity.
const pollInterval = 10 * time.Millisecond

// Stats reports pipeline throughput and latency.
type Stats struct {
	FramesProcessed uint64
	FramesDropped   uint64
	AverageLatencyMs float64
	PeakLatencyMs    float64
}

// Config configures a Pipeline.
type Config struct {
	AudioIO ioport.AudioIO

	// NoiseGateEnabled and NoiseGateThreshold configure the simple
	// capture-side soft noise gate: below threshold a sample is zeroed,
	// above threshold it is linearly scaled.
	NoiseGateEnabled   bool
	NoiseGateThreshold float32

	LoggerFactory logging.LoggerFactory
}

func (c Config) withDefaults() Config {
	if c.NoiseGateThreshold == 0 {
		c.NoiseGateThreshold = 0.01
	}
	return c
}

// Pipeline owns the capture and playback rings and the backend
// goroutine attached to an ioport.AudioIO.
type Pipeline struct {
	cfg Config
	log logging.LeveledLogger

	mu            sync.Mutex
	captureRing   []float32
	playbackRing  []float32
	started       bool
	closed        bool
	stats         Stats
	latencySum    float64
	latencyCount  uint64

	readyCh chan error
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New builds a Pipeline. AudioIO is required.
func New(cfg Config) (*Pipeline, error) {
	cfg = cfg.withDefaults()
	if cfg.AudioIO == nil {
		return nil, ErrNoAudioIO
	}

	p := &Pipeline{
		cfg:     cfg,
		readyCh: make(chan error, 1),
		closeCh: make(chan struct{}),
	}
	if cfg.LoggerFactory != nil {
		p.log = cfg.LoggerFactory.NewLogger("audio-pipeline")
	}
	return p, nil
}

// Start spawns the backend goroutine and waits up to readinessTimeout
// for it to signal readiness.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true
	p.mu.Unlock()

	if p.log != nil {
		p.log.Info("starting audio pipeline backend")
	}

	p.wg.Add(1)
	go p.backendLoop()

	select {
	case err := <-p.readyCh:
		return err
	case <-time.After(readinessTimeout):
		return ErrReadinessTimeout
	}
}

// Stop signals the backend goroutine to stop and waits for it to exit.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true
	p.mu.Unlock()

	if p.log != nil {
		p.log.Info("stopping audio pipeline backend")
	}

	close(p.closeCh)
	p.wg.Wait()
	return nil
}

// backendLoop runs on its own goroutine and drives capture/playback at
// the AudioIO's pace, polling for a Stop command every pollInterval.
func (p *Pipeline) backendLoop() {
	defer p.wg.Done()

	p.readyCh <- nil

	buf := make([]float32, audio.FrameSize)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.closeCh:
			return
		case <-ticker.C:
			n, err := p.cfg.AudioIO.Capture(buf)
			if err != nil {
				if p.log != nil {
					p.log.Warnf("capture error: %v", err)
				}
				continue
			}
			if n > 0 {
				samples := buf[:n]
				if p.cfg.NoiseGateEnabled {
					applyNoiseGate(samples, p.cfg.NoiseGateThreshold)
				}
				p.pushCapture(samples)
			}

			if frame, ok := p.popPlayback(); ok {
				if err := p.cfg.AudioIO.Playback(frame); err != nil && p.log != nil {
					p.log.Warnf("playback error: %v", err)
				}
			}
		}
	}
}

// applyNoiseGate zeroes samples below threshold and linearly scales
// samples above it, per spec.md's "simple soft noise gate" description.
func applyNoiseGate(samples []float32, threshold float32) {
	for i, s := range samples {
		abs := s
		if abs < 0 {
			abs = -abs
		}
		if abs < threshold {
			samples[i] = 0
			continue
		}
		scale := (abs - threshold) / (1 - threshold)
		if s < 0 {
			scale = -scale
		}
		samples[i] = scale
	}
}

func (p *Pipeline) pushCapture(samples []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captureRing = append(p.captureRing, samples...)
	if over := len(p.captureRing) - maxRingSamples; over > 0 {
		p.captureRing = p.captureRing[over:]
		p.stats.FramesDropped += uint64(over / audio.FrameSize)
	}
}

// CaptureFrame returns a frame when at least audio.FrameSize samples
// are buffered, else (nil, false).
func (p *Pipeline) CaptureFrame() (audio.Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var frame audio.Frame
	if len(p.captureRing) < audio.FrameSize {
		return frame, false
	}
	copy(frame[:], p.captureRing[:audio.FrameSize])
	p.captureRing = p.captureRing[audio.FrameSize:]
	p.stats.FramesProcessed++
	return frame, true
}

// PlayFrame appends samples to the playback ring, trimming to
// maxRingSamples.
func (p *Pipeline) PlayFrame(frame []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playbackRing = append(p.playbackRing, frame...)
	if over := len(p.playbackRing) - maxRingSamples; over > 0 {
		p.playbackRing = p.playbackRing[over:]
	}
}

func (p *Pipeline) popPlayback() ([]float32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.playbackRing) < audio.FrameSize {
		return nil, false
	}
	frame := make([]float32, audio.FrameSize)
	copy(frame, p.playbackRing[:audio.FrameSize])
	p.playbackRing = p.playbackRing[audio.FrameSize:]
	return frame, true
}

// RecordLatency folds one latency observation (ms) into the running
// average and peak statistics.
func (p *Pipeline) RecordLatency(ms float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latencySum += ms
	p.latencyCount++
	p.stats.AverageLatencyMs = p.latencySum / float64(p.latencyCount)
	if ms > p.stats.PeakLatencyMs {
		p.stats.PeakLatencyMs = ms
	}
}

// Stats returns a snapshot of pipeline statistics.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
