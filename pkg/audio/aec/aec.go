// Package aec implements an adaptive acoustic echo canceller: an NLMS
// filter, a double-talk detector, and a residual suppressor, exactly as
// described in spec.md section 4.6. As with pkg/audio/denoise, no
// third-party AEC library appears anywhere in the retrieval pack, so
// this is stdlib-only, grounded on the ring-buffer bookkeeping idiom in
// the retrieval pack's audio-mixer file rather than any example repo's
// echo-cancellation code.
package aec

import "math"

// FilterLength is the number of NLMS filter taps.
const FilterLength = 1024

const (
	epsilon            = 1e-8
	defaultStepSize     = 0.1
	defaultDoubleTalk   = 0.5
	defaultMinGain      = 0.1
	defaultEnergyThresh = 0.01
	attackRate          = 0.1
	releaseRate         = 0.001
	smoothFast          = 0.9
	smoothSlow          = 0.1
)

// Stats reports the canceller's current operating state.
type Stats struct {
	ERLE            float64
	EchoReturn      float64
	DoubleTalk      bool
	FramesProcessed uint64
}

// Config tunes the NLMS step size, double-talk threshold, and residual
// suppressor behavior.
type Config struct {
	StepSize          float64
	DoubleTalkThresh  float64
	MinGain           float64
	EnergyThreshold   float64
}

func (c Config) withDefaults() Config {
	if c.StepSize == 0 {
		c.StepSize = defaultStepSize
	}
	if c.DoubleTalkThresh == 0 {
		c.DoubleTalkThresh = defaultDoubleTalk
	}
	if c.MinGain == 0 {
		c.MinGain = defaultMinGain
	}
	if c.EnergyThreshold == 0 {
		c.EnergyThreshold = defaultEnergyThresh
	}
	return c
}

// Canceller is a stateful acoustic echo canceller. One instance serves
// one audio direction; it is not safe for concurrent use, matching the
// single-owner replay-set/counter convention the rest of this module
// follows for per-connection state.
type Canceller struct {
	cfg Config

	enabled bool
	coeffs  []float64

	farRing  []float64
	nearRing []float64

	farPower  float64
	nearPower float64

	currentGain float64
	stats       Stats
}

// New returns an enabled Canceller with zeroed filter state.
func New(cfg Config) *Canceller {
	cfg = cfg.withDefaults()
	return &Canceller{
		cfg:         cfg,
		enabled:     true,
		coeffs:      make([]float64, FilterLength),
		currentGain: 1.0,
	}
}

// Enabled reports whether Process actively cancels echo.
func (c *Canceller) Enabled() bool {
	return c.enabled
}

// SetEnabled toggles cancellation; when disabled, Process passes the
// near-end frame through unmodified.
func (c *Canceller) SetEnabled(enabled bool) {
	c.enabled = enabled
}

// Reset clears filter coefficients, rings, and statistics.
func (c *Canceller) Reset() {
	for i := range c.coeffs {
		c.coeffs[i] = 0
	}
	c.farRing = nil
	c.nearRing = nil
	c.farPower = 0
	c.nearPower = 0
	c.currentGain = 1.0
	c.stats = Stats{}
}

// Stats returns a snapshot of the canceller's current statistics.
func (c *Canceller) Stats() Stats {
	return c.stats
}

// Process accepts one far-end (reference/speaker) frame and one
// near-end (microphone) frame of equal length, and returns the cleaned
// near-end frame with estimated echo removed.
func (c *Canceller) Process(far, near []float32) ([]float32, error) {
	if len(far) != len(near) {
		return nil, ErrFrameMismatch
	}
	frameSize := len(near)
	c.stats.FramesProcessed++

	if !c.enabled {
		out := make([]float32, frameSize)
		copy(out, near)
		return out, nil
	}

	for _, s := range far {
		c.farRing = append(c.farRing, float64(s))
	}
	if max := 4 * FilterLength; len(c.farRing) > max {
		c.farRing = c.farRing[len(c.farRing)-max:]
	}
	for _, s := range near {
		c.nearRing = append(c.nearRing, float64(s))
	}
	if max := 2 * FilterLength; len(c.nearRing) > max {
		c.nearRing = c.nearRing[len(c.nearRing)-max:]
	}

	if len(c.farRing) < frameSize+FilterLength || len(c.nearRing) < frameSize {
		// Not enough history yet to run the filter; pass through.
		out := make([]float32, frameSize)
		copy(out, near)
		return out, nil
	}

	nearFrame := c.nearRing[len(c.nearRing)-frameSize:]
	farBase := len(c.farRing) - frameSize - FilterLength

	output := make([]float64, frameSize)
	for i := 0; i < frameSize; i++ {
		window := c.farRing[farBase+i : farBase+i+FilterLength]
		estimate := 0.0
		for j := 0; j < FilterLength; j++ {
			estimate += c.coeffs[j] * window[FilterLength-1-j]
		}
		output[i] = nearFrame[i] - estimate

		farSample := window[FilterLength-1]
		c.farPower = smoothFast*c.farPower + smoothSlow*farSample*farSample
		nearSample := nearFrame[i]
		c.nearPower = smoothFast*c.nearPower + smoothSlow*nearSample*nearSample

		doubleTalk := c.farPower > 0 && c.nearPower/c.farPower > c.cfg.DoubleTalkThresh
		c.stats.DoubleTalk = doubleTalk

		if !doubleTalk {
			step := c.cfg.StepSize / (c.farPower + epsilon)
			for j := 0; j < FilterLength; j++ {
				c.coeffs[j] += step * output[i] * window[FilterLength-1-j]
			}
		}
	}

	maxCoeff := 0.0
	for _, v := range c.coeffs {
		if abs := math.Abs(v); abs > maxCoeff {
			maxCoeff = abs
		}
	}
	if maxCoeff > 1.0 {
		for j := range c.coeffs {
			c.coeffs[j] /= maxCoeff
		}
	}

	frameEnergy := 0.0
	for _, v := range output {
		frameEnergy += v * v
	}
	frameEnergy /= float64(frameSize)

	targetGain := 1.0
	if frameEnergy > c.cfg.EnergyThreshold {
		targetGain = c.cfg.MinGain
	}
	if targetGain < c.currentGain {
		c.currentGain += attackRate * (targetGain - c.currentGain)
	} else {
		c.currentGain += releaseRate * (targetGain - c.currentGain)
	}

	out := make([]float32, frameSize)
	for i, v := range output {
		out[i] = float32(v * c.currentGain)
	}

	errorPower := 0.0
	for _, v := range output {
		errorPower += v * v
	}
	errorPower /= float64(frameSize)
	c.stats.ERLE = 10 * math.Log10(c.nearPower/(errorPower+epsilon))
	c.stats.EchoReturn = errorPower

	return out, nil
}
