// Package denoise implements a per-frame spectral noise suppressor.
// No third-party DSP library in the retrieval pack covers single-channel
// spectral noise suppression at this frame size, so this is built
// directly on stdlib math/cmplx, following spec.md's description rather
// than any example repo's audio code.
package denoise

import (
	"math"
	"math/cmplx"
)

// FrameSize is the fixed sub-frame length this package operates on. The
// audio pipeline presents 960-sample frames as two FrameSize sub-frames.
const FrameSize = 480

// noiseSmoothing and overSubtraction tune how aggressively the
// estimated noise floor is subtracted from the signal spectrum.
const (
	noiseSmoothing  = 0.95
	overSubtraction = 1.5
	spectralFloor   = 0.05
)

// Denoiser is a stateful spectral suppressor operating on FrameSize
// sub-frames.
type Denoiser struct {
	enabled    bool
	noiseMag   [FrameSize]float64
	frameCount uint64
	primed     bool
}

// New returns an enabled Denoiser with no prior noise estimate.
func New() *Denoiser {
	return &Denoiser{enabled: true}
}

// Enabled reports whether Process currently modifies frames.
func (d *Denoiser) Enabled() bool {
	return d.enabled
}

// SetEnabled toggles processing; when disabled, Process is a no-op pass
// through (frame count still advances).
func (d *Denoiser) SetEnabled(enabled bool) {
	d.enabled = enabled
}

// FrameCount returns the number of FrameSize sub-frames processed so
// far.
func (d *Denoiser) FrameCount() uint64 {
	return d.frameCount
}

// Reset clears the noise estimate and frame counter.
func (d *Denoiser) Reset() {
	d.noiseMag = [FrameSize]float64{}
	d.frameCount = 0
	d.primed = false
}

// Process suppresses estimated stationary noise in frame in place. The
// first frame only primes the noise estimate and passes through
// unmodified, since there is nothing yet to subtract against.
func (d *Denoiser) Process(frame []float32) error {
	if len(frame) != FrameSize {
		return ErrFrameSize
	}
	d.frameCount++
	if !d.enabled {
		return nil
	}

	spectrum := forwardDFT(frame)

	mag := make([]float64, FrameSize)
	for i, c := range spectrum {
		mag[i] = cmplx.Abs(c)
	}

	if !d.primed {
		copy(d.noiseMag[:], mag)
		d.primed = true
		return nil
	}

	for i := range mag {
		// Track the noise floor with a one-pole smoother biased toward
		// quiet bins: only update fast when the bin is quieter than the
		// running estimate, slow otherwise, so transient speech energy
		// doesn't get absorbed into the "noise" profile.
		if mag[i] < d.noiseMag[i] {
			d.noiseMag[i] = noiseSmoothing*d.noiseMag[i] + (1-noiseSmoothing)*mag[i]
		} else {
			d.noiseMag[i] = 0.999*d.noiseMag[i] + 0.001*mag[i]
		}

		suppressed := mag[i] - overSubtraction*d.noiseMag[i]
		floor := spectralFloor * mag[i]
		if suppressed < floor {
			suppressed = floor
		}
		if mag[i] > 0 {
			gain := suppressed / mag[i]
			spectrum[i] *= complex(gain, 0)
		}
	}

	out := inverseDFT(spectrum)
	for i := range frame {
		frame[i] = float32(out[i])
	}
	return nil
}

func forwardDFT(frame []float32) []complex128 {
	n := len(frame)
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		var sum complex128
		for t := 0; t < n; t++ {
			angle := -2 * math.Pi * float64(k) * float64(t) / float64(n)
			sum += complex(float64(frame[t]), 0) * cmplx.Exp(complex(0, angle))
		}
		out[k] = sum
	}
	return out
}

func inverseDFT(spectrum []complex128) []float64 {
	n := len(spectrum)
	out := make([]float64, n)
	for t := 0; t < n; t++ {
		var sum complex128
		for k := 0; k < n; k++ {
			angle := 2 * math.Pi * float64(k) * float64(t) / float64(n)
			sum += spectrum[k] * cmplx.Exp(complex(0, angle))
		}
		out[t] = real(sum) / float64(n)
	}
	return out
}
