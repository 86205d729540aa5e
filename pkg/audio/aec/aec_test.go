package aec

import (
	"math"
	"testing"
)

func tone(freqHz float64, amplitude float32, n int) []float32 {
	frame := make([]float32, n)
	for i := range frame {
		t := float64(i) / 48000
		frame[i] = amplitude * float32(math.Sin(2*math.Pi*freqHz*t))
	}
	return frame
}

func TestProcessRejectsMismatchedLengths(t *testing.T) {
	c := New(Config{})
	_, err := c.Process(make([]float32, 10), make([]float32, 20))
	if err != ErrFrameMismatch {
		t.Fatalf("err = %v, want ErrFrameMismatch", err)
	}
}

func TestDisabledPassesThrough(t *testing.T) {
	c := New(Config{})
	c.SetEnabled(false)
	near := tone(440, 0.3, 960)
	out, err := c.Process(tone(440, 0.3, 960), near)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for i := range out {
		if out[i] != near[i] {
			t.Fatalf("disabled Process modified sample %d", i)
		}
	}
}

func TestProcessConvergesToReduceEcho(t *testing.T) {
	c := New(Config{})
	frameSize := 960

	var lastEnergy, firstConvergedEnergy float64
	for i := 0; i < 20; i++ {
		far := tone(440, 0.5, frameSize)
		// Near-end is a scaled copy of far-end: a pure echo with no
		// local speech, so the filter should learn to cancel it.
		near := make([]float32, frameSize)
		for j, v := range far {
			near[j] = 0.6 * v
		}
		out, err := c.Process(far, near)
		if err != nil {
			t.Fatalf("Process iteration %d: %v", i, err)
		}
		e := 0.0
		for _, v := range out {
			e += float64(v) * float64(v)
		}
		lastEnergy = e
		if i == 5 {
			firstConvergedEnergy = e
		}
	}

	if lastEnergy >= firstConvergedEnergy {
		t.Fatalf("expected residual echo energy to keep decreasing: early=%v late=%v", firstConvergedEnergy, lastEnergy)
	}
}

func TestStatsFramesProcessedCounts(t *testing.T) {
	c := New(Config{})
	for i := 0; i < 3; i++ {
		if _, err := c.Process(tone(440, 0.3, 960), tone(220, 0.1, 960)); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	if c.Stats().FramesProcessed != 3 {
		t.Fatalf("FramesProcessed = %d, want 3", c.Stats().FramesProcessed)
	}
}

func TestResetClearsState(t *testing.T) {
	c := New(Config{})
	for i := 0; i < 5; i++ {
		_, _ = c.Process(tone(440, 0.3, 960), tone(440, 0.3, 960))
	}
	c.Reset()
	if c.Stats().FramesProcessed != 0 {
		t.Fatalf("FramesProcessed after Reset = %d, want 0", c.Stats().FramesProcessed)
	}
	for _, v := range c.coeffs {
		if v != 0 {
			t.Fatal("coefficients should be zeroed after Reset")
		}
	}
}
