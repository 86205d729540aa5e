package mixer

// MixFrames combines the local frame with every remote frame at equal
// weight, clamping each sample to [-1, 1]; callers should only do this
// when IsLocalMixer() is true. All frames must be the same length.
func MixFrames(local []float32, remotes map[string][]float32) []float32 {
	out := make([]float32, len(local))
	copy(out, local)

	for _, frame := range remotes {
		n := len(frame)
		if n > len(out) {
			n = len(out)
		}
		for i := 0; i < n; i++ {
			out[i] += frame[i]
		}
	}

	for i, v := range out {
		if v > 1 {
			out[i] = 1
		} else if v < -1 {
			out[i] = -1
		}
	}
	return out
}

// PassThrough returns local audio unchanged, the behavior for every
// node that is not the current mixer.
func PassThrough(local []float32) []float32 {
	out := make([]float32, len(local))
	copy(out, local)
	return out
}
