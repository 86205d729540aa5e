package aec

import "errors"

// ErrFrameMismatch is returned when Process is given far-end and
// near-end frames of different lengths.
var ErrFrameMismatch = errors.New("aec: far and near frames must be the same length")
