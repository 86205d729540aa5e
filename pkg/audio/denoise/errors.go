package denoise

import "errors"

// ErrFrameSize is returned when Process is given a sub-frame that is not
// exactly FrameSize samples long.
var ErrFrameSize = errors.New("denoise: frame must be exactly 480 samples")
