package turn

import "errors"

var ErrNoAllocation = errors.New("turn: no active allocation")
