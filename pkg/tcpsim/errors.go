package tcpsim

import "errors"

var ErrAllAttemptsFailed = errors.New("tcpsim: all endpoints failed on every attempt")
