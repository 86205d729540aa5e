package ice

import "errors"

var (
	ErrNoCandidatesGathered = errors.New("ice: no local candidates were gathered")
	ErrNoPairSucceeded      = errors.New("ice: no candidate pair succeeded")
	ErrNotConnected         = errors.New("ice: agent has no selected pair")
	ErrAlreadyClosed        = errors.New("ice: agent is closed")
)
