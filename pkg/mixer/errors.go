package mixer

import "errors"

var (
	ErrNoCandidates   = errors.New("mixer: no candidates to elect a mixer from")
	ErrParticipantGone = errors.New("mixer: participant not tracked")
)
