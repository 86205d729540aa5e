package pipeline

import "errors"

var (
	ErrAlreadyStarted   = errors.New("pipeline: already started")
	ErrClosed           = errors.New("pipeline: pipeline stopped")
	ErrNoAudioIO        = errors.New("pipeline: config.AudioIO is required")
	ErrReadinessTimeout = errors.New("pipeline: audio backend did not become ready in time")
)
