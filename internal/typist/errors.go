package typist

import "errors"

var (
	// ErrCanceled is reported by jobs that were canceled before completion.
	ErrCanceled = errors.New("typing canceled")

	// ErrQueueFull is returned by Submit when the job queue is at capacity.
	ErrQueueFull = errors.New("typing queue full")

	// ErrClosed is returned by Submit after the engine has been shut down.
	ErrClosed = errors.New("typing engine closed")
)
