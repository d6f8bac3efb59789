package injector

import "errors"

var (
	// ErrUnknownBackend is returned when the configured backend name is not recognized
	ErrUnknownBackend = errors.New("unknown injection backend")

	// ErrUnavailable is returned when a backend cannot deliver input on this system
	ErrUnavailable = errors.New("injection backend unavailable")

	// ErrNotTrusted is returned on macOS when accessibility permission is missing
	ErrNotTrusted = errors.New("accessibility permission not granted")

	// ErrUnknownKey is returned when TapKey receives an unrecognized key name
	ErrUnknownKey = errors.New("unknown key name")
)
