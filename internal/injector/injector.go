// Package injector provides the platform text-injection backends.
//
// An Injector is a transient handle to the OS input stream: acquired per
// typing job, used to emit text and named keys, then released. Keystrokes land
// in whatever application currently holds input focus; the injector makes no
// attempt to manage or verify focus.
package injector

import (
	"fmt"
)

// Key names accepted by TapKey.
const (
	KeyEnter = "enter"
	KeyTab   = "tab"
)

// Injector emits synthetic keyboard input.
type Injector interface {
	// Name identifies the backend ("synthetic", "clipboard", "command").
	Name() string

	// TypeText injects text as literal characters at the current input focus.
	// The text must not contain newlines or tabs; callers emit those via TapKey.
	TypeText(text string) error

	// TapKey presses and releases a named key (KeyEnter, KeyTab).
	TapKey(key string) error

	// Close releases the handle and restores any state the backend saved
	// (e.g. prior clipboard contents).
	Close() error
}

// Backend names accepted by New.
const (
	BackendSynthetic = "synthetic"
	BackendClipboard = "clipboard"
	BackendCommand   = "command"
)

// New acquires an injection handle for the named backend. An empty name
// selects the synthetic backend. Acquisition verifies the backend can deliver
// events on this system (display present, permissions granted, helper tool on
// PATH) so that "typing silently does nothing" surfaces here as an error.
func New(backend string) (Injector, error) {
	switch backend {
	case "", "auto", BackendSynthetic:
		return newSynthetic()
	case BackendClipboard:
		return newClipboard()
	case BackendCommand:
		return newCommand()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// Backends lists the backend names accepted by New, in preference order.
func Backends() []string {
	return []string{BackendSynthetic, BackendClipboard, BackendCommand}
}
