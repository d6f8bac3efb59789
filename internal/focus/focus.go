// Package focus reports which application currently owns the keyboard,
// letting the UI show where typed text will land before a job starts.
package focus

import "errors"

// ErrUnavailable is returned when the focused window cannot be determined
// on this platform or session.
var ErrUnavailable = errors.New("focus readout not available")

// Target identifies the focused application window.
type Target struct {
	// App is the application or process name
	App string

	// Title is the focused window title, when the platform exposes one
	Title string
}

// Current returns the application that will receive injected keystrokes.
func Current() (Target, error) {
	return current()
}
