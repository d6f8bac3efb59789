package injector

import (
	"fmt"
	"os"
	"runtime"

	"github.com/go-vgo/robotgo"
)

// syntheticInjector emits per-character keyboard events through robotgo.
// This is the default backend and the closest analog to real typing: each
// character arrives as its own key event, so targets that filter paste input
// still accept it.
type syntheticInjector struct{}

func newSynthetic() (Injector, error) {
	switch runtime.GOOS {
	case "darwin":
		if !accessibilityTrusted() {
			return nil, fmt.Errorf("%w: grant access in System Settings > Privacy & Security > Accessibility", ErrNotTrusted)
		}
	case "linux":
		// robotgo drives the X11 XTest extension; without a display server
		// connection injection fails in C land with no useful error.
		if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
			return nil, fmt.Errorf("%w: no DISPLAY or WAYLAND_DISPLAY", ErrUnavailable)
		}
	}
	return &syntheticInjector{}, nil
}

func (s *syntheticInjector) Name() string { return BackendSynthetic }

func (s *syntheticInjector) TypeText(text string) error {
	if text == "" {
		return nil
	}
	robotgo.TypeStr(text)
	return nil
}

func (s *syntheticInjector) TapKey(key string) error {
	switch key {
	case KeyEnter, KeyTab:
		robotgo.KeyTap(key)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
}

func (s *syntheticInjector) Close() error { return nil }
