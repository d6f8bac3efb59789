package injector

import (
	"fmt"
	"runtime"

	"github.com/atotto/clipboard"
	"github.com/go-vgo/robotgo"
)

// clipboardInjector delivers text by writing it to the system clipboard and
// sending the platform paste chord. Some targets (terminals, remote desktops)
// drop rapid synthetic key events; pasting sidesteps that. The previous
// clipboard contents are saved on acquire and restored on Close.
type clipboardInjector struct {
	saved    string
	hadSaved bool
}

func newClipboard() (Injector, error) {
	if clipboard.Unsupported {
		return nil, fmt.Errorf("%w: no clipboard utility found (install xclip or xsel)", ErrUnavailable)
	}
	if runtime.GOOS == "darwin" && !accessibilityTrusted() {
		// The paste chord is still a synthetic key event.
		return nil, fmt.Errorf("%w: grant access in System Settings > Privacy & Security > Accessibility", ErrNotTrusted)
	}

	c := &clipboardInjector{}
	if prev, err := clipboard.ReadAll(); err == nil {
		c.saved = prev
		c.hadSaved = true
	}
	return c, nil
}

func (c *clipboardInjector) Name() string { return BackendClipboard }

func (c *clipboardInjector) TypeText(text string) error {
	if text == "" {
		return nil
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard write failed: %w", err)
	}
	robotgo.KeyTap("v", pasteModifier())
	// Give the target a moment to consume the paste before the clipboard
	// changes again (next segment or restore on Close).
	robotgo.MilliSleep(100)
	return nil
}

func (c *clipboardInjector) TapKey(key string) error {
	switch key {
	case KeyEnter, KeyTab:
		robotgo.KeyTap(key)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
}

func (c *clipboardInjector) Close() error {
	if !c.hadSaved {
		return nil
	}
	return clipboard.WriteAll(c.saved)
}

func pasteModifier() string {
	if runtime.GOOS == "darwin" {
		return "cmd"
	}
	return "ctrl"
}
