package injector

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// commandInjector shells out to an external typing tool. It exists for setups
// where in-process injection is unavailable: Wayland sessions (wtype), X11
// boxes (xdotool), or macOS without linking against CoreGraphics (osascript).
type commandInjector struct {
	tool string
	run  func(name string, args ...string) error
}

func newCommand() (Injector, error) {
	tool, err := resolveTool()
	if err != nil {
		return nil, err
	}
	return &commandInjector{
		tool: tool,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}, nil
}

// resolveTool picks the typing tool for this session and verifies it exists.
func resolveTool() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		return lookPath("osascript")
	case "linux":
		if os.Getenv("WAYLAND_DISPLAY") != "" {
			return lookPath("wtype")
		}
		return lookPath("xdotool")
	default:
		return "", fmt.Errorf("%w: command backend not supported on %s", ErrUnavailable, runtime.GOOS)
	}
}

func lookPath(name string) (string, error) {
	if _, err := exec.LookPath(name); err != nil {
		return "", fmt.Errorf("%w: %s not found on PATH", ErrUnavailable, name)
	}
	return name, nil
}

func (c *commandInjector) Name() string { return BackendCommand }

func (c *commandInjector) TypeText(text string) error {
	if text == "" {
		return nil
	}
	switch c.tool {
	case "osascript":
		return c.run(c.tool, "-e", keystrokeScript(text))
	case "wtype":
		return c.run(c.tool, "--", text)
	default: // xdotool
		return c.run(c.tool, "type", "--clearmodifiers", "--", text)
	}
}

func (c *commandInjector) TapKey(key string) error {
	switch key {
	case KeyEnter, KeyTab:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	switch c.tool {
	case "osascript":
		name := "return"
		if key == KeyTab {
			name = "tab"
		}
		return c.run(c.tool, "-e", fmt.Sprintf(`tell application "System Events" to keystroke %s`, name))
	case "wtype":
		name := "Return"
		if key == KeyTab {
			name = "Tab"
		}
		return c.run(c.tool, "-k", name)
	default: // xdotool
		name := "Return"
		if key == KeyTab {
			name = "Tab"
		}
		return c.run(c.tool, "key", "--clearmodifiers", name)
	}
}

func (c *commandInjector) Close() error { return nil }

// keystrokeScript builds the AppleScript that types text via System Events.
// Backslashes must be escaped before quotes to survive both string layers.
func keystrokeScript(text string) string {
	escaped := strings.ReplaceAll(text, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, escaped)
}
