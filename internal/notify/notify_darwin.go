//go:build darwin

package notify

import (
	"fmt"
	"os/exec"
	"strings"
)

func send(title, body string) error {
	script := fmt.Sprintf(`display notification "%s" with title "%s"`,
		escape(body), escape(title))
	if err := exec.Command("osascript", "-e", script).Run(); err != nil {
		return fmt.Errorf("osascript notification: %w", err)
	}
	return nil
}

// escape protects text embedded in an AppleScript string literal.
// Backslashes must be escaped before quotes.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
