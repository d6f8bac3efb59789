//go:build darwin

package focus

import (
	"fmt"
	"os/exec"
	"strings"
)

func current() (Target, error) {
	app, err := runScript(`tell application "System Events" to get name of first application process whose frontmost is true`)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// The frontmost process can legitimately have no window; ignore failures
	title, _ := runScript(`tell application "System Events" to get title of front window of (first application process whose frontmost is true)`)

	return Target{App: app, Title: title}, nil
}

func runScript(script string) (string, error) {
	out, err := exec.Command("osascript", "-e", script).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
