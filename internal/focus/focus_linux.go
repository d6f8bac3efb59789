//go:build linux

package focus

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

func current() (Target, error) {
	if _, err := exec.LookPath("xdotool"); err != nil {
		return Target{}, fmt.Errorf("%w: xdotool not found on PATH", ErrUnavailable)
	}

	title, err := xdotool("getactivewindow", "getwindowname")
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	target := Target{Title: title}
	if pidStr, err := xdotool("getactivewindow", "getwindowpid"); err == nil {
		if pid, err := strconv.Atoi(pidStr); err == nil {
			if comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid)); err == nil {
				target.App = strings.TrimSpace(string(comm))
			}
		}
	}

	return target, nil
}

func xdotool(args ...string) (string, error) {
	out, err := exec.Command("xdotool", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
