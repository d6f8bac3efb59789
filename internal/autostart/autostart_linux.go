//go:build linux

package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// XDG autostart entry; quoted Exec so paths with spaces survive.
const desktopEntry = `[Desktop Entry]
Type=Application
Name=` + appName + `
Comment=Text typing assistant
Exec="{{.ExecutablePath}}"
Terminal=false
X-GNOME-Autostart-enabled=true
`

func desktopPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "autostart", "ghostkeys.desktop"), nil
}

func enable() error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	path, err := desktopPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmpl, err := template.New("desktop").Parse(desktopEntry)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return tmpl.Execute(f, struct{ ExecutablePath string }{execPath})
}

func disable() error {
	path, err := desktopPath()
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func isEnabled() bool {
	path, err := desktopPath()
	if err != nil {
		return false
	}

	_, err = os.Stat(path)
	return err == nil
}
