//go:build windows

package notify

import (
	"fmt"
	"os/exec"
	"strings"
)

// send shows a balloon tip through PowerShell. Heavier toast APIs need an
// AppUserModelID registration this tray app does not carry.
func send(title, body string) error {
	script := fmt.Sprintf(
		"Add-Type -AssemblyName System.Windows.Forms; "+
			"Add-Type -AssemblyName System.Drawing; "+
			"$n = New-Object System.Windows.Forms.NotifyIcon; "+
			"$n.Icon = [System.Drawing.SystemIcons]::Information; "+
			"$n.Visible = $true; "+
			"$n.ShowBalloonTip(5000, '%s', '%s', [System.Windows.Forms.ToolTipIcon]::Info); "+
			"Start-Sleep -Seconds 6; "+
			"$n.Dispose()",
		escapePS(title), escapePS(body))

	cmd := exec.Command("powershell", "-NoProfile", "-WindowStyle", "Hidden", "-Command", script)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("powershell notification: %w", err)
	}
	// Deliberately not waited on: the script sleeps so the balloon survives
	go cmd.Wait()
	return nil
}

// escapePS protects text inside a single-quoted PowerShell string, where a
// quote is escaped by doubling it.
func escapePS(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
