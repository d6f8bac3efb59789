//go:build linux

package notify

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// notifyExpireMS is how long a notification stays up before the desktop
// dismisses it.
const notifyExpireMS = 5000

// send posts a notification over the org.freedesktop.Notifications session
// bus interface, which every mainstream desktop implements.
func send(title, body string) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}

	obj := conn.Object("org.freedesktop.Notifications", "/org/freedesktop/Notifications")

	// Args: app name, replaces id, icon, summary, body, actions, hints, timeout
	call := obj.Call("org.freedesktop.Notifications.Notify", 0,
		"ghostkeys", uint32(0), "input-keyboard", title, body,
		[]string{}, map[string]dbus.Variant{}, int32(notifyExpireMS))
	if call.Err != nil {
		return fmt.Errorf("notify call: %w", call.Err)
	}
	return nil
}
