// Package autostart manages launch-on-login registration.
package autostart

// appName is the registration name each platform mechanism files us under.
const appName = "Ghostkeys"

// Enable registers the current executable to start on login.
func Enable() error {
	return enable()
}

// Disable removes the login registration.
func Disable() error {
	return disable()
}

// IsEnabled reports whether start-on-login is currently registered.
func IsEnabled() bool {
	return isEnabled()
}
