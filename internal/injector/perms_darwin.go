//go:build darwin

package injector

/*
#cgo LDFLAGS: -framework ApplicationServices
#include <ApplicationServices/ApplicationServices.h>
*/
import "C"

// accessibilityTrusted reports whether this process may synthesize input
// events. macOS gates that behind System Settings > Privacy & Security >
// Accessibility, and injection silently does nothing without the grant.
func accessibilityTrusted() bool {
	return bool(C.AXIsProcessTrusted())
}
