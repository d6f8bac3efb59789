//go:build !darwin

package injector

// accessibilityTrusted is a darwin concept; elsewhere injection needs no
// per-process permission grant.
func accessibilityTrusted() bool {
	return true
}
