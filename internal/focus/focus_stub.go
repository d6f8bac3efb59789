//go:build !windows && !darwin && !linux

package focus

func current() (Target, error) {
	return Target{}, ErrUnavailable
}
