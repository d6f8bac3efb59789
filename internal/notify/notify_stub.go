//go:build !linux && !darwin && !windows

package notify

import "errors"

func send(title, body string) error {
	return errors.New("desktop notifications not supported on this platform")
}
