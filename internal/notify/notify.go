// Package notify shows desktop notifications for typing job outcomes.
package notify

// Send shows a desktop notification. Failures are returned rather than
// logged so callers can decide how loud to be about them.
func Send(title, body string) error {
	return send(title, body)
}
