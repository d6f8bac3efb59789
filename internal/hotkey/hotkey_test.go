package hotkey

import (
	"testing"
	"time"
)

// pressCombo feeds key-down events for each key in order, as the
// platform hooks would.
func pressCombo(m *Manager, keys ...string) {
	for _, k := range keys {
		m.UpdateState(k, true)
	}
}

func releaseAll(m *Manager, keys ...string) {
	for _, k := range keys {
		m.UpdateState(k, false)
	}
}

// fired waits briefly for the callback goroutine to signal.
func fired(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-time.After(500 * time.Millisecond):
		return false
	}
}

// notFired gives the callback a short window to (incorrectly) arrive.
func notFired(ch chan struct{}) bool {
	select {
	case <-ch:
		return false
	case <-time.After(50 * time.Millisecond):
		return true
	}
}

// TestRegisterAndTrigger verifies a combo fires once all its keys are held.
func TestRegisterAndTrigger(t *testing.T) {
	m := NewManager()
	ch := make(chan struct{}, 1)
	m.Register("Ctrl+Alt+V", func() { ch <- struct{}{} })

	pressCombo(m, "CTRL", "ALT", "V")

	if !fired(ch) {
		t.Error("Expected hotkey to trigger, got no callback")
	}
}

// TestPartialComboDoesNotTrigger verifies that holding a subset of the
// combo's keys never fires the callback.
func TestPartialComboDoesNotTrigger(t *testing.T) {
	m := NewManager()
	ch := make(chan struct{}, 1)
	m.Register("Ctrl+Alt+Esc", func() { ch <- struct{}{} })

	pressCombo(m, "CTRL", "ESC")

	if !notFired(ch) {
		t.Error("Expected no trigger for partial combo, got callback")
	}
}

// TestAliasNormalization verifies the config-file spellings map onto the
// key names the hooks report.
func TestAliasNormalization(t *testing.T) {
	m := NewManager()
	ch := make(chan struct{}, 1)
	m.Register("Control+Option+Escape", func() { ch <- struct{}{} })

	pressCombo(m, "CTRL", "ALT", "ESC")

	if !fired(ch) {
		t.Error("Expected aliased hotkey to trigger, got no callback")
	}
}

// TestLowercaseRegistration verifies matching is case-insensitive on both
// the registered string and the reported key names.
func TestLowercaseRegistration(t *testing.T) {
	m := NewManager()
	ch := make(chan struct{}, 1)
	m.Register("ctrl+shift+k", func() { ch <- struct{}{} })

	pressCombo(m, "ctrl", "shift", "k")

	if !fired(ch) {
		t.Error("Expected lowercase hotkey to trigger, got no callback")
	}
}

// TestReleaseBreaksCombo verifies that releasing a modifier stops the
// combo from firing on the next key press.
func TestReleaseBreaksCombo(t *testing.T) {
	m := NewManager()
	ch := make(chan struct{}, 2)
	m.Register("Ctrl+Alt+V", func() { ch <- struct{}{} })

	pressCombo(m, "CTRL", "ALT", "V")
	if !fired(ch) {
		t.Fatal("Expected initial trigger, got no callback")
	}

	m.UpdateState("ALT", false)
	m.UpdateState("V", false)
	m.UpdateState("V", true)

	if !notFired(ch) {
		t.Error("Expected no trigger after modifier release, got callback")
	}
}

// TestSuspendedSkipsNormalHotkeys verifies SetSuspended(true) pauses
// ordinary hotkeys but leaves urgent ones active.
func TestSuspendedSkipsNormalHotkeys(t *testing.T) {
	m := NewManager()
	normal := make(chan struct{}, 1)
	urgent := make(chan struct{}, 1)
	m.Register("Ctrl+Alt+V", func() { normal <- struct{}{} })
	m.RegisterUrgent("Ctrl+Alt+Esc", func() { urgent <- struct{}{} })

	m.SetSuspended(true)

	pressCombo(m, "CTRL", "ALT", "V")
	if !notFired(normal) {
		t.Error("Expected suspended hotkey to stay quiet, got callback")
	}

	releaseAll(m, "V")
	pressCombo(m, "ESC")
	if !fired(urgent) {
		t.Error("Expected urgent hotkey to fire while suspended, got no callback")
	}
}

// TestResumeRestoresNormalHotkeys verifies hotkeys work again after
// SetSuspended(false).
func TestResumeRestoresNormalHotkeys(t *testing.T) {
	m := NewManager()
	ch := make(chan struct{}, 1)
	m.Register("Ctrl+Alt+V", func() { ch <- struct{}{} })

	m.SetSuspended(true)
	m.SetSuspended(false)

	pressCombo(m, "CTRL", "ALT", "V")
	if !fired(ch) {
		t.Error("Expected hotkey to trigger after resume, got no callback")
	}
}

// TestClearRemovesHotkeys verifies Clear drops every registration.
func TestClearRemovesHotkeys(t *testing.T) {
	m := NewManager()
	ch := make(chan struct{}, 1)
	m.Register("Ctrl+Alt+V", func() { ch <- struct{}{} })
	m.Clear()

	pressCombo(m, "CTRL", "ALT", "V")

	if !notFired(ch) {
		t.Error("Expected no trigger after Clear, got callback")
	}
}

// TestEmptyStringRegistersNothing verifies a blank hotkey setting is a no-op.
func TestEmptyStringRegistersNothing(t *testing.T) {
	m := NewManager()
	m.Register("", func() {})

	m.mu.RLock()
	count := len(m.hotkeys)
	m.mu.RUnlock()

	if count != 0 {
		t.Errorf("Expected 0 registered hotkeys, got %d", count)
	}
}
