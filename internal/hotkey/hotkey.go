// Package hotkey provides global system-wide hotkey monitoring.
package hotkey

import (
	"log"
	"strings"
	"sync"
)

// Manager handles global hotkey registration and matching
type Manager struct {
	mu           sync.RWMutex
	hotkeys      []*registeredHotkey
	currentState map[string]bool // keys currently held down
	suspended    bool
}

type registeredHotkey struct {
	parts    []string // e.g., ["CTRL", "ALT", "V"]
	original string
	urgent   bool // fires even while matching is suspended
	callback func()
}

// NewManager creates a new hotkey manager
func NewManager() *Manager {
	return &Manager{
		currentState: make(map[string]bool),
	}
}

// Register registers a hotkey string (e.g. "Ctrl+Alt+V") and a callback.
// An empty string registers nothing.
func (m *Manager) Register(hotkeyStr string, callback func()) {
	m.register(hotkeyStr, callback, false)
}

// RegisterUrgent registers a hotkey that keeps working while matching is
// suspended. The abort hotkey uses this: it must fire exactly when the
// engine is busy typing.
func (m *Manager) RegisterUrgent(hotkeyStr string, callback func()) {
	m.register(hotkeyStr, callback, true)
}

func (m *Manager) register(hotkeyStr string, callback func(), urgent bool) {
	if hotkeyStr == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	parts := strings.Split(strings.ToUpper(hotkeyStr), "+")
	for i, p := range parts {
		parts[i] = normalizePart(strings.TrimSpace(p))
	}

	m.hotkeys = append(m.hotkeys, &registeredHotkey{
		parts:    parts,
		original: hotkeyStr,
		urgent:   urgent,
		callback: callback,
	})
}

// normalizePart maps the aliases people write in config files onto the
// names the platform hooks report.
func normalizePart(part string) string {
	switch part {
	case "CONTROL":
		return "CTRL"
	case "OPTION", "META":
		return "ALT"
	case "WIN", "SUPER", "COMMAND":
		return "CMD"
	case "ESCAPE":
		return "ESC"
	case "RETURN":
		return "ENTER"
	}
	return part
}

// Clear removes all registered hotkeys. Config reloads call this before
// re-registering the new set.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = nil
}

// SetSuspended pauses non-urgent matching. While the engine is injecting
// keystrokes the hooks see our own synthetic events; suspension keeps those
// from triggering snippets mid-job.
func (m *Manager) SetSuspended(suspended bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended = suspended
}

// UpdateState updates the internal state of a key and checks for matches.
func (m *Manager) UpdateState(key string, isDown bool) {
	m.mu.Lock()
	key = strings.ToUpper(key)
	if isDown {
		m.currentState[key] = true
	} else {
		delete(m.currentState, key)
	}
	m.mu.Unlock()

	if isDown {
		m.checkMatches()
	}
}

func (m *Manager) checkMatches() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, hk := range m.hotkeys {
		if m.suspended && !hk.urgent {
			continue
		}

		match := true
		// All parts of the hotkey must be in currentState
		for _, part := range hk.parts {
			if !m.currentState[part] {
				match = false
				break
			}
		}

		if match {
			log.Printf("Hotkey triggered: %s", hk.original)
			go hk.callback()
		}
	}
}

// Start initiates the platform-specific global hooks.
// This is implemented in platform-specific files (hotkey_windows.go, hotkey_darwin.go).
func (m *Manager) Start() error {
	return m.startPlatform()
}
