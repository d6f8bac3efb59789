// Package config provides configuration management for the typing service.
package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Snippets contains saved text snippets that can be typed on demand
	Snippets []Snippet `json:"snippets"`

	// Typing contains injection behaviour settings
	Typing TypingConfig `json:"typing"`

	// Bridge contains command bridge (HTTP/WebSocket) settings
	Bridge BridgeConfig `json:"bridge"`

	// General contains general application settings
	General GeneralConfig `json:"general"`
}

// Snippet represents a saved piece of text with an optional trigger hotkey
type Snippet struct {
	// Name is the snippet name shown in the tray and UI (e.g., "Signature")
	Name string `json:"name"`

	// Text is the content typed when the snippet is triggered
	Text string `json:"text"`

	// Hotkey is the keyboard shortcut that types this snippet (optional)
	Hotkey string `json:"hotkey,omitempty"`
}

// TypingConfig contains settings for how text is injected
type TypingConfig struct {
	// Backend selects the injection backend
	// Values: "synthetic" (default), "clipboard", "command"
	Backend string `json:"backend"`

	// StartDelayMS delays the first keystroke so focus can be moved (default 0)
	StartDelayMS int `json:"start_delay_ms"`

	// CharIntervalMS sleeps between injected characters; 0 means backend-native speed
	CharIntervalMS int `json:"char_interval_ms"`
}

// BridgeConfig contains settings for the local command bridge
type BridgeConfig struct {
	// Enabled enables the HTTP/WebSocket bridge server
	Enabled bool `json:"enabled"`

	// Port is the port the bridge listens on (default: 18321)
	Port int `json:"port"`

	// Token is an optional authentication token for bridge requests
	Token string `json:"token,omitempty"`

	// AllowRemote binds the bridge to all interfaces instead of loopback only
	AllowRemote bool `json:"allow_remote"`

	// ForwardTo is the Address:Port of a remote instance that should perform
	// the typing instead of this one (empty = type locally)
	ForwardTo string `json:"forward_to,omitempty"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// StartOnBoot determines if app starts on system boot
	StartOnBoot bool `json:"start_on_boot"`

	// StartMinimized starts the app minimized to tray
	StartMinimized bool `json:"start_minimized"`

	// ShowNotifications shows desktop notifications when jobs finish or fail
	ShowNotifications bool `json:"show_notifications"`

	// AbortHotkey is the emergency hotkey that cancels all typing (e.g. "Ctrl+Alt+Esc")
	AbortHotkey string `json:"abort_hotkey,omitempty"`

	// ClipboardHotkey types the current clipboard content (e.g. "Ctrl+Alt+V")
	ClipboardHotkey string `json:"clipboard_hotkey,omitempty"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Snippets: []Snippet{
			{
				Name: "Signature",
				Text: "Best regards,\n",
			},
		},
		Typing: TypingConfig{
			Backend:        "synthetic",
			StartDelayMS:   0,
			CharIntervalMS: 0,
		},
		Bridge: BridgeConfig{
			Enabled: true,
			Port:    18321,
		},
		General: GeneralConfig{
			StartOnBoot:       false,
			StartMinimized:    true,
			ShowNotifications: true,
			AbortHotkey:       "Ctrl+Alt+Esc",
			ClipboardHotkey:   "Ctrl+Alt+V",
		},
	}
}

// StartDelay returns the configured start delay as a duration
func (c *Config) StartDelay() time.Duration {
	return time.Duration(c.Typing.StartDelayMS) * time.Millisecond
}

// CharInterval returns the configured per-character interval as a duration
func (c *Config) CharInterval() time.Duration {
	return time.Duration(c.Typing.CharIntervalMS) * time.Millisecond
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	return &Manager{
		configPath: configPath,
		config:     DefaultConfig(),
	}, nil
}

// NewManagerAt creates a configuration manager for a specific file path.
// Used by tests and the -config flag.
func NewManagerAt(path string) *Manager {
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "ghostkeys")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "ghostkeys")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "ghostkeys")
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Path returns the location of the configuration file
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk
func (m *Manager) Load() error {
	m.mu.Lock()

	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		// No config file, use defaults
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		return err
	}

	// Unmarshal over defaults so fields missing from older files keep them
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		m.mu.Unlock()
		return err
	}
	m.config = cfg
	m.mu.Unlock()

	if m.onChanged != nil {
		m.onChanged()
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}

	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set updates the configuration
func (m *Manager) Set(config *Config) {
	m.mu.Lock()
	m.config = config
	m.mu.Unlock()
	if m.onChanged != nil {
		m.onChanged()
	}
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}

// GetSnippet returns a snippet by name
func (m *Manager) GetSnippet(name string) *Snippet {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.config.Snippets {
		if m.config.Snippets[i].Name == name {
			return &m.config.Snippets[i]
		}
	}
	return nil
}

// SetSnippet updates or adds a snippet
func (m *Manager) SetSnippet(snippet Snippet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.config.Snippets {
		if m.config.Snippets[i].Name == snippet.Name {
			m.config.Snippets[i] = snippet
			return
		}
	}
	// Not found, add new
	m.config.Snippets = append(m.config.Snippets, snippet)
}

// DeleteSnippet removes a snippet by name
func (m *Manager) DeleteSnippet(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.config.Snippets {
		if m.config.Snippets[i].Name == name {
			m.config.Snippets = append(m.config.Snippets[:i], m.config.Snippets[i+1:]...)
			return
		}
	}
}
