package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfig tests that defaults are sensible
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Typing.Backend != "synthetic" {
		t.Errorf("Expected default backend 'synthetic', got '%s'", cfg.Typing.Backend)
	}
	if cfg.Typing.StartDelayMS != 0 {
		t.Errorf("Expected default start delay 0, got %d", cfg.Typing.StartDelayMS)
	}
	if cfg.Bridge.Port != 18321 {
		t.Errorf("Expected default bridge port 18321, got %d", cfg.Bridge.Port)
	}
	if cfg.Bridge.AllowRemote {
		t.Error("Expected bridge to be loopback-only by default")
	}
	if cfg.General.AbortHotkey == "" {
		t.Error("Expected a default abort hotkey")
	}
}

// TestDurationHelpers tests millisecond to duration conversion
func TestDurationHelpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Typing.StartDelayMS = 1500
	cfg.Typing.CharIntervalMS = 25

	if cfg.StartDelay() != 1500*time.Millisecond {
		t.Errorf("Expected start delay 1.5s, got %v", cfg.StartDelay())
	}
	if cfg.CharInterval() != 25*time.Millisecond {
		t.Errorf("Expected char interval 25ms, got %v", cfg.CharInterval())
	}
}

// TestSaveLoadRoundTrip tests that configuration survives a save/load cycle
func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	m := NewManagerAt(path)
	cfg := m.Get()
	cfg.Typing.Backend = "clipboard"
	cfg.Typing.CharIntervalMS = 10
	cfg.Bridge.Token = "secret"
	m.SetSnippet(Snippet{Name: "Greeting", Text: "Hello,\n\n", Hotkey: "Ctrl+Alt+1"})

	if err := m.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	m2 := NewManagerAt(path)
	if err := m2.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got := m2.Get()
	if got.Typing.Backend != "clipboard" {
		t.Errorf("Expected backend 'clipboard', got '%s'", got.Typing.Backend)
	}
	if got.Typing.CharIntervalMS != 10 {
		t.Errorf("Expected char interval 10, got %d", got.Typing.CharIntervalMS)
	}
	if got.Bridge.Token != "secret" {
		t.Errorf("Expected token to round-trip, got '%s'", got.Bridge.Token)
	}
	sn := m2.GetSnippet("Greeting")
	if sn == nil {
		t.Fatal("Expected snippet 'Greeting' to survive round trip")
	}
	if sn.Text != "Hello,\n\n" {
		t.Errorf("Expected snippet text to round-trip, got %q", sn.Text)
	}
}

// TestLoadMissingFileUsesDefaults tests that a missing config file is not an error
func TestLoadMissingFileUsesDefaults(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "nope", "config.json"))
	if err := m.Load(); err != nil {
		t.Fatalf("Load of missing file should not fail: %v", err)
	}
	if m.Get().Typing.Backend != "synthetic" {
		t.Error("Expected defaults after loading missing file")
	}
}

// TestLoadPartialFileKeepsDefaults tests that fields absent from the file keep defaults
func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	partial := `{"typing": {"backend": "command"}}`
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManagerAt(path)
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := m.Get()
	if cfg.Typing.Backend != "command" {
		t.Errorf("Expected backend 'command', got '%s'", cfg.Typing.Backend)
	}
	if cfg.Bridge.Port != 18321 {
		t.Errorf("Expected default bridge port to survive partial load, got %d", cfg.Bridge.Port)
	}
}

// TestSnippetHelpers tests snippet add/update/delete
func TestSnippetHelpers(t *testing.T) {
	m := NewManagerAt(filepath.Join(t.TempDir(), "config.json"))

	m.SetSnippet(Snippet{Name: "A", Text: "one"})
	m.SetSnippet(Snippet{Name: "B", Text: "two"})
	m.SetSnippet(Snippet{Name: "A", Text: "updated"})

	if sn := m.GetSnippet("A"); sn == nil || sn.Text != "updated" {
		t.Errorf("Expected snippet A to be updated, got %+v", sn)
	}

	m.DeleteSnippet("A")
	if m.GetSnippet("A") != nil {
		t.Error("Expected snippet A to be deleted")
	}
	if m.GetSnippet("B") == nil {
		t.Error("Expected snippet B to remain")
	}
}

// TestChangeCallback tests that Set and Load fire the registered callback
func TestChangeCallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m := NewManagerAt(path)
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}

	fired := 0
	m.RegisterChangeCallback(func() { fired++ })

	m.Set(DefaultConfig())
	if fired != 1 {
		t.Errorf("Expected callback after Set, fired=%d", fired)
	}

	if err := m.Load(); err != nil {
		t.Fatal(err)
	}
	if fired != 2 {
		t.Errorf("Expected callback after Load, fired=%d", fired)
	}
}

// TestWatcherReloadsOnExternalChange tests hot reload via the filesystem watcher
func TestWatcherReloadsOnExternalChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	m := NewManagerAt(path)
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}

	changed := make(chan struct{}, 4)
	m.RegisterChangeCallback(func() { changed <- struct{}{} })

	w, err := m.Watch()
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	// Simulate an external edit
	edited := `{"typing": {"backend": "clipboard"}}`
	if err := os.WriteFile(path, []byte(edited), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("Expected reload callback after external edit")
	}

	if m.Get().Typing.Backend != "clipboard" {
		t.Errorf("Expected reloaded backend 'clipboard', got '%s'", m.Get().Typing.Backend)
	}
}
