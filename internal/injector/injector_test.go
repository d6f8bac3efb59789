package injector

import (
	"errors"
	"runtime"
	"testing"
)

func TestNewUnknownBackend(t *testing.T) {
	_, err := New("telepathy")
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("New(telepathy) error = %v, want ErrUnknownBackend", err)
	}
}

func TestBackends(t *testing.T) {
	got := Backends()
	want := []string{BackendSynthetic, BackendClipboard, BackendCommand}
	if len(got) != len(want) {
		t.Fatalf("Backends() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Backends()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPasteModifier(t *testing.T) {
	mod := pasteModifier()
	if runtime.GOOS == "darwin" {
		if mod != "cmd" {
			t.Errorf("pasteModifier() = %q, want cmd", mod)
		}
	} else if mod != "ctrl" {
		t.Errorf("pasteModifier() = %q, want ctrl", mod)
	}
}

func TestKeystrokeScript(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello", `tell application "System Events" to keystroke "hello"`},
		{`say "hi"`, `tell application "System Events" to keystroke "say \"hi\""`},
		{`a\b`, `tell application "System Events" to keystroke "a\\b"`},
	}
	for _, tt := range tests {
		if got := keystrokeScript(tt.in); got != tt.want {
			t.Errorf("keystrokeScript(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type recordedCall struct {
	name string
	args []string
}

func recordingCommand(tool string) (*commandInjector, *[]recordedCall) {
	calls := &[]recordedCall{}
	inj := &commandInjector{
		tool: tool,
		run: func(name string, args ...string) error {
			*calls = append(*calls, recordedCall{name: name, args: args})
			return nil
		},
	}
	return inj, calls
}

func TestCommandTypeTextXdotool(t *testing.T) {
	inj, calls := recordingCommand("xdotool")
	if err := inj.TypeText("hi there"); err != nil {
		t.Fatalf("TypeText: %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(*calls))
	}
	call := (*calls)[0]
	if call.name != "xdotool" {
		t.Errorf("tool = %q, want xdotool", call.name)
	}
	want := []string{"type", "--clearmodifiers", "--", "hi there"}
	if len(call.args) != len(want) {
		t.Fatalf("args = %v, want %v", call.args, want)
	}
	for i := range want {
		if call.args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, call.args[i], want[i])
		}
	}
}

func TestCommandTypeTextEmptySkipsRun(t *testing.T) {
	inj, calls := recordingCommand("xdotool")
	if err := inj.TypeText(""); err != nil {
		t.Fatalf("TypeText: %v", err)
	}
	if len(*calls) != 0 {
		t.Errorf("empty text ran %d commands, want 0", len(*calls))
	}
}

func TestCommandTapKey(t *testing.T) {
	tests := []struct {
		tool string
		key  string
		want []string
	}{
		{"xdotool", KeyEnter, []string{"key", "--clearmodifiers", "Return"}},
		{"xdotool", KeyTab, []string{"key", "--clearmodifiers", "Tab"}},
		{"wtype", KeyEnter, []string{"-k", "Return"}},
		{"wtype", KeyTab, []string{"-k", "Tab"}},
	}
	for _, tt := range tests {
		inj, calls := recordingCommand(tt.tool)
		if err := inj.TapKey(tt.key); err != nil {
			t.Fatalf("%s TapKey(%s): %v", tt.tool, tt.key, err)
		}
		if len(*calls) != 1 {
			t.Fatalf("%s TapKey(%s): got %d calls, want 1", tt.tool, tt.key, len(*calls))
		}
		call := (*calls)[0]
		if len(call.args) != len(tt.want) {
			t.Fatalf("%s TapKey(%s) args = %v, want %v", tt.tool, tt.key, call.args, tt.want)
		}
		for i := range tt.want {
			if call.args[i] != tt.want[i] {
				t.Errorf("%s TapKey(%s) args[%d] = %q, want %q", tt.tool, tt.key, i, call.args[i], tt.want[i])
			}
		}
	}
}

func TestCommandTapKeyUnknown(t *testing.T) {
	inj, _ := recordingCommand("xdotool")
	if err := inj.TapKey("escape"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("TapKey(escape) error = %v, want ErrUnknownKey", err)
	}
}
