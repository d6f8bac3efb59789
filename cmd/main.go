// Ghostkeys - background typing assistant
// Types text into whatever application currently holds keyboard focus
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/atotto/clipboard"

	"ghostkeys/internal/autostart"
	"ghostkeys/internal/bridge"
	"ghostkeys/internal/config"
	"ghostkeys/internal/hotkey"
	"ghostkeys/internal/injector"
	"ghostkeys/internal/notify"
	"ghostkeys/internal/protocol"
	"ghostkeys/internal/tray"
	"ghostkeys/internal/typist"
	"ghostkeys/internal/ui"
)

var (
	version  = "0.3.0"
	showUI   = flag.Bool("ui", false, "Open the settings and typing console")
	typeArg  = flag.String("type", "", "Type the given text and exit")
	typeClip = flag.Bool("clip", false, "Type the clipboard content and exit")
	snippet  = flag.String("snippet", "", "Type the named snippet and exit")
	listBE   = flag.Bool("backends", false, "List injection backends and their availability")
	cfgFile  = flag.String("config", "", "Path to an alternate config file")
	showVer  = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("ghostkeys version %s\n", version)
		return
	}

	// Initialize config
	var cfgMgr *config.Manager
	if *cfgFile != "" {
		cfgMgr = config.NewManagerAt(*cfgFile)
	} else {
		var err error
		cfgMgr, err = config.NewManager()
		if err != nil {
			log.Fatalf("Failed to initialize config: %v", err)
		}
	}
	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config: %v", err)
	}

	// Handle --backends flag
	if *listBE {
		listBackends()
		return
	}

	// Handle --type flag
	if *typeArg != "" {
		runTypeOnce(cfgMgr, *typeArg, "cli")
		return
	}

	// Handle --clip flag
	if *typeClip {
		text, err := clipboard.ReadAll()
		if err != nil {
			log.Fatalf("Failed to read clipboard: %v", err)
		}
		runTypeOnce(cfgMgr, text, "cli-clipboard")
		return
	}

	// Handle --snippet flag
	if *snippet != "" {
		sn := cfgMgr.GetSnippet(*snippet)
		if sn == nil {
			log.Fatalf("No snippet named %q", *snippet)
		}
		runTypeOnce(cfgMgr, sn.Text, "cli-snippet:"+*snippet)
		return
	}

	// Handle --ui flag
	if *showUI {
		runUI(cfgMgr)
		return
	}

	// Default: run as background service
	runService(cfgMgr)
}

func listBackends() {
	fmt.Println("Injection Backends:")
	fmt.Println("-------------------")
	for _, name := range injector.Backends() {
		inj, err := injector.New(name)
		if err != nil {
			fmt.Printf("  %-10s unavailable: %v\n", name, err)
			continue
		}
		inj.Close()
		fmt.Printf("  %-10s ok\n", name)
	}
}

// runTypeOnce types the text with a throwaway engine and exits. When the
// config forwards typing to a remote instance, the blocking HTTP endpoint is
// used instead so the exit code reflects the remote outcome.
func runTypeOnce(cfgMgr *config.Manager, text, source string) {
	cfg := cfgMgr.Get()
	if cfg.Bridge.ForwardTo != "" {
		typeRemote(cfg, text)
		return
	}

	engine := typist.New(cfgMgr)
	defer engine.Close()

	job, err := engine.Submit(typist.Request{Text: text, Source: source})
	if err != nil {
		log.Fatalf("Failed to queue typing: %v", err)
	}

	<-job.Done()
	if err := job.Err(); err != nil {
		log.Fatalf("Typing failed: %v", err)
	}

	typed, _ := job.Progress()
	if typed == 0 {
		fmt.Println("Nothing to type")
		return
	}
	fmt.Printf("Typed %d character(s)\n", typed)
}

func typeRemote(cfg *config.Config, text string) {
	url := fmt.Sprintf("http://%s/api/type", cfg.Bridge.ForwardTo)
	body, err := json.Marshal(protocol.TypeTextParams{Text: text})
	if err != nil {
		log.Fatalf("Failed to encode request: %v", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Bridge.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Bridge.Token)
	}

	// The endpoint blocks until the remote job ends, so allow a long wait
	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("Failed to reach %s: %v", cfg.Bridge.ForwardTo, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Remote typing failed: %s", strings.TrimSpace(string(data)))
	}
	fmt.Printf("Typed on %s\n", cfg.Bridge.ForwardTo)
}

func runUI(cfgMgr *config.Manager) {
	engine := typist.New(cfgMgr)
	defer engine.Close()

	server := ui.NewServer(cfgMgr, engine, nil)
	log.Println("Starting settings console...")
	if err := server.Start(); err != nil {
		log.Printf("UI server error: %v", err)
	}
}

func runService(cfgMgr *config.Manager) {
	log.Println("Ghostkeys service starting...")

	cfg := cfgMgr.Get()

	// Typing engine
	engine := typist.New(cfgMgr)

	// Command bridge, if enabled
	var bridgeSrv *bridge.Server
	if cfg.Bridge.Enabled {
		bridgeSrv = bridge.NewServer(cfgMgr, engine, version)
		go func() {
			if err := bridgeSrv.Start(cfg.Bridge.Port); err != nil {
				log.Printf("Bridge server error: %v", err)
			}
		}()
	}

	// submitFrom routes through the bridge when it exists so forward mode
	// applies to hotkeys and the tray too
	submitFrom := func(source, text string) {
		var err error
		if bridgeSrv != nil {
			_, err = bridgeSrv.SubmitText(text, source, nil, nil)
		} else {
			_, err = engine.Submit(typist.Request{Text: text, Source: source})
		}
		if err != nil {
			log.Printf("Submit from %s failed: %v", source, err)
		}
	}

	cancelAll := func() {
		var n int
		var err error
		if bridgeSrv != nil {
			n, err = bridgeSrv.CancelTyping(0)
		} else {
			n = engine.CancelAll()
		}
		if err != nil {
			log.Printf("Cancel failed: %v", err)
			return
		}
		log.Printf("Canceled %d job(s)", n)
	}

	// Hotkey manager
	hkMgr := hotkey.NewManager()
	if err := hkMgr.Start(); err != nil {
		log.Printf("Warning: global hotkeys failed to start: %v", err)
	}

	// Debouncer for hotkeys and tray clicks
	var lastHkTime time.Time
	var hkMux sync.Mutex
	debounce := func() bool {
		hkMux.Lock()
		defer hkMux.Unlock()
		if time.Since(lastHkTime) < 500*time.Millisecond {
			return false
		}
		lastHkTime = time.Now()
		return true
	}

	openSettings := func() {
		server := ui.NewServer(cfgMgr, engine, bridgeSrv)
		go func() {
			if err := server.Start(); err != nil {
				log.Printf("UI server error: %v", err)
			}
		}()
	}

	// Tray instance
	t := tray.New("Ghostkeys")

	statusID := t.AddDisabledItem("Status: idle")
	t.AddSeparator()

	// Snippet entries reflect the config at startup; live edits reach the
	// hotkeys and the UI, the tray list updates on next start
	for _, sn := range cfg.Snippets {
		name := sn.Name
		t.AddMenuItem(fmt.Sprintf("Type %s", name), func() {
			if !debounce() {
				return
			}
			sn := cfgMgr.GetSnippet(name)
			if sn == nil {
				log.Printf("Tray: snippet %q no longer exists", name)
				return
			}
			submitFrom("tray-snippet:"+name, sn.Text)
		})
	}

	t.AddMenuItem("Type Clipboard", func() {
		if !debounce() {
			return
		}
		text, err := clipboard.ReadAll()
		if err != nil {
			log.Printf("Tray: clipboard read failed: %v", err)
			return
		}
		submitFrom("tray-clipboard", text)
	})

	t.AddSeparator()
	t.AddMenuItem("Cancel Typing", cancelAll)
	t.AddSeparator()

	t.AddMenuItem("Settings...", func() {
		openSettings()
	})

	bootID := t.AddCheckItem("Start on Boot", cfg.General.StartOnBoot, func() {
		cur := cfgMgr.Get()
		cur.General.StartOnBoot = !cur.General.StartOnBoot
		cfgMgr.Set(cur)
		if err := cfgMgr.Save(); err != nil {
			log.Printf("Failed to save config: %v", err)
		}
	})

	t.AddSeparator()
	t.AddMenuItem("Quit", func() {
		t.Stop()
	})

	sendNote := func(body string) {
		go func() {
			if err := notify.Send("Ghostkeys", body); err != nil {
				log.Printf("Notification failed: %v", err)
			}
		}()
	}

	// Engine events: gate hotkeys while keystrokes are being injected, mirror
	// state to the tray, push events to connected front ends
	engine.SetOnState(func(state string) {
		hkMgr.SetSuspended(state == typist.StateTyping)
		t.SetItemTitle(statusID, "Status: "+state)
		if bridgeSrv != nil {
			bridgeSrv.BroadcastEvent(protocol.EventState, protocol.StatePayload{State: state})
		}
	})

	engine.SetOnProgress(func(job *typist.Job, typed, total int) {
		if typed%25 == 0 || typed == total {
			t.SetItemTitle(statusID, fmt.Sprintf("Status: typing %d/%d", typed, total))
		}
		if bridgeSrv != nil {
			bridgeSrv.BroadcastEvent(protocol.EventProgress, protocol.ProgressPayload{
				JobID: job.ID,
				Typed: typed,
				Total: total,
			})
		}
	})

	engine.SetOnJobDone(func(job *typist.Job, jobErr error) {
		if bridgeSrv != nil {
			payload := protocol.JobDonePayload{JobID: job.ID, Source: job.Source}
			if errors.Is(jobErr, typist.ErrCanceled) {
				payload.Canceled = true
			} else if jobErr != nil {
				payload.Error = jobErr.Error()
			}
			bridgeSrv.BroadcastEvent(protocol.EventJobDone, payload)
		}

		if !cfgMgr.Get().General.ShowNotifications {
			return
		}
		switch {
		case errors.Is(jobErr, typist.ErrCanceled):
			sendNote("Typing canceled")
		case jobErr != nil:
			sendNote("Typing failed: " + jobErr.Error())
		default:
			typed, _ := job.Progress()
			sendNote(fmt.Sprintf("Finished typing %d character(s)", typed))
		}
	})

	// Helper to refresh hotkeys on config change
	refreshShortcuts := func() {
		cfg := cfgMgr.Get()
		hkMgr.Clear()

		// On macOS a CMD variant is registered alongside any CTRL hotkey
		registerHotkey := func(hk string, urgent bool, cb func()) {
			reg := hkMgr.Register
			if urgent {
				reg = hkMgr.RegisterUrgent
			}
			reg(hk, cb)
			if runtime.GOOS == "darwin" && strings.Contains(strings.ToUpper(hk), "CTRL") {
				reg(strings.ReplaceAll(strings.ToUpper(hk), "CTRL", "CMD"), cb)
			}
		}

		// The abort hotkey stays live while the engine types; no debounce,
		// canceling twice is harmless
		if cfg.General.AbortHotkey != "" {
			registerHotkey(cfg.General.AbortHotkey, true, func() {
				log.Printf("ABORT: hotkey pressed, stopping all typing")
				cancelAll()
			})
		}

		if cfg.General.ClipboardHotkey != "" {
			registerHotkey(cfg.General.ClipboardHotkey, false, func() {
				if !debounce() {
					return
				}
				text, err := clipboard.ReadAll()
				if err != nil {
					log.Printf("Clipboard hotkey: read failed: %v", err)
					return
				}
				submitFrom("hotkey-clipboard", text)
			})
		}

		count := 0
		for _, sn := range cfg.Snippets {
			if sn.Hotkey == "" {
				continue
			}
			name, text := sn.Name, sn.Text
			registerHotkey(sn.Hotkey, false, func() {
				if !debounce() {
					return
				}
				log.Printf("Hotkey: Typing snippet %q", name)
				submitFrom("hotkey-snippet:"+name, text)
			})
			count++
		}

		log.Printf("Shortcuts: abort=%q clipboard=%q snippets=%d",
			cfg.General.AbortHotkey, cfg.General.ClipboardHotkey, count)
	}

	// Keep the login registration in line with the config
	syncAutostart := func() {
		want := cfgMgr.Get().General.StartOnBoot
		if want == autostart.IsEnabled() {
			return
		}
		if want {
			if err := autostart.Enable(); err != nil {
				log.Printf("Autostart: enable failed: %v", err)
			} else {
				log.Println("Autostart: enabled")
			}
		} else {
			if err := autostart.Disable(); err != nil {
				log.Printf("Autostart: disable failed: %v", err)
			} else {
				log.Println("Autostart: disabled")
			}
		}
	}

	// Initial setup
	refreshShortcuts()
	syncAutostart()

	// React to config changes from the UI, the bridge or file edits
	cfgMgr.RegisterChangeCallback(func() {
		refreshShortcuts()
		syncAutostart()
		t.SetItemChecked(bootID, cfgMgr.Get().General.StartOnBoot)
		if bridgeSrv != nil {
			bridgeSrv.BroadcastEvent(protocol.EventConfigChanged, cfgMgr.Get())
		}
	})

	// Watch the config file so edits made outside the app apply live
	watcher, err := cfgMgr.Watch()
	if err != nil {
		log.Printf("Warning: config watcher failed to start: %v", err)
	} else {
		defer watcher.Close()
	}

	if !cfg.General.StartMinimized {
		openSettings()
	}

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		t.Stop()
	}()

	log.Println("Ghostkeys service running. Press Ctrl+C to stop.")
	t.Run()

	engine.Close()
	log.Println("Ghostkeys stopped.")
}
