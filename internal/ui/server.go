// Package ui provides the local settings and typing console interface.
package ui

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/atotto/clipboard"

	"ghostkeys/internal/bridge"
	"ghostkeys/internal/config"
	"ghostkeys/internal/focus"
	"ghostkeys/internal/network"
	"ghostkeys/internal/protocol"
	"ghostkeys/internal/typist"
)

// Server provides a web-based console served on loopback only
type Server struct {
	configMgr *config.Manager
	engine    *typist.Engine
	bridge    *bridge.Server
	listener  net.Listener
}

// NewServer creates a new UI server. bridgeSrv may be nil when the command
// bridge is disabled; typing then goes straight to the local engine.
func NewServer(cfgMgr *config.Manager, engine *typist.Engine, bridgeSrv *bridge.Server) *Server {
	return &Server{
		configMgr: cfgMgr,
		engine:    engine,
		bridge:    bridgeSrv,
	}
}

// Start starts the UI server and opens the browser
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/type", s.handleTypeText)
	mux.HandleFunc("/api/type-snippet", s.handleTypeSnippet)
	mux.HandleFunc("/api/type-clipboard", s.handleTypeClipboard)
	mux.HandleFunc("/api/cancel", s.handleCancel)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/focus", s.handleFocus)
	mux.HandleFunc("/api/discover", s.handleUIDiscover)
	mux.HandleFunc("/api/test-remote", s.handleTestRemote)

	// Find an available port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	s.listener = listener

	port := listener.Addr().(*net.TCPAddr).Port
	url := fmt.Sprintf("http://127.0.0.1:%d", port)

	log.Printf("Starting UI server at %s", url)

	// Open browser
	go openBrowser(url)

	return http.Serve(listener, mux)
}

// Stop stops the UI server
func (s *Server) Stop() error {
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

func openBrowser(url string) {
	var err error
	switch runtime.GOOS {
	case "darwin":
		err = exec.Command("open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		err = exec.Command("xdg-open", url).Start()
	}
	if err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}

// submit routes text through the bridge when it exists, so forward mode is
// honored, and otherwise straight to the local engine.
func (s *Server) submit(text, source string, delayMS, intervalMS *int) (int64, error) {
	if s.bridge != nil {
		return s.bridge.SubmitText(text, source, delayMS, intervalMS)
	}

	job, err := s.engine.Submit(typist.Request{
		Text:     text,
		Source:   source,
		Delay:    msToDur(delayMS),
		Interval: msToDur(intervalMS),
	})
	if err != nil {
		return 0, err
	}
	return job.ID, nil
}

func msToDur(ms *int) *time.Duration {
	if ms == nil {
		return nil
	}
	d := time.Duration(*ms) * time.Millisecond
	return &d
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	tmpl.Execute(w, nil)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case "GET":
		json.NewEncoder(w).Encode(s.configMgr.Get())
	case "POST":
		var cfg config.Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.configMgr.Set(&cfg)
		if err := s.configMgr.Save(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTypeText(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Text       string `json:"text"`
		DelayMS    *int   `json:"delay_ms"`
		IntervalMS *int   `json:"interval_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	jobID, err := s.submit(req.Text, "ui", req.DelayMS, req.IntervalMS)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.JobRef{JobID: jobID})
}

func (s *Server) handleTypeSnippet(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "Missing name parameter", http.StatusBadRequest)
		return
	}

	snippet := s.configMgr.GetSnippet(name)
	if snippet == nil {
		http.Error(w, fmt.Sprintf("No snippet named %q", name), http.StatusNotFound)
		return
	}

	jobID, err := s.submit(snippet.Text, "ui-snippet:"+name, nil, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.JobRef{JobID: jobID})
}

func (s *Server) handleTypeClipboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	text, err := clipboard.ReadAll()
	if err != nil {
		http.Error(w, "Clipboard read failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	jobID, err := s.submit(text, "ui-clipboard", nil, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.JobRef{JobID: jobID})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var jobID int64
	if idStr := r.URL.Query().Get("job_id"); idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			http.Error(w, "Invalid job_id", http.StatusBadRequest)
			return
		}
		jobID = id
	}

	var canceled int
	var err error
	if s.bridge != nil {
		canceled, err = s.bridge.CancelTyping(jobID)
	} else if jobID > 0 {
		if s.engine.Cancel(jobID) {
			canceled = 1
		}
	} else {
		canceled = s.engine.CancelAll()
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.CancelResult{Canceled: canceled})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.engine.Status()

	resp := map[string]interface{}{
		"state":  st.State,
		"queued": st.Queued,
		"job_id": st.JobID,
		"typed":  st.Typed,
		"total":  st.Total,
	}
	if s.bridge != nil && s.bridge.Forwarding() {
		resp["forwarding"] = true
		resp["forward_addr"] = s.bridge.ForwardAddr()
		resp["forward_connected"] = s.bridge.ForwardConnected()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	target, err := focus.Current()
	if err != nil {
		// Return an empty target instead of an error for better UI handling
		json.NewEncoder(w).Encode(protocol.FocusPayload{})
		return
	}
	json.NewEncoder(w).Encode(protocol.FocusPayload{App: target.App, Title: target.Title})
}

func (s *Server) handleUIDiscover(w http.ResponseWriter, r *http.Request) {
	cfg := s.configMgr.Get()
	hosts, err := network.ScanLAN(cfg.Bridge.Port)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(hosts)
}

// handleTestRemote tests connectivity to a remote ghostkeys bridge
func (s *Server) handleTestRemote(w http.ResponseWriter, r *http.Request) {
	addr := r.URL.Query().Get("addr")
	if addr == "" {
		http.Error(w, "Missing addr", http.StatusBadRequest)
		return
	}

	log.Printf("UI: Testing remote host %s", addr)

	client := &http.Client{
		Timeout: 2 * time.Second,
	}

	resp, err := client.Get("http://" + addr + "/health")
	if err != nil {
		log.Printf("UI: Test failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		http.Error(w, fmt.Sprintf("Remote returned status %d", resp.StatusCode), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

var tmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Ghostkeys</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'SF Pro Display', 'Segoe UI', Roboto, sans-serif;
            background: linear-gradient(135deg, #1a1a2e 0%, #16213e 100%);
            color: #e2e8f0;
            min-height: 100vh;
            padding: 2rem;
        }
        .container { max-width: 900px; margin: 0 auto; }
        h1 {
            font-size: 2rem;
            font-weight: 700;
            margin-bottom: 2rem;
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            -webkit-background-clip: text;
            -webkit-text-fill-color: transparent;
        }
        .card {
            background: rgba(255,255,255,0.05);
            backdrop-filter: blur(20px);
            border: 1px solid rgba(255,255,255,0.1);
            border-radius: 16px;
            padding: 1.5rem;
            margin-bottom: 1.5rem;
        }
        .card h2 {
            font-size: 1.25rem;
            margin-bottom: 1rem;
            color: #a5b4fc;
            display: flex;
            justify-content: space-between;
            align-items: center;
        }
        .state-chip {
            font-size: 0.75rem;
            font-weight: 600;
            padding: 0.25rem 0.75rem;
            border-radius: 999px;
            background: rgba(255,255,255,0.1);
            color: #94a3b8;
            text-transform: uppercase;
            letter-spacing: 0.05em;
        }
        .snippet-item {
            background: rgba(255,255,255,0.03);
            border-radius: 12px;
            padding: 1rem;
            margin-bottom: 0.75rem;
        }
        .snippet-header {
            display: flex;
            justify-content: space-between;
            align-items: center;
            margin-bottom: 0.5rem;
        }
        .input-group {
            display: flex;
            align-items: center;
            gap: 0.5rem;
        }
        .input-group label { font-size: 0.875rem; color: #94a3b8; }
        select, input[type="text"], textarea {
            background: rgba(255,255,255,0.1);
            border: 1px solid rgba(255,255,255,0.2);
            border-radius: 8px;
            padding: 0.5rem;
            color: #e2e8f0;
            font-size: 0.875rem;
            flex: 1;
        }
        textarea {
            width: 100%;
            font-family: 'SF Mono', Menlo, Consolas, monospace;
            resize: vertical;
        }
        select:focus, input:focus, textarea:focus { outline: none; border-color: #667eea; }
        .btn {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            border: none;
            border-radius: 8px;
            padding: 0.75rem 1.5rem;
            color: white;
            font-weight: 600;
            cursor: pointer;
            transition: transform 0.2s, box-shadow 0.2s;
            font-size: 0.875rem;
        }
        .btn:hover { transform: translateY(-2px); box-shadow: 0 4px 20px rgba(102,126,234,0.4); }
        .btn-small {
            padding: 0.4rem 0.8rem;
            font-size: 0.8rem;
        }
        .btn-secondary {
            background: rgba(255,255,255,0.1);
            border: 1px solid rgba(255,255,255,0.2);
        }
        .btn-danger {
            background: rgba(239,68,68,0.8);
        }
        #status-bar {
            position: fixed;
            bottom: 2rem;
            right: 2rem;
            padding: 1rem 1.5rem;
            background: rgba(0,0,0,0.9);
            border-radius: 12px;
            display: none;
            color: white;
            z-index: 2000;
        }
        .action-btns {
            display: flex;
            gap: 0.5rem;
        }
        #progress-wrap {
            display: none;
            margin-top: 1rem;
            background: rgba(255,255,255,0.08);
            border-radius: 6px;
            height: 8px;
            overflow: hidden;
        }
        #progress-bar {
            width: 0%;
            height: 100%;
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            transition: width 0.2s;
        }
        #connection-status {
            display: none;
            padding: 0.75rem 1rem;
            border-radius: 10px;
            margin-bottom: 1.5rem;
            font-size: 0.875rem;
        }
        .hotkey-recorder-overlay {
            position: fixed;
            top: 0; left: 0; right: 0; bottom: 0;
            background: rgba(0, 0, 0, 0.85);
            backdrop-filter: blur(8px);
            z-index: 1000;
            display: none;
            flex-direction: column;
            align-items: center;
            justify-content: center;
            color: #fff;
        }
        .recorder-box {
            background: rgba(255, 255, 255, 0.05);
            border: 2px dashed #4f46e5;
            border-radius: 20px;
            padding: 3rem;
            text-align: center;
            min-width: 400px;
        }
        .recorded-keys {
            font-size: 2.5rem;
            font-weight: 800;
            margin: 2rem 0;
            color: #818cf8;
            min-height: 4rem;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>&#9000;&#65039; Ghostkeys</h1>

        <div id="connection-status"></div>

        <div class="card">
            <h2>Type Text <span id="engine-state" class="state-chip">idle</span></h2>
            <textarea id="type-text" rows="6" placeholder="Text to type into the focused window..."></textarea>
            <div style="display: grid; grid-template-columns: 1fr 1fr; gap: 1rem; margin-top: 0.75rem;">
                <div class="input-group">
                    <label>Start Delay (ms):</label>
                    <input type="text" id="type-delay" placeholder="config default">
                </div>
                <div class="input-group">
                    <label>Char Interval (ms):</label>
                    <input type="text" id="type-interval" placeholder="config default">
                </div>
            </div>
            <div style="display: flex; gap: 0.5rem; margin-top: 1rem; align-items: center;">
                <button class="btn" onclick="typeText()">Type</button>
                <button class="btn btn-secondary" onclick="typeClipboard()">Type Clipboard</button>
                <button class="btn btn-danger" onclick="cancelTyping()">Cancel All</button>
                <span id="queue-info" style="color: #94a3b8; font-size: 0.875rem;"></span>
            </div>
            <div id="progress-wrap"><div id="progress-bar"></div></div>
            <div id="focus-target" style="margin-top: 0.75rem; font-size: 0.875rem; color: #94a3b8;"></div>
        </div>

        <div class="card">
            <h2>Snippets <button class="btn btn-small" onclick="addSnippet()">+ Add Snippet</button></h2>
            <div id="snippets-list"></div>
        </div>

        <div class="card">
            <h2>Typing Settings</h2>
            <div style="display: grid; grid-template-columns: 1fr 1fr 1fr; gap: 1rem;">
                <div class="input-group">
                    <label>Backend:</label>
                    <select id="typing-backend" onchange="updateTypingConfig()">
                        <option value="synthetic">Synthetic (key events)</option>
                        <option value="clipboard">Clipboard (paste)</option>
                        <option value="command">Command (OS tool)</option>
                    </select>
                </div>
                <div class="input-group">
                    <label>Start Delay (ms):</label>
                    <input type="text" id="cfg-start-delay" onchange="updateTypingConfig()" placeholder="0">
                </div>
                <div class="input-group">
                    <label>Char Interval (ms):</label>
                    <input type="text" id="cfg-char-interval" onchange="updateTypingConfig()" placeholder="0">
                </div>
            </div>
        </div>

        <div class="card">
            <h2>Remote Bridge</h2>
            <div style="display: grid; grid-template-columns: 1fr 1fr; gap: 1rem; margin-bottom: 0.75rem;">
                <div class="input-group" style="flex-direction: row; align-items: center; gap: 0.5rem;">
                    <input type="checkbox" id="bridge-enabled" onchange="updateBridgeConfig()">
                    <label style="margin: 0; cursor: pointer;">Enable Bridge (HTTP/WebSocket API)</label>
                </div>
                <div class="input-group">
                    <label>Port:</label>
                    <input type="text" id="bridge-port" onchange="updateBridgeConfig()" placeholder="18321">
                </div>
            </div>
            <div style="display: grid; grid-template-columns: 1fr 1fr; gap: 1rem; margin-bottom: 0.75rem;">
                <div class="input-group">
                    <label>Token:</label>
                    <input type="text" id="bridge-token" onchange="updateBridgeConfig()" placeholder="optional">
                </div>
                <div class="input-group" style="flex-direction: row; align-items: center; gap: 0.5rem;">
                    <input type="checkbox" id="bridge-allow-remote" onchange="updateBridgeConfig()">
                    <label style="margin: 0; cursor: pointer;">Allow Remote Connections</label>
                </div>
            </div>
            <div class="input-group" style="margin-bottom: 0.75rem;">
                <label>Forward Typing To:</label>
                <input type="text" id="bridge-forward-to" onchange="updateBridgeConfig()" placeholder="empty = type on this machine">
                <button class="btn btn-small btn-secondary" onclick="testForwardTarget()">Test</button>
            </div>
            <div style="display: flex; gap: 0.5rem; align-items: center; margin-bottom: 0.75rem;">
                <button class="btn btn-small btn-secondary" onclick="scanNetwork()">Scan Network</button>
                <span style="color: #94a3b8; font-size: 0.8rem;">Find other ghostkeys bridges on this LAN</span>
            </div>
            <div id="discovery-list"></div>
        </div>

        <div class="card">
            <h2>General</h2>
            <div style="display: grid; grid-template-columns: 1fr 1fr 1fr; gap: 1rem; margin-bottom: 0.75rem;">
                <div class="input-group" style="flex-direction: row; align-items: center; gap: 0.5rem;">
                    <input type="checkbox" id="start-on-boot" onchange="updateGeneralConfig()">
                    <label style="margin: 0; cursor: pointer;">Start on Boot</label>
                </div>
                <div class="input-group" style="flex-direction: row; align-items: center; gap: 0.5rem;">
                    <input type="checkbox" id="start-minimized" onchange="updateGeneralConfig()">
                    <label style="margin: 0; cursor: pointer;">Start Minimized</label>
                </div>
                <div class="input-group" style="flex-direction: row; align-items: center; gap: 0.5rem;">
                    <input type="checkbox" id="show-notifications" onchange="updateGeneralConfig()">
                    <label style="margin: 0; cursor: pointer;">Show Notifications</label>
                </div>
            </div>
            <div style="display: grid; grid-template-columns: 1fr 1fr; gap: 1rem;">
                <div class="input-group">
                    <label>Abort Hotkey:</label>
                    <div style="display: flex; gap: 0.5rem; flex: 1;">
                        <input type="text" id="abort-hotkey" onchange="updateGeneralConfig()" placeholder="Ctrl+Alt+Esc" style="flex: 1;">
                        <button class="btn btn-small" style="background: #ef4444;" onclick="startRecording('abort')">&#128308; Record</button>
                    </div>
                </div>
                <div class="input-group">
                    <label>Clipboard Hotkey:</label>
                    <div style="display: flex; gap: 0.5rem; flex: 1;">
                        <input type="text" id="clipboard-hotkey" onchange="updateGeneralConfig()" placeholder="Ctrl+Alt+V" style="flex: 1;">
                        <button class="btn btn-small" style="background: #ef4444;" onclick="startRecording('clipboard')">&#128308; Record</button>
                    </div>
                </div>
            </div>
        </div>

        <div style="display: flex; justify-content: flex-end; margin-bottom: 2rem;">
            <button class="btn" onclick="saveConfig()">Save Settings</button>
        </div>
    </div>

    <div id="status-bar"></div>

    <div id="hotkey-recorder" class="hotkey-recorder-overlay">
        <div class="recorder-box">
            <div style="font-size: 1.1rem; color: #a5b4fc;">Recording Hotkey</div>
            <div id="recorded-display" class="recorded-keys">Press Keys...</div>
            <div style="display: flex; gap: 1rem; justify-content: center;">
                <button class="btn" onclick="saveRecording()">Save</button>
                <button class="btn btn-secondary" onclick="cancelRecording()">Cancel</button>
            </div>
        </div>
    </div>

    <script>
        let config = {};

        function esc(s) {
            return String(s ?? '')
                .replaceAll('&', '&amp;')
                .replaceAll('<', '&lt;')
                .replaceAll('>', '&gt;')
                .replaceAll('"', '&quot;');
        }

        async function loadData() {
            try {
                const res = await fetch('/api/config');
                config = await res.json();
                if (!config.snippets) config.snippets = [];
                renderUI();
            } catch (e) {
                showStatus('Error loading data: ' + e.message, true);
            }
        }

        function renderUI() {
            renderTyping();
            renderSnippets();
            renderBridge();
            renderGeneral();
            pollStatus();
            pollFocus();
            setInterval(pollStatus, 1000);
            setInterval(pollFocus, 2000);
        }

        async function pollStatus() {
            try {
                const res = await fetch('/api/status');
                const st = await res.json();

                const chip = document.getElementById('engine-state');
                chip.textContent = st.state;
                chip.style.color = st.state === 'typing' ? '#34d399'
                    : st.state === 'waiting' ? '#fbbf24' : '#94a3b8';

                document.getElementById('queue-info').textContent =
                    st.queued > 0 ? st.queued + ' queued' : '';

                const wrap = document.getElementById('progress-wrap');
                if (st.state !== 'idle' && st.total > 0) {
                    wrap.style.display = 'block';
                    document.getElementById('progress-bar').style.width =
                        Math.round(st.typed / st.total * 100) + '%';
                } else {
                    wrap.style.display = 'none';
                }

                const el = document.getElementById('connection-status');
                if (st.forwarding) {
                    el.style.display = 'block';
                    if (st.forward_connected) {
                        el.style.background = 'rgba(16, 185, 129, 0.2)';
                        el.style.color = '#34d399';
                        el.style.border = '1px solid rgba(16, 185, 129, 0.3)';
                        el.textContent = 'Forwarding typing to ' + st.forward_addr + ' (connected)';
                    } else {
                        el.style.background = 'rgba(239, 68, 68, 0.2)';
                        el.style.color = '#f87171';
                        el.style.border = '1px solid rgba(239, 68, 68, 0.3)';
                        el.textContent = 'Forward target ' + st.forward_addr + ' is not connected';
                    }
                } else {
                    el.style.display = 'none';
                }
            } catch (e) {
                // Ignore errors
            }
        }

        async function pollFocus() {
            try {
                const res = await fetch('/api/focus');
                const t = await res.json();
                const el = document.getElementById('focus-target');
                if (t.app) {
                    el.textContent = 'Will type into: ' + t.app + (t.title ? ' (' + t.title + ')' : '');
                } else {
                    el.textContent = '';
                }
            } catch (e) {
                // Ignore errors
            }
        }

        function intOrNull(id) {
            const v = document.getElementById(id).value.trim();
            if (v === '') return null;
            const n = parseInt(v);
            return isNaN(n) ? null : n;
        }

        async function typeText() {
            const text = document.getElementById('type-text').value;
            if (!text) {
                showStatus('Nothing to type', true);
                return;
            }

            try {
                const res = await fetch('/api/type', {
                    method: 'POST',
                    headers: {'Content-Type': 'application/json'},
                    body: JSON.stringify({
                        text: text,
                        delay_ms: intOrNull('type-delay'),
                        interval_ms: intOrNull('type-interval')
                    })
                });
                if (!res.ok) throw new Error(await res.text());
                const ref = await res.json();
                showStatus('Queued typing job ' + ref.job_id);
            } catch (e) {
                showStatus('Type failed: ' + e.message, true);
            }
        }

        async function typeClipboard() {
            try {
                const res = await fetch('/api/type-clipboard', {method: 'POST'});
                if (!res.ok) throw new Error(await res.text());
                const ref = await res.json();
                showStatus('Queued clipboard typing job ' + ref.job_id);
            } catch (e) {
                showStatus('Clipboard type failed: ' + e.message, true);
            }
        }

        async function typeSnippet(idx) {
            const name = config.snippets[idx].name;
            try {
                const res = await fetch('/api/type-snippet?name=' + encodeURIComponent(name), {method: 'POST'});
                if (!res.ok) throw new Error(await res.text());
                const ref = await res.json();
                showStatus('Queued snippet "' + name + '" (job ' + ref.job_id + ')');
            } catch (e) {
                showStatus('Snippet failed: ' + e.message, true);
            }
        }

        async function cancelTyping() {
            try {
                const res = await fetch('/api/cancel', {method: 'POST'});
                if (!res.ok) throw new Error(await res.text());
                const result = await res.json();
                showStatus('Canceled ' + result.canceled + ' job(s)');
            } catch (e) {
                showStatus('Cancel failed: ' + e.message, true);
            }
        }

        function renderTyping() {
            document.getElementById('typing-backend').value = config.typing.backend || 'synthetic';
            document.getElementById('cfg-start-delay').value = config.typing.start_delay_ms || 0;
            document.getElementById('cfg-char-interval').value = config.typing.char_interval_ms || 0;
        }

        function updateTypingConfig() {
            config.typing.backend = document.getElementById('typing-backend').value;
            config.typing.start_delay_ms = parseInt(document.getElementById('cfg-start-delay').value) || 0;
            config.typing.char_interval_ms = parseInt(document.getElementById('cfg-char-interval').value) || 0;
        }

        function renderSnippets() {
            const container = document.getElementById('snippets-list');
            if (config.snippets.length === 0) {
                container.innerHTML = '<p style="color: #94a3b8;">No snippets configured.</p>';
                return;
            }

            container.innerHTML = config.snippets.map((s, idx) => ` + "`" + `
                <div class="snippet-item">
                    <div class="snippet-header">
                        <input type="text" value="${esc(s.name)}"
                               onchange="updateSnippetName(${idx}, this.value)"
                               style="background: transparent; border: none; font-size: 1.1rem; font-weight: 600; color: #e2e8f0; width: 200px;">
                        <div class="action-btns">
                            <button class="btn btn-small btn-secondary" onclick="typeSnippet(${idx})">Type</button>
                            <button class="btn btn-small btn-danger" onclick="deleteSnippet(${idx})">Delete</button>
                        </div>
                    </div>
                    <textarea rows="3" onchange="updateSnippetText(${idx}, this.value)"
                              placeholder="Snippet text...">${esc(s.text)}</textarea>
                    <div class="input-group" style="margin-top: 0.5rem;">
                        <label>Hotkey:</label>
                        <input type="text" id="snippet-hotkey-${idx}" value="${esc(s.hotkey || '')}"
                               onchange="updateSnippetHotkey(${idx}, this.value)"
                               placeholder="optional, e.g. Ctrl+Alt+1" style="flex: 1;">
                        <button class="btn btn-small" style="background: #ef4444;" onclick="startRecording(${idx})">&#128308; Record</button>
                    </div>
                </div>
            ` + "`" + `).join('');
        }

        function addSnippet() {
            config.snippets.push({
                name: 'Snippet ' + (config.snippets.length + 1),
                text: ''
            });
            renderSnippets();
        }

        function deleteSnippet(idx) {
            if (confirm('Delete this snippet?')) {
                config.snippets.splice(idx, 1);
                renderSnippets();
            }
        }

        function updateSnippetName(idx, name) {
            config.snippets[idx].name = name;
        }

        function updateSnippetText(idx, text) {
            config.snippets[idx].text = text;
        }

        function updateSnippetHotkey(idx, hotkey) {
            config.snippets[idx].hotkey = hotkey;
        }

        function renderBridge() {
            document.getElementById('bridge-enabled').checked = config.bridge.enabled;
            document.getElementById('bridge-port').value = config.bridge.port || 18321;
            document.getElementById('bridge-token').value = config.bridge.token || '';
            document.getElementById('bridge-allow-remote').checked = config.bridge.allow_remote;
            document.getElementById('bridge-forward-to').value = config.bridge.forward_to || '';
        }

        function updateBridgeConfig() {
            config.bridge.enabled = document.getElementById('bridge-enabled').checked;
            config.bridge.port = parseInt(document.getElementById('bridge-port').value) || 18321;
            config.bridge.token = document.getElementById('bridge-token').value;
            config.bridge.allow_remote = document.getElementById('bridge-allow-remote').checked;
            config.bridge.forward_to = document.getElementById('bridge-forward-to').value.trim();
        }

        function renderGeneral() {
            document.getElementById('start-on-boot').checked = config.general.start_on_boot;
            document.getElementById('start-minimized').checked = config.general.start_minimized;
            document.getElementById('show-notifications').checked = config.general.show_notifications;
            document.getElementById('abort-hotkey').value = config.general.abort_hotkey || '';
            document.getElementById('clipboard-hotkey').value = config.general.clipboard_hotkey || '';
        }

        function updateGeneralConfig() {
            config.general.start_on_boot = document.getElementById('start-on-boot').checked;
            config.general.start_minimized = document.getElementById('start-minimized').checked;
            config.general.show_notifications = document.getElementById('show-notifications').checked;
            config.general.abort_hotkey = document.getElementById('abort-hotkey').value;
            config.general.clipboard_hotkey = document.getElementById('clipboard-hotkey').value;
        }

        async function scanNetwork() {
            const container = document.getElementById('discovery-list');
            container.innerHTML = '<p style="color: #94a3b8;">Scanning network... this may take a few seconds.</p>';

            try {
                const res = await fetch('/api/discover');
                if (!res.ok) throw new Error('Scan failed');
                const hosts = await res.json();

                if (!hosts || hosts.length === 0) {
                    container.innerHTML = '<p style="color: #94a3b8;">No other ghostkeys bridges found on local network.</p>';
                    return;
                }

                container.innerHTML = hosts.map(h => ` + "`" + `
                    <div style="display: flex; justify-content: space-between; align-items: center; padding: 0.75rem; background: rgba(255,255,255,0.03); border-radius: 8px; margin-bottom: 0.5rem;">
                        <div>
                            <strong>${h.ip}</strong> <span style="color: #94a3b8;">(Port: ${h.port})</span>
                            <div style="font-size: 0.8rem; color: #a5b4fc;">State: ${h.state || 'unknown'}${h.version ? ', v' + h.version : ''}</div>
                        </div>
                        <button class="btn btn-small" style="background: #4f46e5;" onclick="useAsForwardTarget('${h.ip}:${h.port}')">Use as Forward Target</button>
                    </div>
                ` + "`" + `).join('');
            } catch (e) {
                container.innerHTML = '<p style="color: #f87171;">Scan failed: ' + e.message + '</p>';
            }
        }

        function useAsForwardTarget(addr) {
            config.bridge.forward_to = addr;
            renderBridge();
            showStatus('Forward target set to ' + addr + '. Save settings to apply.');
        }

        async function testForwardTarget() {
            updateBridgeConfig();
            const addr = config.bridge.forward_to;
            if (!addr) {
                showStatus('No forward target set', true);
                return;
            }

            showStatus('Testing ' + addr + '...');
            try {
                const res = await fetch('/api/test-remote?addr=' + encodeURIComponent(addr));
                if (res.ok) {
                    showStatus(addr + ' is reachable');
                } else {
                    showStatus('Test failed: ' + await res.text(), true);
                }
            } catch (e) {
                showStatus('Test failed: ' + e.message, true);
            }
        }

        async function saveConfig() {
            try {
                // Ensure latest field values are synced before sending
                updateTypingConfig();
                updateBridgeConfig();
                updateGeneralConfig();

                const res = await fetch('/api/config', {
                    method: 'POST',
                    headers: {'Content-Type': 'application/json'},
                    body: JSON.stringify(config)
                });
                if (!res.ok) throw new Error('Save failed');
                showStatus('Settings saved!');
            } catch (e) {
                showStatus('Save failed: ' + e.message, true);
            }
        }

        let recordingTarget = null;
        let currentHotkey = '';

        function startRecording(target) {
            recordingTarget = target;
            currentHotkey = '';
            document.getElementById('recorded-display').textContent = 'Press Keys...';
            document.getElementById('hotkey-recorder').style.display = 'flex';
            window.addEventListener('keydown', captureKeyEvent);
        }

        function cancelRecording() {
            window.removeEventListener('keydown', captureKeyEvent);
            document.getElementById('hotkey-recorder').style.display = 'none';
        }

        function saveRecording() {
            if (currentHotkey) {
                if (recordingTarget === 'abort') {
                    config.general.abort_hotkey = currentHotkey;
                    renderGeneral();
                } else if (recordingTarget === 'clipboard') {
                    config.general.clipboard_hotkey = currentHotkey;
                    renderGeneral();
                } else if (recordingTarget !== null) {
                    config.snippets[recordingTarget].hotkey = currentHotkey;
                    renderSnippets();
                }
            }
            cancelRecording();
        }

        function captureKeyEvent(e) {
            e.preventDefault();
            e.stopPropagation();

            const keys = [];
            if (e.ctrlKey) keys.push('Ctrl');
            if (e.altKey) keys.push('Alt');
            if (e.shiftKey) keys.push('Shift');
            if (e.metaKey) keys.push('Cmd');

            const key = e.key;
            if (key !== 'Control' && key !== 'Alt' && key !== 'Shift' && key !== 'Meta') {
                let keyLabel = key.toUpperCase();
                if (key === ' ') keyLabel = 'Space';
                keys.push(keyLabel);

                currentHotkey = keys.join('+');
                document.getElementById('recorded-display').textContent = currentHotkey;
            } else {
                document.getElementById('recorded-display').textContent = keys.join('+') + (keys.length > 0 ? '+' : '');
            }
        }

        function showStatus(msg, isError = false) {
            const bar = document.getElementById('status-bar');
            bar.textContent = msg;
            bar.style.display = 'block';
            bar.style.background = isError ? 'rgba(239,68,68,0.9)' : 'rgba(34,197,94,0.9)';
            setTimeout(() => bar.style.display = 'none', 3000);
        }

        loadData();
    </script>
</body>
</html>`))
