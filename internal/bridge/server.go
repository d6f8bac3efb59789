// Package bridge provides the local command bridge: an HTTP and WebSocket
// server through which the embedded front end, scripts and remote ghostkeys
// instances drive the typing engine.
package bridge

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"ghostkeys/internal/config"
	"ghostkeys/internal/focus"
	"ghostkeys/internal/network"
	"ghostkeys/internal/osutils"
	"ghostkeys/internal/protocol"
	"ghostkeys/internal/typist"
)

// Server exposes the typing engine over HTTP and WebSocket
type Server struct {
	configMgr *config.Manager
	engine    *typist.Engine
	version   string
	token     string
	wsMgr     *WSManager
	fwd       *Client
	commands  map[string]commandFunc
}

// commandFunc runs a named bridge command. It returns the result value to
// marshal into the response, or an error reported to the caller.
type commandFunc func(params json.RawMessage) (interface{}, error)

// NewServer creates a new bridge server
func NewServer(configMgr *config.Manager, engine *typist.Engine, version string) *Server {
	s := &Server{
		configMgr: configMgr,
		engine:    engine,
		version:   version,
	}
	s.wsMgr = newWSManager(s)
	s.registerCommands()

	// Connect to the forward target if one is configured
	cfg := configMgr.Get()
	if cfg.Bridge.ForwardTo != "" {
		log.Printf("Bridge: Forward mode, typing will be sent to %s", cfg.Bridge.ForwardTo)
		s.fwd = NewClient(cfg.Bridge.ForwardTo, cfg.Bridge.Token)
		s.fwd.OnEvent = func(event string, payload json.RawMessage) {
			// Relay remote engine events to our own front end
			s.wsMgr.broadcast <- protocol.Message{Type: protocol.TypeEvent, Event: event, Payload: payload}
		}
		s.fwd.Start()
	}

	return s
}

// routes builds the HTTP mux for the bridge endpoints.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/type", s.handleType)
	mux.HandleFunc("/api/cancel", s.handleCancel)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/focus", s.handleFocus)
	mux.HandleFunc("/api/discover", s.handleDiscover)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start starts the bridge server on the specified port
func (s *Server) Start(port int) error {
	cfg := s.configMgr.Get()
	s.token = cfg.Bridge.Token

	// Start WebSocket Manager
	go s.wsMgr.start()

	mux := s.routes()

	// Loopback unless remote access is explicitly enabled; anything on this
	// socket can make the machine type.
	bindIP := "127.0.0.1"
	if cfg.Bridge.AllowRemote {
		bindIP = "0.0.0.0"

		log.Printf("--- Diagnostic: Network Interfaces ---")
		if ips, err := network.GetLocalIPs(); err == nil {
			for _, ip := range ips {
				log.Printf("  Found Local IPv4: %s", ip)
			}
		}
		log.Printf("--------------------------------------")

		if err := osutils.EnsureFirewallRule(port); err != nil {
			log.Printf("Bridge: Firewall rule setup failed: %v", err)
		}
		if s.token == "" {
			log.Printf("Bridge: WARNING: remote access enabled without a token")
		}
	}

	// Use tcp4 explicitly to avoid IPv6-only binding issues on Windows
	addr := fmt.Sprintf("%s:%d", bindIP, port)
	log.Printf("Bridge: Starting server on %s", addr)

	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		log.Printf("ERROR: Bridge failed to listen on %s: %v", addr, err)
		log.Printf("Note: ghostkeys will continue running without the command bridge.")
		return err
	}

	server := &http.Server{
		Handler: s.authMiddleware(s.recoverMiddleware(mux)),
	}

	// This is blocking
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Printf("ERROR: Bridge server stopped: %v", err)
		return err
	}
	return nil
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC RECOV: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the bridge token if configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("Bridge: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

		// Health stays open for discovery probes. The WebSocket endpoint
		// authenticates in-band because browsers cannot set headers on a
		// WebSocket handshake.
		if r.URL.Path == "/health" || r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}

		if s.token != "" {
			authHeader := r.Header.Get("Authorization")
			expectedAuth := "Bearer " + s.token

			if authHeader != expectedAuth {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// SubmitText routes a typing request to the local engine, or to the forward
// target when one is configured. It returns the job ID.
func (s *Server) SubmitText(text, source string, delayMS, intervalMS *int) (int64, error) {
	if s.fwd != nil {
		if !s.fwd.IsConnected() {
			return 0, fmt.Errorf("forward target %s is not connected", s.fwd.Addr())
		}
		result, err := s.fwd.Invoke(protocol.CmdTypeText, protocol.TypeTextParams{
			Text:       text,
			DelayMS:    delayMS,
			IntervalMS: intervalMS,
		}, 10*time.Second)
		if err != nil {
			return 0, fmt.Errorf("forward to %s: %w", s.fwd.Addr(), err)
		}
		var ref protocol.JobRef
		if err := json.Unmarshal(result, &ref); err != nil {
			return 0, fmt.Errorf("forward target sent malformed job reference: %w", err)
		}
		return ref.JobID, nil
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

// CancelTyping cancels one job (id > 0) or everything (id == 0), locally or
// on the forward target.
func (s *Server) CancelTyping(id int64) (int, error) {
	if s.fwd != nil && s.fwd.IsConnected() {
		result, err := s.fwd.Invoke(protocol.CmdCancel, protocol.CancelParams{JobID: id}, 10*time.Second)
		if err != nil {
			return 0, err
		}
		var cr protocol.CancelResult
		if err := json.Unmarshal(result, &cr); err != nil {
			return 0, err
		}
		return cr.Canceled, nil
	}

	if id > 0 {
		if s.engine.Cancel(id) {
			return 1, nil
		}
		return 0, fmt.Errorf("no job with id %d", id)
	}
	return s.engine.CancelAll(), nil
}

// Forwarding reports whether this instance sends typing to a remote one.
func (s *Server) Forwarding() bool {
	return s.fwd != nil
}

// ForwardConnected reports whether the forward target link is up.
func (s *Server) ForwardConnected() bool {
	return s.fwd != nil && s.fwd.IsConnected()
}

// ForwardAddr returns the configured forward target, or "" when typing locally.
func (s *Server) ForwardAddr() string {
	if s.fwd == nil {
		return ""
	}
	return s.fwd.Addr()
}

// BroadcastEvent pushes an event to every connected front end.
func (s *Server) BroadcastEvent(event string, data interface{}) {
	s.wsMgr.BroadcastEvent(event, data)
}

// handleType handles POST /api/type. The call blocks until the job has
// finished so scripts get the outcome in the response; in forward mode it
// returns as soon as the remote instance has queued the job.
func (s *Server) handleType(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var params protocol.TypeTextParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if s.fwd != nil {
		jobID, err := s.SubmitText(params.Text, "http", params.DelayMS, params.IntervalMS)
		if err != nil {
			log.Printf("Bridge: Forwarded type failed: %v", err)
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "forwarded",
			"job_id": jobID,
		})
		return
	}

	job, err := s.engine.Submit(typist.Request{
		Text:     params.Text,
		Source:   "http",
		Delay:    msToDur(params.DelayMS),
		Interval: msToDur(params.IntervalMS),
	})
	if err != nil {
		log.Printf("Bridge: Type error: %v", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	<-job.Done()
	typed, total := job.Progress()
	if jobErr := job.Err(); jobErr != nil {
		log.Printf("Bridge: Job %d failed: %v", job.ID, jobErr)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "error",
			"job_id": job.ID,
			"error":  jobErr.Error(),
			"typed":  typed,
			"total":  total,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"job_id": job.ID,
		"typed":  typed,
		"total":  total,
	})
}

// handleCancel handles POST /api/cancel?job_id=<id>; without job_id it
// cancels everything
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var id int64
	if v := r.URL.Query().Get("job_id"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "Invalid job_id parameter", http.StatusBadRequest)
			return
		}
		id = parsed
	}

	n, err := s.CancelTyping(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ok",
		"canceled": n,
	})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := s.engine.Status()
	resp := map[string]interface{}{
		"app":     "ghostkeys",
		"version": s.version,
		"state":   st.State,
		"queued":  st.Queued,
	}
	if st.JobID != 0 {
		resp["job_id"] = st.JobID
		resp["typed"] = st.Typed
		resp["total"] = st.Total
	}
	if s.fwd != nil {
		resp["forwarding_to"] = s.fwd.Addr()
		resp["forward_connected"] = s.fwd.IsConnected()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleFocus handles GET /api/focus
func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	target, err := focus.Current()
	if err != nil {
		log.Printf("Bridge: Focus readout failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.FocusPayload{App: target.App, Title: target.Title})
}

// handleConfig handles GET (read) and POST (update) for configuration
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		cfg := s.configMgr.Get()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cfg)

	case "POST":
		var newCfg config.Config
		if err := json.NewDecoder(r.Body).Decode(&newCfg); err != nil {
			http.Error(w, "Invalid configuration data", http.StatusBadRequest)
			return
		}

		log.Printf("Bridge: Receiving configuration update from %s", r.RemoteAddr)

		// Update in-memory config and save to disk
		s.configMgr.Set(&newCfg)
		if err := s.configMgr.Save(); err != nil {
			log.Printf("Bridge: Failed to save received config: %v", err)
			http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
			return
		}
		s.wsMgr.BroadcastEvent(protocol.EventConfigChanged, nil)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleHealth handles GET /health (for monitoring and discovery probes)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "app": "ghostkeys"})
}

// handleDiscover handles GET /api/discover - scans the LAN for other
// ghostkeys bridges
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := s.configMgr.Get()
	log.Printf("Bridge: Starting LAN scan on port %d", cfg.Bridge.Port)

	hosts, err := network.ScanLAN(cfg.Bridge.Port)
	if err != nil {
		log.Printf("Bridge: Scan error: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	log.Printf("Bridge: Found %d ghostkeys instance(s) on LAN", len(hosts))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(hosts)
}

// msToDur converts an optional millisecond count into an optional duration.
func msToDur(ms *int) *time.Duration {
	if ms == nil {
		return nil
	}
	d := time.Duration(*ms) * time.Millisecond
	return &d
}
