package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ghostkeys/internal/config"
	"ghostkeys/internal/injector"
	"ghostkeys/internal/protocol"
	"ghostkeys/internal/typist"

	"github.com/gorilla/websocket"
)

// recordInjector is a backend that records calls instead of typing.
type recordInjector struct {
	mu  sync.Mutex
	ops []string
}

func (r *recordInjector) Name() string { return "record" }

func (r *recordInjector) TypeText(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, "text:"+text)
	return nil
}

func (r *recordInjector) TapKey(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, "key:"+key)
	return nil
}

func (r *recordInjector) Close() error { return nil }

func (r *recordInjector) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ops))
	copy(out, r.ops)
	return out
}

// newTestBridge builds a bridge over a recording engine, wired the way main
// wires it, and serves it via httptest.
func newTestBridge(t *testing.T, token string) (*Server, *recordInjector, *httptest.Server) {
	t.Helper()

	mgr := config.NewManagerAt(filepath.Join(t.TempDir(), "config.json"))
	mgr.SetSnippet(config.Snippet{Name: "Sig", Text: "Best,\n"})

	rec := &recordInjector{}
	engine := typist.NewWithBackendFactory(mgr, func(string) (injector.Injector, error) {
		return rec, nil
	})
	t.Cleanup(engine.Close)

	srv := NewServer(mgr, engine, "test")
	srv.token = token
	go srv.wsMgr.start()

	engine.SetOnJobDone(func(job *typist.Job, err error) {
		payload := protocol.JobDonePayload{JobID: job.ID, Source: job.Source}
		if err != nil {
			payload.Error = err.Error()
			payload.Canceled = errors.Is(err, typist.ErrCanceled)
		}
		srv.BroadcastEvent(protocol.EventJobDone, payload)
	})

	ts := httptest.NewServer(srv.authMiddleware(srv.recoverMiddleware(srv.routes())))
	t.Cleanup(ts.Close)

	return srv, rec, ts
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

// TestHealthOpenWithoutToken tests that discovery probes work unauthenticated
func TestHealthOpenWithoutToken(t *testing.T) {
	_, _, ts := newTestBridge(t, "s3cret")

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from /health, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["app"] != "ghostkeys" {
		t.Errorf("Expected app identifier in health response, got %v", body)
	}
}

// TestAuthMiddleware tests bearer token enforcement on API routes
func TestAuthMiddleware(t *testing.T) {
	_, _, ts := newTestBridge(t, "s3cret")

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest("GET", ts.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with token, got %d", resp.StatusCode)
	}

	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if status["state"] != "idle" {
		t.Errorf("Expected idle state, got %v", status["state"])
	}
	if status["app"] != "ghostkeys" || status["version"] != "test" {
		t.Errorf("Expected app/version in status, got %v", status)
	}
}

// TestHTTPTypeBlocksUntilDone tests that POST /api/type returns the outcome
func TestHTTPTypeBlocksUntilDone(t *testing.T) {
	_, rec, ts := newTestBridge(t, "")

	zero := 0
	resp := postJSON(t, ts.URL+"/api/type", protocol.TypeTextParams{Text: "abc", DelayMS: &zero})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body)
	}
	if body["typed"].(float64) != 3 || body["total"].(float64) != 3 {
		t.Errorf("Expected 3/3 typed, got %v", body)
	}

	ops := rec.recorded()
	if len(ops) != 1 || ops[0] != "text:abc" {
		t.Errorf("Expected exactly [text:abc], got %v", ops)
	}
}

// TestHTTPTypeEmptyText tests that empty text types nothing and still succeeds
func TestHTTPTypeEmptyText(t *testing.T) {
	_, rec, ts := newTestBridge(t, "")

	resp := postJSON(t, ts.URL+"/api/type", protocol.TypeTextParams{Text: ""})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for empty text, got %d", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status ok for empty text, got %v", body)
	}
	if len(rec.recorded()) != 0 {
		t.Errorf("Expected no injections for empty text, got %v", rec.recorded())
	}
}

// TestHTTPTypeBackendFailure tests that an unavailable backend surfaces as an
// HTTP error with the cause
func TestHTTPTypeBackendFailure(t *testing.T) {
	mgr := config.NewManagerAt(filepath.Join(t.TempDir(), "config.json"))
	engine := typist.NewWithBackendFactory(mgr, func(string) (injector.Injector, error) {
		return nil, errors.New("no display")
	})
	t.Cleanup(engine.Close)

	srv := NewServer(mgr, engine, "test")
	go srv.wsMgr.start()
	ts := httptest.NewServer(srv.authMiddleware(srv.recoverMiddleware(srv.routes())))
	t.Cleanup(ts.Close)

	zero := 0
	resp := postJSON(t, ts.URL+"/api/type", protocol.TypeTextParams{Text: "hi", DelayMS: &zero})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("Expected 500 on backend failure, got %d", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	errText, _ := body["error"].(string)
	if !strings.Contains(errText, "no display") {
		t.Errorf("Expected error to name the cause, got %v", body)
	}
}

// TestHTTPCancelIdle tests cancel with nothing running
func TestHTTPCancelIdle(t *testing.T) {
	_, _, ts := newTestBridge(t, "")

	resp := postJSON(t, ts.URL+"/api/cancel", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["canceled"].(float64) != 0 {
		t.Errorf("Expected 0 canceled on idle engine, got %v", body)
	}
}

// TestConfigEndpoint tests reading and updating configuration over HTTP
func TestConfigEndpoint(t *testing.T) {
	srv, _, ts := newTestBridge(t, "")

	resp, err := http.Get(ts.URL + "/api/config")
	if err != nil {
		t.Fatal(err)
	}
	var cfg config.Config
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if cfg.Typing.Backend != "synthetic" {
		t.Errorf("Expected default backend in config response, got %q", cfg.Typing.Backend)
	}

	cfg.Typing.CharIntervalMS = 42
	resp = postJSON(t, ts.URL+"/api/config", cfg)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 on config update, got %d", resp.StatusCode)
	}
	if got := srv.configMgr.Get().Typing.CharIntervalMS; got != 42 {
		t.Errorf("Expected updated interval 42, got %d", got)
	}

	resp, err = http.Post(ts.URL+"/api/config", "application/json", strings.NewReader("{nope"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed config, got %d", resp.StatusCode)
	}
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WS dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("WS read failed: %v", err)
	}
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("WS message decode failed: %v", err)
	}
	return msg
}

func writeWS(t *testing.T, conn *websocket.Conn, msg *protocol.Message) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("WS write failed: %v", err)
	}
}

// TestWSInvokeTypeText tests the invoke/result/event cycle over WebSocket
func TestWSInvokeTypeText(t *testing.T) {
	_, rec, ts := newTestBridge(t, "")
	conn := dialWS(t, ts)

	zero := 0
	writeWS(t, conn, protocol.Invoke("q1", protocol.CmdTypeText, protocol.TypeTextParams{Text: "hi", DelayMS: &zero}))

	// The job may finish before the result frame is written, so collect
	// until both the correlated result and the job_done event arrived
	var result *protocol.Message
	var done *protocol.Message
	for result == nil || done == nil {
		msg := readWS(t, conn)
		switch {
		case msg.Type == protocol.TypeResult && msg.ID == "q1":
			m := msg
			result = &m
		case msg.Type == protocol.TypeEvent && msg.Event == protocol.EventJobDone:
			m := msg
			done = &m
		}
	}

	if !result.OK {
		t.Fatalf("Expected successful result, got error %q", result.Error)
	}
	var ref protocol.JobRef
	if err := json.Unmarshal(result.Payload, &ref); err != nil || ref.JobID == 0 {
		t.Errorf("Expected a job reference, got %s (err %v)", result.Payload, err)
	}

	var donePayload protocol.JobDonePayload
	if err := json.Unmarshal(done.Payload, &donePayload); err != nil {
		t.Fatal(err)
	}
	if donePayload.JobID != ref.JobID {
		t.Errorf("Expected job_done for job %d, got %d", ref.JobID, donePayload.JobID)
	}
	if donePayload.Error != "" {
		t.Errorf("Expected clean completion, got %q", donePayload.Error)
	}

	ops := rec.recorded()
	if len(ops) != 1 || ops[0] != "text:hi" {
		t.Errorf("Expected [text:hi], got %v", ops)
	}
}

// TestWSUnknownCommand tests that bogus commands get a correlated error
func TestWSUnknownCommand(t *testing.T) {
	_, _, ts := newTestBridge(t, "")
	conn := dialWS(t, ts)

	writeWS(t, conn, protocol.Invoke("q9", "frobnicate", nil))
	msg := readWS(t, conn)

	if msg.Type != protocol.TypeResult || msg.ID != "q9" {
		t.Fatalf("Expected correlated result, got %+v", msg)
	}
	if msg.OK || !strings.Contains(msg.Error, "unknown command") {
		t.Errorf("Expected unknown command error, got %+v", msg)
	}
}

// TestWSAuthFlow tests in-band authentication when a token is configured
func TestWSAuthFlow(t *testing.T) {
	_, _, ts := newTestBridge(t, "s3cret")

	// Unauthenticated invokes are refused
	conn := dialWS(t, ts)
	writeWS(t, conn, protocol.Invoke("q1", protocol.CmdGetStatus, nil))
	msg := readWS(t, conn)
	if msg.OK || msg.Error != "unauthorized" {
		t.Errorf("Expected unauthorized before auth, got %+v", msg)
	}

	// Wrong token is rejected and the socket stays unauthenticated
	writeWS(t, conn, &protocol.Message{
		Type:    protocol.TypeAuth,
		ID:      "a1",
		Payload: json.RawMessage(`{"token":"wrong"}`),
	})
	msg = readWS(t, conn)
	if msg.OK || msg.Error != "unauthorized" {
		t.Errorf("Expected rejection for bad token, got %+v", msg)
	}

	// The right token authenticates the same socket
	writeWS(t, conn, &protocol.Message{
		Type:    protocol.TypeAuth,
		ID:      "a2",
		Payload: json.RawMessage(`{"token":"s3cret"}`),
	})
	msg = readWS(t, conn)
	if !msg.OK || msg.ID != "a2" {
		t.Fatalf("Expected auth success, got %+v", msg)
	}

	writeWS(t, conn, protocol.Invoke("q2", protocol.CmdGetStatus, nil))
	msg = readWS(t, conn)
	if !msg.OK {
		t.Errorf("Expected get_status to work after auth, got %+v", msg)
	}
	var st typist.Status
	if err := json.Unmarshal(msg.Payload, &st); err != nil {
		t.Fatal(err)
	}
	if st.State != typist.StateIdle {
		t.Errorf("Expected idle status, got %+v", st)
	}
}

// TestSnippetCommand tests snippet lookup and typing via the registry
func TestSnippetCommand(t *testing.T) {
	srv, rec, _ := newTestBridge(t, "")

	if _, err := srv.commands[protocol.CmdTypeSnippet](json.RawMessage(`{"name":"Missing"}`)); err == nil {
		t.Error("Expected error for unknown snippet")
	}

	result, err := srv.commands[protocol.CmdTypeSnippet](json.RawMessage(`{"name":"Sig"}`))
	if err != nil {
		t.Fatalf("type_snippet failed: %v", err)
	}
	if _, ok := result.(protocol.JobRef); !ok {
		t.Errorf("Expected a job reference result, got %T", result)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		ops := rec.recorded()
		if len(ops) == 2 {
			if ops[0] != "text:Best," || ops[1] != "key:enter" {
				t.Errorf("Expected snippet text then enter, got %v", ops)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for snippet typing, ops=%v", rec.recorded())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestUnknownJobCancel tests canceling a job ID that does not exist
func TestUnknownJobCancel(t *testing.T) {
	srv, _, _ := newTestBridge(t, "")

	if _, err := srv.CancelTyping(12345); err == nil {
		t.Error("Expected error canceling unknown job")
	}
	n, err := srv.CancelTyping(0)
	if err != nil || n != 0 {
		t.Errorf("Expected cancel-all on idle to report 0, got %d (%v)", n, err)
	}
}
