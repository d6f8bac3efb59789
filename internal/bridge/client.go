package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"ghostkeys/internal/protocol"

	"github.com/gorilla/websocket"
)

// Client maintains a WebSocket connection to a remote ghostkeys bridge and
// forwards commands to it. Used when forward_to is configured, so one
// machine's hotkeys and UI can drive typing on another.
type Client struct {
	addr  string
	token string
	send  chan protocol.Message
	done  chan struct{}

	// OnEvent receives engine events relayed by the remote instance
	OnEvent func(event string, payload json.RawMessage)

	mu          sync.Mutex
	isConnected bool
	pending     map[string]chan protocol.Message
	nextID      int64
}

// NewClient creates a new forwarding client
func NewClient(addr, token string) *Client {
	return &Client{
		addr:    addr,
		token:   token,
		send:    make(chan protocol.Message, 100),
		done:    make(chan struct{}),
		pending: make(map[string]chan protocol.Message),
	}
}

// Addr returns the remote bridge address
func (c *Client) Addr() string {
	return c.addr
}

// Start begins the client loop (connect & process)
func (c *Client) Start() {
	go c.loop()
}

func (c *Client) loop() {
	for {
		c.connect()

		// If connect returns, it means we disconnected. Wait a bit and retry.
		select {
		case <-c.done:
			return
		case <-time.After(5 * time.Second):
			log.Println("WS Client: Attempting reconnection...")
			continue
		}
	}
}

func (c *Client) connect() {
	u := url.URL{Scheme: "ws", Host: c.addr, Path: "/ws"}
	log.Printf("WS Client: Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Printf("WS Client: Connection failed: %v", err)
		return
	}
	defer conn.Close()

	c.mu.Lock()
	c.isConnected = true
	c.mu.Unlock()

	log.Println("WS Client: Connected to remote bridge")

	// Authenticate in-band before anything else
	c.send <- protocol.Message{
		Type: protocol.TypeAuth,
		Payload: mustMarshal(protocol.AuthPayload{
			Token:      c.token,
			ClientName: "ghostkeys-forwarder",
		}),
	}

	// Start read/write pumps
	connDone := make(chan struct{})

	go func() {
		defer close(connDone)
		c.writePump(conn)
	}()

	c.readPump(conn)

	// Cleanup
	c.mu.Lock()
	c.isConnected = false
	c.mu.Unlock()
	c.failPending()

	// Ensure write pump stops
	<-connDone
}

func (c *Client) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS Client: Read error: %v", err)
			}
			break
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("WS Client: Invalid message: %v", err)
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second) // Ping ticker
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			jsonMsg, err := json.Marshal(msg)
			if err != nil {
				log.Printf("WS Client: Marshal error: %v", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, jsonMsg); err != nil {
				log.Printf("WS Client: Write error: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Client) handleMessage(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeResult:
		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		if ok {
			delete(c.pending, msg.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- msg
		}

	case protocol.TypeEvent:
		if c.OnEvent != nil {
			c.OnEvent(msg.Event, msg.Payload)
		}
	}
}

// Invoke runs a named command on the remote bridge and waits for its result.
func (c *Client) Invoke(command string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	c.mu.Lock()
	if !c.isConnected {
		c.mu.Unlock()
		return nil, errors.New("not connected")
	}
	c.nextID++
	id := fmt.Sprintf("fwd-%d", c.nextID)
	ch := make(chan protocol.Message, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	c.send <- *protocol.Invoke(id, command, params)

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, errors.New("connection lost")
		}
		if !resp.OK {
			return nil, fmt.Errorf("remote: %s", resp.Error)
		}
		return resp.Payload, nil

	case <-time.After(timeout):
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("remote command %s timed out", command)

	case <-c.done:
		return nil, errors.New("client closed")
	}
}

// failPending aborts every in-flight invoke after a disconnect.
func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// IsConnected returns true if the client is connected to the remote bridge
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

// Close stops the client
func (c *Client) Close() {
	close(c.done)
}

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
