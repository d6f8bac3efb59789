package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"ghostkeys/internal/protocol"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for now as this is a local network tool
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSManager handles WebSocket connections and broadcasting
type WSManager struct {
	server     *Server
	clients    map[*WebSocketClient]bool
	clientsMu  sync.RWMutex
	broadcast  chan protocol.Message
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	shutdown   chan struct{}
}

// WebSocketClient represents a connected front end or remote instance
type WebSocketClient struct {
	manager *WSManager
	conn    *websocket.Conn
	send    chan []byte
	ip      string
	authed  bool
}

func newWSManager(s *Server) *WSManager {
	return &WSManager{
		server:     s,
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan protocol.Message),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		shutdown:   make(chan struct{}),
	}
}

func (m *WSManager) start() {
	for {
		select {
		case client := <-m.register:
			m.clientsMu.Lock()
			m.clients[client] = true
			m.clientsMu.Unlock()
			log.Printf("WS: New client registered from %s. Total clients: %d", client.ip, len(m.clients))

		case client := <-m.unregister:
			m.clientsMu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
				log.Printf("WS: Client unregistered from %s. Total clients: %d", client.ip, len(m.clients))
			}
			m.clientsMu.Unlock()

		case message := <-m.broadcast:
			m.broadcastMessage(message)

		case <-m.shutdown:
			return
		}
	}
}

func (m *WSManager) broadcastMessage(message protocol.Message) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("WS: Failed to marshal broadcast message: %v", err)
		return
	}

	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()

	for client := range m.clients {
		// Unauthenticated sockets get no engine traffic
		if m.server.token != "" && !client.authed {
			continue
		}
		select {
		case client.send <- jsonMsg:
		default:
			close(client.send)
			delete(m.clients, client)
		}
	}
}

func (m *WSManager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: Failed to upgrade connection: %v", err)
		return
	}

	client := &WebSocketClient{
		manager: m,
		conn:    conn,
		send:    make(chan []byte, 256),
		ip:      r.RemoteAddr,
	}

	// Register client
	m.register <- client

	// Start pump goroutines
	go client.writePump()
	go client.readPump()
}

// BroadcastEvent pushes a named event with data to all connected clients.
func (m *WSManager) BroadcastEvent(event string, data interface{}) {
	m.broadcast <- *protocol.NewEvent(event, data)
}

// readPump pumps messages from the websocket connection to the hub.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.manager.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS: Read error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// maxMessageSize caps inbound frames. Typing payloads are text, so this is
// generous; it mostly guards the bridge against junk.
const maxMessageSize = 256 * 1024

// writePump pumps messages from the hub to the websocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("WS: Invalid message format: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeAuth:
		var payload protocol.AuthPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				log.Printf("WS: Invalid auth payload: %v", err)
				return
			}
		}

		// A failed attempt leaves the socket connected but unauthenticated;
		// every invoke keeps getting refused until a good token arrives
		if c.manager.server.token != "" && payload.Token != c.manager.server.token {
			log.Printf("WS: Rejected auth from %s (bad token)", c.ip)
			c.sendMessage(protocol.ResultError(msg.ID, errors.New("unauthorized")))
			return
		}

		c.manager.clientsMu.Lock()
		c.authed = true
		c.manager.clientsMu.Unlock()
		log.Printf("WS: Client %s authenticated (%s %s)", c.ip, payload.ClientName, payload.ClientVersion)
		if msg.ID != "" {
			c.sendMessage(protocol.ResultOK(msg.ID, map[string]string{"status": "ok"}))
		}

	case protocol.TypeInvoke:
		if !c.authorized() {
			c.sendMessage(protocol.ResultError(msg.ID, errors.New("unauthorized")))
			return
		}

		handler, ok := c.manager.server.commands[msg.Command]
		if !ok {
			c.sendMessage(protocol.ResultError(msg.ID, fmt.Errorf("unknown command: %s", msg.Command)))
			return
		}

		// Run outside the read pump so a slow command cannot stall the socket
		go func() {
			result, err := handler(msg.Payload)
			if err != nil {
				log.Printf("WS: Command %s failed: %v", msg.Command, err)
				c.sendMessage(protocol.ResultError(msg.ID, err))
				return
			}
			c.sendMessage(protocol.ResultOK(msg.ID, result))
		}()
	}
}

func (c *WebSocketClient) authorized() bool {
	if c.manager.server.token == "" {
		return true
	}
	c.manager.clientsMu.RLock()
	defer c.manager.clientsMu.RUnlock()
	return c.authed
}

func (c *WebSocketClient) sendMessage(msg *protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WS: Failed to marshal message: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("WS: Dropping message to %s (send buffer full)", c.ip)
	}
}
