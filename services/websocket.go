package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

// Client represents a connected WebSocket client
type Client struct {
	ID        string
	Conn      *websocket.Conn
	SessionID string
	Send      chan []byte
	Hub       *WebSocketHub
}

// WebSocketHub maintains the viewers of each call session and broadcasts
// messages to them.
type WebSocketHub struct {
	log zerolog.Logger

	mutex          sync.RWMutex
	clients        map[*Client]bool
	sessionClients map[string]map[*Client]bool
}

// NewWebSocketHub creates a new WebSocketHub instance
func NewWebSocketHub(log zerolog.Logger) *WebSocketHub {
	return &WebSocketHub{
		log:            log,
		clients:        make(map[*Client]bool),
		sessionClients: make(map[string]map[*Client]bool),
	}
}

// Register adds a connection as a viewer of sessionID.
func (h *WebSocketHub) Register(conn *websocket.Conn, sessionID string) *Client {
	client := &Client{
		ID:        uuid.New().String(),
		Conn:      conn,
		SessionID: sessionID,
		Send:      make(chan []byte, sendBufferSize),
		Hub:       h,
	}

	h.mutex.Lock()
	h.clients[client] = true
	if h.sessionClients[sessionID] == nil {
		h.sessionClients[sessionID] = make(map[*Client]bool)
	}
	h.sessionClients[sessionID][client] = true
	h.mutex.Unlock()
	return client
}

// Unregister removes a client and closes its send channel. It reports how
// many viewers the client's session has left.
func (h *WebSocketHub) Unregister(client *Client) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)

		viewers := h.sessionClients[client.SessionID]
		delete(viewers, client)
		if len(viewers) == 0 {
			delete(h.sessionClients, client.SessionID)
		}
	}
	return len(h.sessionClients[client.SessionID])
}

// ClientCount returns the number of viewers of a session.
func (h *WebSocketHub) ClientCount(sessionID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.sessionClients[sessionID])
}

// Broadcast sends a message to all clients subscribed to a specific session.
// It never blocks: clients whose buffer is full miss the message.
func (h *WebSocketHub) Broadcast(sessionID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal broadcast message")
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.sessionClients[sessionID] {
		select {
		case client.Send <- data:
		default:
			h.log.Warn().Str("session_id", sessionID).Str("client_id", client.ID).Msg("client buffer full, dropping message")
		}
	}
}

// SendJSON queues a message for this client only.
func (c *Client) SendJSON(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.Hub.mutex.RLock()
	defer c.Hub.mutex.RUnlock()
	if !c.Hub.clients[c] {
		return websocket.ErrCloseSent
	}
	select {
	case c.Send <- data:
	default:
		c.Hub.log.Warn().Str("client_id", c.ID).Msg("client buffer full, dropping message")
	}
	return nil
}

// WritePump pumps messages from the hub to the websocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.log.Debug().Err(err).Str("client_id", c.ID).Msg("write to websocket")
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump reads until the connection closes. Viewers never send anything
// meaningful; reading is needed to process pongs and close frames.
func (c *Client) ReadPump() {
	c.Conn.SetReadLimit(4096)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
