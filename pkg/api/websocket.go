package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 256
)

// Feed channels are "<kind>:<market id>".
const (
	feedTrades    = "trades"
	feedEvents    = "events"
	feedOrderbook = "orderbook"
)

func channelName(kind, marketID string) string { return kind + ":" + marketID }

// validChannel reports whether ch names a known feed of some market.
func validChannel(ch string) bool {
	kind, id, ok := strings.Cut(ch, ":")
	if !ok || id == "" {
		return false
	}
	switch kind {
	case feedTrades, feedEvents, feedOrderbook:
		return true
	}
	return false
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins (CORS handled by main server)
		return true
	},
}

// Hub keeps the connected feed clients and fans market messages out to
// the ones subscribed to a channel. Broadcasting never blocks the
// simulation: a client whose buffer is full misses messages.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client

	done   chan struct{}
	once   sync.Once
	logger *zap.SugaredLogger

	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.SugaredLogger) *Hub {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run registers and drops clients until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debugw("ws_client_connected", "client", c.id, "total", n)

		case c := <-h.unregister:
			h.mu.Lock()
			h.drop(c)
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debugw("ws_client_disconnected", "client", c.id, "total", n)

		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			return
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(c *Client) {
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

// Stop ends Run and disconnects every client.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastToChannel sends data to every client subscribed to channel.
// The payload is marshalled at most once, and only if someone listens.
func (h *Hub) BroadcastToChannel(channel string, data interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var message []byte
	for c := range h.clients {
		if !c.IsSubscribed(channel) {
			continue
		}
		if message == nil {
			var err error
			if message, err = json.Marshal(data); err != nil {
				h.logger.Warnw("ws_marshal_failed", "channel", channel, "err", err)
				return
			}
		}
		c.trySend(message)
	}
}

// Client is one feed connection and the channels it listens to.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	subscriptions map[string]bool
	subsMu        sync.RWMutex
}

// trySend queues a message without blocking. Caller holds hub.mu.
func (c *Client) trySend(msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

// IsSubscribed checks if client is subscribed to a channel
func (c *Client) IsSubscribed(channel string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return c.subscriptions[channel]
}

// apply runs a subscribe or unsubscribe request and returns the channels
// it affected. Unknown channels are ignored.
func (c *Client) apply(req WSSubscribeRequest) []string {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	var applied []string
	for _, ch := range req.Channels {
		if !validChannel(ch) {
			c.hub.logger.Debugw("ws_unknown_channel", "client", c.id, "channel", ch)
			continue
		}
		if req.Op == "subscribe" {
			c.subscriptions[ch] = true
		} else {
			delete(c.subscriptions, ch)
		}
		applied = append(applied, ch)
	}
	return applied
}

// readPump handles subscription requests until the connection fails.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debugw("ws_read_failed", "client", c.id, "err", err)
			}
			return
		}

		var req WSSubscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			c.hub.logger.Debugw("ws_invalid_message", "client", c.id, "err", err)
			continue
		}
		if req.Op != "subscribe" && req.Op != "unsubscribe" {
			c.hub.logger.Debugw("ws_unknown_op", "client", c.id, "op", req.Op)
			continue
		}

		ack, _ := json.Marshal(WSMessage{Type: req.Op, Data: c.apply(req)})
		c.hub.mu.RLock()
		if c.hub.clients[c] {
			c.trySend(ack)
		}
		c.hub.mu.RUnlock()
	}
}

// writePump delivers queued messages and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWebSocket upgrades the connection and starts its pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debugw("ws_upgrade_failed", "err", err)
		return
	}

	client := &Client{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		id:            conn.RemoteAddr().String(),
		subscriptions: make(map[string]bool),
	}

	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
