package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/alice-bridge/internal/infrastructure/config"
	"github.com/nerrad567/alice-bridge/internal/infrastructure/logging"
)

// Frame types exchanged on the event stream.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeAck         = "ack"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-connection outbound frame buffer.
	wsSendBufferSize = 64
)

// WSFrame is one message on the event stream, in either direction.
//
// Clients send subscribe/unsubscribe frames with Channels, and ping frames.
// The server sends event frames carrying Channel and Data, and ack/error
// frames echoing the client's ID.
type WSFrame struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Channel   string          `json:"channel,omitempty"`
	Channels  []string        `json:"channels,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// Owned is implemented by event payloads that belong to one user. They are
// only delivered to that user's connections; other payloads go to everyone.
type Owned interface {
	Owner() string
}

// Hub tracks event stream connections per linked user.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu     sync.RWMutex
	byUser map[string]map[*WSClient]struct{}
}

// WSClient is one event stream connection.
//
// A client with no channel filter receives every channel.
type WSClient struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string

	mu       sync.RWMutex
	channels map[string]struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS middleware.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:    cfg,
		logger: logger,
		byUser: make(map[string]map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled and then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, clients := range h.byUser {
		for c := range clients {
			close(c.send)
			if c.conn != nil {
				c.conn.Close()
			}
		}
		delete(h.byUser, userID)
	}
}

// Register adds a client under its user.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	clients, ok := h.byUser[c.userID]
	if !ok {
		clients = make(map[*WSClient]struct{})
		h.byUser[c.userID] = clients
	}
	clients[c] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("event stream connected", "user_id", c.userID, "clients", h.ClientCount())
}

// Unregister removes a client. The send channel is closed by whichever
// caller removes the client first.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	clients := h.byUser[c.userID]
	_, existed := clients[c]
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.byUser, c.userID)
	}
	h.mu.Unlock()

	if existed {
		close(c.send)
		h.logger.Debug("event stream disconnected", "user_id", c.userID, "clients", h.ClientCount())
	}
}

// Broadcast delivers payload on channel to the clients that want it.
// Slow clients whose buffer is full miss the event.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("encoding event", "channel", channel, "error", err)
		return
	}
	frame, err := json.Marshal(WSFrame{
		Type:      WSTypeEvent,
		Channel:   channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	})
	if err != nil {
		h.logger.Error("encoding event frame", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	var targets []*WSClient
	if o, ok := payload.(Owned); ok {
		for c := range h.byUser[o.Owner()] {
			targets = append(targets, c)
		}
	} else {
		for _, clients := range h.byUser {
			for c := range clients {
				targets = append(targets, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if c.wants(channel) {
			c.trySend(frame)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.byUser {
		n += len(clients)
	}
	return n
}

// handleWebSocket opens an event stream for the token's user.
// Browsers cannot set headers on the upgrade request, so the access token
// travels in the token query parameter. An optional comma-separated
// channels parameter sets the initial filter.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	_, user, ok := s.authenticate(w, r.URL.Query().Get("token"))
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &WSClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		userID:   user.ID.String(),
		channels: make(map[string]struct{}),
	}
	if raw := r.URL.Query().Get("channels"); raw != "" {
		c.subscribe(strings.Split(raw, ","))
	}

	s.hub.Register(c)
	go c.writeLoop(s.wsCfg)
	go c.readLoop(s.wsCfg)
}

func (c *WSClient) readLoop(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(deadline)) }

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	extend("") //nolint:errcheck // read error surfaces below
	c.conn.SetPongHandler(extend)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("event stream read failed", "user_id", c.userID, "error", err)
			}
			return
		}
		extend("") //nolint:errcheck // read error surfaces on the next read
		c.handleFrame(data)
	}
}

func (c *WSClient) writeLoop(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write error checked below
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write error checked below
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleFrame(data []byte) {
	var in WSFrame
	if err := json.Unmarshal(data, &in); err != nil {
		c.reply(WSFrame{Type: WSTypeError, Message: "invalid JSON frame"})
		return
	}

	switch in.Type {
	case WSTypeSubscribe:
		c.subscribe(in.Channels)
		c.reply(WSFrame{Type: WSTypeAck, ID: in.ID, Channels: c.subscribed()})
	case WSTypeUnsubscribe:
		c.unsubscribe(in.Channels)
		c.reply(WSFrame{Type: WSTypeAck, ID: in.ID, Channels: c.subscribed()})
	case WSTypePing:
		c.reply(WSFrame{Type: WSTypePong, ID: in.ID})
	default:
		c.reply(WSFrame{Type: WSTypeError, ID: in.ID, Message: "unknown frame type: " + in.Type})
	}
}

func (c *WSClient) subscribe(channels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if ch = strings.TrimSpace(ch); ch != "" {
			c.channels[ch] = struct{}{}
		}
	}
}

func (c *WSClient) unsubscribe(channels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		delete(c.channels, strings.TrimSpace(ch))
	}
}

func (c *WSClient) subscribed() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	return out
}

func (c *WSClient) wants(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.channels) == 0 {
		return true
	}
	_, ok := c.channels[channel]
	return ok
}

func (c *WSClient) reply(f WSFrame) {
	f.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.trySend(data)
}

// trySend drops the frame when the buffer is full or the client is gone.
func (c *WSClient) trySend(frame []byte) {
	defer func() {
		recover() //nolint:errcheck // send on a channel closed by Unregister
	}()
	select {
	case c.send <- frame:
	default:
	}
}
