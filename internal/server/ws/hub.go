// Package ws streams live simulation results to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Eternal-Darkness-07/GoQuant/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message. Clients only
	// ever send control frames, so this stays small.
	maxMessageSize = 512

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// Frame types pushed to clients.
const (
	frameHello  = "hello"
	frameResult = "simulation_result"
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Results are read-only market analytics; any origin may subscribe.
		return true
	},
}

// envelope is the wire format for every frame pushed to clients.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// helloData is sent once per connection so clients can render immediately.
type helloData struct {
	SessionID     string                  `json:"session_id"`
	Exchange      string                  `json:"exchange"`
	Symbol        string                  `json:"symbol"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Params        domain.SimulationParams `json:"params"`
}

// ParamsSource exposes the active simulation parameters for the hello frame.
type ParamsSource interface {
	Params() domain.SimulationParams
}

// ClientCounter tracks the connected-client gauge. May be nil.
type ClientCounter interface {
	WSClientConnected()
	WSClientDisconnected()
}

// client represents a single WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Config captures runtime metadata used in the hello frame.
type Config struct {
	SessionID string
	Exchange  string
	Symbol    string
	StartedAt time.Time
}

// Hub manages a set of connected WebSocket clients and fans simulation
// results out to all of them. It implements the simulator listener contract:
// OnResult never blocks, so a slow client cannot stall the tick pipeline.
type Hub struct {
	cfg        Config
	params     ParamsSource
	counter    ClientCounter
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewHub creates a hub that reports the given session metadata to connecting
// clients. counter may be nil.
func NewHub(cfg Config, params ParamsSource, counter ClientCounter, logger *slog.Logger) *Hub {
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now().UTC()
	}
	return &Hub{
		cfg:        cfg,
		params:     params,
		counter:    counter,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		logger:     logger.With(slog.String("component", "ws_hub")),
	}
}

// OnResult queues a simulation result frame for every connected client. When
// the broadcast queue is full the frame is dropped; the next tick supersedes
// it anyway.
func (h *Hub) OnResult(res domain.SimulationResult) {
	data, err := json.Marshal(envelope{Type: frameResult, Data: res})
	if err != nil {
		h.logger.Error("marshal result frame", slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

// Run starts the hub's main event loop. It handles client registration,
// unregistration, and fan-out. The loop exits when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			if h.counter != nil {
				h.counter.WSClientConnected()
			}
			h.logger.Info("client connected",
				slog.Int("total_clients", h.ClientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			if h.counter != nil {
				h.counter.WSClientDisconnected()
			}
			h.logger.Info("client disconnected",
				slog.Int("total_clients", h.ClientCount()),
			)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Client's send buffer is full; drop the frame.
					h.logger.Warn("dropping frame for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the client with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.register <- c
	c.sendHello()

	// Start read and write pumps in separate goroutines.
	go c.writePump()
	go c.readPump()
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// sendHello pushes the session envelope so clients can mark the connection as
// live before the first tick arrives.
func (c *client) sendHello() {
	uptime := int64(time.Since(c.hub.cfg.StartedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}

	var params domain.SimulationParams
	if c.hub.params != nil {
		params = c.hub.params.Params()
	}

	msg, err := json.Marshal(envelope{
		Type: frameHello,
		Data: helloData{
			SessionID:     c.hub.cfg.SessionID,
			Exchange:      c.hub.cfg.Exchange,
			Symbol:        c.hub.cfg.Symbol,
			UptimeSeconds: uptime,
			Params:        params,
		},
	})
	if err != nil {
		return
	}

	select {
	case c.send <- msg:
	default:
	}
}

// readPump drains the WebSocket connection. Clients never send data frames;
// the pump exists to process control frames and detect disconnects.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// writePump pumps frames from the hub to the WebSocket connection as JSON
// text messages, with periodic pings for keepalive.
func (c *client) writePump() {
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
				// The hub closed the channel.
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
