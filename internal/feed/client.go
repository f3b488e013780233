package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Eternal-Darkness-07/GoQuant/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// handshakeTimeout bounds the WebSocket dial, TLS handshake included.
	handshakeTimeout = 15 * time.Second

	// initialReconnectDelay is the first backoff step after a failure.
	initialReconnectDelay = time.Second

	// maxReconnectDelay caps the exponential backoff between attempts.
	maxReconnectDelay = 60 * time.Second

	// defaultMaxIdle is how long the feed may go without raw traffic
	// before IsHealthy reports false.
	defaultMaxIdle = 10 * time.Second
)

// SnapshotHandler is called synchronously for every parsed orderbook
// snapshot, on the client's network goroutine. Handlers must not block.
type SnapshotHandler func(domain.OrderbookSnapshot)

// Recorder receives feed lifecycle events for instrumentation. All methods
// must be safe for concurrent use.
type Recorder interface {
	SetConnected(connected bool)
	MessageReceived()
	ParseError()
	Reconnect()
}

type nopRecorder struct{}

func (nopRecorder) SetConnected(bool) {}
func (nopRecorder) MessageReceived()  {}
func (nopRecorder) ParseError()       {}
func (nopRecorder) Reconnect()        {}

// Config holds the connection settings for one instrument's L2 feed.
type Config struct {
	URL      string
	Exchange string
	Symbol   string
	MaxIdle  time.Duration
}

// Client maintains a WebSocket subscription to one instrument's L2 orderbook
// feed. It reads one message at a time on its own network goroutine, parses
// it, and hands each valid snapshot to the handler on that same goroutine.
// On disconnect it redials with exponential backoff for as long as it is
// running. Start and Stop may be called repeatedly from the consumer side.
type Client struct {
	cfg      Config
	handler  SnapshotHandler
	recorder Recorder
	logger   *slog.Logger

	mu     sync.Mutex // guards conn, cancel, delay
	conn   *websocket.Conn
	cancel context.CancelFunc
	delay  time.Duration

	lifecycleMu sync.Mutex // serializes Start/Stop transitions
	wg          sync.WaitGroup

	running   atomic.Bool
	connected atomic.Bool

	lastMsgNano atomic.Int64
	messages    atomic.Uint64
	parseErrors atomic.Uint64
	reconnects  atomic.Uint64
}

// New creates a feed client for the given endpoint. handler may be nil to
// consume the stream without acting on it; recorder may be nil to disable
// instrumentation.
func New(cfg Config, handler SnapshotHandler, recorder Recorder, logger *slog.Logger) *Client {
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = defaultMaxIdle
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Client{
		cfg:      cfg,
		handler:  handler,
		recorder: recorder,
		logger:   logger.With(slog.String("component", "feed")),
	}
}

// Start launches the network goroutine and begins connecting. It is a no-op
// when the client is already running. Each Start resets the reconnect
// backoff to its initial value.
func (c *Client) Start() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if !c.running.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.delay = initialReconnectDelay
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(ctx)

	c.logger.Info("feed starting",
		slog.String("url", c.cfg.URL),
		slog.String("symbol", c.cfg.Symbol),
	)
}

// Stop shuts the feed down and waits for the network goroutine to exit.
// After Stop returns, no further handler invocation will occur. A stopped
// client can be started again.
func (c *Client) Stop() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if !c.running.CompareAndSwap(true, false) {
		return
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		_ = c.conn.Close()
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.connected.Store(false)
	c.recorder.SetConnected(false)
	c.logger.Info("feed stopped")
}

// IsConnected reports whether the WebSocket is currently established.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// IsHealthy reports whether the feed is connected and has received raw
// traffic within the idle window. Unparseable messages still count as
// traffic; health is about the transport, not the payload.
func (c *Client) IsHealthy() bool {
	if !c.connected.Load() {
		return false
	}
	last := c.lastMsgNano.Load()
	if last == 0 {
		return false
	}
	return time.Since(time.Unix(0, last)) < c.cfg.MaxIdle
}

// Status returns a point-in-time summary of the connection and its counters.
func (c *Client) Status() domain.FeedStatus {
	var lastAt time.Time
	if last := c.lastMsgNano.Load(); last > 0 {
		lastAt = time.Unix(0, last)
	}
	return domain.FeedStatus{
		Connected:        c.connected.Load(),
		Healthy:          c.IsHealthy(),
		LastMessageAt:    lastAt,
		MessagesReceived: c.messages.Load(),
		ParseErrors:      c.parseErrors.Load(),
		Reconnects:       c.reconnects.Load(),
	}
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// run owns the connect/read/reconnect cycle until ctx is cancelled.
func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("feed connect failed", slog.String("error", err.Error()))
		} else {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
			c.connected.Store(true)
			c.recorder.SetConnected(true)
			c.lastMsgNano.Store(time.Now().UnixNano())
			c.logger.Info("feed connected", slog.String("url", c.cfg.URL))

			c.readLoop(ctx, conn)

			c.connected.Store(false)
			c.recorder.SetConnected(false)
			conn.Close()
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
		}

		if ctx.Err() != nil {
			return
		}

		c.reconnects.Add(1)
		c.recorder.Reconnect()
		delay := c.nextDelay()
		c.logger.Warn("feed reconnecting", slog.Duration("delay", delay))
		if !sleep(ctx, delay) {
			return
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: dial %s: %w", c.cfg.URL, err)
	}
	return conn, nil
}

// readLoop reads messages until the connection fails or ctx is cancelled.
// The idle clock is stamped on raw receipt, before parsing, so a stream of
// unparseable messages still registers as a live connection.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	readerDone := make(chan struct{})
	defer close(readerDone)
	c.wg.Add(1)
	go c.pingLoop(ctx, conn, readerDone)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("feed read failed", slog.String("error", err.Error()))
			}
			return
		}

		now := time.Now()
		c.lastMsgNano.Store(now.UnixNano())
		c.messages.Add(1)
		c.recorder.MessageReceived()
		conn.SetReadDeadline(now.Add(pongWait))

		snap, err := parseBookMessage(raw)
		if err != nil {
			c.parseErrors.Add(1)
			c.recorder.ParseError()
			c.logger.Warn("feed message dropped", slog.String("error", err.Error()))
			continue
		}
		snap.ReceivedAt = now

		if c.handler != nil {
			c.handler(snap)
		}
	}
}

// pingLoop sends periodic ping messages to keep the WebSocket alive.
func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn, readerDone chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readerDone:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// nextDelay returns the current reconnect delay and advances the backoff.
// The delay doubles on every visit and is capped at maxReconnectDelay; only
// Start resets it, so a brief successful connection between failures does
// not restart the progression.
func (c *Client) nextDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.delay
	c.delay *= 2
	if c.delay > maxReconnectDelay {
		c.delay = maxReconnectDelay
	}
	return d
}

// sleep waits for d or until ctx is cancelled, reporting false on cancel.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
