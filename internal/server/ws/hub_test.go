package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eternal-Darkness-07/GoQuant/internal/domain"
)

type stubParams struct {
	params domain.SimulationParams
}

func (s *stubParams) Params() domain.SimulationParams { return s.params }

type countingGauge struct {
	connected    atomic.Int64
	disconnected atomic.Int64
}

func (g *countingGauge) WSClientConnected()    { g.connected.Add(1) }
func (g *countingGauge) WSClientDisconnected() { g.disconnected.Add(1) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// startHub runs the hub loop and serves HandleWS over httptest, returning the
// ws:// URL to dial. Everything shuts down via t.Cleanup.
func startHub(t *testing.T, hub *Hub) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEnvelope reads one frame and splits it into type and raw payload.
func readEnvelope(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&env))
	return env.Type, env.Data
}

func TestHubHelloFrame(t *testing.T) {
	params := domain.DefaultSimulationParams()
	hub := NewHub(Config{
		SessionID: "11111111-2222-3333-4444-555555555555",
		Exchange:  "OKX",
		Symbol:    "BTC-USDT",
		StartedAt: time.Now().Add(-5 * time.Second),
	}, &stubParams{params: params}, nil, testLogger())
	url := startHub(t, hub)

	conn := dial(t, url)

	typ, data := readEnvelope(t, conn)
	require.Equal(t, "hello", typ)

	var hello struct {
		SessionID     string                  `json:"session_id"`
		Exchange      string                  `json:"exchange"`
		Symbol        string                  `json:"symbol"`
		UptimeSeconds int64                   `json:"uptime_seconds"`
		Params        domain.SimulationParams `json:"params"`
	}
	require.NoError(t, json.Unmarshal(data, &hello))

	assert.Equal(t, "11111111-2222-3333-4444-555555555555", hello.SessionID)
	assert.Equal(t, "OKX", hello.Exchange)
	assert.Equal(t, "BTC-USDT", hello.Symbol)
	assert.GreaterOrEqual(t, hello.UptimeSeconds, int64(5))
	assert.Equal(t, params, hello.Params)
}

func TestHubBroadcastsResultsToAllClients(t *testing.T) {
	hub := NewHub(Config{SessionID: "s", Exchange: "OKX", Symbol: "BTC-USDT"},
		&stubParams{}, nil, testLogger())
	url := startHub(t, hub)

	first := dial(t, url)
	second := dial(t, url)

	typ, _ := readEnvelope(t, first)
	require.Equal(t, "hello", typ)
	typ, _ = readEnvelope(t, second)
	require.Equal(t, "hello", typ)
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	res := domain.SimulationResult{
		NetCost:  0.875,
		MidPrice: 95445.45,
		Spread:   0.1,
	}
	hub.OnResult(res)

	for _, conn := range []*websocket.Conn{first, second} {
		typ, data := readEnvelope(t, conn)
		require.Equal(t, "simulation_result", typ)

		var got domain.SimulationResult
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, res.NetCost, got.NetCost)
		assert.Equal(t, res.MidPrice, got.MidPrice)
	}
}

func TestHubClientCountTracksConnections(t *testing.T) {
	gauge := &countingGauge{}
	hub := NewHub(Config{SessionID: "s"}, &stubParams{}, gauge, testLogger())
	url := startHub(t, hub)

	assert.Equal(t, 0, hub.ClientCount())

	conn := dial(t, url)
	typ, _ := readEnvelope(t, conn)
	require.Equal(t, "hello", typ)
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return gauge.connected.Load() == 1 && gauge.disconnected.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub(Config{SessionID: "s"}, &stubParams{}, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	typ, _ := readEnvelope(t, conn)
	require.Equal(t, "hello", typ)
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("hub loop did not stop after cancel")
	}
	assert.Equal(t, 0, hub.ClientCount())

	// The write pump sends a close frame once the hub drops the client, so a
	// read on our side must fail rather than block.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHubOnResultWithoutClientsDoesNotBlock(t *testing.T) {
	hub := NewHub(Config{SessionID: "s"}, &stubParams{}, nil, testLogger())

	// No Run loop draining the broadcast channel: filling it past its buffer
	// must drop frames instead of blocking the caller.
	for i := 0; i < 1000; i++ {
		hub.OnResult(domain.SimulationResult{NetCost: float64(i)})
	}
}
