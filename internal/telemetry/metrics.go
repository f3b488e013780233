// Package telemetry exposes the process's Prometheus metrics: feed transport
// counters, pipeline latency, and API fan-out gauges.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Eternal-Darkness-07/GoQuant/internal/domain"
)

// Metrics owns a dedicated Prometheus registry and every instrument the
// pipeline records into. It satisfies both the feed client's Recorder and the
// simulator's Listener, so one value instruments the whole path.
type Metrics struct {
	registry *prometheus.Registry

	messagesReceived prometheus.Counter
	parseErrors      prometheus.Counter
	reconnects       prometheus.Counter
	connected        prometheus.Gauge

	updateLatency prometheus.Histogram
	resultsTotal  prometheus.Counter
	netCost       prometheus.Gauge
	midPrice      prometheus.Gauge

	wsClients      prometheus.Gauge
	publishDropped prometheus.Counter
}

// New creates and registers every metric on a fresh registry, alongside the
// standard Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goquant_feed_messages_received_total",
			Help: "Raw messages received from the venue feed, parseable or not",
		}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goquant_feed_parse_errors_total",
			Help: "Feed messages dropped because they failed validation",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goquant_feed_reconnects_total",
			Help: "Reconnect attempts after a failed or dropped feed connection",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goquant_feed_connected",
			Help: "1 while the feed WebSocket is established, 0 otherwise",
		}),

		updateLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "goquant_update_latency_seconds",
			Help:    "Wall-clock time of the full per-snapshot pipeline",
			Buckets: []float64{1e-6, 5e-6, 10e-6, 25e-6, 50e-6, 100e-6, 250e-6, 500e-6, 1e-3, 5e-3},
		}),
		resultsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goquant_results_total",
			Help: "Simulation results produced",
		}),
		netCost: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goquant_net_cost",
			Help: "Net cost of the latest simulation in quote currency units",
		}),
		midPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goquant_mid_price",
			Help: "Mid-price observed by the latest simulation",
		}),

		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goquant_ws_clients",
			Help: "Currently connected WebSocket API subscribers",
		}),
		publishDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goquant_publish_dropped_total",
			Help: "Results dropped instead of delivered to a slow fan-out target",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messagesReceived,
		m.parseErrors,
		m.reconnects,
		m.connected,
		m.updateLatency,
		m.resultsTotal,
		m.netCost,
		m.midPrice,
		m.wsClients,
		m.publishDropped,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetConnected implements feed.Recorder.
func (m *Metrics) SetConnected(connected bool) {
	if connected {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

// MessageReceived implements feed.Recorder.
func (m *Metrics) MessageReceived() { m.messagesReceived.Inc() }

// ParseError implements feed.Recorder.
func (m *Metrics) ParseError() { m.parseErrors.Inc() }

// Reconnect implements feed.Recorder.
func (m *Metrics) Reconnect() { m.reconnects.Inc() }

// OnResult implements simulator.Listener, recording per-update pipeline
// latency and the latest headline figures.
func (m *Metrics) OnResult(res domain.SimulationResult) {
	m.resultsTotal.Inc()
	m.updateLatency.Observe(float64(res.LatencyMicros) / 1e6)
	m.netCost.Set(res.NetCost)
	m.midPrice.Set(res.MidPrice)
}

// WSClientConnected records one more API subscriber.
func (m *Metrics) WSClientConnected() { m.wsClients.Inc() }

// WSClientDisconnected records one fewer API subscriber.
func (m *Metrics) WSClientDisconnected() { m.wsClients.Dec() }

// PublishDropped records a result dropped on a full fan-out buffer.
func (m *Metrics) PublishDropped() { m.publishDropped.Inc() }
