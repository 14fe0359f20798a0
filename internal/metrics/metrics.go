// Package metrics exposes the server's Prometheus collectors. A nil
// *Collector is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "streamtext"

type Collector struct {
	registry *prometheus.Registry

	wsClients         prometheus.Gauge
	wsClientsDropped  prometheus.Counter
	broadcastMessages *prometheus.CounterVec
	streamsActive     prometheus.Gauge
	tokensEmitted     prometheus.Counter
}

// New creates a collector with its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		wsClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected websocket clients",
		}),
		wsClientsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_clients_dropped_total",
			Help:      "Websocket clients disconnected for falling behind",
		}),
		broadcastMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_messages_total",
			Help:      "Websocket messages broadcast, by type",
		}, []string{"type"}),
		streamsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Streams that have not finished",
		}),
		tokensEmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_emitted_total",
			Help:      "Tokens appended to streams by the generator",
		}),
	}
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) SetClients(n int) {
	if c != nil {
		c.wsClients.Set(float64(n))
	}
}

func (c *Collector) ClientDropped() {
	if c != nil {
		c.wsClientsDropped.Inc()
	}
}

func (c *Collector) MessageBroadcast(msgType string) {
	if c != nil {
		c.broadcastMessages.WithLabelValues(msgType).Inc()
	}
}

func (c *Collector) SetActiveStreams(n int) {
	if c != nil {
		c.streamsActive.Set(float64(n))
	}
}

func (c *Collector) TokenEmitted() {
	if c != nil {
		c.tokensEmitted.Inc()
	}
}
