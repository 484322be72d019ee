// Package observability wires up the node's structured logger and its
// Prometheus metrics registry.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewLogger builds the process logger: development-style (readable
// console output) when dev is true, production JSON otherwise.
func NewLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Metrics holds every gauge/counter the node updates as it runs.
type Metrics struct {
	ChainHeight     prometheus.Gauge
	PendingDepth    prometheus.Gauge
	BlocksMined     prometheus.Counter
	FramesDropped   *prometheus.CounterVec
	RelayReconnects prometheus.Counter
}

// NewMetrics constructs and registers the node's metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChainHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "toycoin",
			Name:      "chain_height",
			Help:      "Number of blocks in the local chain.",
		}),
		PendingDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "toycoin",
			Name:      "pending_depth",
			Help:      "Number of admitted transaction pairs awaiting a block.",
		}),
		BlocksMined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "toycoin",
			Name:      "blocks_mined_total",
			Help:      "Total blocks successfully mined and appended.",
		}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "toycoin",
			Name:      "frames_dropped_total",
			Help:      "Inbound relay frames dropped, by reason.",
		}, []string{"reason"}),
		RelayReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "toycoin",
			Name:      "relay_reconnects_total",
			Help:      "Total relay reconnect attempts.",
		}),
	}
	reg.MustRegister(m.ChainHeight, m.PendingDepth, m.BlocksMined, m.FramesDropped, m.RelayReconnects)
	return m
}

// Handler returns an HTTP handler serving reg's metrics in the
// Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
