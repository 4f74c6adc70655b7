// Package metrics registers the Prometheus instruments exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every instrument the service records
type Metrics struct {
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	FSMTransitions  *prometheus.CounterVec
	EscrowReleases  *prometheus.CounterVec
	RollbackSweeps  prometheus.Counter
	HeartbeatAlerts prometheus.Counter

	WSConnections prometheus.Gauge
}

// New creates and registers all instruments on the given registerer
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agrimatch_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agrimatch_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		FSMTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agrimatch_order_transitions_total",
			Help: "Order state transitions by edge.",
		}, []string{"from", "to"}),
		EscrowReleases: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agrimatch_escrow_released_cents_total",
			Help: "Cents released from escrow by leg.",
		}, []string{"leg"}),
		RollbackSweeps: factory.NewCounter(prometheus.CounterOpts{
			Name: "agrimatch_timeout_rollbacks_total",
			Help: "Orders rolled back to LISTED by the timeout sweep.",
		}),
		HeartbeatAlerts: factory.NewCounter(prometheus.CounterOpts{
			Name: "agrimatch_gps_heartbeat_alerts_total",
			Help: "GPS silence alerts raised by the heartbeat sweep.",
		}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agrimatch_ws_connections",
			Help: "Open websocket connections.",
		}),
	}
}
