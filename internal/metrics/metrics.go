package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsActive is the number of open client connections.
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bunquery_connections_active",
			Help: "Number of open client connections",
		},
	)
	// ConnectionsTotal counts accepted connections by outcome (accepted, rejected).
	ConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bunquery_connections_total",
			Help: "Total number of accepted connections",
		},
		[]string{"status"},
	)
	// FramesTotal counts processed request frames by the stage that produced
	// the reply (ok, decode, parse, plan, eval).
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bunquery_frames_total",
			Help: "Total number of request frames",
		},
		[]string{"outcome"},
	)
	// RequestDuration is the latency of one frame from decode to reply.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bunquery_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	// FrameBytes is the size of request and response payloads.
	FrameBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bunquery_frame_bytes",
			Help:    "Payload size in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 4, 10),
		},
		[]string{"direction"},
	)
	// OptimizerTotal accumulates optimizer statistics by event: visited,
	// filters_eliminated, filters_short_circuited or predicates_rewritten.
	OptimizerTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bunquery_optimizer_total",
			Help: "Optimizer rewrite statistics",
		},
		[]string{"event"},
	)
)

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
