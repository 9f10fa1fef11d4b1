// Package metrics provides Prometheus instrumentation for the sync engine.
// It exposes counters for event throughput and failure paths, and gauges
// for connection health.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsTotal counts inbound events that matched a category filter,
	// labeled by category.
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_events_total",
		Help: "Total number of typed events produced per category",
	}, []string{"category"})

	// FramesTotal counts raw frames read off the transport.
	FramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_frames_total",
		Help: "Total number of raw frames read from the server connection",
	})

	// ParseFailuresTotal counts frames or embedded fields that failed to
	// decode. Parse failures are soft: the stream keeps flowing.
	ParseFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_parse_failures_total",
		Help: "Total number of frame or payload parse failures",
	})

	// ReconnectsTotal counts successful reconnections of a dropped session.
	ReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_reconnects_total",
		Help: "Total number of successful reconnects after a dropped session",
	})

	// ConnectionUp is 1 while the server connection is established.
	ConnectionUp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_connection_up",
		Help: "Whether the server connection is currently established",
	})

	// BatchFlushesTotal counts quiet-period batch flushes.
	BatchFlushesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_batch_flushes_total",
		Help: "Total number of quiet-period batch flushes",
	})

	// BatchQueueDropsTotal counts whole-queue drops caused by batch queue
	// overflow. Each drop sheds an entire pending queue.
	BatchQueueDropsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_batch_queue_drops_total",
		Help: "Total number of batch queues dropped due to overflow",
	})

	// FeedDropsTotal counts frames dropped for an individual slow
	// subscriber, labeled by feed name.
	FeedDropsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_feed_drops_total",
		Help: "Total number of items dropped for slow feed subscribers",
	}, []string{"feed"})

	// RecoverySweepsTotal counts post-reconnect cache invalidation sweeps.
	RecoverySweepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_recovery_sweeps_total",
		Help: "Total number of post-reconnect cache invalidation sweeps",
	})
)

func init() {
	prometheus.MustRegister(
		EventsTotal,
		FramesTotal,
		ParseFailuresTotal,
		ReconnectsTotal,
		ConnectionUp,
		BatchFlushesTotal,
		BatchQueueDropsTotal,
		FeedDropsTotal,
		RecoverySweepsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
