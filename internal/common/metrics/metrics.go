// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RealtimeEventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_emitted_total",
			Help: "Total number of realtime events dispatched to the registry",
		},
		[]string{"type"},
	)

	RealtimeListenerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_listener_failures_total",
			Help: "Total number of realtime listeners that panicked during dispatch",
		},
		[]string{"type"},
	)

	RealtimeEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_dropped_total",
			Help: "Inbound realtime frames dropped before dispatch",
		},
		[]string{"source", "reason"},
	)

	RealtimeConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connected",
			Help: "1 while a session exists and the event source is connected",
		},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of REST requests issued, by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of REST requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	OptimisticSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_optimistic_sends_total",
			Help: "Optimistic message sends by outcome",
		},
		[]string{"outcome"},
	)

	ApprovalActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_actions_total",
			Help: "Vendor approval actions by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	FetchesSuperseded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetches_superseded_total",
			Help: "List fetches cancelled or discarded because a newer fetch started",
		},
		[]string{"resource"},
	)
)
