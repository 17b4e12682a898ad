// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package metrics provides Prometheus instrumentation for the timeline
// core: slate assembly, the two-tier cache, the fan-out worker, the
// live-update hub, and the HTTP front door. Grounded on the teacher's
// promauto-based metrics package, trimmed and renamed from media-sync
// concerns to the timeline domain.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SlateAssemblyDuration tracks how long Assemble takes end to end.
	SlateAssemblyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slate_assembly_duration_seconds",
			Help:    "Duration of slate assembly in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"algorithm"},
	)

	// SlateItemsEmitted tracks the final item count per assembled slate.
	SlateItemsEmitted = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slate_items_emitted",
			Help:    "Number of SlateItems emitted per assembled slate",
			Buckets: []float64{0, 5, 10, 20, 40, 80, 160},
		},
	)

	// SourceDegraded counts adapter failures per source, by name.
	SourceDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_degraded_total",
			Help: "Total number of times a content source adapter degraded (errored or timed out)",
		},
		[]string{"source"},
	)

	// CacheHits and CacheMisses are tiered: tier is "remote" or "local".
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits by tier",
		},
		[]string{"tier"},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses across both tiers",
		},
	)

	CacheRemoteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_remote_errors_total",
			Help: "Total number of remote cache tier errors that triggered local fallback",
		},
	)

	// FanoutQueueDepth is the current number of buffered FanoutEvents.
	FanoutQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fanout_queue_depth",
			Help: "Current depth of the fan-out worker's event queue",
		},
	)

	// FanoutEventsProcessed counts events the worker successfully applied.
	FanoutEventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_events_processed_total",
			Help: "Total number of fan-out events successfully processed",
		},
		[]string{"kind"},
	)

	// FanoutEventsDropped counts events dropped after retry exhaustion.
	FanoutEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_events_dropped_total",
			Help: "Total number of fan-out events dropped after exhausting retries",
		},
		[]string{"kind"},
	)

	// LiveSessions is the current number of open live-update sessions.
	LiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_sessions",
			Help: "Current number of open live-update stream sessions",
		},
	)

	// LiveMessagesSent counts messages written to live sessions, by kind
	// ("update" or "heartbeat").
	LiveMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_messages_sent_total",
			Help: "Total number of messages written to live-update sessions",
		},
		[]string{"kind"},
	)

	// LiveQueueOverflows counts drop-oldest evictions from a session's
	// bounded pending queue.
	LiveQueueOverflows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_queue_overflows_total",
			Help: "Total number of pending-update drops due to session queue overflow",
		},
	)

	// LiveRateLimited counts updates skipped because a session's token
	// bucket had no token available.
	LiveRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_rate_limited_total",
			Help: "Total number of live-update sends skipped due to per-session rate limiting",
		},
	)

	// RateLimitRejections counts viewer requests rejected by C2.
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Total number of requests rejected by the per-viewer rate limiter",
		},
		[]string{"endpoint"},
	)

	// CircuitBreakerState mirrors each source adapter's gobreaker state
	// (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// APIRequestsTotal and APIRequestDuration instrument the HTTP front
	// door in internal/api.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// APIActiveRequests is the number of API requests currently in flight.
	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of API requests currently being handled",
		},
	)

	// AppInfo and AppUptime are generic process metadata.
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordSlateAssembly records one Assemble() call's duration, item
// count, and any degraded sources.
func RecordSlateAssembly(algorithm string, duration time.Duration, itemCount int, degradedSources []string) {
	SlateAssemblyDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
	SlateItemsEmitted.Observe(float64(itemCount))
	for _, source := range degradedSources {
		SourceDegraded.WithLabelValues(source).Inc()
	}
}

// RecordCacheResult records a cache lookup outcome.
func RecordCacheResult(tier string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(tier).Inc()
		return
	}
	CacheMisses.Inc()
}

// RecordFanoutProcessed records a successfully processed fan-out event.
func RecordFanoutProcessed(kind string) {
	FanoutEventsProcessed.WithLabelValues(kind).Inc()
}

// RecordFanoutDropped records a fan-out event dropped after retry
// exhaustion.
func RecordFanoutDropped(kind string) {
	FanoutEventsDropped.WithLabelValues(kind).Inc()
}

// TrackActiveRequest increments or decrements the in-flight API request
// gauge. Callers defer the decrementing call.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
