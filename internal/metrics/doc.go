// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements comprehensive application instrumentation using the Prometheus
client library, exposing metrics for monitoring performance, errors, and system health.

# Overview

The package provides metrics for:
  - Slate assembly latency, size and degraded sources
  - Two-tier cache hit/miss rates and remote-tier errors
  - The fan-out worker's queue depth and event outcomes
  - Live-update sessions, messages, queue overflows and rate limiting
  - Rate-limit rejections and source circuit breaker state
  - HTTP API request latency and throughput

All metrics are registered on the default Prometheus registry through
promauto when the package is loaded; there is no initialisation call.

# Metrics Endpoint

This package registers no HTTP handler and the API router does not
mount one; serving the default registry (for example at /metrics with
promhttp.Handler()) is left to the program that embeds it.

# Available Metrics

Slate Metrics:
  - slate_assembly_duration_seconds: Assemble duration (histogram)
    Labels: algorithm
  - slate_items_emitted: Items per assembled slate (histogram)
    Buckets: 0, 5, 10, 20, 40, 80, 160
  - source_degraded_total: Adapter errors or timeouts (counter)
    Labels: source

Cache Metrics:
  - cache_hits_total: Cache hits (counter)
    Labels: tier (remote, local)
  - cache_misses_total: Misses across both tiers (counter)
  - cache_remote_errors_total: Remote-tier errors that fell back to local (counter)

Fan-out Metrics:
  - fanout_queue_depth: Buffered events (gauge)
  - fanout_events_processed_total: Events applied (counter)
    Labels: kind
  - fanout_events_dropped_total: Events dropped after retries (counter)
    Labels: kind

Live-update Metrics:
  - live_sessions: Open sessions (gauge)
  - live_messages_sent_total: Messages written (counter)
    Labels: kind (update, heartbeat)
  - live_queue_overflows_total: Drop-oldest evictions (counter)
  - live_rate_limited_total: Sends skipped by the session token bucket (counter)

Rate Limit and Circuit Breaker Metrics:
  - rate_limit_rejections_total: Rejected viewer requests (counter)
    Labels: endpoint
  - circuit_breaker_state: Current state (gauge)
    Labels: name
    Values: 0=closed, 1=half-open, 2=open

API Metrics:
  - api_requests_total: Total API requests (counter)
    Labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram)
    Labels: method, endpoint
    Buckets: .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
  - api_active_requests: Requests in flight (gauge)

Process Metrics:
  - app_info: Version information (gauge)
    Labels: version, go_version
  - app_uptime_seconds: Uptime (gauge)

# Usage Example

	import "github.com/tomtom215/cartographus/internal/metrics"

	metrics.RecordSlateAssembly("hybrid", elapsed, len(items), degradedSources)
	metrics.RecordCacheResult("remote", true)
	metrics.RecordFanoutProcessed("note_created")
	metrics.RecordAPIRequest("GET", "/v1/timeline/v1", "200", elapsed)

HTTP metrics are recorded by internal/middleware.PrometheusMetrics,
which calls TrackActiveRequest around the handler and RecordAPIRequest
after it, with the raw request path as the endpoint label.

# Prometheus Configuration

Example prometheus.yml configuration:

	scrape_configs:
	  - job_name: 'cartographus'
	    static_configs:
	      - targets: ['localhost:8080']
	    metrics_path: '/metrics'
	    scrape_interval: 15s

# Grafana Dashboards

The metrics support Grafana dashboards with panels for:

  - Request rate (queries per second)
  - Request latency (p50, p95, p99 percentiles)
  - Error rate (5xx responses per second by endpoint)
  - Slate assembly duration and degraded sources
  - Fan-out queue depth and dropped events
  - Circuit breaker state visualization
  - Cache hit rate and efficiency

Example PromQL queries:

	# API request rate
	rate(api_requests_total[5m])

	# API p95 latency
	histogram_quantile(0.95, rate(api_request_duration_seconds_bucket[5m]))

	# Slate assembly rate
	rate(slate_assembly_duration_seconds_count[5m])

	# Cache hit rate
	sum(rate(cache_hits_total[5m])) / (sum(rate(cache_hits_total[5m])) + sum(rate(cache_misses_total[5m])))

	# Fan-out events dropped per minute
	rate(fanout_events_dropped_total[1m]) * 60

# Performance Impact

Metrics collection overhead:
  - Counter increment: ~100ns per operation
  - Histogram observation: ~500ns per operation
  - Memory overhead: ~5KB per metric time series
  - Total overhead: <1% CPU, <10MB RAM for typical workloads

# Thread Safety

All metric recording functions are thread-safe and designed for concurrent use
from multiple goroutines. The Prometheus client library handles synchronization
internally.

# Cardinality Management

Label values as recorded:

  - The endpoint label of the API metrics is the raw request path
    (without query parameters); paths are not normalized, so each
    viewer ID in a path yields its own series
  - status_code is the exact status code; codes are not grouped
  - circuit_breaker_state has one series per named breaker

# Alerting Rules

Example Prometheus alerting rules:

	groups:
	  - name: cartographus
	    rules:
	      - alert: HighErrorRate
	        expr: |
	          sum(rate(api_requests_total{status_code=~"5.."}[5m]))
	          /
	          sum(rate(api_requests_total[5m]))
	          > 0.05
	        for: 5m
	        annotations:
	          summary: "High error rate: {{ $value }}%"

	      - alert: SlowSlateAssembly
	        expr: |
	          histogram_quantile(0.95,
	            rate(slate_assembly_duration_seconds_bucket[5m]))
	          > 1
	        for: 5m
	        annotations:
	          summary: "p95 slate assembly latency: {{ $value }}s"

	      - alert: CircuitBreakerOpen
	        expr: circuit_breaker_state == 2
	        for: 2m
	        annotations:
	          summary: "Circuit breaker open for {{ $labels.name }}"

# Debugging

Where the embedding program serves the registry at /metrics:

	# View all registered metrics
	curl http://localhost:8080/metrics | grep "# HELP"

	# Check specific metric
	curl http://localhost:8080/metrics | grep api_requests_total

	# Validate Prometheus format
	curl -s http://localhost:8080/metrics | promtool check metrics

# Best Practices

When adding new metrics:

 1. Use appropriate metric types:
    - Counter: Monotonically increasing values (requests, errors)
    - Gauge: Point-in-time values (connections, queue size)
    - Histogram: Distribution of values (latency, size)

 2. Choose descriptive names:
    - Use underscore separation: http_request_duration_seconds
    - Include units: _seconds, _bytes, _total
    - Follow Prometheus naming conventions

 3. Add helpful documentation:
    - Include HELP text describing the metric
    - Document all label dimensions
    - Specify units in metric name

 4. Minimize cardinality:
    - Avoid high-cardinality labels (user IDs, timestamps)
    - Normalize endpoint paths
    - Use fixed error type constants

 5. Test performance impact:
    - Benchmark metric recording overhead
    - Monitor memory usage with many time series
    - Validate scrape duration <1s

# See Also

  - internal/middleware: HTTP middleware with metrics integration
  - internal/fanout: fan-out worker metrics
  - https://prometheus.io/docs/practices/naming/: Metric naming conventions
  - https://prometheus.io/docs/practices/instrumentation/: Instrumentation guide
*/
package metrics
