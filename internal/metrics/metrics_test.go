// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSlateAssembly(t *testing.T) {
	tests := []struct {
		name            string
		algorithm       string
		duration        time.Duration
		itemCount       int
		degradedSources []string
	}{
		{"ranked with full item count", "ranked", 50 * time.Millisecond, 20, nil},
		{"chronological", "chronological", 5 * time.Millisecond, 10, nil},
		{"one source degraded", "ranked", 75 * time.Millisecond, 8, []string{"trending"}},
		{"all sources degraded", "ranked", 10 * time.Millisecond, 0, []string{"following", "recommended", "trending", "lists"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordSlateAssembly(tt.algorithm, tt.duration, tt.itemCount, tt.degradedSources)
		})
	}
}

func TestRecordCacheResult(t *testing.T) {
	before := testutil.ToFloat64(CacheMisses)
	RecordCacheResult("remote", false)
	if got := testutil.ToFloat64(CacheMisses); got != before+1 {
		t.Errorf("CacheMisses = %v, want %v", got, before+1)
	}

	RecordCacheResult("remote", true)
	RecordCacheResult("local", true)
	if got := testutil.ToFloat64(CacheHits.WithLabelValues("remote")); got < 1 {
		t.Errorf("CacheHits{remote} = %v, want >= 1", got)
	}
	if got := testutil.ToFloat64(CacheHits.WithLabelValues("local")); got < 1 {
		t.Errorf("CacheHits{local} = %v, want >= 1", got)
	}
}

func TestRecordFanoutProcessedAndDropped(t *testing.T) {
	kinds := []string{"note_created", "note_deleted", "follow_changed"}

	for _, kind := range kinds {
		t.Run(kind, func(t *testing.T) {
			before := testutil.ToFloat64(FanoutEventsProcessed.WithLabelValues(kind))
			RecordFanoutProcessed(kind)
			if got := testutil.ToFloat64(FanoutEventsProcessed.WithLabelValues(kind)); got != before+1 {
				t.Errorf("FanoutEventsProcessed{%s} = %v, want %v", kind, got, before+1)
			}

			beforeDropped := testutil.ToFloat64(FanoutEventsDropped.WithLabelValues(kind))
			RecordFanoutDropped(kind)
			if got := testutil.ToFloat64(FanoutEventsDropped.WithLabelValues(kind)); got != beforeDropped+1 {
				t.Errorf("FanoutEventsDropped{%s} = %v, want %v", kind, got, beforeDropped+1)
			}
		})
	}
}

func TestRecordAPIRequest(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		endpoint   string
		statusCode string
		duration   time.Duration
	}{
		{"successful GET timeline", "GET", "/v1/timeline", "200", 25 * time.Millisecond},
		{"successful POST engagement", "POST", "/v1/engagement", "200", 5 * time.Millisecond},
		{"unauthorized request", "GET", "/v1/timeline", "401", 2 * time.Millisecond},
		{"not found request", "GET", "/v1/unknown", "404", 1 * time.Millisecond},
		{"internal server error", "POST", "/v1/engagement", "500", 100 * time.Millisecond},
		{"rate limited request", "GET", "/v1/timeline", "429", 1 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordAPIRequest(tt.method, tt.endpoint, tt.statusCode, tt.duration)
		})
	}
}

func TestLiveAndFanoutGauges(t *testing.T) {
	FanoutQueueDepth.Set(0)
	FanoutQueueDepth.Inc()
	FanoutQueueDepth.Set(10)
	FanoutQueueDepth.Dec()

	LiveSessions.Set(0)
	LiveSessions.Inc()
	LiveSessions.Dec()

	LiveMessagesSent.WithLabelValues("update").Inc()
	LiveMessagesSent.WithLabelValues("heartbeat").Inc()
	LiveQueueOverflows.Inc()
	LiveRateLimited.Inc()
}

func TestRateLimitRejections(t *testing.T) {
	endpoints := []string{"/v1/timeline", "/v1/engagement", "/v1/live"}
	for _, endpoint := range endpoints {
		before := testutil.ToFloat64(RateLimitRejections.WithLabelValues(endpoint))
		RateLimitRejections.WithLabelValues(endpoint).Inc()
		if got := testutil.ToFloat64(RateLimitRejections.WithLabelValues(endpoint)); got != before+1 {
			t.Errorf("RateLimitRejections{%s} = %v, want %v", endpoint, got, before+1)
		}
	}
}

func TestCircuitBreakerState(t *testing.T) {
	name := "trending"
	CircuitBreakerState.WithLabelValues(name).Set(0) // closed
	CircuitBreakerState.WithLabelValues(name).Set(2) // open
	CircuitBreakerState.WithLabelValues(name).Set(1) // half-open
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("APIActiveRequests = %v, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("APIActiveRequests = %v, want %v", got, before)
	}
}

func TestAppMetrics(t *testing.T) {
	AppInfo.WithLabelValues("1.0.0", "go1.25.5").Set(1)
	AppUptime.Set(3600)
	AppUptime.Add(60)
}

func TestConcurrentMetricRecording(t *testing.T) {
	var wg sync.WaitGroup
	numGoroutines := 50
	operationsPerGoroutine := 20

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < operationsPerGoroutine; j++ {
				RecordCacheResult("remote", j%2 == 0)
				RecordFanoutProcessed("note_created")
				RecordAPIRequest("GET", "/v1/timeline", "200", time.Duration(j)*time.Millisecond)
			}
		}()
	}
	wg.Wait()
}

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		SlateAssemblyDuration,
		SlateItemsEmitted,
		SourceDegraded,
		CacheHits,
		CacheMisses,
		CacheRemoteErrors,
		FanoutQueueDepth,
		FanoutEventsProcessed,
		FanoutEventsDropped,
		LiveSessions,
		LiveMessagesSent,
		LiveQueueOverflows,
		LiveRateLimited,
		RateLimitRejections,
		CircuitBreakerState,
		APIRequestsTotal,
		APIRequestDuration,
		APIActiveRequests,
		AppInfo,
		AppUptime,
	}

	for _, c := range collectors {
		ch := make(chan *prometheus.Desc, 10)
		c.Describe(ch)
		close(ch)

		count := 0
		for range ch {
			count++
		}
		if count == 0 {
			t.Errorf("metric has no descriptors")
		}
	}
}

func BenchmarkRecordCacheResult(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordCacheResult("remote", i%2 == 0)
	}
}

func BenchmarkRecordAPIRequest(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordAPIRequest("GET", "/v1/timeline", "200", 25*time.Millisecond)
	}
}
