// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package ratelimit provides the per-viewer token bucket rate limiter
// (C2). A single Limiter protects a map of buckets keyed by
// "<viewer_id>:<endpoint_class>" with one mutex; it never blocks on I/O
// and issues an immediate allow/deny decision per call.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter is a per-key token bucket rate limiter. The zero value is not
// usable; construct with New.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	rpm      int
	burst    int
}

// New returns a Limiter whose buckets default to rpm requests per
// minute with the given burst capacity, refilled lazily on access.
func New(rpm, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rpm:     rpm,
		burst:   burst,
	}
}

// Allow reports whether a request for key is admitted, deducting one
// token on success. If overrideRPM is non-zero it replaces the bucket's
// configured rate for this call only; bucket state still persists
// across calls under the same key.
func (l *Limiter) Allow(key string, overrideRPM int) bool {
	b := l.bucketFor(key, overrideRPM)
	return b.Allow()
}

// bucketFor returns the rate.Limiter for key, creating it with the
// default (or overridden) rate on first access, and applying any
// overridden rate to an existing bucket before the call.
func (l *Limiter) bucketFor(key string, overrideRPM int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	rpm := l.rpm
	if overrideRPM > 0 {
		rpm = overrideRPM
	}

	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(ratePerSecond(rpm), l.burst)
		l.buckets[key] = b
		return b
	}

	if overrideRPM > 0 {
		b.SetLimit(ratePerSecond(overrideRPM))
	}
	return b
}

// ratePerSecond converts a requests-per-minute figure to the
// golang.org/x/time/rate.Limit unit (events per second).
func ratePerSecond(rpm int) rate.Limit {
	return rate.Limit(float64(rpm) / 60.0)
}

// Reset removes the bucket for key, if any, reverting it to a fresh
// bucket on next access. Used by tests and by preference updates that
// change a viewer's configured rate.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Len returns the number of tracked buckets, used by diagnostics and
// tests.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
