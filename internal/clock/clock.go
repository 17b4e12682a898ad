// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package clock provides an injectable time source and opaque ID
// generation (C1). Every other component reads "now" through a Clock
// rather than calling time.Now() directly, so ranking, cache TTL, and
// rate-limit tests can run against a FakeClock with deterministic,
// advanceable time.
package clock

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock is an injectable source of wall-clock and monotonic time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Since returns the elapsed duration since t.
	Since(t time.Time) time.Duration
}

// RealClock is a Clock backed by the system clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time { return time.Now() }

// Since returns time.Since(t).
func (RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

// FakeClock is a Clock whose value is only advanced explicitly, for
// deterministic tests of TTL expiry, recency decay, and rate-limit
// refill.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a FakeClock fixed at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

// Now returns the clock's current fixed time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since returns the elapsed duration between t and the clock's current
// fixed time.
func (c *FakeClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Advance moves the fake clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set pins the fake clock to an exact time.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// IDGenerator produces opaque unique identifiers for SlateItems and
// StreamSessions, replacing an incrementing counter with a uuid so IDs
// carry no ordering or cardinality information across restarts.
type IDGenerator struct{}

// NewIDGenerator returns an IDGenerator.
func NewIDGenerator() IDGenerator {
	return IDGenerator{}
}

// NewID returns a new opaque identifier.
func (IDGenerator) NewID() string {
	return uuid.NewString()
}
