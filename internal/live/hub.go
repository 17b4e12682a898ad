// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package live implements the live-update hub (C10): per-viewer
// fan-out of model.LiveUpdate messages to open subscriber sessions.
// Unlike the teacher's websocket.Hub, which guards one global client
// map with a single mutex for indiscriminate broadcast, this hub keys
// on viewer ID and locks per viewer, since a publish only ever touches
// one viewer's sessions and must not contend with unrelated viewers'
// subscribe/unsubscribe traffic.
package live

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/metrics"
	"github.com/tomtom215/cartographus/internal/ratelimit"
	"github.com/tomtom215/cartographus/internal/timeline/model"
)

const (
	// defaultMaxPending bounds each session's undelivered-update queue
	// when Config leaves PendingQueueSize unset. Once full, the oldest
	// pending update is dropped to make room.
	defaultMaxPending = 256

	// pollInterval is how often an idle session checks whether it owes
	// its connection a heartbeat.
	pollInterval = 500 * time.Millisecond

	// defaultHeartbeatIdleAfter is how long a session may go without a
	// delivered update before it sends a heartbeat, when Config leaves
	// HeartbeatWait unset.
	defaultHeartbeatIdleAfter = 20 * time.Second

	// defaultSessionRateLimitPerSec bounds how many updates a single
	// session may receive per second, independent of the viewer-level
	// API rate limit enforced by C2, when Config leaves MaxMsgsPerSec
	// unset.
	defaultSessionRateLimitPerSec = 2
)

// Config governs per-session queue sizing, rate limiting, and
// heartbeat timing, mirroring internal/config.LiveConfig and the
// zero-value-falls-back-to-default shape of fanout.Config. A zero
// Config reproduces the hub's historical hardcoded defaults.
type Config struct {
	// PendingQueueSize bounds each session's undelivered-update queue.
	PendingQueueSize int
	// MaxMsgsPerSec bounds how many updates a single session may
	// receive per second (heartbeats are exempt, per deliver).
	MaxMsgsPerSec int
	// HeartbeatWait is how long a session may go without a delivered
	// update before it sends a heartbeat.
	HeartbeatWait time.Duration
	// IdleTimeout is unused by Hub directly; carried here so callers
	// that need the viewer-idle-disconnect window configured alongside
	// HeartbeatWait (spec.md §4.10) have one Config to read both from.
	IdleTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PendingQueueSize <= 0 {
		c.PendingQueueSize = defaultMaxPending
	}
	if c.MaxMsgsPerSec <= 0 {
		c.MaxMsgsPerSec = defaultSessionRateLimitPerSec
	}
	if c.HeartbeatWait <= 0 {
		c.HeartbeatWait = defaultHeartbeatIdleAfter
	}
	return c
}

// Conn is the narrow transport interface a Session writes to. Concrete
// implementations (internal/transport/wsstream) adapt it onto a real
// WebSocket connection.
type Conn interface {
	WriteUpdate(ctx context.Context, update model.LiveUpdate) error
	Close() error
}

// bucket holds one viewer's open sessions behind its own mutex, so
// publishing to viewer A never blocks a subscribe/unsubscribe for
// viewer B.
type bucket struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
}

// Hub fans out live updates to per-viewer subscriber sessions.
type Hub struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limiter *ratelimit.Limiter
	cfg     Config
}

// NewHub returns an empty Hub configured by cfg. Each session is
// individually rate limited via an internal ratelimit.Limiter at
// cfg.MaxMsgsPerSec. A zero Config falls back to the hub's defaults.
func NewHub(cfg Config) *Hub {
	cfg = cfg.withDefaults()
	rpm := cfg.MaxMsgsPerSec * 60
	return &Hub{
		buckets: make(map[string]*bucket),
		limiter: ratelimit.New(rpm, cfg.MaxMsgsPerSec),
		cfg:     cfg,
	}
}

// Subscribe registers conn as an open session for viewerID and starts
// its delivery loop. The returned Session must be closed by the caller
// (typically when the underlying transport connection closes) via
// Unsubscribe.
func (h *Hub) Subscribe(ctx context.Context, viewerID string, conn Conn) *Session {
	s := &Session{
		id:            sessionIDFor(),
		viewerID:      viewerID,
		conn:          conn,
		signal:        make(chan struct{}, 1),
		limiter:       h.limiter,
		maxPending:    h.cfg.PendingQueueSize,
		heartbeatWait: h.cfg.HeartbeatWait,
	}

	b := h.bucketFor(viewerID)
	b.mu.Lock()
	b.sessions[s] = struct{}{}
	b.mu.Unlock()

	metrics.LiveSessions.Inc()
	go s.run(ctx, h, viewerID)

	return s
}

// Unsubscribe removes a session from its viewer's bucket and closes its
// connection. Safe to call more than once.
func (h *Hub) Unsubscribe(viewerID string, s *Session) {
	b := h.bucketFor(viewerID)
	b.mu.Lock()
	_, existed := b.sessions[s]
	delete(b.sessions, s)
	b.mu.Unlock()

	if !existed {
		return
	}
	s.close()
	metrics.LiveSessions.Dec()
}

// Publish enqueues update on every open session for viewerID. A session
// whose queue is full drops its oldest pending update to make room —
// subscribers are expected to tolerate gaps, not to see a frozen feed.
func (h *Hub) Publish(viewerID string, update model.LiveUpdate) {
	b := h.bucketFor(viewerID)
	b.mu.Lock()
	defer b.mu.Unlock()

	for s := range b.sessions {
		s.enqueue(update)
	}
}

// SessionCount returns the number of open sessions for viewerID, used
// by tests and diagnostics.
func (h *Hub) SessionCount(viewerID string) int {
	b := h.bucketFor(viewerID)
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

func (h *Hub) bucketFor(viewerID string) *bucket {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.buckets[viewerID]
	if !ok {
		b = &bucket{sessions: make(map[*Session]struct{})}
		h.buckets[viewerID] = b
	}
	return b
}

var sessionIDCounter atomic.Uint64

func sessionIDFor() uint64 {
	return sessionIDCounter.Add(1)
}

// Session is one subscriber's live-update delivery state: a bounded
// pending queue drained by a dedicated goroutine into conn, with
// heartbeats sent during idle periods.
type Session struct {
	id            uint64
	viewerID      string
	conn          Conn
	limiter       *ratelimit.Limiter
	maxPending    int
	heartbeatWait time.Duration

	mu     sync.Mutex
	queue  []model.LiveUpdate
	closed bool

	signal chan struct{}
}

// enqueue appends update to the session's pending queue, dropping the
// oldest entry if the queue is already at capacity.
func (s *Session) enqueue(update model.LiveUpdate) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= s.maxPending {
		s.queue = s.queue[1:]
		metrics.LiveQueueOverflows.Inc()
	}
	s.queue = append(s.queue, update)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Session) dequeue() (model.LiveUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return model.LiveUpdate{}, false
	}
	u := s.queue[0]
	s.queue = s.queue[1:]
	return u, true
}

func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	_ = s.conn.Close()
}

// run is the session's cooperative delivery loop: it wakes on enqueue
// and on a fixed poll tick, draining the pending queue and sending a
// heartbeat when the session has gone quiet.
func (s *Session) run(ctx context.Context, h *Hub, viewerID string) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	lastDelivery := time.Now()

	for {
		select {
		case <-ctx.Done():
			h.Unsubscribe(viewerID, s)
			return

		case <-s.signal:
			for {
				update, ok := s.dequeue()
				if !ok {
					break
				}
				if !s.deliver(ctx, update) {
					h.Unsubscribe(viewerID, s)
					return
				}
				lastDelivery = time.Now()
			}

		case now := <-ticker.C:
			if now.Sub(lastDelivery) < s.heartbeatWait {
				continue
			}
			if !s.deliver(ctx, model.LiveUpdate{Kind: model.LiveUpdateHeartbeat, EmittedAt: now}) {
				h.Unsubscribe(viewerID, s)
				return
			}
			lastDelivery = now
		}
	}
}

// deliver writes update to the session's connection, rate limited per
// session. Heartbeats bypass the limiter: they must always get through
// so a client can tell an exhausted-rate-limit session apart from a
// dead one. It reports false if the write failed and the session
// should be torn down.
func (s *Session) deliver(ctx context.Context, update model.LiveUpdate) bool {
	if update.Kind != model.LiveUpdateHeartbeat {
		key := sessionRateLimitKey(s.id)
		if !s.limiter.Allow(key, 0) {
			metrics.LiveRateLimited.Inc()
			return true
		}
	}

	if err := s.conn.WriteUpdate(ctx, update); err != nil {
		logging.Warn().Err(err).Uint64("session_id", s.id).Msg("live session write failed, closing")
		return false
	}
	metrics.LiveMessagesSent.WithLabelValues(update.Kind.String()).Inc()
	return true
}

func sessionRateLimitKey(id uint64) string {
	return "live-session:" + strconv.FormatUint(id, 10)
}
