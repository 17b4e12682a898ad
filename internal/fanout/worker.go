// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package fanout implements the fan-out worker (C9): at-least-once
// propagation of note and follow-graph write events to affected
// viewers' caches and live-update sessions. Grounded on the teacher's
// internal/supervisor use of thejerf/suture/v4 for restartable
// long-running services — Worker implements suture.Service so it can
// be supervised alongside the rest of the process the same way.
package fanout

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tomtom215/cartographus/internal/cache"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/metrics"
	"github.com/tomtom215/cartographus/internal/sources"
	"github.com/tomtom215/cartographus/internal/timeline/model"
)

// defaultQueueCapacity bounds the worker's event channel when Config
// leaves QueueCapacity unset (spec.md §4.9: "a bounded, concurrent
// queue").
const defaultQueueCapacity = 1024

// defaultMaxAttempts caps how many times a single event's downstream
// effects are retried before the event is dropped, when Config leaves
// MaxAttempts unset.
const defaultMaxAttempts = 5

// defaultRetryInitial and defaultRetryMax bound the exponential backoff
// between retry attempts when Config leaves them unset.
const (
	defaultRetryInitial = 500 * time.Millisecond
	defaultRetryMax     = 60 * time.Second
)

// Config governs queue sizing and retry behavior. A zero value for any
// field falls back to its default, mirroring internal/config.FanoutConfig.
type Config struct {
	QueueCapacity int
	MaxAttempts   int
	RetryInitial  time.Duration
	RetryMax      time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = defaultQueueCapacity
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = defaultRetryInitial
	}
	if c.RetryMax <= 0 {
		c.RetryMax = defaultRetryMax
	}
	return c
}

// LiveUpdater is the narrow interface the worker uses to push a live
// update, satisfied by *live.Hub without importing internal/live
// directly — the worker only needs to publish, never subscribe.
type LiveUpdater interface {
	Publish(viewerID string, update model.LiveUpdate)
}

// Worker drains FanoutEvents from a bounded channel and applies their
// cache-invalidation and live-update side effects. It is at-least-once:
// an event may be redelivered by the producer after a restart, and
// every downstream effect it applies is idempotent, per spec.md §4.9.
type Worker struct {
	events      chan model.FanoutEvent
	cache       cache.Cacher
	followGraph sources.FollowGraph
	live        LiveUpdater
	now         func() time.Time
	cfg         Config
}

// New returns a Worker ready to have events enqueued via Enqueue and
// drained via Serve. A zero Config uses the package defaults.
func New(c cache.Cacher, followGraph sources.FollowGraph, live LiveUpdater, now func() time.Time, cfg Config) *Worker {
	if now == nil {
		now = time.Now
	}
	cfg = cfg.withDefaults()
	return &Worker{
		events:      make(chan model.FanoutEvent, cfg.QueueCapacity),
		cache:       c,
		followGraph: followGraph,
		live:        live,
		now:         now,
		cfg:         cfg,
	}
}

// Enqueue submits an event for processing. It reports false without
// blocking if the queue is full; the producer is expected to retry or
// rely on the next read regenerating the slate via cache miss, per
// spec.md §4.9.
func (w *Worker) Enqueue(event model.FanoutEvent) bool {
	select {
	case w.events <- event:
		metrics.FanoutQueueDepth.Set(float64(len(w.events)))
		return true
	default:
		return false
	}
}

// Serve implements suture.Service: it drains the event queue until ctx
// is canceled.
func (w *Worker) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.events:
			metrics.FanoutQueueDepth.Set(float64(len(w.events)))
			w.process(ctx, event)
		}
	}
}

// String implements suture.Service.
func (w *Worker) String() string {
	return "fanout-worker"
}

// QueueDepth returns the number of events currently buffered, read by
// the façade's HealthCheck endpoint.
func (w *Worker) QueueDepth() int {
	return len(w.events)
}

// process applies one event's downstream effects with retry, dropping
// the event and recording metrics.FanoutEventsDropped on exhaustion.
func (w *Worker) process(ctx context.Context, event model.FanoutEvent) {
	kind := event.Kind.String()

	err := w.retry(ctx, func() error {
		return w.apply(ctx, event)
	})

	if err != nil {
		logging.Warn().Err(err).Str("kind", kind).Str("author_id", event.AuthorID).
			Msg("fan-out event dropped after exhausting retries")
		metrics.RecordFanoutDropped(kind)
		return
	}

	metrics.RecordFanoutProcessed(kind)
}

// apply dispatches to the per-kind fan-out rule, exactly spec.md §4.9.
func (w *Worker) apply(ctx context.Context, event model.FanoutEvent) error {
	switch event.Kind {
	case model.FanoutNoteCreated, model.FanoutNoteUpdated:
		return w.fanOutToFollowers(ctx, event, model.LiveUpdateNewNote)

	case model.FanoutNoteDeleted:
		return w.fanOutToFollowers(ctx, event, model.LiveUpdateDeleteNote)

	case model.FanoutFollowChanged:
		w.cache.InvalidateSlate(ctx, event.FollowerID)
		return nil

	default:
		return nil
	}
}

// fanOutToFollowers lists event.AuthorID's followers, invalidates each
// follower's slate cache, and pushes a live update carrying the note
// (or just its ID, for a deletion) to each follower's open sessions.
func (w *Worker) fanOutToFollowers(ctx context.Context, event model.FanoutEvent, kind model.LiveUpdateKind) error {
	followers, err := w.followGraph.GetFollowers(ctx, event.AuthorID)
	if err != nil {
		return err
	}

	update := model.LiveUpdate{Kind: kind, EmittedAt: w.now()}
	if event.Note != nil {
		update.Note = event.Note
		update.NoteID = event.Note.ID
	}

	for _, followerID := range followers {
		w.cache.InvalidateSlate(ctx, followerID)
		if w.live != nil {
			w.live.Publish(followerID, update)
		}
	}
	return nil
}

// retry runs fn with exponential backoff up to cfg.MaxAttempts attempts,
// honoring ctx cancellation between attempts.
func (w *Worker) retry(ctx context.Context, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = w.cfg.RetryInitial
	eb.MaxInterval = w.cfg.RetryMax
	// WithMaxRetries counts retries after the first call, so MaxAttempts-1
	// retries give MaxAttempts calls in total.
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(w.cfg.MaxAttempts-1)), ctx)
	return backoff.Retry(fn, policy)
}
