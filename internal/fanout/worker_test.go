// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/cartographus/internal/cache"
	"github.com/tomtom215/cartographus/internal/metrics"
	"github.com/tomtom215/cartographus/internal/timeline/model"
)

type fakeCache struct {
	mu        sync.Mutex
	invalided []string
}

func (c *fakeCache) GetSlate(context.Context, string) (model.Slate, bool) { return model.Slate{}, false }
func (c *fakeCache) SetSlate(context.Context, string, model.Slate, time.Duration) {}
func (c *fakeCache) InvalidateSlate(_ context.Context, viewerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalided = append(c.invalided, viewerID)
}
func (c *fakeCache) InvalidateAuthorSlates(context.Context, string) {}
func (c *fakeCache) GetProfile(context.Context, string) (model.EngagementProfile, bool) {
	return model.EngagementProfile{}, false
}
func (c *fakeCache) SetProfile(context.Context, string, model.EngagementProfile, time.Duration) {}
func (c *fakeCache) GetLastRead(context.Context, string) (time.Time, bool) { return time.Time{}, false }
func (c *fakeCache) SetLastRead(context.Context, string, time.Time)        {}
func (c *fakeCache) GetFollowSet(context.Context, string) ([]string, bool) { return nil, false }
func (c *fakeCache) SetFollowSet(context.Context, string, []string, time.Duration) {}
func (c *fakeCache) Stats() cache.Stats                                           { return cache.Stats{} }

func (c *fakeCache) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.invalided))
	copy(out, c.invalided)
	return out
}

type fakeFollowGraph struct {
	followers []string
	err       error
}

func (f fakeFollowGraph) GetFollowing(context.Context, string) ([]string, error) { return nil, nil }
func (f fakeFollowGraph) GetFollowers(_ context.Context, _ string) ([]string, error) {
	return f.followers, f.err
}

type fakeLiveUpdater struct {
	mu      sync.Mutex
	updates map[string][]model.LiveUpdate
}

func newFakeLiveUpdater() *fakeLiveUpdater {
	return &fakeLiveUpdater{updates: make(map[string][]model.LiveUpdate)}
}

func (l *fakeLiveUpdater) Publish(viewerID string, update model.LiveUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates[viewerID] = append(l.updates[viewerID], update)
}

func (l *fakeLiveUpdater) countFor(viewerID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.updates[viewerID])
}

func fixedNow() time.Time { return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC) }

func TestWorkerNoteCreatedFansOutToFollowers(t *testing.T) {
	c := &fakeCache{}
	live := newFakeLiveUpdater()
	w := New(c, fakeFollowGraph{followers: []string{"f1", "f2"}}, live, fixedNow, Config{})

	note := model.Note{ID: "n1", AuthorID: "a1"}
	w.apply(context.Background(), model.FanoutEvent{Kind: model.FanoutNoteCreated, AuthorID: "a1", Note: &note})

	if got := c.snapshot(); len(got) != 2 {
		t.Fatalf("invalidated = %v, want 2 entries", got)
	}
	if live.countFor("f1") != 1 || live.countFor("f2") != 1 {
		t.Errorf("expected both followers to receive one update")
	}
}

func TestWorkerNoteDeletedSendsDeleteMarker(t *testing.T) {
	c := &fakeCache{}
	live := newFakeLiveUpdater()
	w := New(c, fakeFollowGraph{followers: []string{"f1"}}, live, fixedNow, Config{})

	note := model.Note{ID: "n1", AuthorID: "a1"}
	w.apply(context.Background(), model.FanoutEvent{Kind: model.FanoutNoteDeleted, AuthorID: "a1", Note: &note})

	live.mu.Lock()
	updates := live.updates["f1"]
	live.mu.Unlock()

	if len(updates) != 1 || updates[0].Kind != model.LiveUpdateDeleteNote {
		t.Fatalf("updates = %+v, want one delete-marker update", updates)
	}
}

func TestWorkerFollowChangedOnlyInvalidatesFollower(t *testing.T) {
	c := &fakeCache{}
	live := newFakeLiveUpdater()
	w := New(c, fakeFollowGraph{}, live, fixedNow, Config{})

	w.apply(context.Background(), model.FanoutEvent{Kind: model.FanoutFollowChanged, FollowerID: "v1", FollowingID: "a1"})

	if got := c.snapshot(); len(got) != 1 || got[0] != "v1" {
		t.Fatalf("invalidated = %v, want [v1]", got)
	}
	if live.countFor("v1") != 0 {
		t.Error("FollowChanged should not push a live update")
	}
}

func TestWorkerDropsEventAfterRetryExhaustion(t *testing.T) {
	c := &fakeCache{}
	w := New(c, fakeFollowGraph{err: errors.New("follow graph unavailable")}, nil, fixedNow, Config{})

	kind := model.FanoutNoteCreated.String()
	before := testutil.ToFloat64(metrics.FanoutEventsDropped.WithLabelValues(kind))
	w.process(context.Background(), model.FanoutEvent{Kind: model.FanoutNoteCreated, AuthorID: "a1"})
	after := testutil.ToFloat64(metrics.FanoutEventsDropped.WithLabelValues(kind))

	if after <= before {
		t.Errorf("expected FanoutEventsDropped to increment, before=%v after=%v", before, after)
	}
}

func TestWorkerEnqueueRespectsCapacity(t *testing.T) {
	c := &fakeCache{}
	w := New(c, fakeFollowGraph{}, nil, fixedNow, Config{})

	accepted := 0
	for i := 0; i < defaultQueueCapacity+10; i++ {
		if w.Enqueue(model.FanoutEvent{Kind: model.FanoutFollowChanged, FollowerID: "v1"}) {
			accepted++
		}
	}
	if accepted != defaultQueueCapacity {
		t.Errorf("accepted = %d, want %d", accepted, defaultQueueCapacity)
	}
}

func TestWorkerServeDrainsUntilContextCanceled(t *testing.T) {
	c := &fakeCache{}
	w := New(c, fakeFollowGraph{}, nil, fixedNow, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Serve(ctx) }()

	w.Enqueue(model.FanoutEvent{Kind: model.FanoutFollowChanged, FollowerID: "v1"})

	waitUntil(t, time.Second, func() bool { return len(c.snapshot()) == 1 })

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
