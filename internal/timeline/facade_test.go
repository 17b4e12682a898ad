// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package timeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/cartographus/internal/cache"
	"github.com/tomtom215/cartographus/internal/clock"
	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/fanout"
	"github.com/tomtom215/cartographus/internal/timeline/model"
	"github.com/tomtom215/cartographus/internal/timelineerr"
)

type stubAssembler struct {
	slate model.Slate
}

func (s stubAssembler) Assemble(context.Context, string, model.EffectiveConfig, model.EngagementProfile) model.Slate {
	return s.slate
}

type memCache struct {
	mu        sync.Mutex
	slates    map[string]model.Slate
	profiles  map[string]model.EngagementProfile
	lastRead  map[string]time.Time
	followSet map[string][]string
}

func newMemCache() *memCache {
	return &memCache{
		slates:    make(map[string]model.Slate),
		profiles:  make(map[string]model.EngagementProfile),
		lastRead:  make(map[string]time.Time),
		followSet: make(map[string][]string),
	}
}

func (c *memCache) GetSlate(_ context.Context, viewerID string) (model.Slate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slates[viewerID]
	return s, ok
}

func (c *memCache) SetSlate(_ context.Context, viewerID string, slate model.Slate, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slates[viewerID] = slate
}

func (c *memCache) InvalidateSlate(_ context.Context, viewerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.slates, viewerID)
}

func (c *memCache) InvalidateAuthorSlates(context.Context, string) {}

func (c *memCache) GetProfile(_ context.Context, viewerID string) (model.EngagementProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.profiles[viewerID]
	return p, ok
}

func (c *memCache) SetProfile(_ context.Context, viewerID string, profile model.EngagementProfile, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[viewerID] = profile
}

func (c *memCache) GetLastRead(_ context.Context, viewerID string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.lastRead[viewerID]
	return t, ok
}

func (c *memCache) SetLastRead(_ context.Context, viewerID string, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRead[viewerID] = t
}

func (c *memCache) GetFollowSet(_ context.Context, key string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.followSet[key]
	return s, ok
}

func (c *memCache) SetFollowSet(_ context.Context, key string, authorIDs []string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.followSet[key] = authorIDs
}

func (c *memCache) Stats() cache.Stats { return cache.Stats{} }

type stubFollowGraph struct {
	following map[string][]string
}

func (g stubFollowGraph) GetFollowing(_ context.Context, viewerID string) ([]string, error) {
	return g.following[viewerID], nil
}
func (g stubFollowGraph) GetFollowers(context.Context, string) ([]string, error) { return nil, nil }

type stubNoteService struct {
	byAuthor []model.Note
}

func (s stubNoteService) GetRecentByAuthors(context.Context, []string, time.Time, int) ([]model.Note, error) {
	return s.byAuthor, nil
}
func (s stubNoteService) GetRecentByInterests(context.Context, []string, time.Time, int) ([]model.Note, error) {
	return nil, nil
}
func (s stubNoteService) GetTrending(context.Context, time.Time, int) ([]model.Note, error) {
	return nil, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Slate.MaxItems = 50
	cfg.Slate.MinScore = 0
	cfg.Cache.SlateTTL = time.Minute
	cfg.Cache.ProfileTTL = time.Hour
	cfg.Ranking.WeightRecency = 0.2
	cfg.Ranking.WeightEngagement = 0.2
	cfg.Ranking.WeightAffinity = 0.2
	cfg.Ranking.WeightQuality = 0.2
	cfg.Ranking.WeightPersonal = 0.2
	return cfg
}

func newTestFacade(slate model.Slate, c *memCache) *Facade {
	return New(testConfig(), stubAssembler{slate: slate}, c, stubFollowGraph{}, stubNoteService{}, nil, nil, nil, nil, nil, clock.NewFakeClock(time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)))
}

func sampleSlate(n int) model.Slate {
	items := make([]model.SlateItem, n)
	for i := 0; i < n; i++ {
		items[i] = model.SlateItem{
			Note:       model.Note{ID: "n" + string(rune('0'+i)), AuthorID: "a1", CreatedAt: time.Date(2026, 7, 30, 11, 0, 0, 0, time.UTC)},
			FinalScore: float64(n - i),
		}
	}
	return model.Slate{ViewerID: "v1", Items: items, GeneratedAt: time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)}
}

func intPtr(v int) *int { return &v }

func TestGetTimelineUnauthorizedWhenCallerMismatched(t *testing.T) {
	f := newTestFacade(sampleSlate(3), newMemCache())
	_, err := f.GetTimeline(context.Background(), RequestMetadata{CallerID: "other"}, "v1", Pagination{})
	if !timelineerr.Is(err, timelineerr.KindUnauthorized) {
		t.Fatalf("err = %v, want Unauthorized", err)
	}
}

func TestGetTimelineAdminBypassesMismatch(t *testing.T) {
	f := newTestFacade(sampleSlate(3), newMemCache())
	page, err := f.GetTimeline(context.Background(), RequestMetadata{CallerID: "other", Admin: true}, "v1", Pagination{})
	if err != nil {
		t.Fatalf("GetTimeline() error = %v", err)
	}
	if len(page.Items) != 3 {
		t.Errorf("len(Items) = %d, want 3", len(page.Items))
	}
}

func TestGetTimelineAuthTokenMismatch(t *testing.T) {
	cfg := testConfig()
	cfg.Security.AuthToken = "secret"
	f := New(cfg, stubAssembler{slate: sampleSlate(1)}, newMemCache(), stubFollowGraph{}, stubNoteService{}, nil, nil, nil, nil, nil, nil)
	_, err := f.GetTimeline(context.Background(), RequestMetadata{AuthToken: "wrong"}, "v1", Pagination{})
	if !timelineerr.Is(err, timelineerr.KindUnauthorized) {
		t.Fatalf("err = %v, want Unauthorized", err)
	}
}

func TestGetTimelinePagination(t *testing.T) {
	f := newTestFacade(sampleSlate(10), newMemCache())
	page, err := f.GetTimeline(context.Background(), RequestMetadata{}, "v1", Pagination{Offset: 5, Limit: intPtr(3)})
	if err != nil {
		t.Fatalf("GetTimeline() error = %v", err)
	}
	if len(page.Items) != 3 || page.Offset != 5 || !page.HasNext {
		t.Errorf("page = %+v, want 3 items at offset 5 with has_next", page)
	}
}

func TestGetTimelineExplicitZeroLimitReturnsEmptyPage(t *testing.T) {
	f := newTestFacade(sampleSlate(10), newMemCache())
	page, err := f.GetTimeline(context.Background(), RequestMetadata{}, "v1", Pagination{Limit: intPtr(0)})
	if err != nil {
		t.Fatalf("GetTimeline() error = %v", err)
	}
	if len(page.Items) != 0 || page.HasNext {
		t.Errorf("page = %+v, want empty page with no next for explicit limit=0", page)
	}
}

func TestGetTimelineUnsetLimitAppliesDefault(t *testing.T) {
	f := newTestFacade(sampleSlate(30), newMemCache())
	page, err := f.GetTimeline(context.Background(), RequestMetadata{}, "v1", Pagination{})
	if err != nil {
		t.Fatalf("GetTimeline() error = %v", err)
	}
	if len(page.Items) != defaultLimit {
		t.Errorf("len(Items) = %d, want defaultLimit %d for unset limit", len(page.Items), defaultLimit)
	}
}

func TestGetTimelineOffsetClampedToLength(t *testing.T) {
	f := newTestFacade(sampleSlate(3), newMemCache())
	page, err := f.GetTimeline(context.Background(), RequestMetadata{}, "v1", Pagination{Offset: 100})
	if err != nil {
		t.Fatalf("GetTimeline() error = %v", err)
	}
	if len(page.Items) != 0 || page.HasNext {
		t.Errorf("page = %+v, want empty page with no next", page)
	}
}

func TestRecordEngagementAppliesAffinityDelta(t *testing.T) {
	c := newMemCache()
	f := newTestFacade(sampleSlate(1), c)
	c.SetSlate(context.Background(), "v1", sampleSlate(1), time.Minute)

	if err := f.RecordEngagement(context.Background(), RequestMetadata{}, "v1", "n0", model.EngagementFollow, 3.5); err != nil {
		t.Fatalf("RecordEngagement() error = %v", err)
	}

	profile, ok := c.GetProfile(context.Background(), "v1")
	if !ok {
		t.Fatal("profile not persisted")
	}
	if got := profile.AuthorAffinity["a1"]; got != 0.30 {
		t.Errorf("AuthorAffinity[a1] = %v, want 0.30", got)
	}
}

func TestRecordEngagementClampsAtOne(t *testing.T) {
	c := newMemCache()
	f := newTestFacade(sampleSlate(1), c)
	c.SetSlate(context.Background(), "v1", sampleSlate(1), time.Minute)
	c.SetProfile(context.Background(), "v1", model.EngagementProfile{
		ViewerID:       "v1",
		AuthorAffinity: map[string]float64{"a1": 0.9},
	}, time.Minute)

	if err := f.RecordEngagement(context.Background(), RequestMetadata{}, "v1", "n0", model.EngagementFollow, 0); err != nil {
		t.Fatalf("RecordEngagement() error = %v", err)
	}

	profile, _ := c.GetProfile(context.Background(), "v1")
	if got := profile.AuthorAffinity["a1"]; got != 1 {
		t.Errorf("AuthorAffinity[a1] = %v, want clamped to 1", got)
	}
}

func TestUpdateAndGetPreferencesRoundTrip(t *testing.T) {
	c := newMemCache()
	f := newTestFacade(sampleSlate(1), c)
	prefs := model.TimelinePreferences{MaxItems: 42, Algorithm: model.AlgorithmRanked}

	if err := f.UpdatePreferences(context.Background(), RequestMetadata{}, "v1", prefs); err != nil {
		t.Fatalf("UpdatePreferences() error = %v", err)
	}

	got, err := f.GetPreferences(context.Background(), RequestMetadata{}, "v1")
	if err != nil {
		t.Fatalf("GetPreferences() error = %v", err)
	}
	if got.MaxItems != 42 || got.Algorithm != model.AlgorithmRanked {
		t.Errorf("GetPreferences() = %+v, want MaxItems=42 Algorithm=ranked", got)
	}
}

func TestMarkTimelineReadPersistsWatermark(t *testing.T) {
	c := newMemCache()
	f := newTestFacade(sampleSlate(1), c)
	readUntil := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)

	if err := f.MarkTimelineRead(context.Background(), RequestMetadata{}, "v1", readUntil); err != nil {
		t.Fatalf("MarkTimelineRead() error = %v", err)
	}

	got, ok := c.GetLastRead(context.Background(), "v1")
	if !ok || !got.Equal(readUntil) {
		t.Errorf("GetLastRead() = %v, %v; want %v, true", got, ok, readUntil)
	}
}

func TestGetUserTimelineFiltersPrivateNotes(t *testing.T) {
	notes := []model.Note{
		{ID: "pub", AuthorID: "target", Visibility: model.VisibilityPublic, CreatedAt: time.Now()},
		{ID: "priv", AuthorID: "target", Visibility: model.VisibilityPrivate, CreatedAt: time.Now()},
	}
	c := newMemCache()
	cfg := testConfig()
	f := New(cfg, stubAssembler{}, c, stubFollowGraph{}, stubNoteService{byAuthor: notes}, nil, nil, nil, nil, nil, nil)

	page, err := f.GetUserTimeline(context.Background(), RequestMetadata{}, "target", "requester", Pagination{}, true, true)
	if err != nil {
		t.Fatalf("GetUserTimeline() error = %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Note.ID != "pub" {
		t.Errorf("page.Items = %+v, want only the public note", page.Items)
	}
}

func TestGetUserTimelineAllowsFollowersOnlyForFollower(t *testing.T) {
	notes := []model.Note{
		{ID: "fo", AuthorID: "target", Visibility: model.VisibilityFollowersOnly, CreatedAt: time.Now()},
	}
	c := newMemCache()
	graph := stubFollowGraph{following: map[string][]string{"requester": {"target"}}}
	f := New(testConfig(), stubAssembler{}, c, graph, stubNoteService{byAuthor: notes}, nil, nil, nil, nil, nil, nil)

	page, err := f.GetUserTimeline(context.Background(), RequestMetadata{}, "target", "requester", Pagination{}, true, true)
	if err != nil {
		t.Fatalf("GetUserTimeline() error = %v", err)
	}
	if len(page.Items) != 1 {
		t.Errorf("len(Items) = %d, want 1 (follower can see followers-only note)", len(page.Items))
	}
}

func TestNotifyNoteCreatedEnqueuesFanoutEvent(t *testing.T) {
	c := newMemCache()
	w := fanout.New(c, stubFollowGraph{}, nil, nil, fanout.Config{})
	f := New(testConfig(), stubAssembler{}, c, stubFollowGraph{}, stubNoteService{}, w, nil, nil, nil, nil, nil)

	if ok := f.NotifyNoteCreated(model.Note{ID: "n1", AuthorID: "a1"}); !ok {
		t.Error("NotifyNoteCreated() = false, want true")
	}
	if w.QueueDepth() != 1 {
		t.Errorf("QueueDepth() = %d, want 1", w.QueueDepth())
	}
}

func TestRefreshTimelineReturnsOnlyDeltaAndInvalidatesCache(t *testing.T) {
	c := newMemCache()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	slate := model.Slate{
		ViewerID: "v1",
		Items: []model.SlateItem{
			{Note: model.Note{ID: "old", CreatedAt: now.Add(-2 * time.Hour)}},
			{Note: model.Note{ID: "fresh", CreatedAt: now.Add(-1 * time.Minute)}},
		},
	}
	c.SetSlate(context.Background(), "v1", model.Slate{ViewerID: "v1"}, time.Minute)
	f := New(testConfig(), stubAssembler{slate: slate}, c, stubFollowGraph{}, stubNoteService{}, nil, nil, nil, nil, nil, clock.NewFakeClock(now))

	page, err := f.RefreshTimeline(context.Background(), RequestMetadata{}, "v1", now.Add(-30*time.Minute), 0)
	if err != nil {
		t.Fatalf("RefreshTimeline() error = %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Note.ID != "fresh" {
		t.Errorf("page.Items = %+v, want only the fresh note", page.Items)
	}
	// The stale cached slate (no items) was dropped and replaced by the rebuilt one.
	if cached, ok := c.GetSlate(context.Background(), "v1"); !ok || len(cached.Items) != 2 {
		t.Errorf("cached slate = %+v, %v; want the rebuilt 2-item slate", cached, ok)
	}
}

func TestHealthCheckReportsFanoutQueueDepth(t *testing.T) {
	c := newMemCache()
	w := fanout.New(c, stubFollowGraph{}, nil, nil, fanout.Config{})
	w.Enqueue(model.FanoutEvent{Kind: model.FanoutFollowChanged, FollowerID: "v1"})
	f := New(testConfig(), stubAssembler{}, c, stubFollowGraph{}, stubNoteService{}, w, nil, nil, nil, nil, nil)

	health := f.HealthCheck(context.Background())
	if health.FanoutQueueSize != 1 {
		t.Errorf("FanoutQueueSize = %d, want 1", health.FanoutQueueSize)
	}
	if !health.Healthy {
		t.Error("Healthy = false, want true")
	}
}
