// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package timeline implements the request façade (C11): the single
// entry point that wires the config resolver (C3), slate assembler
// (C7), two-tier cache (C8), fan-out worker (C9), and live-update hub
// (C10) into the endpoints spec.md §4.8 names, enforcing the
// authorization rule and pagination rules at the boundary before any of
// those components run.
package timeline

import (
	"context"
	"time"

	"github.com/tomtom215/cartographus/internal/cache"
	"github.com/tomtom215/cartographus/internal/clock"
	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/fanout"
	"github.com/tomtom215/cartographus/internal/live"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/ratelimit"
	"github.com/tomtom215/cartographus/internal/sources"
	"github.com/tomtom215/cartographus/internal/timeline/model"
	"github.com/tomtom215/cartographus/internal/timelineerr"
)

// Assembler is the subset of *slate.Assembler the façade depends on,
// named here so tests can supply a stub without importing the slate
// package's internals.
type Assembler interface {
	Assemble(ctx context.Context, viewerID string, cfg model.EffectiveConfig, profile model.EngagementProfile) model.Slate
}

// ReputationBumper is the subset of *reputation.Store the façade uses to
// credit an author's global score on an engagement event.
type ReputationBumper interface {
	Bump(authorID string)
}

// Facade is the C11 request façade. Construct with New.
type Facade struct {
	cfg         *config.Config
	assembler   Assembler
	cache       cache.Cacher
	followGraph sources.FollowGraph
	notes       sources.NoteService
	fanoutQ     *fanout.Worker
	live        *live.Hub
	limiter     *ratelimit.Limiter
	ranker      OptionalRanker
	reputation  ReputationBumper
	clock       clock.Clock
}

// New returns a Facade wired to its collaborators. ranker and
// reputation may be nil (use_overdrive and author-reputation bumps then
// have no effect).
func New(
	cfg *config.Config,
	assembler Assembler,
	cacher cache.Cacher,
	followGraph sources.FollowGraph,
	notes sources.NoteService,
	fanoutQ *fanout.Worker,
	hub *live.Hub,
	limiter *ratelimit.Limiter,
	ranker OptionalRanker,
	reputation ReputationBumper,
	clk clock.Clock,
) *Facade {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Facade{
		cfg:         cfg,
		assembler:   assembler,
		cache:       cacher,
		followGraph: followGraph,
		notes:       notes,
		fanoutQ:     fanoutQ,
		live:        hub,
		limiter:     limiter,
		ranker:      ranker,
		reputation:  reputation,
		clock:       clk,
	}
}

// authorize enforces spec.md §4.8's authorization rule, returning a
// timelineerr.KindUnauthorized error on failure.
func (f *Facade) authorize(meta RequestMetadata, viewerID string) error {
	if !meta.authorized(viewerID, f.cfg.Security.AuthToken) {
		return timelineerr.New(timelineerr.KindUnauthorized, "caller_id does not match viewer_id and admin flag is not set, or auth_token mismatch")
	}
	return nil
}

// admit enforces the per-viewer rate limiter ahead of any side effect.
func (f *Facade) admit(viewerID, endpointClass string, meta RequestMetadata) error {
	if f.limiter == nil {
		return nil
	}
	if !f.limiter.Allow(rateLimitKey(viewerID, endpointClass), meta.RateRPM) {
		return timelineerr.New(timelineerr.KindRateLimited, "rate limit exceeded for "+endpointClass)
	}
	return nil
}

// resolveConfig runs the three-way merge (defaults, stored preferences,
// request overrides) for viewerID.
func (f *Facade) resolveConfig(ctx context.Context, viewerID string, overrides model.RequestOverrides, forFollowing bool) model.EffectiveConfig {
	base := config.DefaultViewerConfig(f.cfg)

	var stored *model.TimelinePreferences
	if prefs, ok := f.getStoredPreferences(ctx, viewerID); ok {
		stored = &prefs
	}

	return config.Merge(base, stored, overrides, forFollowing)
}

// getStoredPreferences reads a viewer's persisted TimelinePreferences
// back out of their cached profile, if any.
func (f *Facade) getStoredPreferences(ctx context.Context, viewerID string) (model.TimelinePreferences, bool) {
	profile, ok := f.cache.GetProfile(ctx, viewerID)
	if !ok || profile.Preferences == nil {
		return model.TimelinePreferences{}, false
	}
	return *profile.Preferences, true
}

// buildSlate resolves config, loads the viewer's profile, assembles
// (or returns the cached) slate, and applies Overdrive re-ranking when
// requested.
func (f *Facade) buildSlate(ctx context.Context, viewerID string, overrides model.RequestOverrides, forFollowing bool) model.Slate {
	if slate, ok := f.cache.GetSlate(ctx, viewerID); ok && !forFollowing && overrides.DiscoveryShare == nil {
		return slate
	}

	cfg := f.resolveConfig(ctx, viewerID, overrides, forFollowing)
	profile, ok := f.cache.GetProfile(ctx, viewerID)
	if !ok {
		profile = model.NewEngagementProfile(viewerID)
	}

	slate := f.assembler.Assemble(ctx, viewerID, cfg, profile)

	if overrides.UseOverdrive {
		slate = applyOverdrive(ctx, f.ranker, viewerID, slate)
	}

	f.cache.SetSlate(ctx, viewerID, slate, f.cfg.Cache.SlateTTL)
	return slate
}

// GetTimeline returns a page of viewerID's default (hybrid, blended)
// slate, per spec.md §4.8.
func (f *Facade) GetTimeline(ctx context.Context, meta RequestMetadata, viewerID string, pag Pagination) (Page, error) {
	if err := f.authorize(meta, viewerID); err != nil {
		return Page{}, err
	}
	if err := f.admit(viewerID, "get_timeline", meta); err != nil {
		return Page{}, err
	}

	overrides := meta.Overrides()
	slate := f.buildSlate(ctx, viewerID, overrides, false)
	cfg := f.resolveConfig(ctx, viewerID, overrides, false)
	return paginate(slate, pag, cfg.MaxItems), nil
}

// GetForYouTimeline is a convenience variant of GetTimeline with the
// discovery-weighted mix/algorithm the viewer's resolved config already
// applies — it exists as a distinct, named entry point per spec.md
// §4.8 rather than a behavioral variant.
func (f *Facade) GetForYouTimeline(ctx context.Context, meta RequestMetadata, viewerID string, pag Pagination) (Page, error) {
	return f.GetTimeline(ctx, meta, viewerID, pag)
}

// GetFollowingTimeline returns a page built purely from followed
// authors, chronologically ordered, overriding stored preferences and
// request overrides per spec.md §4.8.
func (f *Facade) GetFollowingTimeline(ctx context.Context, meta RequestMetadata, viewerID string, pag Pagination) (Page, error) {
	if err := f.authorize(meta, viewerID); err != nil {
		return Page{}, err
	}
	if err := f.admit(viewerID, "get_following_timeline", meta); err != nil {
		return Page{}, err
	}

	overrides := meta.Overrides()
	cfg := f.resolveConfig(ctx, viewerID, overrides, true)
	profile, ok := f.cache.GetProfile(ctx, viewerID)
	if !ok {
		profile = model.NewEngagementProfile(viewerID)
	}
	slate := f.assembler.Assemble(ctx, viewerID, cfg, profile)
	return paginate(slate, pag, cfg.MaxItems), nil
}

// GetUserTimeline returns requesterID's visibility-filtered view of the
// notes target authored, per spec.md §4.8.
func (f *Facade) GetUserTimeline(ctx context.Context, meta RequestMetadata, targetID, requesterID string, pag Pagination, includeReplies, includeReposts bool) (Page, error) {
	if err := f.authorize(meta, requesterID); err != nil {
		return Page{}, err
	}
	if err := f.admit(requesterID, "get_user_timeline", meta); err != nil {
		return Page{}, err
	}

	cfg := config.DefaultViewerConfig(f.cfg)
	since := f.clock.Now().Add(-time.Duration(cfg.MaxAgeHours * float64(time.Hour)))

	notes, err := f.notes.GetRecentByAuthors(ctx, []string{targetID}, since, cfg.MaxItems*4)
	if err != nil {
		return Page{}, timelineerr.Wrap(timelineerr.KindUpstreamFailure, "fetching target author's notes", err)
	}

	isFollowing := f.isFollowing(ctx, requesterID, targetID)

	items := make([]model.SlateItem, 0, len(notes))
	for _, n := range notes {
		if !includeReplies && len(n.Mentions) > 0 {
			continue
		}
		if !visibleTo(n, requesterID, targetID, isFollowing) {
			continue
		}
		items = append(items, model.SlateItem{
			Note:            n,
			Source:          model.SourceFollowing,
			FinalScore:      n.AgeHours(f.clock.Now()),
			InjectedAt:      f.clock.Now(),
			InjectionReason: "authored_by_target",
		})
	}

	slate := model.Slate{ViewerID: requesterID, Items: items, GeneratedAt: f.clock.Now()}
	return paginate(slate, pag, cfg.MaxItems), nil
}

// isFollowing reports whether viewerID follows authorID, consulting the
// cached follow set before the follow-graph adapter.
func (f *Facade) isFollowing(ctx context.Context, viewerID, authorID string) bool {
	if set, ok := f.cache.GetFollowSet(ctx, viewerID); ok {
		for _, id := range set {
			if id == authorID {
				return true
			}
		}
		return false
	}
	following, err := f.followGraph.GetFollowing(ctx, viewerID)
	if err != nil {
		return false
	}
	for _, id := range following {
		if id == authorID {
			return true
		}
	}
	return false
}

// visibleTo applies the note's visibility level against the requester's
// relationship to the author.
func visibleTo(n model.Note, requesterID, authorID string, isFollowing bool) bool {
	switch n.Visibility {
	case model.VisibilityPrivate:
		return requesterID == authorID
	case model.VisibilityFollowersOnly:
		return requesterID == authorID || isFollowing
	default:
		return true
	}
}

// RefreshTimeline invalidates viewerID's cached slate, rebuilds it
// restricted to items newer than since, and notifies any open live
// sessions of the delta, per spec.md §4.8.
func (f *Facade) RefreshTimeline(ctx context.Context, meta RequestMetadata, viewerID string, since time.Time, maxItems int) (Page, error) {
	if err := f.authorize(meta, viewerID); err != nil {
		return Page{}, err
	}
	if err := f.admit(viewerID, "refresh_timeline", meta); err != nil {
		return Page{}, err
	}

	f.cache.InvalidateSlate(ctx, viewerID)

	overrides := meta.Overrides()
	cfg := f.resolveConfig(ctx, viewerID, overrides, false)
	if maxItems > 0 {
		cfg.MaxItems = maxItems
	}
	profile, ok := f.cache.GetProfile(ctx, viewerID)
	if !ok {
		profile = model.NewEngagementProfile(viewerID)
	}

	slate := f.assembler.Assemble(ctx, viewerID, cfg, profile)
	if overrides.UseOverdrive {
		slate = applyOverdrive(ctx, f.ranker, viewerID, slate)
	}

	delta := make([]model.SlateItem, 0, len(slate.Items))
	for _, item := range slate.Items {
		if item.Note.CreatedAt.After(since) {
			delta = append(delta, item)
		}
	}
	slate.Items = append(delta, dropOlderThan(slate.Items, since)...)

	f.cache.SetSlate(ctx, viewerID, slate, f.cfg.Cache.SlateTTL)

	if f.live != nil {
		for _, item := range delta {
			note := item.Note
			f.live.Publish(viewerID, model.LiveUpdate{Kind: model.LiveUpdateNewNote, NoteID: note.ID, Note: &note, EmittedAt: f.clock.Now()})
		}
	}

	refreshPage := Pagination{}
	if maxItems > 0 {
		refreshPage.Limit = &maxItems
	}
	return paginate(model.Slate{ViewerID: viewerID, Items: delta, GeneratedAt: f.clock.Now(), DegradedSources: slate.DegradedSources}, refreshPage, cfg.MaxItems), nil
}

// dropOlderThan returns the subsequence of items not already newer than
// since, used by RefreshTimeline to keep the full cached slate intact
// behind the fresh delta.
func dropOlderThan(items []model.SlateItem, since time.Time) []model.SlateItem {
	out := make([]model.SlateItem, 0, len(items))
	for _, item := range items {
		if !item.Note.CreatedAt.After(since) {
			out = append(out, item)
		}
	}
	return out
}

// MarkTimelineRead records viewerID's read-until watermark.
func (f *Facade) MarkTimelineRead(ctx context.Context, meta RequestMetadata, viewerID string, readUntil time.Time) error {
	if err := f.authorize(meta, viewerID); err != nil {
		return err
	}
	if err := f.admit(viewerID, "mark_timeline_read", meta); err != nil {
		return err
	}
	f.cache.SetLastRead(ctx, viewerID, readUntil)
	return nil
}

// UpdatePreferences persists viewerID's TimelinePreferences, invalidating
// their cached slate so the next read picks up the new configuration.
func (f *Facade) UpdatePreferences(ctx context.Context, meta RequestMetadata, viewerID string, prefs model.TimelinePreferences) error {
	if err := f.authorize(meta, viewerID); err != nil {
		return err
	}
	if err := f.admit(viewerID, "update_preferences", meta); err != nil {
		return err
	}

	profile, ok := f.cache.GetProfile(ctx, viewerID)
	if !ok {
		profile = model.NewEngagementProfile(viewerID)
	}
	profile.Preferences = &prefs
	f.cache.SetProfile(ctx, viewerID, profile, f.cfg.Cache.ProfileTTL)
	f.cache.InvalidateSlate(ctx, viewerID)
	return nil
}

// GetPreferences returns viewerID's persisted TimelinePreferences, or
// the zero value if none are stored.
func (f *Facade) GetPreferences(ctx context.Context, meta RequestMetadata, viewerID string) (model.TimelinePreferences, error) {
	if err := f.authorize(meta, viewerID); err != nil {
		return model.TimelinePreferences{}, err
	}
	prefs, ok := f.getStoredPreferences(ctx, viewerID)
	if !ok {
		return model.TimelinePreferences{}, nil
	}
	return prefs, nil
}

// RecordEngagement updates viewerID's author-affinity profile and a
// small global author reputation signal for the note's author, per
// spec.md §4.8's affinity deltas.
func (f *Facade) RecordEngagement(ctx context.Context, meta RequestMetadata, viewerID, noteID string, action model.EngagementAction, durationSeconds float64) error {
	if err := f.authorize(meta, viewerID); err != nil {
		return err
	}
	if err := f.admit(viewerID, "record_engagement", meta); err != nil {
		return err
	}

	authorID := f.resolveAuthor(ctx, viewerID, noteID)

	profile, ok := f.cache.GetProfile(ctx, viewerID)
	if !ok {
		profile = model.NewEngagementProfile(viewerID)
	}

	if authorID != "" {
		if delta := action.AffinityDelta(); delta != 0 {
			affinity := profile.AuthorAffinity[authorID] + delta
			if affinity > 1 {
				affinity = 1
			}
			profile.AuthorAffinity[authorID] = affinity
		}
		if f.reputation != nil {
			f.reputation.Bump(authorID)
		}
	}

	profile.LastUpdated = f.clock.Now()
	f.cache.SetProfile(ctx, viewerID, profile, f.cfg.Cache.ProfileTTL)

	logging.Debug().Str("viewer_id", viewerID).Str("note_id", noteID).
		Str("action", action.String()).Float64("duration_seconds", durationSeconds).
		Msg("engagement recorded")
	return nil
}

// resolveAuthor looks up noteID's author from the viewer's cached
// slate, returning "" if the note is not present there.
func (f *Facade) resolveAuthor(ctx context.Context, viewerID, noteID string) string {
	slate, ok := f.cache.GetSlate(ctx, viewerID)
	if !ok {
		return ""
	}
	for _, item := range slate.Items {
		if item.Note.ID == noteID {
			return item.Note.AuthorID
		}
	}
	return ""
}

// SubscribeTimelineUpdates registers viewerID for live updates and
// returns the live.Session the caller's transport should drain.
func (f *Facade) SubscribeTimelineUpdates(ctx context.Context, meta RequestMetadata, viewerID string, conn live.Conn) (*live.Session, error) {
	if err := f.authorize(meta, viewerID); err != nil {
		return nil, err
	}
	if f.live == nil {
		return nil, timelineerr.New(timelineerr.KindInternal, "live-update hub not configured")
	}
	return f.live.Subscribe(ctx, viewerID, conn), nil
}

// UnsubscribeTimelineUpdates removes session from viewerID's live-update
// bucket and closes its connection. The caller's transport should call
// this once its connection to the client ends.
func (f *Facade) UnsubscribeTimelineUpdates(viewerID string, session *live.Session) {
	if f.live == nil {
		return
	}
	f.live.Unsubscribe(viewerID, session)
}

// NotifyNoteCreated enqueues a fan-out event for a newly published
// note, the write-path entry point FanoutEvent's doc comment describes.
func (f *Facade) NotifyNoteCreated(note model.Note) bool {
	return f.enqueueFanout(model.FanoutEvent{Kind: model.FanoutNoteCreated, Note: &note, AuthorID: note.AuthorID, EnqueuedAt: f.clock.Now()})
}

// NotifyNoteUpdated enqueues a fan-out event for an edited note.
func (f *Facade) NotifyNoteUpdated(note model.Note) bool {
	return f.enqueueFanout(model.FanoutEvent{Kind: model.FanoutNoteUpdated, Note: &note, AuthorID: note.AuthorID, EnqueuedAt: f.clock.Now()})
}

// NotifyNoteDeleted enqueues a fan-out event carrying a delete marker.
func (f *Facade) NotifyNoteDeleted(noteID, authorID string) bool {
	return f.enqueueFanout(model.FanoutEvent{Kind: model.FanoutNoteDeleted, Note: &model.Note{ID: noteID, AuthorID: authorID}, AuthorID: authorID, EnqueuedAt: f.clock.Now()})
}

// NotifyFollowChanged enqueues a fan-out event for a follow-graph edge
// change, invalidating only followerID's slate cache.
func (f *Facade) NotifyFollowChanged(followerID, followingID string, isFollow bool) bool {
	return f.enqueueFanout(model.FanoutEvent{Kind: model.FanoutFollowChanged, FollowerID: followerID, FollowingID: followingID, IsFollow: isFollow, EnqueuedAt: f.clock.Now()})
}

func (f *Facade) enqueueFanout(event model.FanoutEvent) bool {
	if f.fanoutQ == nil {
		return false
	}
	return f.fanoutQ.Enqueue(event)
}

// HealthCheck reports cache-tier reachability and fan-out queue depth,
// supplemented from original_source's service.h HealthCheck RPC
// (dropped from spec.md's distillation but retained as ambient
// infrastructure, not a new ranking/filtering feature).
type HealthCheck struct {
	CacheStats      cache.Stats
	FanoutQueueSize int
	Healthy         bool
}

// HealthCheck implements the façade's health-reporting endpoint. It is
// unhealthy only when remote cache errors have been counted and no cache
// read has yet been served (no hit in either tier and no miss); a
// local-fallback-only run still reports healthy, per spec.md §4.7's
// degraded-but-serving design.
func (f *Facade) HealthCheck(context.Context) HealthCheck {
	stats := f.cache.Stats()

	queueDepth := 0
	if f.fanoutQ != nil {
		queueDepth = f.fanoutQ.QueueDepth()
	}

	healthy := stats.RemoteErrors == 0 || stats.RemoteHits > 0 || stats.LocalHits > 0 || stats.Misses > 0

	return HealthCheck{
		CacheStats:      stats,
		FanoutQueueSize: queueDepth,
		Healthy:         healthy,
	}
}
