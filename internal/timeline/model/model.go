// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package model holds the plain data types shared across the timeline
// service: notes, slates, viewer configuration, engagement profiles, and
// the fan-out/live-update event types. Types here are plain data with
// small helpers: String() and parsing on enum-like values, simple
// constructors and accessors, affinity deltas, and the profile's JSON
// wire form.
package model

import (
	"sort"
	"time"

	"github.com/goccy/go-json"
)

// Source identifies which content adapter contributed a SlateItem.
type Source int

const (
	// SourceFollowing is content from authors the viewer follows.
	SourceFollowing Source = iota
	// SourceRecommended is algorithmically recommended content.
	SourceRecommended
	// SourceTrending is content with high recent engagement velocity.
	SourceTrending
	// SourceLists is content from the viewer's curated lists.
	SourceLists
)

// String returns a human-readable name for the source.
func (s Source) String() string {
	switch s {
	case SourceFollowing:
		return "following"
	case SourceRecommended:
		return "recommended"
	case SourceTrending:
		return "trending"
	case SourceLists:
		return "lists"
	default:
		return "unknown"
	}
}

// Algorithm selects the ranking strategy applied by the slate assembler.
type Algorithm int

const (
	// AlgorithmHybrid blends chronological recency with learned ranking
	// and applies the hybrid-mode freshness tweak.
	AlgorithmHybrid Algorithm = iota
	// AlgorithmChronological orders candidates by created_at only,
	// bypassing the ranking engine.
	AlgorithmChronological
	// AlgorithmRanked orders candidates purely by ranking engine score,
	// without the hybrid freshness tweak.
	AlgorithmRanked
)

// String returns a human-readable name for the algorithm.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmHybrid:
		return "hybrid"
	case AlgorithmChronological:
		return "chronological"
	case AlgorithmRanked:
		return "ranked"
	default:
		return "unknown"
	}
}

// Visibility mirrors the visibility a Note carries from the external note
// service. The timeline core never mutates it.
type Visibility int

const (
	// VisibilityPublic notes are visible to any viewer.
	VisibilityPublic Visibility = iota
	// VisibilityFollowersOnly notes are visible to followers of the
	// author (and the author themselves).
	VisibilityFollowersOnly
	// VisibilityPrivate notes are visible only to the author.
	VisibilityPrivate
)

// String returns a human-readable name for the visibility level.
func (v Visibility) String() string {
	switch v {
	case VisibilityPublic:
		return "public"
	case VisibilityFollowersOnly:
		return "followers_only"
	case VisibilityPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// Metrics carries the engagement counters an external note service
// reports for a Note.
type Metrics struct {
	Views   int64 `json:"views"`
	Likes   int64 `json:"likes"`
	Reposts int64 `json:"reposts"`
	Replies int64 `json:"replies"`
	Quotes  int64 `json:"quotes"`
}

// Total returns the sum of likes, reposts, replies and quotes (views are
// not counted), used by the ranking engine's engagement-velocity signal.
func (m Metrics) Total() int64 {
	return m.Likes + m.Reposts + m.Replies + m.Quotes
}

// Note is opaque to the timeline core: it is borrowed verbatim from the
// external note service and never mutated during a slate build.
type Note struct {
	ID         string     `json:"id"`
	AuthorID   string     `json:"author_id"`
	CreatedAt  time.Time  `json:"created_at"`
	Visibility Visibility `json:"visibility"`
	Content    string     `json:"content"`
	Metrics    Metrics    `json:"metrics"`
	HasMedia   bool       `json:"has_media"`
	Hashtags   []string   `json:"hashtags"`
	Mentions   []string   `json:"mentions"`
}

// AgeHours returns the note's age in hours relative to the supplied
// reference time. Never negative.
func (n Note) AgeHours(now time.Time) float64 {
	age := now.Sub(n.CreatedAt).Hours()
	if age < 0 {
		return 0
	}
	return age
}

// Signals holds the five normalized ranking signals computed for a
// candidate note, each in [0,1].
type Signals struct {
	AuthorAffinity     float64 `json:"author_affinity"`
	ContentQuality     float64 `json:"content_quality"`
	EngagementVelocity float64 `json:"engagement_velocity"`
	Recency            float64 `json:"recency"`
	Personalization    float64 `json:"personalization"`
}

// SlateItem is a ranked candidate placed into a viewer's slate. Its
// lifetime is exactly that of the cached Slate that contains it.
type SlateItem struct {
	Note            Note      `json:"note"`
	Source          Source    `json:"source"`
	Signals         Signals   `json:"signals"`
	FinalScore      float64   `json:"final_score"`
	InjectedAt      time.Time `json:"injected_at"`
	InjectionReason string    `json:"injection_reason"`
}

// Slate is an ordered, bounded sequence of SlateItems, exclusively owned
// by the cache entry keyed by viewer ID.
type Slate struct {
	ViewerID        string      `json:"viewer_id"`
	Items           []SlateItem `json:"items"`
	GeneratedAt     time.Time   `json:"generated_at"`
	DegradedSources []string    `json:"degraded_sources,omitempty"`
}

// Weights holds the per-signal ranking weights used to combine the five
// normalized signals into a final score.
type Weights struct {
	Recency         float64 `koanf:"recency" json:"recency"`
	Engagement      float64 `koanf:"engagement" json:"engagement"`
	AuthorAffinity  float64 `koanf:"author_affinity" json:"author_affinity"`
	ContentQuality  float64 `koanf:"content_quality" json:"content_quality"`
	Diversity       float64 `koanf:"diversity" json:"diversity"`
}

// Mix holds the fractional share of the slate each source should supply.
// The four ratios are expected to sum to ~1.0 after resolution.
type Mix struct {
	FollowingRatio    float64 `json:"following_ratio"`
	RecommendedRatio  float64 `json:"recommended_ratio"`
	TrendingRatio     float64 `json:"trending_ratio"`
	ListsRatio        float64 `json:"lists_ratio"`
}

// EffectiveConfig is the fully resolved, per-request viewer configuration
// produced by the three-way merge in internal/config. It is derived fresh
// on every request and never persisted.
type EffectiveConfig struct {
	Algorithm         Algorithm          `json:"algorithm"`
	MaxItems          int                `json:"max_items"`
	MaxAgeHours       float64            `json:"max_age_hours"`
	MinScoreThreshold float64            `json:"min_score_threshold"`
	Weights           Weights            `json:"weights"`
	Mix               Mix                `json:"mix"`
	CapsPerSource     map[Source]int     `json:"caps_per_source"`
	ABWeightsPerSource map[Source]float64 `json:"ab_weights_per_source"`
}

// TimelinePreferences is the subset of EffectiveConfig a viewer can
// persist across requests. Zero or negative stored values mean "use
// default" per the config resolver's merge rules.
type TimelinePreferences struct {
	Algorithm         Algorithm      `json:"algorithm"`
	MaxItems          int            `json:"max_items"`
	MaxAgeHours       float64        `json:"max_age_hours"`
	MinScoreThreshold float64        `json:"min_score_threshold"`
	Weights           Weights        `json:"weights"`
	Mix               Mix            `json:"mix"`
	CapsPerSource     map[Source]int `json:"caps_per_source"`
}

// RequestOverrides carries per-request experiment overrides read from
// request metadata: weights, per-source caps, and discovery share.
type RequestOverrides struct {
	Weights          *Weights
	CapsPerSource    map[Source]int
	ABWeightsPerSource map[Source]float64
	DiscoveryShare   *float64
	ForceFollowing   bool
	// UseOverdrive requests the optional external ranker (spec.md §6's
	// OptionalRanker) replace final scores for this request, per the
	// use_overdrive request-metadata flag.
	UseOverdrive bool
}

// EngagementProfile holds per-viewer signals consumed by the ranking
// engine and content filter. Owned by the cache; mutated only by
// engagement-recording operations, read-only during slate assembly.
//
// TopicInterests, PostsPerDay, and InteractionsPerDay are carried over
// from the external UserEngagementProfile beyond what the base slate
// assembly needs; they travel with the profile through the cache, and
// no ranking or filtering code reads them.
type EngagementProfile struct {
	ViewerID              string             `json:"viewer_id"`
	AuthorAffinity        map[string]float64 `json:"author_affinity"`
	HashtagInterests      map[string]float64 `json:"hashtag_interests"`
	MutedAuthors          map[string]struct{} `json:"muted_authors"`
	MutedKeywords         []string           `json:"muted_keywords"`
	TopicInterests        map[string]float64 `json:"topic_interests"`
	LastUpdated           time.Time          `json:"last_updated"`
	AvgSessionLengthMins  float64            `json:"avg_session_length_minutes"`
	DailyEngagementScore  float64            `json:"daily_engagement_score"`
	PostsPerDay           float64            `json:"posts_per_day"`
	InteractionsPerDay    float64            `json:"interactions_per_day"`
	// Preferences holds the viewer's persisted TimelinePreferences, set
	// by the façade's UpdatePreferences operation. Nil means no
	// preferences have been stored yet.
	Preferences *TimelinePreferences `json:"preferences,omitempty"`
}

// NewEngagementProfile returns an empty profile with initialized maps,
// the defaults assigned on first request for a viewer.
func NewEngagementProfile(viewerID string) EngagementProfile {
	return EngagementProfile{
		ViewerID:         viewerID,
		AuthorAffinity:   make(map[string]float64),
		HashtagInterests: make(map[string]float64),
		MutedAuthors:     make(map[string]struct{}),
		TopicInterests:   make(map[string]float64),
		LastUpdated:      time.Time{},
	}
}

// IsMutedAuthor reports whether the given author ID is in the viewer's
// mute set.
func (p EngagementProfile) IsMutedAuthor(authorID string) bool {
	_, ok := p.MutedAuthors[authorID]
	return ok
}

// engagementProfileWire is the JSON wire shape for EngagementProfile.
// MutedAuthors is a set in memory (map[string]struct{}) but travels on
// the wire as a plain string slice so it survives a cache round trip.
type engagementProfileWire struct {
	ViewerID             string             `json:"viewer_id"`
	AuthorAffinity       map[string]float64 `json:"author_affinity"`
	HashtagInterests     map[string]float64 `json:"hashtag_interests"`
	MutedAuthors         []string           `json:"muted_authors"`
	MutedKeywords        []string           `json:"muted_keywords"`
	TopicInterests       map[string]float64 `json:"topic_interests"`
	LastUpdated          time.Time          `json:"last_updated"`
	AvgSessionLengthMins float64            `json:"avg_session_length_minutes"`
	DailyEngagementScore float64            `json:"daily_engagement_score"`
	PostsPerDay          float64            `json:"posts_per_day"`
	InteractionsPerDay   float64            `json:"interactions_per_day"`
	Preferences          *TimelinePreferences `json:"preferences,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p EngagementProfile) MarshalJSON() ([]byte, error) {
	muted := make([]string, 0, len(p.MutedAuthors))
	for id := range p.MutedAuthors {
		muted = append(muted, id)
	}
	sort.Strings(muted)

	return json.Marshal(engagementProfileWire{
		ViewerID:             p.ViewerID,
		AuthorAffinity:       p.AuthorAffinity,
		HashtagInterests:     p.HashtagInterests,
		MutedAuthors:         muted,
		MutedKeywords:        p.MutedKeywords,
		TopicInterests:       p.TopicInterests,
		LastUpdated:          p.LastUpdated,
		AvgSessionLengthMins: p.AvgSessionLengthMins,
		DailyEngagementScore: p.DailyEngagementScore,
		PostsPerDay:          p.PostsPerDay,
		InteractionsPerDay:   p.InteractionsPerDay,
		Preferences:          p.Preferences,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *EngagementProfile) UnmarshalJSON(data []byte) error {
	var wire engagementProfileWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	muted := make(map[string]struct{}, len(wire.MutedAuthors))
	for _, id := range wire.MutedAuthors {
		muted[id] = struct{}{}
	}

	*p = EngagementProfile{
		ViewerID:             wire.ViewerID,
		AuthorAffinity:       wire.AuthorAffinity,
		HashtagInterests:     wire.HashtagInterests,
		MutedAuthors:         muted,
		MutedKeywords:        wire.MutedKeywords,
		TopicInterests:       wire.TopicInterests,
		LastUpdated:          wire.LastUpdated,
		AvgSessionLengthMins: wire.AvgSessionLengthMins,
		DailyEngagementScore: wire.DailyEngagementScore,
		PostsPerDay:          wire.PostsPerDay,
		InteractionsPerDay:   wire.InteractionsPerDay,
		Preferences:          wire.Preferences,
	}
	return nil
}

// FanoutEventKind classifies the upstream write events the fan-out
// worker consumes.
type FanoutEventKind int

const (
	// FanoutNoteCreated signals a new note was published.
	FanoutNoteCreated FanoutEventKind = iota
	// FanoutNoteUpdated signals an existing note changed.
	FanoutNoteUpdated
	// FanoutNoteDeleted signals a note was removed.
	FanoutNoteDeleted
	// FanoutFollowChanged signals a follow-graph edge was added/removed.
	FanoutFollowChanged
)

// String returns a human-readable name for the event kind.
func (k FanoutEventKind) String() string {
	switch k {
	case FanoutNoteCreated:
		return "note_created"
	case FanoutNoteUpdated:
		return "note_updated"
	case FanoutNoteDeleted:
		return "note_deleted"
	case FanoutFollowChanged:
		return "follow_changed"
	default:
		return "unknown"
	}
}

// FanoutEvent is enqueued by C11's write-path handlers and consumed
// at least once by the fan-out worker (C9).
type FanoutEvent struct {
	Kind       FanoutEventKind `json:"kind"`
	Note       *Note           `json:"note,omitempty"`
	AuthorID   string          `json:"author_id"`
	FollowerID string          `json:"follower_id,omitempty"`
	FollowingID string         `json:"following_id,omitempty"`
	IsFollow   bool            `json:"is_follow,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// LiveUpdateKind classifies the payload a LiveUpdate carries to a
// subscribed viewer session.
type LiveUpdateKind int

const (
	// LiveUpdateNewNote announces a new note that now qualifies for the
	// viewer's slate.
	LiveUpdateNewNote LiveUpdateKind = iota
	// LiveUpdateDeleteNote announces a note's removal from the viewer's
	// slate.
	LiveUpdateDeleteNote
	// LiveUpdateHeartbeat keeps an idle session's connection alive.
	LiveUpdateHeartbeat
)

// String returns a human-readable name for the live-update kind.
func (k LiveUpdateKind) String() string {
	switch k {
	case LiveUpdateNewNote:
		return "new_note"
	case LiveUpdateDeleteNote:
		return "delete_note"
	case LiveUpdateHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// LiveUpdate is the message the fan-out worker hands to the live-update
// hub (C10) for delivery to a specific viewer's open sessions.
type LiveUpdate struct {
	Kind      LiveUpdateKind `json:"kind"`
	NoteID    string         `json:"note_id,omitempty"`
	Note      *Note          `json:"note,omitempty"`
	EmittedAt time.Time      `json:"emitted_at"`
}

// EngagementAction classifies a viewer's interaction with a note,
// recorded by the façade's RecordEngagement operation (spec.md §4.8).
type EngagementAction int

const (
	// EngagementView is a passive impression, recorded but not scored.
	EngagementView EngagementAction = iota
	// EngagementLike adds +0.05 to the author's affinity score.
	EngagementLike
	// EngagementRepost adds +0.10 to the author's affinity score.
	EngagementRepost
	// EngagementReply adds +0.15 to the author's affinity score.
	EngagementReply
	// EngagementFollow adds +0.30 to the author's affinity score.
	EngagementFollow
	// EngagementSkip is a negative-affinity signal, recorded but not
	// scored against affinity.
	EngagementSkip
	// EngagementHide is a strong negative signal, recorded but not
	// scored against affinity.
	EngagementHide
)

// String returns a human-readable name for the engagement action.
func (a EngagementAction) String() string {
	switch a {
	case EngagementView:
		return "view"
	case EngagementLike:
		return "like"
	case EngagementRepost:
		return "repost"
	case EngagementReply:
		return "reply"
	case EngagementFollow:
		return "follow"
	case EngagementSkip:
		return "skip"
	case EngagementHide:
		return "hide"
	default:
		return "unknown"
	}
}

// ParseEngagementAction parses the wire name of an engagement action
// (as posted to the RecordEngagement endpoint) back into its typed
// value. Returns false for any name other than String's output.
func ParseEngagementAction(s string) (EngagementAction, bool) {
	switch s {
	case "view":
		return EngagementView, true
	case "like":
		return EngagementLike, true
	case "repost":
		return EngagementRepost, true
	case "reply":
		return EngagementReply, true
	case "follow":
		return EngagementFollow, true
	case "skip":
		return EngagementSkip, true
	case "hide":
		return EngagementHide, true
	default:
		return 0, false
	}
}

// AffinityDelta returns the author-affinity adjustment spec.md §4.8
// assigns to this action. Zero for actions that do not move affinity.
func (a EngagementAction) AffinityDelta() float64 {
	switch a {
	case EngagementLike:
		return 0.05
	case EngagementRepost:
		return 0.10
	case EngagementReply:
		return 0.15
	case EngagementFollow:
		return 0.30
	default:
		return 0
	}
}
