// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package sources implements the four content source adapters (C4):
// Following, Recommended, Trending, and Lists. Each adapter wraps its
// call to an external collaborator (NoteService or FollowGraph) in a
// gobreaker.CircuitBreaker so a failing or slow collaborator trips open
// and fails fast instead of blocking the slate assembler, grounded on
// the teacher's use of sony/gobreaker/v2 for bounded-blast-radius
// external calls.
package sources

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cartographus/internal/cache"
	"github.com/tomtom215/cartographus/internal/metrics"
	"github.com/tomtom215/cartographus/internal/timeline/model"
)

// ErrDegraded is returned by an adapter when its circuit breaker is open
// or its external call failed or timed out. The slate assembler treats
// ErrDegraded as "this source contributed zero notes" rather than
// failing the whole request.
var ErrDegraded = errors.New("source adapter degraded")

// NoteService is the external collaborator that stores and serves
// notes. The timeline core consumes it only through this narrow
// interface (spec.md §6).
type NoteService interface {
	GetRecentByAuthors(ctx context.Context, authorIDs []string, since time.Time, limit int) ([]model.Note, error)
	GetRecentByInterests(ctx context.Context, hashtags []string, since time.Time, limit int) ([]model.Note, error)
	GetTrending(ctx context.Context, since time.Time, limit int) ([]model.Note, error)
}

// FollowGraph is the external collaborator serving follow-graph edges.
type FollowGraph interface {
	GetFollowing(ctx context.Context, viewerID string) ([]string, error)
	GetFollowers(ctx context.Context, authorID string) ([]string, error)
}

// ListsService is the external collaborator serving a viewer's curated
// lists of authors.
type ListsService interface {
	GetListMembers(ctx context.Context, viewerID string) ([]string, error)
}

// Adapter is the common contract every content source implements, per
// spec.md §4.3. profile is the viewer's current engagement profile;
// only Recommended reads it, but the contract carries it for every
// adapter so the assembler has one uniform call shape.
type Adapter interface {
	GetContent(ctx context.Context, viewerID string, cfg model.EffectiveConfig, profile model.EngagementProfile, since time.Time, limit int) ([]model.Note, error)
}

// newBreaker returns a gobreaker configured with sensible defaults for
// a source adapter: trip after 5 consecutive failures, half-open after
// 30 seconds.
func newBreaker[T any](name string) *gobreaker.CircuitBreaker[T] {
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
}

// followSetTTL is the short TTL for a viewer's cached resolved follow
// set, per spec.md §4.3.
const followSetTTL = time.Minute

// Following resolves the viewer's follow set (cached with a short TTL)
// and asks NoteService for that set's recent notes, newest first.
type Following struct {
	notes   NoteService
	graph   FollowGraph
	cache   cache.Cacher
	breaker *gobreaker.CircuitBreaker[[]model.Note]
}

// NewFollowing returns a Following adapter.
func NewFollowing(notes NoteService, graph FollowGraph, c cache.Cacher) *Following {
	return &Following{
		notes:   notes,
		graph:   graph,
		cache:   c,
		breaker: newBreaker[[]model.Note]("source.following"),
	}
}

// GetContent implements Adapter.
func (f *Following) GetContent(ctx context.Context, viewerID string, cfg model.EffectiveConfig, _ model.EngagementProfile, since time.Time, limit int) ([]model.Note, error) {
	result, err := f.breaker.Execute(func() ([]model.Note, error) {
		authorIDs, err := f.resolveFollowSet(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		if len(authorIDs) == 0 {
			return nil, nil
		}
		return f.notes.GetRecentByAuthors(ctx, authorIDs, since, limit)
	})
	if err != nil {
		return nil, ErrDegraded
	}
	return result, nil
}

// resolveFollowSet returns the viewer's followed author IDs, consulting
// the cache before calling FollowGraph.
func (f *Following) resolveFollowSet(ctx context.Context, viewerID string) ([]string, error) {
	key := "followset:" + viewerID
	if cached, ok := f.cache.GetFollowSet(ctx, key); ok {
		return cached, nil
	}

	authorIDs, err := f.graph.GetFollowing(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	f.cache.SetFollowSet(ctx, key, authorIDs, followSetTTL)
	return authorIDs, nil
}

// Recommended queries NoteService for recent notes matching the
// engagement profile's hashtag interests. The profile's author
// affinities are not used by this adapter.
type Recommended struct {
	notes   NoteService
	breaker *gobreaker.CircuitBreaker[[]model.Note]
}

// NewRecommended returns a Recommended adapter.
func NewRecommended(notes NoteService) *Recommended {
	return &Recommended{notes: notes, breaker: newBreaker[[]model.Note]("source.recommended")}
}

// GetContent implements Adapter, querying by up to 10 of the
// caller-supplied profile's hashtag interests.
func (r *Recommended) GetContent(ctx context.Context, _ string, _ model.EffectiveConfig, profile model.EngagementProfile, since time.Time, limit int) ([]model.Note, error) {
	return r.GetContentForProfile(ctx, &profile, since, limit)
}

// GetContentForProfile queries by up to 10 of the profile's hashtag
// interests, taken in no particular order.
func (r *Recommended) GetContentForProfile(ctx context.Context, profile *model.EngagementProfile, since time.Time, limit int) ([]model.Note, error) {
	hashtags := topHashtags(profile, 10)

	result, err := r.breaker.Execute(func() ([]model.Note, error) {
		return r.notes.GetRecentByInterests(ctx, hashtags, since, limit)
	})
	if err != nil {
		return nil, ErrDegraded
	}
	return result, nil
}

// topHashtags returns up to n hashtag keys from the profile's interest
// map, in no particular order (the note service ranks by its own
// correlation signal).
func topHashtags(profile *model.EngagementProfile, n int) []string {
	if profile == nil || profile.HashtagInterests == nil {
		return nil
	}
	tags := make([]string, 0, len(profile.HashtagInterests))
	for tag := range profile.HashtagInterests {
		tags = append(tags, tag)
		if len(tags) >= n {
			break
		}
	}
	return tags
}

// Trending returns notes whose engagement velocity is in the top band
// over the last few hours, across hashtags and authors.
type Trending struct {
	notes   NoteService
	breaker *gobreaker.CircuitBreaker[[]model.Note]
}

// NewTrending returns a Trending adapter.
func NewTrending(notes NoteService) *Trending {
	return &Trending{notes: notes, breaker: newBreaker[[]model.Note]("source.trending")}
}

// GetContent implements Adapter.
func (t *Trending) GetContent(ctx context.Context, viewerID string, cfg model.EffectiveConfig, _ model.EngagementProfile, since time.Time, limit int) ([]model.Note, error) {
	result, err := t.breaker.Execute(func() ([]model.Note, error) {
		return t.notes.GetTrending(ctx, since, limit)
	})
	if err != nil {
		return nil, ErrDegraded
	}
	return result, nil
}

// Lists returns notes authored by members of the viewer's curated
// lists.
type Lists struct {
	notes   NoteService
	lists   ListsService
	breaker *gobreaker.CircuitBreaker[[]model.Note]
}

// NewLists returns a Lists adapter.
func NewLists(notes NoteService, lists ListsService) *Lists {
	return &Lists{notes: notes, lists: lists, breaker: newBreaker[[]model.Note]("source.lists")}
}

// GetContent implements Adapter.
func (l *Lists) GetContent(ctx context.Context, viewerID string, cfg model.EffectiveConfig, _ model.EngagementProfile, since time.Time, limit int) ([]model.Note, error) {
	result, err := l.breaker.Execute(func() ([]model.Note, error) {
		members, err := l.lists.GetListMembers(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			return nil, nil
		}
		return l.notes.GetRecentByAuthors(ctx, members, since, limit)
	})
	if err != nil {
		return nil, ErrDegraded
	}
	return result, nil
}
