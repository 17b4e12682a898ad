// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package cache implements the two-tier cache (C8): a primary
// RemoteStore (Redis in production) with a bounded local Badger-backed
// fallback consulted when the remote tier errors or times out. Reads
// try the remote tier first and fall back to local on any error or
// miss; a local hit is returned as is and is not copied back to the
// remote tier. Writes go to
// both tiers so the fallback stays warm for the next outage. Grounded
// on the teacher's BadgerDB session store (internal/auth) for the local
// tier and adapted here to a generic, TTL-bearing byte store serving
// the timeline's slate, profile, read-marker, and follow-set caches.
package cache

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/tomtom215/cartographus/internal/timeline/model"
)

// Key prefixes for the cache namespaces this package owns.
const (
	slatePrefix      = "slate:"
	profilePrefix    = "profile:"
	lastReadPrefix   = "lastread:"
	authorIndexInfix = ":author:"
)

// Stats holds hit/miss counters for both cache tiers.
type Stats struct {
	RemoteHits   int64
	LocalHits    int64
	Misses       int64
	RemoteErrors int64
}

// TwoTierCache is the production Cacher implementation.
type TwoTierCache struct {
	remote RemoteStore
	local  RemoteStore

	remoteHits   atomic.Int64
	localHits    atomic.Int64
	misses       atomic.Int64
	remoteErrors atomic.Int64
}

// NewTwoTierCache composes a primary RemoteStore with a local fallback.
// Either argument may be nil: a nil remote runs entirely off the local
// tier (useful for tests and for a degraded-mode deployment), a nil
// local disables the fallback.
func NewTwoTierCache(remote RemoteStore, local RemoteStore) *TwoTierCache {
	return &TwoTierCache{remote: remote, local: local}
}

// Stats implements Cacher.
func (c *TwoTierCache) Stats() Stats {
	return Stats{
		RemoteHits:   c.remoteHits.Load(),
		LocalHits:    c.localHits.Load(),
		Misses:       c.misses.Load(),
		RemoteErrors: c.remoteErrors.Load(),
	}
}

// get tries the remote tier, falling back to local on error or miss.
func (c *TwoTierCache) get(ctx context.Context, key string) ([]byte, bool) {
	if c.remote != nil {
		value, ok, err := c.remote.Get(ctx, key)
		if err != nil {
			c.remoteErrors.Add(1)
			log.Debug().Err(err).Str("key", key).Msg("cache: remote tier error, falling back to local")
		} else if ok {
			c.remoteHits.Add(1)
			return value, true
		}
	}

	if c.local != nil {
		if value, ok, err := c.local.Get(ctx, key); err == nil && ok {
			c.localHits.Add(1)
			return value, true
		}
	}

	c.misses.Add(1)
	return nil, false
}

// set writes to both tiers. Errors are logged, never returned: a cache
// write failure must never fail the caller's request.
func (c *TwoTierCache) set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if c.remote != nil {
		if err := c.remote.Set(ctx, key, value, ttl); err != nil {
			c.remoteErrors.Add(1)
			log.Debug().Err(err).Str("key", key).Msg("cache: remote tier write failed")
		}
	}
	if c.local != nil {
		if err := c.local.Set(ctx, key, value, ttl); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("cache: local tier write failed")
		}
	}
}

func (c *TwoTierCache) del(ctx context.Context, key string) {
	if c.remote != nil {
		if err := c.remote.Del(ctx, key); err != nil {
			c.remoteErrors.Add(1)
		}
	}
	if c.local != nil {
		_ = c.local.Del(ctx, key)
	}
}

// GetSlate implements Cacher.
func (c *TwoTierCache) GetSlate(ctx context.Context, viewerID string) (model.Slate, bool) {
	raw, ok := c.get(ctx, slatePrefix+viewerID)
	if !ok {
		return model.Slate{}, false
	}
	var slate model.Slate
	if err := json.Unmarshal(raw, &slate); err != nil {
		log.Warn().Err(err).Str("viewer_id", viewerID).Msg("cache: corrupt slate entry")
		return model.Slate{}, false
	}
	return slate, true
}

// SetSlate implements Cacher. It also records a reverse author->viewer
// index so InvalidateAuthorSlates can find and evict this entry when
// one of its authors posts again.
func (c *TwoTierCache) SetSlate(ctx context.Context, viewerID string, slate model.Slate, ttl time.Duration) {
	raw, err := json.Marshal(slate)
	if err != nil {
		log.Warn().Err(err).Str("viewer_id", viewerID).Msg("cache: failed to marshal slate")
		return
	}
	c.set(ctx, slatePrefix+viewerID, raw, ttl)

	seen := make(map[string]struct{}, len(slate.Items))
	for _, item := range slate.Items {
		authorID := item.Note.AuthorID
		if _, ok := seen[authorID]; ok {
			continue
		}
		seen[authorID] = struct{}{}
		c.set(ctx, authorIndexKey(authorID, viewerID), []byte(viewerID), ttl)
	}
}

// InvalidateSlate implements Cacher.
func (c *TwoTierCache) InvalidateSlate(ctx context.Context, viewerID string) {
	c.del(ctx, slatePrefix+viewerID)
}

// InvalidateAuthorSlates implements Cacher by scanning the reverse
// author index populated in SetSlate and evicting every matching
// viewer's cached slate.
func (c *TwoTierCache) InvalidateAuthorSlates(ctx context.Context, authorID string) {
	prefix := authorIndexPrefix(authorID)

	var keys []string
	if c.remote != nil {
		if found, err := c.remote.Scan(ctx, prefix); err == nil {
			keys = append(keys, found...)
		}
	}
	if c.local != nil {
		if found, err := c.local.Scan(ctx, prefix); err == nil {
			keys = append(keys, found...)
		}
	}

	for _, key := range keys {
		viewerID := strings.TrimPrefix(key, prefix)
		c.InvalidateSlate(ctx, viewerID)
		c.del(ctx, key)
	}
}

// GetProfile implements Cacher.
func (c *TwoTierCache) GetProfile(ctx context.Context, viewerID string) (model.EngagementProfile, bool) {
	raw, ok := c.get(ctx, profilePrefix+viewerID)
	if !ok {
		return model.EngagementProfile{}, false
	}
	var profile model.EngagementProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		log.Warn().Err(err).Str("viewer_id", viewerID).Msg("cache: corrupt profile entry")
		return model.EngagementProfile{}, false
	}
	return profile, true
}

// SetProfile implements Cacher.
func (c *TwoTierCache) SetProfile(ctx context.Context, viewerID string, profile model.EngagementProfile, ttl time.Duration) {
	raw, err := json.Marshal(profile)
	if err != nil {
		log.Warn().Err(err).Str("viewer_id", viewerID).Msg("cache: failed to marshal profile")
		return
	}
	c.set(ctx, profilePrefix+viewerID, raw, ttl)
}

// GetLastRead implements Cacher.
func (c *TwoTierCache) GetLastRead(ctx context.Context, viewerID string) (time.Time, bool) {
	raw, ok := c.get(ctx, lastReadPrefix+viewerID)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SetLastRead implements Cacher. Read markers never expire locally;
// they are superseded by the next mark-read call.
func (c *TwoTierCache) SetLastRead(ctx context.Context, viewerID string, t time.Time) {
	c.set(ctx, lastReadPrefix+viewerID, []byte(t.Format(time.RFC3339Nano)), 0)
}

// GetFollowSet implements Cacher. Unlike the other accessors, the
// caller supplies the full cache key (internal/sources already
// namespaces it per viewer).
func (c *TwoTierCache) GetFollowSet(ctx context.Context, key string) ([]string, bool) {
	raw, ok := c.get(ctx, key)
	if !ok {
		return nil, false
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, false
	}
	return ids, true
}

// SetFollowSet implements Cacher.
func (c *TwoTierCache) SetFollowSet(ctx context.Context, key string, authorIDs []string, ttl time.Duration) {
	raw, err := json.Marshal(authorIDs)
	if err != nil {
		return
	}
	c.set(ctx, key, raw, ttl)
}

func authorIndexPrefix(authorID string) string {
	return "authoridx:" + authorID + authorIndexInfix
}

func authorIndexKey(authorID, viewerID string) string {
	return authorIndexPrefix(authorID) + viewerID
}
