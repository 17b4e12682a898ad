// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package cache

import (
	"context"
	"time"

	"github.com/tomtom215/cartographus/internal/timeline/model"
)

// RemoteStore is the primary cache tier's contract: a string-keyed,
// byte-valued store with per-key TTL (spec.md §6). The facade talks to
// it through this narrow interface so the production Redis client and
// a miniredis test double are interchangeable.
type RemoteStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	// Scan returns every key matching prefix, used only by the
	// author-fanout invalidation sweep (InvalidateAuthorSlates).
	Scan(ctx context.Context, prefix string) ([]string, error)
}

// Cacher is the C8 two-tier cache facade the rest of the timeline core
// depends on: a primary RemoteStore backed by Redis, with a bounded
// local Badger-backed fallback consulted when the remote tier errors or
// is unreachable (spec.md §4.7). Every method degrades to "miss" rather
// than propagating a cache-layer error to its caller.
type Cacher interface {
	GetSlate(ctx context.Context, viewerID string) (model.Slate, bool)
	SetSlate(ctx context.Context, viewerID string, slate model.Slate, ttl time.Duration)
	InvalidateSlate(ctx context.Context, viewerID string)
	InvalidateAuthorSlates(ctx context.Context, authorID string)

	GetProfile(ctx context.Context, viewerID string) (model.EngagementProfile, bool)
	SetProfile(ctx context.Context, viewerID string, profile model.EngagementProfile, ttl time.Duration)

	GetLastRead(ctx context.Context, viewerID string) (time.Time, bool)
	SetLastRead(ctx context.Context, viewerID string, t time.Time)

	GetFollowSet(ctx context.Context, key string) ([]string, bool)
	SetFollowSet(ctx context.Context, key string, authorIDs []string, ttl time.Duration)

	// Stats reports tier-level hit/miss counters for observability.
	Stats() Stats
}

// Verify interface implementations at compile time.
var _ Cacher = (*TwoTierCache)(nil)
