// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package cache implements the timeline core's two-tier cache (C8).

# Overview

Every viewer-facing read path (slate assembly, engagement profile
lookup, follow-set resolution) consults this cache before falling
through to its upstream collaborator. The cache has two tiers:

  - A primary RemoteStore, a shared Redis instance reachable by every
    service instance, used so a cached slate survives across requests
    that land on different instances behind a load balancer.
  - A bounded local fallback, a BadgerDB instance on local disk, used
    when the remote tier errors out or times out so a Redis outage
    degrades to slightly-stale local answers instead of an empty slate.

# Usage

	remote := cache.NewRedisStore(redisClient)
	local, _ := cache.NewLocalFallback("/var/lib/cartographus/cache")
	c := cache.NewTwoTierCache(remote, local)

	if slate, ok := c.GetSlate(ctx, viewerID); ok {
	    return slate
	}
	// cache miss: assemble a fresh slate and populate the cache
	c.SetSlate(ctx, viewerID, slate, 2*time.Minute)

# Invalidation

SetSlate records a reverse author->viewer index alongside the slate
entry. InvalidateAuthorSlates(authorID) scans that index and evicts
every viewer's cached slate that included a note by that author. The
fan-out worker (C9) does not call it: on a publish it evicts each
follower's slate with InvalidateSlate.

# Failure handling

No Cacher method returns an error. A tier-level failure is logged and
treated as a miss on read, or silently dropped on write — the cache
must never be the reason a timeline request fails. Callers that need
visibility into tier health use Stats.

# See Also

  - internal/sources: follow-set caching (GetFollowSet/SetFollowSet)
  - internal/timeline: slate and profile caching in the request façade
*/
package cache
