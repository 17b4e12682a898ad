// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package live implements the live-update hub described in spec.md §4.10:
best-effort real-time delivery of model.LiveUpdate messages to viewers
with an open SubscribeTimelineUpdates stream.

Architecture:

The hub keys sessions by viewer ID instead of broadcasting globally, the
way the teacher's websocket.Hub does. A publish for viewer A only takes
viewer A's bucket lock, so unrelated viewers' subscribe/unsubscribe
traffic never contends with it.

	┌─────┐      ┌──────────────┐      ┌─────────┐
	│ Hub │ ──── │ bucket[A]    │ ──── │ Session │ (one goroutine each)
	│     │      │ bucket[B]    │      │ Session │
	└─────┘      └──────────────┘      └─────────┘

Each Session owns a bounded pending queue (Config.PendingQueueSize,
256 entries by default). A publish that finds a full queue drops the
oldest entry rather than blocking the publisher or growing without
bound. Delivery is independently rate limited per session via
internal/ratelimit (Config.MaxMsgsPerSec), separate from the
viewer-level API rate limit enforced by C2 — heartbeats bypass this
limiter so a throttled session can still be told apart from a dead one.

An idle session (no delivered update in the last Config.HeartbeatWait,
20 seconds by default) emits a heartbeat on its own ~500ms poll tick so
the underlying transport (internal/transport/wsstream) can detect a
dead connection without waiting for real content.

Usage:

	hub := live.NewHub(live.Config{})
	session := hub.Subscribe(ctx, viewerID, conn)
	defer hub.Unsubscribe(viewerID, session)

	hub.Publish(viewerID, model.LiveUpdate{Kind: model.LiveUpdateNewNote, Note: &note})

See Also:

  - internal/fanout: the producer of Publish calls
  - internal/transport/wsstream: the Conn implementation over gorilla/websocket
  - internal/ratelimit: the token bucket reused for per-session delivery limits
*/
package live
