// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package main is the entry point for the timeline server.

The timeline server ranks and serves a personalized, multi-source note
feed per viewer, combining content from followed authors, algorithmic
recommendations, trending notes, and curated lists into a single
ranked slate, with live updates pushed over WebSocket as new content
and follow-graph changes arrive.

# Application Architecture

The server implements a layered architecture with Suture v4 process
supervision:

	RootSupervisor ("cartographus")
	├── DataSupervisor ("data-layer")
	│   └── (reserved; no supervised data-layer service at present)
	├── MessagingSupervisor ("messaging-layer")
	│   └── fanout.Worker (C9 fan-out worker)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (Chi router, internal/api)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Two-tier cache (C8): Redis primary (if configured) + Badger local fallback
 4. Standalone-mode NoteService/FollowGraph/ListsService (internal/memstore)
 5. Content source adapters (C4): Following, Recommended, Trending, Lists
 6. Slate assembler (C7), fan-out worker (C9), live-update hub (C10)
 7. Request façade (C11): the single entry point the HTTP layer calls
 8. Supervisor tree: Suture v4 process supervision
 9. HTTP server: Chi router with middleware stack

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest
priority wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	# Server
	HTTP_PORT=8080               # HTTP server port
	LOG_LEVEL=info                # trace, debug, info, warn, error
	LOG_FORMAT=json               # json or console

	# Cache (C8)
	CACHE_REDIS_ADDR=             # empty runs the cache off the local tier only
	CACHE_LOCAL_PATH=/data/timelinecore/cache

	# Rate limiting (C2)
	RATE_LIMIT_REQUESTS=300
	RATE_LIMIT_BURST=50

See internal/config for the complete set of koanf-bound fields.

# Standalone Mode

Without a configured production NoteService/FollowGraph, the server
runs standalone: internal/memstore provides an in-memory note store,
follow graph, and lists service seeded with a small synthetic dataset
around demoViewerID, enough to exercise every endpoint with no external
dependencies. A production deployment replaces memstore.Store with its
own implementations of sources.NoteService, sources.FollowGraph, and
sources.ListsService (spec.md §6).

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM:

 1. Stops accepting new HTTP connections
 2. Waits for in-flight requests (10s timeout)
 3. Stops the fan-out worker (events still queued are not processed)
 4. Reports any services that failed to stop

# See Also

  - internal/config: Configuration management
  - internal/supervisor: Process supervision
  - internal/api: HTTP handlers and routing
  - internal/timeline: the C11 request façade
  - internal/memstore: standalone-mode reference NoteService/FollowGraph
*/
package main
