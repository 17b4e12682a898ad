// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package config provides centralized configuration management for the
timeline service.

There are two distinct configuration concerns in this package:

  - Config (config.go, koanf.go): static, process-level settings loaded
    once at startup via LoadWithKoanf. Covers the HTTP listener, logging,
    cache TTLs, fan-out and live-hub tuning, and ranking defaults.
  - EffectiveConfig (resolver.go): the per-request viewer configuration
    produced by merging Config's ranking/slate defaults with a viewer's
    stored TimelinePreferences and any per-request RequestOverrides. This
    merge runs on every call to GetTimeline and is never persisted.

# Configuration Sources

Config is loaded from, in increasing priority:
  - Built-in defaults (defaultConfig)
  - An optional YAML config file (config.yaml, or $CONFIG_PATH)
  - Environment variables

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT, HTTP_TIMEOUT, ENVIRONMENT

API:
  - API_DEFAULT_PAGE_SIZE, API_MAX_PAGE_SIZE

Security / rate limiting:
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_BURST, RATE_LIMIT_WINDOW,
    DISABLE_RATE_LIMIT, CORS_ORIGINS, TRUSTED_PROXIES

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

Cache:
  - CACHE_SLATE_TTL, CACHE_PROFILE_TTL, CACHE_FOLLOW_SET_TTL,
    CACHE_LOCAL_MAX_ENTRIES, CACHE_LOCAL_PATH

Fan-out:
  - FANOUT_QUEUE_CAPACITY, FANOUT_MAX_ATTEMPTS, FANOUT_RETRY_INITIAL,
    FANOUT_RETRY_MAX

Live updates:
  - LIVE_PENDING_QUEUE_SIZE, LIVE_MAX_MSGS_PER_SEC, LIVE_HEARTBEAT_WAIT,
    LIVE_IDLE_TIMEOUT

Ranking:
  - RANKING_WEIGHT_AFFINITY, RANKING_WEIGHT_QUALITY,
    RANKING_WEIGHT_ENGAGEMENT, RANKING_WEIGHT_RECENCY,
    RANKING_WEIGHT_PERSONAL, RANKING_DIVERSITY_LAMBDA,
    RANKING_HYBRID_TWEAK, RANKING_RECENCY_HALF_LIFE

Slate:
  - SLATE_MAX_ITEMS, SLATE_MIN_SCORE, SLATE_ADAPTER_TIMEOUT,
    SLATE_REQUEST_DEADLINE

# Usage Example

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    log.Fatalf("failed to load config: %v", err)
	}

	fmt.Printf("listening on %s:%d\n", cfg.Server.Host, cfg.Server.Port)

# Thread Safety

Config is immutable after LoadWithKoanf returns and safe for concurrent
reads. EffectiveConfig values returned by the resolver are likewise
immutable snapshots; a new one is computed per request.
*/
package config
