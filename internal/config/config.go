// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package config provides the static service configuration loaded once at
// startup (this file, koanf.go) and the per-request viewer configuration
// resolver that runs the three-way merge of defaults, stored preferences,
// and request overrides (resolver.go).
package config

import (
	"fmt"
	"time"
)

// Config is the static, process-level configuration for the timeline
// service. It is loaded once at startup via LoadWithKoanf and does not
// change for the lifetime of the process.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	API      APIConfig      `koanf:"api"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
	Cache    CacheConfig    `koanf:"cache"`
	Fanout   FanoutConfig   `koanf:"fanout"`
	Live     LiveConfig     `koanf:"live"`
	Ranking  RankingConfig  `koanf:"ranking"`
	Slate    SlateConfig    `koanf:"slate"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// APIConfig holds pagination defaults for the HTTP front door.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig holds default rate-limit settings (C2) and CORS policy.
// Per-viewer overrides are resolved at request time by internal/ratelimit,
// not here; these are the service-wide fallback values.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitBurst    int           `koanf:"rate_limit_burst"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	TrustedProxies    []string      `koanf:"trusted_proxies"`
	// AuthToken, if non-empty, is the shared secret the façade's
	// authorization rule requires every request's auth_token metadata to
	// match exactly (spec.md §4.8). Empty disables the check.
	AuthToken string `koanf:"auth_token"`
}

// LoggingConfig mirrors internal/logging.Config for koanf binding.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// CacheConfig governs the two-tier slate/profile cache (C8).
type CacheConfig struct {
	SlateTTL        time.Duration `koanf:"slate_ttl"`
	ProfileTTL      time.Duration `koanf:"profile_ttl"`
	FollowSetTTL    time.Duration `koanf:"follow_set_ttl"`
	LocalMaxEntries int           `koanf:"local_max_entries"`
	LocalPath       string        `koanf:"local_path"`
	// RedisAddr, if non-empty, is the address of the remote cache tier
	// (host:port). Empty runs the cache entirely off the local Badger
	// fallback.
	RedisAddr string `koanf:"redis_addr"`
}

// FanoutConfig governs the fan-out worker (C9).
type FanoutConfig struct {
	QueueCapacity int           `koanf:"queue_capacity"`
	MaxAttempts   int           `koanf:"max_attempts"`
	RetryInitial  time.Duration `koanf:"retry_initial"`
	RetryMax      time.Duration `koanf:"retry_max"`
}

// LiveConfig governs the live-update hub (C10).
type LiveConfig struct {
	PendingQueueSize int           `koanf:"pending_queue_size"`
	MaxMsgsPerSec    int           `koanf:"max_msgs_per_sec"`
	HeartbeatWait    time.Duration `koanf:"heartbeat_wait"`
	IdleTimeout      time.Duration `koanf:"idle_timeout"`
}

// RankingConfig holds the default multi-signal ranking weights (C6). These
// are the base defaults later merged with stored preferences and
// per-request overrides by the resolver.
type RankingConfig struct {
	WeightAffinity   float64       `koanf:"weight_affinity"`
	WeightQuality    float64       `koanf:"weight_quality"`
	WeightEngagement float64       `koanf:"weight_engagement"`
	WeightRecency    float64       `koanf:"weight_recency"`
	WeightPersonal   float64       `koanf:"weight_personal"`
	DiversityLambda  float64       `koanf:"diversity_lambda"`
	HybridTweak      float64       `koanf:"hybrid_tweak"`
	RecencyHalfLife  time.Duration `koanf:"recency_half_life"`
}

// SlateConfig governs the slate assembler (C7) defaults.
type SlateConfig struct {
	MaxItems        int           `koanf:"max_items"`
	MinScore        float64       `koanf:"min_score"`
	AdapterTimeout  time.Duration `koanf:"adapter_timeout"`
	RequestDeadline time.Duration `koanf:"request_deadline"`
}

// Validate checks the static configuration for internal consistency.
// It is called automatically by LoadWithKoanf.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.API.DefaultPageSize <= 0 || c.API.DefaultPageSize > c.API.MaxPageSize {
		return fmt.Errorf("api.default_page_size (%d) must be positive and <= max_page_size (%d)",
			c.API.DefaultPageSize, c.API.MaxPageSize)
	}
	if c.Security.RateLimitReqs <= 0 {
		return fmt.Errorf("security.rate_limit_reqs must be positive")
	}
	if c.Cache.LocalMaxEntries <= 0 {
		return fmt.Errorf("cache.local_max_entries must be positive")
	}
	if c.Fanout.QueueCapacity <= 0 {
		return fmt.Errorf("fanout.queue_capacity must be positive")
	}
	if c.Fanout.MaxAttempts <= 0 {
		return fmt.Errorf("fanout.max_attempts must be positive")
	}
	if c.Live.PendingQueueSize <= 0 {
		return fmt.Errorf("live.pending_queue_size must be positive")
	}
	if c.Live.MaxMsgsPerSec <= 0 {
		return fmt.Errorf("live.max_msgs_per_sec must be positive")
	}
	if sum := c.Ranking.WeightAffinity + c.Ranking.WeightQuality + c.Ranking.WeightEngagement +
		c.Ranking.WeightRecency + c.Ranking.WeightPersonal; sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("ranking weights must sum to 1.0, got %.4f", sum)
	}
	if c.Slate.MaxItems <= 0 {
		return fmt.Errorf("slate.max_items must be positive")
	}
	return nil
}
