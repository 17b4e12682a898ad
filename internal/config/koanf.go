// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/timelinecore/config.yaml",
	"/etc/timelinecore/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Security: SecurityConfig{
			RateLimitReqs:     300,
			RateLimitBurst:    50,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
			TrustedProxies:    []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Cache: CacheConfig{
			SlateTTL:        2 * time.Minute,
			ProfileTTL:      30 * time.Minute,
			FollowSetTTL:    1 * time.Minute,
			LocalMaxEntries: 50000,
			LocalPath:       "/data/timelinecore/cache",
			RedisAddr:       "",
		},
		Fanout: FanoutConfig{
			QueueCapacity: 10000,
			MaxAttempts:   5,
			RetryInitial:  100 * time.Millisecond,
			RetryMax:      5 * time.Second,
		},
		Live: LiveConfig{
			PendingQueueSize: 256,
			MaxMsgsPerSec:    10,
			HeartbeatWait:    20 * time.Second,
			IdleTimeout:      10 * time.Minute,
		},
		Ranking: RankingConfig{
			WeightAffinity:   0.30,
			WeightQuality:    0.20,
			WeightEngagement: 0.25,
			WeightRecency:    0.15,
			WeightPersonal:   0.10,
			DiversityLambda:  0.7,
			HybridTweak:      0.15,
			RecencyHalfLife:  6 * time.Hour,
		},
		Slate: SlateConfig{
			MaxItems:        100,
			MinScore:        0.0,
			AdapterTimeout:  2 * time.Second,
			RequestDeadline: 5 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function is the preferred way to load configuration and provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// RATE_LIMIT_REQUESTS -> security.rate_limit_reqs
	// CACHE_SLATE_TTL -> cache.slate_ttl
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.trusted_proxies",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - RATE_LIMIT_REQUESTS -> security.rate_limit_reqs
//   - CACHE_SLATE_TTL -> cache.slate_ttl
//   - FANOUT_QUEUE_CAPACITY -> fanout.queue_capacity
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_port":   "server.port",
		"http_host":   "server.host",
		"http_timeout": "server.timeout",
		"environment": "server.environment",

		// API mappings
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",

		// Security / rate limit mappings
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_burst":    "security.rate_limit_burst",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",
		"trusted_proxies":     "security.trusted_proxies",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Cache mappings
		"cache_slate_ttl":         "cache.slate_ttl",
		"cache_profile_ttl":       "cache.profile_ttl",
		"cache_follow_set_ttl":    "cache.follow_set_ttl",
		"cache_local_max_entries": "cache.local_max_entries",
		"cache_local_path":        "cache.local_path",
		"cache_redis_addr":        "cache.redis_addr",

		// Fan-out mappings
		"fanout_queue_capacity": "fanout.queue_capacity",
		"fanout_max_attempts":   "fanout.max_attempts",
		"fanout_retry_initial":  "fanout.retry_initial",
		"fanout_retry_max":      "fanout.retry_max",

		// Live-update mappings
		"live_pending_queue_size": "live.pending_queue_size",
		"live_max_msgs_per_sec":   "live.max_msgs_per_sec",
		"live_heartbeat_wait":     "live.heartbeat_wait",
		"live_idle_timeout":       "live.idle_timeout",

		// Ranking mappings
		"ranking_weight_affinity":   "ranking.weight_affinity",
		"ranking_weight_quality":    "ranking.weight_quality",
		"ranking_weight_engagement": "ranking.weight_engagement",
		"ranking_weight_recency":    "ranking.weight_recency",
		"ranking_weight_personal":   "ranking.weight_personal",
		"ranking_diversity_lambda":  "ranking.diversity_lambda",
		"ranking_hybrid_tweak":      "ranking.hybrid_tweak",
		"ranking_recency_half_life": "ranking.recency_half_life",

		// Slate mappings
		"slate_max_items":        "slate.max_items",
		"slate_min_score":        "slate.min_score",
		"slate_adapter_timeout":  "slate.adapter_timeout",
		"slate_request_deadline": "slate.request_deadline",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them.
	// This prevents random environment variables from polluting config.
	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage.
// This is useful for:
//   - Hot-reload scenarios (with proper mutex protection)
//   - Custom configuration sources
//   - Testing with mock configurations
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// Note: The caller is responsible for mutex protection when accessing
// configuration during reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
