// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tomtom215/cartographus/internal/api"
	"github.com/tomtom215/cartographus/internal/cache"
	"github.com/tomtom215/cartographus/internal/clock"
	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/fanout"
	"github.com/tomtom215/cartographus/internal/live"
	"github.com/tomtom215/cartographus/internal/logging"
	"github.com/tomtom215/cartographus/internal/memstore"
	"github.com/tomtom215/cartographus/internal/ratelimit"
	"github.com/tomtom215/cartographus/internal/reputation"
	"github.com/tomtom215/cartographus/internal/slate"
	"github.com/tomtom215/cartographus/internal/sources"
	"github.com/tomtom215/cartographus/internal/supervisor"
	"github.com/tomtom215/cartographus/internal/timeline"
	"github.com/tomtom215/cartographus/internal/timeline/model"
)

// demoViewerID seeds memstore's standalone dataset around a single
// viewer so a first run has something to serve at
// /v1/timeline/demo-viewer without any external configuration.
const demoViewerID = "demo-viewer"

//nolint:gocyclo // sequential startup wiring, mirrors the teacher's main.
func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting timeline service with supervisor tree")

	clk := clock.RealClock{}

	// Two-tier cache (C8): Redis primary when configured, Badger local
	// fallback always present.
	var remote cache.RemoteStore
	if cfg.Cache.RedisAddr != "" {
		remote = cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr}))
		logging.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Remote cache tier configured")
	} else {
		logging.Info().Msg("No cache.redis_addr configured; running cache off the local tier only")
	}
	localFallback, err := cache.NewLocalFallback(cfg.Cache.LocalPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open local cache fallback")
	}
	defer func() {
		if err := localFallback.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing local cache fallback")
		}
	}()
	twoTier := cache.NewTwoTierCache(remote, localFallback)

	// Standalone-mode NoteService/FollowGraph/ListsService (spec.md §6
	// defines these as interfaces the host application implements; a
	// production deployment wires its own note store and follow graph
	// here instead of memstore.Store).
	store := memstore.New()
	memstore.SeedDemoData(store, demoViewerID, clk.Now())
	logging.Info().Str("viewer_id", demoViewerID).Msg("Seeded standalone in-memory dataset")

	adapters := map[model.Source]sources.Adapter{
		model.SourceFollowing:   sources.NewFollowing(store, store, twoTier),
		model.SourceRecommended: sources.NewRecommended(store),
		model.SourceTrending:    sources.NewTrending(store),
		model.SourceLists:       sources.NewLists(store, store),
	}

	reputationStore := reputation.New()
	assembler := slate.New(adapters, store, reputationStore, clk.Now)

	liveHub := live.NewHub(live.Config{
		PendingQueueSize: cfg.Live.PendingQueueSize,
		MaxMsgsPerSec:    cfg.Live.MaxMsgsPerSec,
		HeartbeatWait:    cfg.Live.HeartbeatWait,
		IdleTimeout:      cfg.Live.IdleTimeout,
	})
	fanoutWorker := fanout.New(twoTier, store, liveHub, clk.Now, fanout.Config{
		QueueCapacity: cfg.Fanout.QueueCapacity,
		MaxAttempts:   cfg.Fanout.MaxAttempts,
		RetryInitial:  cfg.Fanout.RetryInitial,
		RetryMax:      cfg.Fanout.RetryMax,
	})
	limiter := ratelimit.New(cfg.Security.RateLimitReqs, cfg.Security.RateLimitBurst)

	facade := timeline.New(
		cfg,
		assembler,
		twoTier,
		store,
		store,
		fanoutWorker,
		liveHub,
		limiter,
		nil, // OptionalRanker: no use_overdrive re-ranker wired in standalone mode
		reputationStore,
		clk,
	)

	handler := api.NewHandler(facade)
	chiMW := api.NewChiMiddlewareFromAuth(
		cfg.Security.CORSOrigins,
		cfg.Security.RateLimitReqs,
		cfg.Security.RateLimitWindow,
		cfg.Security.RateLimitDisabled,
	)
	router := api.NewRouter(handler, chiMW)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddMessagingService(fanoutWorker)
	logging.Info().Msg("Fan-out worker added to supervisor tree")

	tree.AddAPIService(supervisor.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
