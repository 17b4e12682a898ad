// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package api provides HTTP routing using the Chi router (ADR-0016).
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tomtom215/cartographus/internal/middleware"
)

// chiMiddleware adapts an http.HandlerFunc middleware to Chi's
// func(http.Handler) http.Handler, letting internal/middleware's
// existing functions register with r.Use().
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Router assembles the Chi route tree fronting the timeline service.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter returns a Router wiring handler behind chiMW.
func NewRouter(handler *Handler, chiMW *ChiMiddleware) *Router {
	return &Router{handler: handler, chiMiddleware: chiMW}
}

// SetupChi builds the full route tree and middleware stack.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chiMiddleware(middleware.Compression))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))
	r.Use(router.chiMiddleware.CORS())

	// ========================
	// Health
	// ========================
	r.Route("/healthz", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/", router.handler.Health)
	})

	// ========================
	// Timeline endpoints
	// ========================
	// The façade enforces caller_id/admin/auth_token authorization itself
	// (spec.md §4.8), so this layer's only auth-adjacent guard is the
	// generic rate limiter; RequireAuthMiddleware is reserved for
	// endpoints with no viewer_id in the path to key the façade's own
	// rule off of.
	r.Route("/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())

		r.Get("/timeline/{viewerID}", router.handler.GetTimeline)
		r.Get("/timeline/{viewerID}/for-you", router.handler.GetForYouTimeline)
		r.Get("/timeline/{viewerID}/following", router.handler.GetFollowingTimeline)
		r.Get("/timeline/{viewerID}/updates", router.handler.SubscribeTimelineUpdates)

		r.With(router.chiMiddleware.RateLimitWrite()).Post("/timeline/{viewerID}/refresh", router.handler.RefreshTimeline)
		r.With(router.chiMiddleware.RateLimitWrite()).Post("/timeline/{viewerID}/read", router.handler.MarkTimelineRead)

		r.Get("/users/{id}/timeline", router.handler.GetUserTimeline)

		r.Get("/preferences/{viewerID}", router.handler.GetPreferences)
		r.With(router.chiMiddleware.RateLimitWrite()).Put("/preferences/{viewerID}", router.handler.UpdatePreferences)

		r.With(router.chiMiddleware.RateLimitWrite()).Post("/engagement", router.handler.RecordEngagement)
	})

	return r
}
