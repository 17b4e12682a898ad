// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/cartographus/internal/cache"
	"github.com/tomtom215/cartographus/internal/clock"
	"github.com/tomtom215/cartographus/internal/config"
	"github.com/tomtom215/cartographus/internal/memstore"
	"github.com/tomtom215/cartographus/internal/ratelimit"
	"github.com/tomtom215/cartographus/internal/slate"
	"github.com/tomtom215/cartographus/internal/sources"
	"github.com/tomtom215/cartographus/internal/timeline"
	"github.com/tomtom215/cartographus/internal/timeline/model"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Slate.MaxItems = 50
	cfg.Slate.MinScore = 0
	cfg.Cache.SlateTTL = time.Minute
	cfg.Cache.ProfileTTL = time.Hour
	cfg.Ranking.WeightRecency = 0.2
	cfg.Ranking.WeightEngagement = 0.2
	cfg.Ranking.WeightAffinity = 0.2
	cfg.Ranking.WeightQuality = 0.2
	cfg.Ranking.WeightPersonal = 0.2
	return cfg
}

// newTestHandler builds a Handler backed by a real Facade over a seeded
// memstore.Store, the same collaborators cmd/server wires in standalone
// mode, minus the fan-out worker and live hub (neither endpoint under
// test needs them).
func newTestHandler(t *testing.T) (*Handler, string) {
	t.Helper()

	store := memstore.New()
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	memstore.SeedDemoData(store, "demo-viewer", now)

	adapters := map[model.Source]sources.Adapter{
		model.SourceFollowing:   sources.NewFollowing(store, store, cache.NewTwoTierCache(nil, nil)),
		model.SourceRecommended: sources.NewRecommended(store),
		model.SourceTrending:    sources.NewTrending(store),
		model.SourceLists:       sources.NewLists(store, store),
	}
	assembler := slate.New(adapters, store, nil, func() time.Time { return now })
	limiter := ratelimit.New(1000, 100)

	facade := timeline.New(
		testConfig(),
		assembler,
		cache.NewTwoTierCache(nil, nil),
		store,
		store,
		nil,
		nil,
		limiter,
		nil,
		nil,
		clock.NewFakeClock(now),
	)

	return NewHandler(facade), "demo-viewer"
}

func decodeEnvelope(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("failed to decode response envelope: %v", err)
	}
	return env
}

func withViewerID(r *http.Request, viewerID string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("viewerID", viewerID)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestGetTimelineReturnsSeededNotes(t *testing.T) {
	h, viewerID := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/timeline/"+viewerID, nil)
	req = withViewerID(req, viewerID)
	rec := httptest.NewRecorder()

	h.GetTimeline(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec.Body.Bytes())
	if env["success"] != true {
		t.Fatalf("expected success envelope, got %v", env)
	}
}

func TestGetTimelineRejectsMismatchedCaller(t *testing.T) {
	h, viewerID := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/timeline/"+viewerID, nil)
	req.Header.Set(headerCallerID, "someone-else")
	req = withViewerID(req, viewerID)
	rec := httptest.NewRecorder()

	h.GetTimeline(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401, body = %s", rec.Code, rec.Body.String())
	}
}

func TestRefreshTimelineRejectsMalformedBody(t *testing.T) {
	h, viewerID := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/timeline/"+viewerID+"/refresh", strings.NewReader(`{"since": "not-a-time"}`))
	req = withViewerID(req, viewerID)
	rec := httptest.NewRecorder()

	h.RefreshTimeline(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
}

func TestRecordEngagementRejectsUnrecognizedAction(t *testing.T) {
	h, viewerID := newTestHandler(t)

	body := `{"viewer_id":"` + viewerID + `","note_id":"n1","action":"not-a-real-action"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/engagement", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.RecordEngagement(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHealthReportsHealthy(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", rec.Code, rec.Body.String())
	}
}
