// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cartographus/internal/timeline"
	"github.com/tomtom215/cartographus/internal/timeline/model"
	"github.com/tomtom215/cartographus/internal/timelineerr"
	"github.com/tomtom215/cartographus/internal/transport/wsstream"
	"github.com/tomtom215/cartographus/internal/validation"
)

// decodeJSON decodes r's body into v, rejecting unknown fields so a
// client's typo in a request payload fails loudly instead of silently
// no-op-ing.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Handler contains the dependencies every timeline endpoint needs: the
// request façade (C11) that does all the work, and nothing else —
// handlers here only translate HTTP into façade calls and back.
type Handler struct {
	facade *timeline.Facade
}

// NewHandler returns a Handler fronting facade.
func NewHandler(facade *timeline.Facade) *Handler {
	return &Handler{facade: facade}
}

// writeTimelineError translates a timelineerr.Kind into the matching
// HTTP status and writes it through the standard response envelope.
func writeTimelineError(rw *ResponseWriter, err error) {
	switch timelineerr.KindOf(err) {
	case timelineerr.KindUnauthorized:
		rw.Unauthorized(err.Error())
	case timelineerr.KindRateLimited:
		rw.TooManyRequests(err.Error())
	case timelineerr.KindInvalidArgument:
		rw.BadRequest(err.Error())
	case timelineerr.KindNotFound:
		rw.NotFound(err.Error())
	case timelineerr.KindUpstreamFailure, timelineerr.KindDegradedSource:
		rw.ServiceUnavailable(err.Error())
	default:
		rw.InternalError(err.Error())
	}
}

// parsePagination reads offset/limit query parameters into a
// timeline.Pagination. limit is left nil unless the request's query
// string actually carries a limit param, so the façade's paginate()
// can tell "no limit given" (apply its default) apart from an explicit
// "limit=0" (an empty page).
func parsePagination(r *http.Request) timeline.Pagination {
	q := r.URL.Query()
	pag := timeline.Pagination{}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		pag.Offset = v
	}
	if q.Has("limit") {
		if v, err := strconv.Atoi(q.Get("limit")); err == nil {
			pag.Limit = &v
		}
	}
	return pag
}

// GetTimeline serves the default (hybrid, per-viewer-config) timeline.
//
// Method: GET
// Path: /v1/timeline/{viewerID}
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	viewerID := chi.URLParam(r, "viewerID")

	page, err := h.facade.GetTimeline(r.Context(), Metadata(r), viewerID, parsePagination(r))
	if err != nil {
		writeTimelineError(rw, err)
		return
	}
	rw.Success(page)
}

// GetForYouTimeline serves the discovery-weighted timeline variant.
//
// Method: GET
// Path: /v1/timeline/{viewerID}/for-you
func (h *Handler) GetForYouTimeline(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	viewerID := chi.URLParam(r, "viewerID")

	page, err := h.facade.GetForYouTimeline(r.Context(), Metadata(r), viewerID, parsePagination(r))
	if err != nil {
		writeTimelineError(rw, err)
		return
	}
	rw.Success(page)
}

// GetFollowingTimeline serves the chronological, following-only variant.
//
// Method: GET
// Path: /v1/timeline/{viewerID}/following
func (h *Handler) GetFollowingTimeline(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	viewerID := chi.URLParam(r, "viewerID")

	page, err := h.facade.GetFollowingTimeline(r.Context(), Metadata(r), viewerID, parsePagination(r))
	if err != nil {
		writeTimelineError(rw, err)
		return
	}
	rw.Success(page)
}

// GetUserTimeline serves another user's profile timeline, filtered by
// that user's note visibility against the requester.
//
// Method: GET
// Path: /v1/users/{id}/timeline?requester_id=...&include_replies=...&include_reposts=...
func (h *Handler) GetUserTimeline(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	targetID := chi.URLParam(r, "id")
	requesterID := r.URL.Query().Get("requester_id")
	includeReplies := r.URL.Query().Get("include_replies") == "true"
	includeReposts := r.URL.Query().Get("include_reposts") == "true"

	page, err := h.facade.GetUserTimeline(r.Context(), Metadata(r), targetID, requesterID, parsePagination(r), includeReplies, includeReposts)
	if err != nil {
		writeTimelineError(rw, err)
		return
	}
	rw.Success(page)
}

// refreshTimelineRequest is the POST /v1/timeline/{viewerID}/refresh body.
type refreshTimelineRequest struct {
	Since    time.Time `json:"since"`
	MaxItems int       `json:"max_items" validate:"omitempty,min=1,max=1000"`
}

// RefreshTimeline serves only items newer than Since, for incremental
// client-side polling.
//
// Method: POST
// Path: /v1/timeline/{viewerID}/refresh
func (h *Handler) RefreshTimeline(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	viewerID := chi.URLParam(r, "viewerID")

	var req refreshTimelineRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest("malformed request body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	page, err := h.facade.RefreshTimeline(r.Context(), Metadata(r), viewerID, req.Since, req.MaxItems)
	if err != nil {
		writeTimelineError(rw, err)
		return
	}
	rw.Success(page)
}

// markTimelineReadRequest is the POST /v1/timeline/{viewerID}/read body.
type markTimelineReadRequest struct {
	ReadUntil time.Time `json:"read_until" validate:"required"`
}

// MarkTimelineRead advances the viewer's read watermark.
//
// Method: POST
// Path: /v1/timeline/{viewerID}/read
func (h *Handler) MarkTimelineRead(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	viewerID := chi.URLParam(r, "viewerID")

	var req markTimelineReadRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest("malformed request body")
		return
	}

	if err := h.facade.MarkTimelineRead(r.Context(), Metadata(r), viewerID, req.ReadUntil); err != nil {
		writeTimelineError(rw, err)
		return
	}
	rw.NoContent()
}

// GetPreferences returns the viewer's stored timeline preferences.
//
// Method: GET
// Path: /v1/preferences/{viewerID}
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	viewerID := chi.URLParam(r, "viewerID")

	prefs, err := h.facade.GetPreferences(r.Context(), Metadata(r), viewerID)
	if err != nil {
		writeTimelineError(rw, err)
		return
	}
	rw.Success(prefs)
}

// UpdatePreferences replaces the viewer's stored timeline preferences.
//
// Method: PUT
// Path: /v1/preferences/{viewerID}
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	viewerID := chi.URLParam(r, "viewerID")

	var prefs model.TimelinePreferences
	if err := decodeJSON(r, &prefs); err != nil {
		rw.BadRequest("malformed request body")
		return
	}

	if err := h.facade.UpdatePreferences(r.Context(), Metadata(r), viewerID, prefs); err != nil {
		writeTimelineError(rw, err)
		return
	}
	rw.NoContent()
}

// recordEngagementRequest is the POST /v1/engagement body.
type recordEngagementRequest struct {
	ViewerID        string  `json:"viewer_id" validate:"required"`
	NoteID          string  `json:"note_id" validate:"required"`
	Action          string  `json:"action" validate:"required"`
	DurationSeconds float64 `json:"duration_seconds" validate:"omitempty,min=0"`
}

// RecordEngagement records a viewer's interaction with a note and
// applies its author-affinity and global-reputation effects.
//
// Method: POST
// Path: /v1/engagement
func (h *Handler) RecordEngagement(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req recordEngagementRequest
	if err := decodeJSON(r, &req); err != nil {
		rw.BadRequest("malformed request body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	action, ok := model.ParseEngagementAction(req.Action)
	if !ok {
		rw.BadRequest("unrecognized engagement action: " + req.Action)
		return
	}

	if err := h.facade.RecordEngagement(r.Context(), Metadata(r), req.ViewerID, req.NoteID, action, req.DurationSeconds); err != nil {
		writeTimelineError(rw, err)
		return
	}
	rw.NoContent()
}

// SubscribeTimelineUpdates upgrades the connection to a WebSocket and
// streams live.Hub updates for viewerID until the client disconnects.
//
// Method: GET
// Path: /v1/timeline/{viewerID}/updates
func (h *Handler) SubscribeTimelineUpdates(w http.ResponseWriter, r *http.Request) {
	viewerID := chi.URLParam(r, "viewerID")
	meta := Metadata(r)

	conn, err := wsstream.Upgrade(w, r)
	if err != nil {
		return
	}

	session, err := h.facade.SubscribeTimelineUpdates(r.Context(), meta, viewerID, conn)
	if err != nil {
		rw := NewResponseWriter(w, r)
		writeTimelineError(rw, err)
		_ = conn.Close()
		return
	}

	conn.ReadUntilClose(func() {
		h.facade.UnsubscribeTimelineUpdates(viewerID, session)
	})
}

// Health reports cache-tier and fan-out-queue status.
//
// Method: GET
// Path: /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	status := h.facade.HealthCheck(r.Context())
	if !status.Healthy {
		rw.ServiceUnavailable("timeline service degraded")
		return
	}
	rw.Success(status)
}
