// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package api's handler context extracts the façade's RequestMetadata and
// the path-addressed viewer_id from an HTTP request, replacing the
// session/OAuth-derived AuthSubject the teacher's handler_context.go built
// this same shape from. The timeline service's authorization model is the
// façade's own caller_id/admin/auth_token request-metadata rule (spec.md
// §4.8, §6), not a session store, so there is no subject to look up —
// every field here comes straight off request headers.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/tomtom215/cartographus/internal/timeline"
)

// Header names the façade's request-metadata contract is read from.
const (
	headerCallerID      = "X-Caller-Id"
	headerAdmin         = "X-Admin"
	headerAuthToken     = "X-Auth-Token"
	headerRateRPM       = "X-Rate-Rpm"
	headerUseOverdrive  = "X-Use-Overdrive"
	headerURLTTLSeconds = "X-Url-Ttl-Seconds"
)

// HandlerContext carries the caller identity and metadata a façade
// endpoint call needs, extracted once per request.
type HandlerContext struct {
	CallerID string
	Admin    bool
	present  bool
}

// GetHandlerContext extracts a HandlerContext from the request's headers.
// A request with no X-Caller-Id header is anonymous: IsAuthenticated
// reports false, and the façade's authorization rule only engages when a
// caller_id is actually present (spec.md §4.8 — the rule is a no-op when
// caller_id is unset).
func GetHandlerContext(r *http.Request) *HandlerContext {
	callerID := r.Header.Get(headerCallerID)
	return &HandlerContext{
		CallerID: callerID,
		Admin:    r.Header.Get(headerAdmin) == "true",
		present:  callerID != "",
	}
}

// IsAuthenticated reports whether the request carried a caller identity.
func (hctx *HandlerContext) IsAuthenticated() bool {
	return hctx != nil && hctx.present
}

// RequireAdmin returns an error unless the request identifies an admin
// caller.
func (hctx *HandlerContext) RequireAdmin() error {
	if !hctx.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	if !hctx.Admin {
		return ErrNotAuthorized
	}
	return nil
}

// Metadata builds the timeline.RequestMetadata the façade expects,
// reading the remaining accepted metadata names (spec.md §6) straight off
// r's headers.
func Metadata(r *http.Request) timeline.RequestMetadata {
	meta := timeline.RequestMetadata{
		CallerID:     r.Header.Get(headerCallerID),
		Admin:        r.Header.Get(headerAdmin) == "true",
		AuthToken:    r.Header.Get(headerAuthToken),
		UseOverdrive: r.Header.Get(headerUseOverdrive) == "true",
	}
	if v, err := strconv.Atoi(r.Header.Get(headerRateRPM)); err == nil {
		meta.RateRPM = v
	}
	if v, err := strconv.Atoi(r.Header.Get(headerURLTTLSeconds)); err == nil {
		meta.URLTTLSeconds = v
	}
	return meta
}

// Handler authorization errors.
var (
	// ErrNotAuthenticated is returned when a request carries no caller
	// identity but the endpoint requires one.
	ErrNotAuthenticated = &AuthError{
		Code:       "AUTH_REQUIRED",
		Message:    "caller identity required",
		StatusCode: http.StatusUnauthorized,
	}

	// ErrNotAuthorized is returned when the caller lacks the admin flag an
	// endpoint requires.
	ErrNotAuthorized = &AuthError{
		Code:       "FORBIDDEN",
		Message:    "admin privileges required",
		StatusCode: http.StatusForbidden,
	}
)

// AuthError is a structured authorization failure, kept separate from
// APIError (response.go) to avoid conflating transport-layer encoding
// with the authorization decision itself.
type AuthError struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *AuthError) Error() string {
	return e.Message
}

// RespondAuthError writes an authorization error response in the
// standard API envelope.
func RespondAuthError(w http.ResponseWriter, err error) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		respondError(w, authErr.StatusCode, authErr.Code, authErr.Message)
		return
	}
	respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "authorization check failed")
}

// respondError writes a minimal error envelope without requiring the
// *http.Request a ResponseWriter normally carries for request-ID
// correlation; handler_context errors fire before routing has a request
// in scope in some call sites (e.g. directly from middleware).
func respondError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	w.Write([]byte(`{"success":false,"error":{"code":"` + code + `","message":"` + message + `"}}`))
}
