// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package api provides the HTTP front door for the timeline service: the
Chi router and handlers that translate HTTP requests into calls against
the internal/timeline request façade (C11), and its responses back into
the standardized JSON envelope.

Key Components:

  - Router (routes.go): Chi route tree wiring each façade endpoint.
  - HandlerContext (handler_context.go): extracts the caller's identity
    and the façade's RequestMetadata from request headers.
  - Response formatting (response.go): a consistent {success, data, error,
    meta} envelope across every endpoint.
  - ChiMiddleware (chi_middleware.go): CORS (go-chi/cors), rate limiting
    (go-chi/httprate), request-ID propagation, and admin/auth guards.

Endpoints:

  - GET    /v1/timeline/{viewerID}
  - GET    /v1/timeline/{viewerID}/for-you
  - GET    /v1/timeline/{viewerID}/following
  - GET    /v1/users/{id}/timeline
  - POST   /v1/timeline/{viewerID}/refresh
  - POST   /v1/timeline/{viewerID}/read
  - GET    /v1/preferences/{viewerID}
  - PUT    /v1/preferences/{viewerID}
  - POST   /v1/engagement
  - GET    /v1/timeline/{viewerID}/updates (WebSocket upgrade)
  - GET    /healthz

Security:

The façade itself enforces spec.md §4.8's authorization rule (caller_id
vs viewer_id, the optional auth_token), so this layer's job is purely to
extract the metadata from the request and translate the façade's
timelineerr.Kind back into an HTTP status, not to reimplement
authorization logic.

See Also:

  - internal/timeline: the request façade this package fronts.
  - internal/middleware: transport-level HTTP middleware (compression,
    request ID, Prometheus).
  - internal/validation: request payload validation.
*/
package api
