// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package timeline

import "github.com/tomtom215/cartographus/internal/timeline/model"

// RequestMetadata carries the accepted request-metadata names from
// spec.md §6 as named fields rather than a raw map, grounded on the
// teacher's authz.AuditEvent typed-field-over-raw-map convention
// (internal/authz/audit.go).
type RequestMetadata struct {
	CallerID        string
	Admin           bool
	AuthToken       string
	RateRPM         int
	ABWeights       map[model.Source]float64
	Caps            map[model.Source]int
	DiscoveryShare  *float64
	UseOverdrive    bool
	URLTTLSeconds   int
}

// Overrides projects the AB-weight, cap, discovery-share, and overdrive
// fields into a model.RequestOverrides for the config resolver's merge.
func (m RequestMetadata) Overrides() model.RequestOverrides {
	return model.RequestOverrides{
		CapsPerSource:      m.Caps,
		ABWeightsPerSource: m.ABWeights,
		DiscoveryShare:     m.DiscoveryShare,
		UseOverdrive:       m.UseOverdrive,
	}
}

// authorized implements the §4.8 authorization rule: if CallerID is set
// and differs from viewerID, Admin must be true; if requiredToken is
// non-empty, AuthToken must match it exactly.
func (m RequestMetadata) authorized(viewerID, requiredToken string) bool {
	if requiredToken != "" && m.AuthToken != requiredToken {
		return false
	}
	if m.CallerID != "" && m.CallerID != viewerID && !m.Admin {
		return false
	}
	return true
}

// rateLimitKey returns the per-viewer, per-endpoint-class key the
// service's rate limiter buckets on.
func rateLimitKey(viewerID, endpointClass string) string {
	return viewerID + ":" + endpointClass
}
