// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package config

import (
	"fmt"

	"github.com/tomtom215/cartographus/internal/timeline/model"
)

// DefaultViewerConfig returns the hard-coded service defaults layer of the
// three-way merge, derived from the static Config's Ranking and Slate
// sections. It is the base every request starts from before stored
// preferences and per-request overrides are applied.
func DefaultViewerConfig(cfg *Config) model.EffectiveConfig {
	return model.EffectiveConfig{
		Algorithm:         model.AlgorithmHybrid,
		MaxItems:          cfg.Slate.MaxItems,
		MaxAgeHours:       defaultMaxAgeHours,
		MinScoreThreshold: cfg.Slate.MinScore,
		Weights: model.Weights{
			Recency:        cfg.Ranking.WeightRecency,
			Engagement:     cfg.Ranking.WeightEngagement,
			AuthorAffinity: cfg.Ranking.WeightAffinity,
			ContentQuality: cfg.Ranking.WeightQuality,
			Diversity:      cfg.Ranking.DiversityLambda,
		},
		Mix: model.Mix{
			FollowingRatio:   0.5,
			RecommendedRatio: 0.25,
			TrendingRatio:    0.15,
			ListsRatio:       0.10,
		},
		CapsPerSource: map[model.Source]int{
			model.SourceFollowing:   cfg.Slate.MaxItems,
			model.SourceRecommended: cfg.Slate.MaxItems / 2,
			model.SourceTrending:    cfg.Slate.MaxItems / 3,
			model.SourceLists:       cfg.Slate.MaxItems / 3,
		},
		ABWeightsPerSource: map[model.Source]float64{
			model.SourceFollowing:   1.0,
			model.SourceRecommended: 1.0,
			model.SourceTrending:    1.0,
			model.SourceLists:       1.0,
		},
	}
}

// defaultMaxAgeHours bounds how far back source adapters look for
// candidate notes when no preference or override narrows the window.
const defaultMaxAgeHours = 72.0

// Merge computes the effective per-request configuration by the
// three-way merge spec.md §4.2 requires:
//
//  1. Hard-coded service defaults (base).
//  2. Stored TimelinePreferences for the viewer, if any. A stored value
//     of zero or negative is treated as "use default" rather than
//     literally applied.
//  3. Per-request experiment overrides read from request metadata
//     (weights, per-source caps, discovery share).
//
// forFollowingEndpoint forces algorithm=chronological and a 100%
// following mix, overriding both stored preferences and overrides, per
// the Following endpoint's contract.
func Merge(base model.EffectiveConfig, stored *model.TimelinePreferences, overrides model.RequestOverrides, forFollowingEndpoint bool) model.EffectiveConfig {
	out := base

	if stored != nil {
		applyStoredPreferences(&out, stored)
	}

	applyOverrides(&out, overrides)

	if forFollowingEndpoint {
		out.Algorithm = model.AlgorithmChronological
		out.Mix = model.Mix{FollowingRatio: 1.0}
	}

	return out
}

// applyStoredPreferences overlays non-zero, positive stored values onto
// the base config. Zero/negative numeric fields and empty maps are
// treated as unset.
func applyStoredPreferences(out *model.EffectiveConfig, stored *model.TimelinePreferences) {
	if stored.MaxItems > 0 {
		out.MaxItems = stored.MaxItems
	}
	if stored.MaxAgeHours > 0 {
		out.MaxAgeHours = stored.MaxAgeHours
	}
	if stored.MinScoreThreshold > 0 {
		out.MinScoreThreshold = stored.MinScoreThreshold
	}
	out.Algorithm = stored.Algorithm

	mergeWeight(&out.Weights.Recency, stored.Weights.Recency)
	mergeWeight(&out.Weights.Engagement, stored.Weights.Engagement)
	mergeWeight(&out.Weights.AuthorAffinity, stored.Weights.AuthorAffinity)
	mergeWeight(&out.Weights.ContentQuality, stored.Weights.ContentQuality)
	mergeWeight(&out.Weights.Diversity, stored.Weights.Diversity)

	mergeMixRatio(&out.Mix.FollowingRatio, stored.Mix.FollowingRatio)
	mergeMixRatio(&out.Mix.RecommendedRatio, stored.Mix.RecommendedRatio)
	mergeMixRatio(&out.Mix.TrendingRatio, stored.Mix.TrendingRatio)
	mergeMixRatio(&out.Mix.ListsRatio, stored.Mix.ListsRatio)

	for source, cap := range stored.CapsPerSource {
		if cap > 0 {
			out.CapsPerSource[source] = cap
		}
	}
}

// mergeWeight overlays a stored weight only when it is strictly positive.
func mergeWeight(dst *float64, stored float64) {
	if stored > 0 {
		*dst = stored
	}
}

// mergeMixRatio overlays a stored mix ratio only when it is strictly
// positive.
func mergeMixRatio(dst *float64, stored float64) {
	if stored > 0 {
		*dst = stored
	}
}

// applyOverrides layers per-request experiment overrides on top of the
// defaults+preferences result, including the discovery_share rescale.
func applyOverrides(out *model.EffectiveConfig, overrides model.RequestOverrides) {
	if overrides.Weights != nil {
		w := *overrides.Weights
		mergeWeight(&out.Weights.Recency, w.Recency)
		mergeWeight(&out.Weights.Engagement, w.Engagement)
		mergeWeight(&out.Weights.AuthorAffinity, w.AuthorAffinity)
		mergeWeight(&out.Weights.ContentQuality, w.ContentQuality)
		mergeWeight(&out.Weights.Diversity, w.Diversity)
	}

	for source, cap := range overrides.CapsPerSource {
		if cap > 0 {
			out.CapsPerSource[source] = cap
		}
	}

	for source, w := range overrides.ABWeightsPerSource {
		if w > 0 {
			out.ABWeightsPerSource[source] = w
		}
	}

	if overrides.DiscoveryShare != nil {
		applyDiscoveryShare(out, *overrides.DiscoveryShare)
	}
}

// applyDiscoveryShare rescales recommended+trending+lists ratios to sum
// to discoveryShare and sets following_ratio = 1 - discoveryShare, per
// spec.md §4.2. discoveryShare outside [0,1] is clamped.
func applyDiscoveryShare(out *model.EffectiveConfig, discoveryShare float64) {
	if discoveryShare < 0 {
		discoveryShare = 0
	}
	if discoveryShare > 1 {
		discoveryShare = 1
	}

	discoverySum := out.Mix.RecommendedRatio + out.Mix.TrendingRatio + out.Mix.ListsRatio
	out.Mix.FollowingRatio = 1 - discoveryShare

	if discoverySum <= 0 {
		// No discovery signal to rescale; split evenly.
		share := discoveryShare / 3
		out.Mix.RecommendedRatio = share
		out.Mix.TrendingRatio = share
		out.Mix.ListsRatio = share
		return
	}

	scale := discoveryShare / discoverySum
	out.Mix.RecommendedRatio *= scale
	out.Mix.TrendingRatio *= scale
	out.Mix.ListsRatio *= scale
}

// ValidateEffectiveConfig checks a resolved EffectiveConfig for internal
// consistency, catching merge results that would violate slate
// invariants before the assembler ever runs.
func ValidateEffectiveConfig(cfg model.EffectiveConfig) error {
	if cfg.MaxItems <= 0 {
		return fmt.Errorf("resolved max_items must be positive, got %d", cfg.MaxItems)
	}
	if cfg.MaxAgeHours <= 0 {
		return fmt.Errorf("resolved max_age_hours must be positive, got %f", cfg.MaxAgeHours)
	}
	if cfg.MinScoreThreshold < 0 {
		return fmt.Errorf("resolved min_score_threshold must be non-negative, got %f", cfg.MinScoreThreshold)
	}
	return nil
}
