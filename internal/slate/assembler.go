// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package slate implements the slate assembler (C7): the six-step
// pipeline that turns an EffectiveConfig and a viewer ID into an
// ordered, bounded Slate. Candidate collection fans out to the four
// source adapters concurrently via golang.org/x/sync/errgroup, grounded
// on the teacher's sync.WaitGroup-based parallel-then-join pattern in
// internal/recommend/engine.go's runAlgorithmPredictions, upgraded to
// errgroup so a canceled context or adapter panic surfaces without
// extra bookkeeping. Merge order is fixed Following->Recommended->
// Trending->Lists for deterministic first-seen dedup, mirroring the
// teacher's websocket.Hub "DETERMINISM" sort-before-iterate convention.
package slate

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/cartographus/internal/filter"
	"github.com/tomtom215/cartographus/internal/ranking"
	"github.com/tomtom215/cartographus/internal/sources"
	"github.com/tomtom215/cartographus/internal/timeline/model"
)

// sourceOrder is the fixed merge order used for deterministic dedup.
var sourceOrder = []model.Source{
	model.SourceFollowing,
	model.SourceRecommended,
	model.SourceTrending,
	model.SourceLists,
}

// ReputationProvider supplies a global, author-level reputation signal
// consumed by the ranking engine's author-affinity score. A nil
// provider is treated as "no reputation data", i.e. every author scores
// zero on that share.
type ReputationProvider interface {
	Reputation(ctx context.Context, authorID string) float64
}

// Assembler builds Slates from the four content sources, per spec.md
// §4.6.
type Assembler struct {
	adapters    map[model.Source]sources.Adapter
	followGraph sources.FollowGraph
	reputation  ReputationProvider
	now         func() time.Time
}

// New returns an Assembler wired to its four source adapters. followGraph
// resolves IsFollowed for the ranking engine's author-affinity signal;
// reputation may be nil.
func New(adapters map[model.Source]sources.Adapter, followGraph sources.FollowGraph, reputation ReputationProvider, now func() time.Time) *Assembler {
	if now == nil {
		now = time.Now
	}
	return &Assembler{adapters: adapters, followGraph: followGraph, reputation: reputation, now: now}
}

// Assemble runs the six-step pipeline and returns the resulting Slate.
// An adapter that errors or times out contributes zero notes and its
// source name is recorded in DegradedSources; Assemble itself never
// returns an error — an all-sources-degraded run yields an empty Slate.
func (a *Assembler) Assemble(ctx context.Context, viewerID string, cfg model.EffectiveConfig, profile model.EngagementProfile) model.Slate {
	now := a.now()
	since := now.Add(-time.Duration(cfg.MaxAgeHours * float64(time.Hour)))

	candidatesBySource, degraded := a.collect(ctx, viewerID, cfg, profile, since)

	merged := dedup(candidatesBySource)

	kept := make([]model.Note, 0, len(merged))
	for _, c := range merged {
		if ok, _ := filter.Accept(c.note, profile); ok {
			kept = append(kept, c.note)
		}
	}

	followSet := a.resolveFollowSet(ctx, viewerID)

	items := a.score(kept, candidatesBySource, cfg, profile, followSet, now)

	slate := model.Slate{
		ViewerID:        viewerID,
		Items:           a.walk(items, cfg),
		GeneratedAt:     now,
		DegradedSources: degraded,
	}
	return slate
}

// candidate pairs a note with the source it was fetched from, needed
// after dedup to resolve each kept note's originating source.
type candidate struct {
	note   model.Note
	source model.Source
}

// collect fans out to every source with ratio_S > 0 concurrently, per
// step 2, enforcing each source's computed budget and per-source cap.
func (a *Assembler) collect(ctx context.Context, viewerID string, cfg model.EffectiveConfig, profile model.EngagementProfile, since time.Time) (map[model.Source][]model.Note, []string) {
	results := make(map[model.Source][]model.Note, len(sourceOrder))
	var degraded []string

	type outcome struct {
		source model.Source
		notes  []model.Note
		err    error
	}
	outcomes := make([]outcome, len(sourceOrder))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sourceOrder {
		i, src := i, src
		ratio := ratioFor(cfg.Mix, src)
		if ratio <= 0 {
			continue
		}
		adapter, ok := a.adapters[src]
		if !ok {
			continue
		}
		budget := sourceBudget(cfg, src, ratio)
		if budget <= 0 {
			continue
		}

		g.Go(func() error {
			notes, err := adapter.GetContent(gctx, viewerID, cfg, profile, since, budget)
			outcomes[i] = outcome{source: src, notes: notes, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		if o.notes == nil && o.err == nil {
			continue
		}
		if o.err != nil {
			degraded = append(degraded, o.source.String())
			continue
		}
		results[o.source] = o.notes
	}

	return results, degraded
}

// ratioFor returns the configured mix ratio for a source.
func ratioFor(mix model.Mix, src model.Source) float64 {
	switch src {
	case model.SourceFollowing:
		return mix.FollowingRatio
	case model.SourceRecommended:
		return mix.RecommendedRatio
	case model.SourceTrending:
		return mix.TrendingRatio
	case model.SourceLists:
		return mix.ListsRatio
	default:
		return 0
	}
}

// sourceBudget computes floor(max_items * ratio * ab_weight), capped by
// caps_per_source, per step 2.
func sourceBudget(cfg model.EffectiveConfig, src model.Source, ratio float64) int {
	abWeight := 1.0
	if cfg.ABWeightsPerSource != nil {
		if w, ok := cfg.ABWeightsPerSource[src]; ok {
			abWeight = w
		}
	}

	budget := int(math.Floor(float64(cfg.MaxItems) * ratio * abWeight))

	if cfg.CapsPerSource != nil {
		if cap, ok := cfg.CapsPerSource[src]; ok && cap < budget {
			budget = cap
		}
	}
	return budget
}

// dedup merges per-source candidates in the fixed source order,
// keeping the first occurrence of each note id.
func dedup(bySource map[model.Source][]model.Note) []candidate {
	seen := make(map[string]struct{})
	var merged []candidate

	for _, src := range sourceOrder {
		for _, note := range bySource[src] {
			if _, ok := seen[note.ID]; ok {
				continue
			}
			seen[note.ID] = struct{}{}
			merged = append(merged, candidate{note: note, source: src})
		}
	}
	return merged
}

// resolveFollowSet returns the viewer's followed author IDs as a set,
// or an empty set if the follow graph is unavailable or errors — a
// ranking-signal degradation, not a request failure.
func (a *Assembler) resolveFollowSet(ctx context.Context, viewerID string) map[string]struct{} {
	set := make(map[string]struct{})
	if a.followGraph == nil {
		return set
	}
	ids, err := a.followGraph.GetFollowing(ctx, viewerID)
	if err != nil {
		return set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// score implements step 5: chronological or ranking-engine-unavailable
// candidates get final_score = created_at_unix; otherwise the candidate
// is scored and reordered via the ranking engine, then diversity,
// repetition control, and (in hybrid mode) the freshness tweak are
// applied once over the whole slate.
func (a *Assembler) score(notes []model.Note, bySource map[model.Source][]model.Note, cfg model.EffectiveConfig, profile model.EngagementProfile, followSet map[string]struct{}, now time.Time) []model.SlateItem {
	sourceOf := make(map[string]model.Source, len(notes))
	for src, list := range bySource {
		for _, n := range list {
			sourceOf[n.ID] = src
		}
	}

	items := make([]model.SlateItem, 0, len(notes))

	if cfg.Algorithm == model.AlgorithmChronological {
		for _, n := range notes {
			items = append(items, model.SlateItem{
				Note:       n,
				Source:     sourceOf[n.ID],
				FinalScore: float64(n.CreatedAt.Unix()),
			})
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].FinalScore > items[j].FinalScore })
		return items
	}

	for _, n := range notes {
		_, followed := followSet[n.AuthorID]
		reputation := 0.0
		if a.reputation != nil {
			reputation = a.reputation.Reputation(context.Background(), n.AuthorID)
		}

		in := ranking.Input{
			Note:             n,
			Source:           sourceOf[n.ID],
			Profile:          profile,
			IsFollowed:       followed,
			AuthorReputation: reputation,
			Now:              now,
		}
		signals := ranking.Score(in, cfg)
		items = append(items, model.SlateItem{
			Note:       n,
			Source:     sourceOf[n.ID],
			Signals:    signals,
			FinalScore: ranking.FinalScore(signals, cfg.Weights),
		})
	}

	ranking.ApplyDiversity(items, cfg.Weights.Diversity)
	ranking.ApplyRepetitionControl(items)
	ranking.ApplyHybridTweak(items, cfg, now)

	return items
}

// walk implements step 6: emit items in sorted order until max_items,
// skipping items below min_score_threshold and enforcing per-source
// caps as a final safety net.
func (a *Assembler) walk(items []model.SlateItem, cfg model.EffectiveConfig) []model.SlateItem {
	out := make([]model.SlateItem, 0, cfg.MaxItems)
	perSourceCount := make(map[model.Source]int)

	for _, it := range items {
		if len(out) >= cfg.MaxItems {
			break
		}
		if it.FinalScore < cfg.MinScoreThreshold {
			continue
		}
		if cfg.CapsPerSource != nil {
			if cap, ok := cfg.CapsPerSource[it.Source]; ok && perSourceCount[it.Source] >= cap {
				continue
			}
		}
		perSourceCount[it.Source]++
		out = append(out, it)
	}
	return out
}
