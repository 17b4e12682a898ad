// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package ranking implements the ranking engine (C6): five normalized
// per-candidate signals combined into a weighted final score, followed
// by a diversity pass, a repetition-control pass, and (in hybrid mode
// only) a freshness tweak. Grounded on the teacher's weighted
// multi-algorithm combination in internal/recommend/engine.go and the
// soft-cap-with-penalty shape of internal/reranking/mmr.go, adapted from
// collaborative-filtering item scores to the five fixed signals spec.md
// §4.5 names.
package ranking

import (
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/tomtom215/cartographus/internal/timeline/model"
)

// recencyHalfLifeHours is the half-life used by the recency decay
// signal, per spec.md §4.5.
const recencyHalfLifeHours = 6.0

// personalizationShare is the small fixed weight given to the
// personalization signal in the final score, independent of the
// effective config's configured weights.
const personalizationShare = 0.1

// urlPattern matches an http(s) URL or a bare www. domain, used by the
// content-quality signal's link penalty.
var urlPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+)`)

// Input bundles everything Score needs for one candidate beyond the
// note itself: signals that depend on data the ranking engine does not
// own (the follow graph, global author reputation) are resolved by the
// caller and passed in, keeping this package a pure function of its
// arguments.
type Input struct {
	Note             model.Note
	Source           model.Source
	Profile          model.EngagementProfile
	IsFollowed       bool
	AuthorReputation float64 // [0,1], caller-resolved
	Now              time.Time
}

// Score computes the five normalized signals for one candidate; the
// weighted score is computed from them by FinalScore. It does not apply diversity, repetition
// control, or the hybrid tweak — those run once per slate in
// ApplyDiversity, ApplyRepetitionControl, and ApplyHybridTweak.
func Score(in Input, cfg model.EffectiveConfig) model.Signals {
	signals := model.Signals{
		AuthorAffinity:     authorAffinity(in),
		ContentQuality:     contentQuality(in),
		EngagementVelocity: engagementVelocity(in.Note, in.Now),
		Recency:            recency(in.Note, in.Now),
		Personalization:    personalization(in.Note, in.Profile),
	}
	return signals
}

// FinalScore combines the five signals with the effective config's
// weights plus the fixed personalization share, per spec.md §4.5.
func FinalScore(s model.Signals, w model.Weights) float64 {
	score := w.Recency*s.Recency +
		w.Engagement*s.EngagementVelocity +
		w.AuthorAffinity*s.AuthorAffinity +
		w.ContentQuality*s.ContentQuality +
		personalizationShare*s.Personalization
	if score < 0 {
		return 0
	}
	return score
}

// authorAffinity: base 0.8 if followed else 0.1, plus a learned
// per-viewer/per-author boost from the engagement profile, plus up to
// 0.2 of a global author reputation score. Clamped to 1.
func authorAffinity(in Input) float64 {
	base := 0.1
	if in.IsFollowed {
		base = 0.8
	}

	boost := 0.0
	if in.Profile.AuthorAffinity != nil {
		boost = in.Profile.AuthorAffinity[in.Note.AuthorID]
	}

	reputationShare := in.AuthorReputation * 0.2

	return clamp01(base + boost + reputationShare)
}

// contentQuality implements spec.md §4.5's additive content heuristics.
func contentQuality(in Input) float64 {
	note := in.Note
	score := 0.5

	length := len(note.Content)
	switch {
	case length >= 50 && length <= 280:
		score += 0.10
	case length < 10:
		score -= 0.20
	}

	if note.HasMedia {
		score += 0.15
	}

	if urlPattern.MatchString(note.Content) {
		score -= 0.05
	}

	switch {
	case len(note.Hashtags) >= 1 && len(note.Hashtags) <= 5:
		score += 0.08
	case len(note.Hashtags) > 10:
		score -= 0.10
	}

	if in.Profile.HashtagInterests != nil {
		for _, tag := range note.Hashtags {
			if _, ok := in.Profile.HashtagInterests[tag]; ok {
				score += 0.05
			}
		}
	}

	if len(note.Mentions) >= 1 && len(note.Mentions) <= 3 {
		score += 0.12
	}

	views := note.Metrics.Views
	if views < 1 {
		views = 1
	}
	engagementRate := float64(note.Metrics.Total()) / float64(views)
	score += math.Min(engagementRate, 1.0) * 0.30

	return clamp01(score)
}

// engagementVelocity is total engagements per hour of age, normalized
// by dividing by 10 and clamping to 1.
func engagementVelocity(note model.Note, now time.Time) float64 {
	ageHours := note.AgeHours(now)
	if ageHours < 1 {
		ageHours = 1
	}
	velocity := float64(note.Metrics.Total()) / ageHours
	return math.Min(velocity/10.0, 1.0)
}

// recency is an exponential decay with a 6-hour half-life.
func recency(note model.Note, now time.Time) float64 {
	ageHours := note.AgeHours(now)
	return math.Exp(-ageHours * math.Ln2 / recencyHalfLifeHours)
}

// personalization adds 0.1 for notes created in the viewer's 09:00-23:00
// local window (approximated by UTC) and 0.05 per hashtag matching the
// viewer's interests, clamped to 1.
func personalization(note model.Note, profile model.EngagementProfile) float64 {
	score := 0.0
	hour := note.CreatedAt.UTC().Hour()
	if hour >= 9 && hour < 23 {
		score += 0.1
	}
	if profile.HashtagInterests != nil {
		for _, tag := range note.Hashtags {
			if _, ok := profile.HashtagInterests[tag]; ok {
				score += 0.05
			}
		}
	}
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// diversitySoftCap is the per-author soft cap beyond which the
// diversity pass penalizes additional occurrences.
const diversitySoftCap = 3

// diversityPenaltyStep is the per-note-beyond-cap penalty, scaled by
// the configured diversity weight.
const diversityPenaltyStep = 0.05

// diversityUniqueHashtagBoost rewards candidates whose hashtags appear
// exactly once across the slate.
const diversityUniqueHashtagBoost = 0.02

// ApplyDiversity penalizes over-represented authors and boosts
// candidates with slate-unique hashtags, scaled by cfg.Weights.Diversity.
// Mutates FinalScore in place on the supplied slice, preserving item
// identity and source.
func ApplyDiversity(items []model.SlateItem, diversityWeight float64) {
	authorCounts := make(map[string]int, len(items))
	hashtagCounts := make(map[string]int)
	for _, it := range items {
		authorCounts[it.Note.AuthorID]++
		for _, tag := range it.Note.Hashtags {
			hashtagCounts[tag]++
		}
	}

	seenPerAuthor := make(map[string]int, len(items))
	for i := range items {
		it := &items[i]
		seenPerAuthor[it.Note.AuthorID]++
		adjustment := 0.0

		if seenPerAuthor[it.Note.AuthorID] > diversitySoftCap {
			over := seenPerAuthor[it.Note.AuthorID] - diversitySoftCap
			adjustment -= float64(over) * diversityPenaltyStep
		}

		for _, tag := range it.Note.Hashtags {
			if hashtagCounts[tag] == 1 {
				adjustment += diversityUniqueHashtagBoost
			}
		}

		it.FinalScore = nonNegative(it.FinalScore + adjustment*diversityWeight)
	}
}

// repetitionPenaltyStep is the escalating per-author-beyond-cap penalty
// applied during repetition control.
const repetitionPenaltyStep = 0.06

// repetitionSoftCap is the per-author soft cap for the repetition-
// control walk.
const repetitionSoftCap = 2

// repetitionBackToBackPenalty penalizes a candidate whose author is the
// same as the immediately preceding slate item.
const repetitionBackToBackPenalty = 0.05

// repetitionNoveltyBoost rewards the first appearance of a new author
// during the walk.
const repetitionNoveltyBoost = 0.04

// repetitionHashtagUniqueBoost and repetitionHashtagOverusePenalty
// adjust for slate-wide hashtag frequency during the same walk.
const (
	repetitionHashtagUniqueBoost     = 0.02
	repetitionHashtagOverusePenalty  = 0.01
	repetitionHashtagOveruseThreshold = 4
)

// ApplyRepetitionControl sorts items by score descending, then walks
// the ordered list applying escalating per-author penalties, a
// back-to-back penalty, a first-appearance novelty boost, and a
// hashtag-frequency adjustment, per spec.md §4.5 pass 2. The slice is
// sorted and mutated in place.
func ApplyRepetitionControl(items []model.SlateItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].FinalScore > items[j].FinalScore
	})

	hashtagCounts := make(map[string]int)
	for _, it := range items {
		for _, tag := range it.Note.Hashtags {
			hashtagCounts[tag]++
		}
	}

	authorSeen := make(map[string]int)
	prevAuthor := ""
	for i := range items {
		it := &items[i]
		authorSeen[it.Note.AuthorID]++
		adjustment := 0.0

		if authorSeen[it.Note.AuthorID] == 1 && prevAuthor != "" {
			adjustment += repetitionNoveltyBoost
		}

		if authorSeen[it.Note.AuthorID] > repetitionSoftCap {
			over := authorSeen[it.Note.AuthorID] - repetitionSoftCap
			adjustment -= float64(over) * repetitionPenaltyStep
		}

		if prevAuthor != "" && prevAuthor == it.Note.AuthorID {
			adjustment -= repetitionBackToBackPenalty
		}

		for _, tag := range it.Note.Hashtags {
			switch {
			case hashtagCounts[tag] == 1:
				adjustment += repetitionHashtagUniqueBoost
			case hashtagCounts[tag] > repetitionHashtagOveruseThreshold:
				adjustment -= repetitionHashtagOverusePenalty
			}
		}

		it.FinalScore = nonNegative(it.FinalScore + adjustment)
		prevAuthor = it.Note.AuthorID
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].FinalScore > items[j].FinalScore
	})
}

// hybridFreshNoteAge is the age threshold under which a note gets the
// hybrid-mode freshness boost.
const hybridFreshNoteAge = 30 * time.Minute

const (
	hybridFreshBoost     = 0.02
	hybridDiscoveryBoost = 0.01
)

// ApplyHybridTweak applies spec.md §4.5 pass 3, uniformly whenever
// cfg.Algorithm is AlgorithmHybrid — resolving spec.md's open question
// about whether the tweak applies to every ranked slate build or only
// one code path: here it is always applied when the resolved algorithm
// is hybrid, never gated by which endpoint issued the request.
func ApplyHybridTweak(items []model.SlateItem, cfg model.EffectiveConfig, now time.Time) {
	if cfg.Algorithm != model.AlgorithmHybrid {
		return
	}

	for i := range items {
		it := &items[i]
		adjustment := 0.0

		if now.Sub(it.Note.CreatedAt) <= hybridFreshNoteAge {
			adjustment += hybridFreshBoost
		}

		switch it.Source {
		case model.SourceRecommended, model.SourceTrending, model.SourceLists:
			adjustment += hybridDiscoveryBoost
		}

		it.FinalScore = nonNegative(it.FinalScore + adjustment)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].FinalScore > items[j].FinalScore
	})
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
