// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package ranking

import (
	"testing"
	"time"

	"github.com/tomtom215/cartographus/internal/timeline/model"
)

var fixedNow = time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

func TestAuthorAffinityFollowedVsNot(t *testing.T) {
	profile := model.NewEngagementProfile("viewer-1")
	note := model.Note{AuthorID: "a1", CreatedAt: fixedNow}

	followed := authorAffinity(Input{Note: note, Profile: profile, IsFollowed: true, Now: fixedNow})
	notFollowed := authorAffinity(Input{Note: note, Profile: profile, IsFollowed: false, Now: fixedNow})

	if followed <= notFollowed {
		t.Errorf("followed affinity (%f) should exceed unfollowed (%f)", followed, notFollowed)
	}
	if followed < 0.79 || followed > 0.81 {
		t.Errorf("followed base affinity = %f, want ~0.8", followed)
	}
}

func TestContentQualityRewardsGoodLength(t *testing.T) {
	short := model.Note{Content: "hi"}
	ideal := model.Note{Content: stringOfLen(100)}

	shortScore := contentQuality(Input{Note: short})
	idealScore := contentQuality(Input{Note: ideal})

	if idealScore <= shortScore {
		t.Errorf("ideal-length content (%f) should score higher than very short (%f)", idealScore, shortScore)
	}
}

func TestContentQualityPenalizesURL(t *testing.T) {
	withURL := model.Note{Content: stringOfLen(60) + " http://example.com"}
	withoutURL := model.Note{Content: stringOfLen(60)}

	withScore := contentQuality(Input{Note: withURL})
	withoutScore := contentQuality(Input{Note: withoutURL})

	if withScore >= withoutScore {
		t.Errorf("URL-bearing content (%f) should score lower than URL-free (%f)", withScore, withoutScore)
	}
}

func TestEngagementVelocityClampsToOne(t *testing.T) {
	note := model.Note{
		CreatedAt: fixedNow.Add(-1 * time.Hour),
		Metrics:   model.Metrics{Likes: 10000},
	}
	v := engagementVelocity(note, fixedNow)
	if v != 1.0 {
		t.Errorf("engagementVelocity() = %f, want clamped to 1.0", v)
	}
}

func TestRecencyDecaysWithAge(t *testing.T) {
	fresh := model.Note{CreatedAt: fixedNow}
	old := model.Note{CreatedAt: fixedNow.Add(-24 * time.Hour)}

	freshScore := recency(fresh, fixedNow)
	oldScore := recency(old, fixedNow)

	if freshScore <= oldScore {
		t.Errorf("fresh note recency (%f) should exceed old note (%f)", freshScore, oldScore)
	}
	if freshScore != 1.0 {
		t.Errorf("recency for zero-age note = %f, want 1.0", freshScore)
	}
}

func TestFinalScoreNeverNegative(t *testing.T) {
	weights := model.Weights{Recency: -5, Engagement: -5, AuthorAffinity: -5, ContentQuality: -5}
	score := FinalScore(model.Signals{}, weights)
	if score < 0 {
		t.Errorf("FinalScore() = %f, want >= 0", score)
	}
}

func TestApplyDiversityPenalizesOverrepresentedAuthor(t *testing.T) {
	items := make([]model.SlateItem, 5)
	for i := range items {
		items[i] = model.SlateItem{
			Note:       model.Note{ID: idFor(i), AuthorID: "same-author"},
			FinalScore: 0.5,
		}
	}

	ApplyDiversity(items, 1.0)

	// First 3 (within soft cap) should be unpenalized; 4th and 5th penalized.
	if items[3].FinalScore >= 0.5 || items[4].FinalScore >= 0.5 {
		t.Errorf("items beyond soft cap should be penalized, got %f and %f", items[3].FinalScore, items[4].FinalScore)
	}
}

func TestApplyRepetitionControlSortsDescending(t *testing.T) {
	items := []model.SlateItem{
		{Note: model.Note{ID: "a", AuthorID: "x"}, FinalScore: 0.2},
		{Note: model.Note{ID: "b", AuthorID: "y"}, FinalScore: 0.9},
		{Note: model.Note{ID: "c", AuthorID: "z"}, FinalScore: 0.5},
	}

	ApplyRepetitionControl(items)

	for i := 1; i < len(items); i++ {
		if items[i].FinalScore > items[i-1].FinalScore {
			t.Fatalf("items not in non-increasing order: %+v", items)
		}
	}
}

func TestApplyHybridTweakOnlyWhenHybrid(t *testing.T) {
	items := []model.SlateItem{
		{Note: model.Note{ID: "a", CreatedAt: fixedNow}, Source: model.SourceTrending, FinalScore: 0.5},
	}

	chronological := model.EffectiveConfig{Algorithm: model.AlgorithmChronological}
	ApplyHybridTweak(items, chronological, fixedNow)
	if items[0].FinalScore != 0.5 {
		t.Errorf("non-hybrid algorithm should not apply tweak, got %f", items[0].FinalScore)
	}

	hybrid := model.EffectiveConfig{Algorithm: model.AlgorithmHybrid}
	ApplyHybridTweak(items, hybrid, fixedNow)
	if items[0].FinalScore <= 0.5 {
		t.Errorf("hybrid algorithm should boost fresh trending note, got %f", items[0].FinalScore)
	}
}

func stringOfLen(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}

func idFor(i int) string {
	return string(rune('a' + i))
}
