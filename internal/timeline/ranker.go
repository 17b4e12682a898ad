// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package timeline

import (
	"context"
	"sort"

	"github.com/tomtom215/cartographus/internal/timeline/model"
)

// RankedNote is one OptionalRanker result: a candidate note ID and the
// score the external ranker assigned it.
type RankedNote struct {
	NoteID string
	Score  float64
}

// OptionalRanker is the external collaborator consulted when a request
// sets use_overdrive (spec.md §6): it replaces the assembler's final
// scores and re-stabilizes order, the "Overdrive" mode.
type OptionalRanker interface {
	RankForYou(ctx context.Context, viewerID string, candidateIDs []string, k int) ([]RankedNote, error)
}

// applyOverdrive replaces slate's item scores with ranker's output and
// re-sorts by the new score, descending, breaking ties by the item's
// prior position for stability. Items the ranker did not score keep
// their original final_score and sort after every ranked item.
func applyOverdrive(ctx context.Context, ranker OptionalRanker, viewerID string, slate model.Slate) model.Slate {
	if ranker == nil || len(slate.Items) == 0 {
		return slate
	}

	ids := make([]string, len(slate.Items))
	for i, item := range slate.Items {
		ids[i] = item.Note.ID
	}

	ranked, err := ranker.RankForYou(ctx, viewerID, ids, len(ids))
	if err != nil {
		return slate
	}

	scoreByID := make(map[string]float64, len(ranked))
	for _, r := range ranked {
		scoreByID[r.NoteID] = r.Score
	}

	items := make([]model.SlateItem, len(slate.Items))
	copy(items, slate.Items)

	for i := range items {
		if score, ok := scoreByID[items[i].Note.ID]; ok {
			items[i].FinalScore = score
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		_, ri := scoreByID[items[i].Note.ID]
		_, rj := scoreByID[items[j].Note.ID]
		if ri != rj {
			return ri
		}
		return items[i].FinalScore > items[j].FinalScore
	})

	slate.Items = items
	return slate
}
