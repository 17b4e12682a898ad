// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package memstore

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/cartographus/internal/timeline/model"
)

// authorHandles names the demo authors seeded across the store, in the
// same spirit as the teacher's seed.go mock user list.
var authorHandles = []string{
	"alice", "bob", "charlie", "dana", "erin",
	"frank", "grace", "heidi", "ivan", "judy",
}

var hashtagPool = []string{
	"golang", "gardening", "spacetravel", "cooking", "climbing",
	"photography", "opensource", "music", "running", "chess",
}

// SeedDemoData populates s with a fixed-size synthetic dataset: authors,
// notes spread over the last seedDays days, and a follow graph and
// curated list connecting viewerID to a subset of authors. Intended for
// local development and first-run demos, mirroring the teacher's
// SeedMockData's purpose — it is not a substitute for a production
// note store or follow graph.
func SeedDemoData(s *Store, viewerID string, now time.Time) {
	const (
		notesPerAuthor = 20
		seedDays       = 7
	)

	rng := rand.New(rand.NewSource(now.UnixNano()))

	for _, author := range authorHandles {
		for i := 0; i < notesPerAuthor; i++ {
			age := time.Duration(rng.Int63n(int64(seedDays * 24 * time.Hour)))
			n := model.Note{
				ID:         uuid.NewString(),
				AuthorID:   author,
				CreatedAt:  now.Add(-age),
				Visibility: model.VisibilityPublic,
				Content:    fmt.Sprintf("%s's note #%d", author, i),
				Metrics: model.Metrics{
					Views:   int64(rng.Intn(5000)),
					Likes:   int64(rng.Intn(500)),
					Reposts: int64(rng.Intn(100)),
					Replies: int64(rng.Intn(80)),
					Quotes:  int64(rng.Intn(20)),
				},
				HasMedia: rng.Intn(4) == 0,
				Hashtags: pickHashtags(rng, 2),
			}
			s.PutNote(n)
		}
	}

	for i, author := range authorHandles {
		if i%2 == 0 {
			s.Follow(viewerID, author)
		}
	}
	s.SetListMembers(viewerID, authorHandles[:3])
}

func pickHashtags(rng *rand.Rand, n int) []string {
	if n > len(hashtagPool) {
		n = len(hashtagPool)
	}
	idx := rng.Perm(len(hashtagPool))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = hashtagPool[j]
	}
	return out
}
