// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package reputation implements a small global, author-level score
// store satisfying slate.ReputationProvider. It is read-mostly: slate
// builds take the shared read path on every request while the
// engagement-recording path bumps a single author's score under the
// exclusive side of the same lock. One RWMutex covers the whole store;
// there is no per-author lock.
package reputation

import (
	"context"
	"sync"
)

// globalAuthorBump is the score increment recorded against an author on
// every engagement event the viewer takes on their content, per
// spec.md §4.8.
const globalAuthorBump = 0.01

// Store is an in-memory, mutex-guarded author reputation table. The
// zero value is not usable; construct with New.
type Store struct {
	mu     sync.RWMutex
	scores map[string]float64
}

// New returns an empty Store.
func New() *Store {
	return &Store{scores: make(map[string]float64)}
}

// Reputation implements slate.ReputationProvider, returning authorID's
// current score in [0,1], or 0 if the author has no recorded score yet.
func (s *Store) Reputation(_ context.Context, authorID string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scores[authorID]
}

// Bump increments authorID's score by globalAuthorBump, clamped to
// [0,1].
func (s *Store) Bump(authorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score := s.scores[authorID] + globalAuthorBump
	if score > 1 {
		score = 1
	}
	s.scores[authorID] = score
}
