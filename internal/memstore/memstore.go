// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package memstore is a standalone-mode reference implementation of
// sources.NoteService, sources.FollowGraph, and sources.ListsService,
// grounded on the teacher's SeedMockData / standalone-mode precedent
// (internal/database.SeedMockData, "Standalone Mode" in
// cmd/server/doc.go): a production deployment wires its own note
// store and follow graph (spec.md §6 defines these as plain
// interfaces the host application implements), but cmd/server still
// needs something to serve out of the box. Store fills that role with
// an in-memory, mutex-guarded dataset seeded at startup; it is not
// meant to back a real deployment.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/cartographus/internal/timeline/model"
)

// Store is an in-memory note service, follow graph, and lists service.
// The zero value is not usable; construct with New.
type Store struct {
	mu sync.RWMutex

	notes     map[string]model.Note
	following map[string]map[string]struct{} // viewerID -> set of authorIDs
	followers map[string]map[string]struct{} // authorID -> set of viewerIDs
	lists     map[string][]string             // viewerID -> curated member authorIDs
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		notes:     make(map[string]model.Note),
		following: make(map[string]map[string]struct{}),
		followers: make(map[string]map[string]struct{}),
		lists:     make(map[string][]string),
	}
}

// PutNote inserts or replaces a note.
func (s *Store) PutNote(n model.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[n.ID] = n
}

// Follow records viewerID following authorID.
func (s *Store) Follow(viewerID, authorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.following[viewerID] == nil {
		s.following[viewerID] = make(map[string]struct{})
	}
	s.following[viewerID][authorID] = struct{}{}
	if s.followers[authorID] == nil {
		s.followers[authorID] = make(map[string]struct{})
	}
	s.followers[authorID][viewerID] = struct{}{}
}

// SetListMembers replaces viewerID's curated list membership.
func (s *Store) SetListMembers(viewerID string, authorIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[viewerID] = append([]string(nil), authorIDs...)
}

// GetRecentByAuthors implements sources.NoteService.
func (s *Store) GetRecentByAuthors(_ context.Context, authorIDs []string, since time.Time, limit int) ([]model.Note, error) {
	authorSet := make(map[string]struct{}, len(authorIDs))
	for _, id := range authorIDs {
		authorSet[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Note
	for _, n := range s.notes {
		if _, ok := authorSet[n.AuthorID]; !ok {
			continue
		}
		if n.CreatedAt.Before(since) {
			continue
		}
		out = append(out, n)
	}
	return newestFirst(out, limit), nil
}

// GetRecentByInterests implements sources.NoteService. An empty hashtags
// set means the caller has no established interests yet (a fresh
// viewer's engagement profile); rather than matching nothing, it falls
// back to recent notes across all authors so Recommended still has
// something to surface.
func (s *Store) GetRecentByInterests(_ context.Context, hashtags []string, since time.Time, limit int) ([]model.Note, error) {
	wanted := make(map[string]struct{}, len(hashtags))
	for _, h := range hashtags {
		wanted[strings.ToLower(h)] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Note
	for _, n := range s.notes {
		if n.CreatedAt.Before(since) {
			continue
		}
		if len(wanted) > 0 && !anyHashtagMatches(n.Hashtags, wanted) {
			continue
		}
		out = append(out, n)
	}
	return newestFirst(out, limit), nil
}

// GetTrending implements sources.NoteService, ranking by total
// engagement rather than recency.
func (s *Store) GetTrending(_ context.Context, since time.Time, limit int) ([]model.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Note
	for _, n := range s.notes {
		if n.CreatedAt.Before(since) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metrics.Total() > out[j].Metrics.Total()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetFollowing implements sources.FollowGraph.
func (s *Store) GetFollowing(_ context.Context, viewerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return setKeys(s.following[viewerID]), nil
}

// GetFollowers implements sources.FollowGraph.
func (s *Store) GetFollowers(_ context.Context, authorID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return setKeys(s.followers[authorID]), nil
}

// GetListMembers implements sources.ListsService.
func (s *Store) GetListMembers(_ context.Context, viewerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.lists[viewerID]...), nil
}

func newestFirst(notes []model.Note, limit int) []model.Note {
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})
	if limit > 0 && len(notes) > limit {
		notes = notes[:limit]
	}
	return notes
}

func anyHashtagMatches(hashtags []string, wanted map[string]struct{}) bool {
	for _, h := range hashtags {
		if _, ok := wanted[strings.ToLower(h)]; ok {
			return true
		}
	}
	return false
}

func setKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
