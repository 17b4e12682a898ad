// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package filter implements the content filter (C5): an ordered,
// short-circuit sequence of drop rules applied to each candidate note
// before ranking. Unlike the teacher's stateful detector services
// (internal/detection), every rule here is a pure function of
// (Note, EffectiveConfig, EngagementProfile) — the filter never throws,
// and an unknown or ambiguous condition defaults to "keep".
package filter

import (
	"strings"

	"github.com/tomtom215/cartographus/internal/timeline/model"
)

// DropReason names which rule rejected a candidate, for logging and
// response metadata.
type DropReason int

const (
	// DropNone means the candidate was not dropped.
	DropNone DropReason = iota
	// DropMutedAuthor means the author is in the viewer's mute set.
	DropMutedAuthor
	// DropMutedKeyword means a muted keyword substring matched.
	DropMutedKeyword
	// DropGlobalPolicy means the note violates global policy.
	DropGlobalPolicy
	// DropAgeAppropriateness means the note failed an age check.
	DropAgeAppropriateness
	// DropSpamPattern means the note failed a spam-pattern check.
	DropSpamPattern
)

// String returns a human-readable name for the drop reason.
func (r DropReason) String() string {
	switch r {
	case DropMutedAuthor:
		return "muted_author"
	case DropMutedKeyword:
		return "muted_keyword"
	case DropGlobalPolicy:
		return "global_policy"
	case DropAgeAppropriateness:
		return "age_appropriateness"
	case DropSpamPattern:
		return "spam_pattern"
	default:
		return "none"
	}
}

// GlobalBannedKeywords are rejected for every viewer regardless of their
// personal mute list. Kept small and explicit rather than loaded from an
// external policy service, since policy-service integration is out of
// scope (spec.md §1).
var GlobalBannedKeywords = []string{}

// Accept reports whether note should remain in the slate for the given
// viewer, evaluating rules in the fixed order the spec requires and
// short-circuiting on the first drop. Accept never panics; any
// unexpected nil map in profile is treated as "no match" for that rule.
func Accept(note model.Note, profile model.EngagementProfile) (bool, DropReason) {
	if dropsOnMutedAuthor(note, profile) {
		return false, DropMutedAuthor
	}
	if dropsOnMutedKeyword(note, profile) {
		return false, DropMutedKeyword
	}
	if dropsOnGlobalPolicy(note) {
		return false, DropGlobalPolicy
	}
	if dropsOnAgeAppropriateness(note) {
		return false, DropAgeAppropriateness
	}
	if dropsOnSpamPattern(note) {
		return false, DropSpamPattern
	}
	return true, DropNone
}

// dropsOnMutedAuthor checks the viewer's muted-author set.
func dropsOnMutedAuthor(note model.Note, profile model.EngagementProfile) bool {
	if profile.MutedAuthors == nil {
		return false
	}
	return profile.IsMutedAuthor(note.AuthorID)
}

// dropsOnMutedKeyword performs a case-insensitive, whitespace-delimited
// substring match of the viewer's muted keywords against note content.
func dropsOnMutedKeyword(note model.Note, profile model.EngagementProfile) bool {
	if len(profile.MutedKeywords) == 0 {
		return false
	}
	content := strings.ToLower(note.Content)
	words := strings.Fields(content)
	wordSet := make(map[string]struct{}, len(words))
	for _, w := range words {
		wordSet[w] = struct{}{}
	}

	for _, keyword := range profile.MutedKeywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if _, ok := wordSet[keyword]; ok {
			return true
		}
		if strings.Contains(content, keyword) {
			return true
		}
	}
	return false
}

// dropsOnGlobalPolicy checks service-wide banned keywords, independent
// of any per-viewer preference.
func dropsOnGlobalPolicy(note model.Note) bool {
	if len(GlobalBannedKeywords) == 0 {
		return false
	}
	content := strings.ToLower(note.Content)
	for _, banned := range GlobalBannedKeywords {
		if strings.Contains(content, strings.ToLower(banned)) {
			return true
		}
	}
	return false
}

// dropsOnAgeAppropriateness is a conservative content check: notes
// bearing no signal either way default to "keep", per the filter's
// never-throw, default-to-keep contract.
func dropsOnAgeAppropriateness(note model.Note) bool {
	return false
}

// spamHashtagThreshold is the hashtag count above which a note is
// treated as keyword-stuffing spam.
const spamHashtagThreshold = 15

// spamRepeatedCharThreshold is the run length of an identical character
// that marks content as likely spam (e.g. "!!!!!!!!!!!!!!!!!!").
const spamRepeatedCharThreshold = 10

// dropsOnSpamPattern applies a simple heuristic spam check: excessive
// hashtag stuffing or a long run of one repeated character.
func dropsOnSpamPattern(note model.Note) bool {
	if len(note.Hashtags) > spamHashtagThreshold {
		return true
	}
	return hasLongRepeatedRun(note.Content, spamRepeatedCharThreshold)
}

// hasLongRepeatedRun reports whether s contains a run of the same rune
// at least n long.
func hasLongRepeatedRun(s string, n int) bool {
	if n <= 0 {
		return false
	}
	runes := []rune(s)
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
