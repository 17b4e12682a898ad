// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package filter

import (
	"testing"

	"github.com/tomtom215/cartographus/internal/timeline/model"
)

func baseProfile() model.EngagementProfile {
	return model.NewEngagementProfile("viewer-1")
}

func TestAcceptKeepsCleanNote(t *testing.T) {
	note := model.Note{ID: "n1", AuthorID: "author-1", Content: "hello world"}
	ok, reason := Accept(note, baseProfile())
	if !ok {
		t.Errorf("Accept() = false, want true; reason=%v", reason)
	}
}

func TestAcceptDropsMutedAuthor(t *testing.T) {
	note := model.Note{ID: "n1", AuthorID: "author-1", Content: "hi"}
	profile := baseProfile()
	profile.MutedAuthors["author-1"] = struct{}{}

	ok, reason := Accept(note, profile)
	if ok {
		t.Error("Accept() should drop a muted author's note")
	}
	if reason != DropMutedAuthor {
		t.Errorf("reason = %v, want muted_author", reason)
	}
}

func TestAcceptDropsMutedKeyword(t *testing.T) {
	note := model.Note{ID: "n1", AuthorID: "author-1", Content: "this is SPAM content"}
	profile := baseProfile()
	profile.MutedKeywords = []string{"spam"}

	ok, reason := Accept(note, profile)
	if ok {
		t.Error("Accept() should drop a note matching a muted keyword")
	}
	if reason != DropMutedKeyword {
		t.Errorf("reason = %v, want muted_keyword", reason)
	}
}

func TestAcceptDropsPartialWordMatch(t *testing.T) {
	// A muted keyword that is not a whole word of the content still
	// drops the note through the substring fallback: "class" matches
	// inside "classroom".
	note := model.Note{ID: "n1", AuthorID: "author-1", Content: "classroom activity"}
	profile := baseProfile()
	profile.MutedKeywords = []string{"class"}

	ok, reason := Accept(note, profile)
	if ok || reason != DropMutedKeyword {
		t.Errorf("Accept() = %v, %v; want false, muted_keyword (substring match on 'class' within 'classroom')", ok, reason)
	}
}

func TestAcceptDropsSpamHashtagStuffing(t *testing.T) {
	tags := make([]string, 20)
	for i := range tags {
		tags[i] = "tag"
	}
	note := model.Note{ID: "n1", AuthorID: "a1", Content: "check this out", Hashtags: tags}

	ok, reason := Accept(note, baseProfile())
	if ok {
		t.Error("Accept() should drop hashtag-stuffed spam")
	}
	if reason != DropSpamPattern {
		t.Errorf("reason = %v, want spam_pattern", reason)
	}
}

func TestAcceptDropsRepeatedCharSpam(t *testing.T) {
	note := model.Note{ID: "n1", AuthorID: "a1", Content: "!!!!!!!!!!!!!!!!!!!!!!"}

	ok, reason := Accept(note, baseProfile())
	if ok {
		t.Error("Accept() should drop repeated-character spam")
	}
	if reason != DropSpamPattern {
		t.Errorf("reason = %v, want spam_pattern", reason)
	}
}

func TestAcceptShortCircuitsOnFirstDrop(t *testing.T) {
	// Both muted author and spam pattern apply; muted author should win
	// since it's evaluated first.
	tags := make([]string, 20)
	for i := range tags {
		tags[i] = "tag"
	}
	note := model.Note{ID: "n1", AuthorID: "author-1", Content: "x", Hashtags: tags}
	profile := baseProfile()
	profile.MutedAuthors["author-1"] = struct{}{}

	_, reason := Accept(note, profile)
	if reason != DropMutedAuthor {
		t.Errorf("reason = %v, want muted_author (first in order)", reason)
	}
}
