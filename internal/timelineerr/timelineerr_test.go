// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package timelineerr

import (
	"errors"
	"testing"
)

func TestWrapNilCauseReturnsNil(t *testing.T) {
	if err := Wrap(KindUpstreamFailure, "call failed", nil); err != nil {
		t.Errorf("Wrap(nil cause) = %v, want nil", err)
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindUpstreamFailure, "note service call failed", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if got := KindOf(err); got != KindUpstreamFailure {
		t.Errorf("KindOf() = %v, want upstream_failure", got)
	}
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	if got := KindOf(errors.New("plain error")); got != KindInternal {
		t.Errorf("KindOf(plain error) = %v, want internal", got)
	}
}

func TestIs(t *testing.T) {
	err := New(KindRateLimited, "too many requests")
	if !Is(err, KindRateLimited) {
		t.Error("Is() should match rate_limited kind")
	}
	if Is(err, KindUnauthorized) {
		t.Error("Is() should not match unrelated kind")
	}
}

func TestErrorString(t *testing.T) {
	err := New(KindInvalidArgument, "missing viewer_id")
	if err.Error() == "" {
		t.Error("Error() should not be empty")
	}
}
