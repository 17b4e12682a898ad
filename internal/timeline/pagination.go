// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package timeline

import "github.com/tomtom215/cartographus/internal/timeline/model"

// defaultLimit is applied when a request supplies no explicit limit.
const defaultLimit = 20

// Pagination carries a requested offset/limit pair, read directly from
// request parameters before clamping. Limit is a pointer so "the
// caller didn't set a limit" (nil, apply defaultLimit) is distinct from
// "the caller explicitly asked for limit=0" (an empty page), per
// spec.md §8.
type Pagination struct {
	Offset int
	Limit  *int
}

// Page is one windowed view of a slate, along with whether a further
// page is available, per spec.md §4.8's pagination rule.
type Page struct {
	Items           []model.SlateItem `json:"items"`
	Offset          int                `json:"offset"`
	Limit           int                `json:"limit"`
	HasNext         bool               `json:"has_next"`
	Total           int                `json:"total"`
	DegradedSources []string           `json:"degraded_sources,omitempty"`
}

// paginate clamps offset to [0, len(items)] and limit to (0, maxItems],
// defaulting an unset limit to defaultLimit, then slices items and
// computes has_next exactly per spec.md §4.8. An explicit limit of 0 is
// a distinct request for an empty page (has_next always false), not an
// unset limit asking for the default.
func paginate(slate model.Slate, p Pagination, maxItems int) Page {
	items := slate.Items
	total := len(items)

	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}

	if p.Limit != nil && *p.Limit == 0 {
		return Page{
			Items:           []model.SlateItem{},
			Offset:          offset,
			Limit:           0,
			HasNext:         false,
			Total:           total,
			DegradedSources: slate.DegradedSources,
		}
	}

	limit := defaultLimit
	if p.Limit != nil && *p.Limit > 0 {
		limit = *p.Limit
	}
	if maxItems > 0 && limit > maxItems {
		limit = maxItems
	}

	end := offset + limit
	if end > total {
		end = total
	}

	page := items[offset:end]
	out := make([]model.SlateItem, len(page))
	copy(out, page)

	return Page{
		Items:           out,
		Offset:          offset,
		Limit:           limit,
		HasNext:         offset+limit < total,
		Total:           total,
		DegradedSources: slate.DegradedSources,
	}
}
