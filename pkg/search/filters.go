package search

import (
	"strings"

	"github.com/searchmux/searchmux/pkg/core"
)

// ApplyFilters narrows a merged result list to the requested evidence
// levels, content types and specialty. An empty filter list on an axis
// means "no constraint" on that axis, not "exclude unknowns".
//
// The specialty axis is lenient: a result with no specialty assigned is
// never excluded by a specialty filter.
func ApplyFilters(results []core.SearchResult, f core.Filters) []core.SearchResult {
	evidence := toSet(f.EvidenceLevels)
	contentTypes := toSet(f.ContentTypes)
	specialty := strings.ToLower(strings.TrimSpace(f.Specialty))

	filtered := make([]core.SearchResult, 0, len(results))
	for _, r := range results {
		if len(evidence) > 0 && !evidence[strings.ToLower(r.EvidenceLevel)] {
			continue
		}
		if len(contentTypes) > 0 && !contentTypes[strings.ToLower(r.ContentType)] {
			continue
		}
		if specialty != "" && r.Specialty != "" && strings.ToLower(r.Specialty) != specialty {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// Paginate windows an already-sorted result list. An offset at or beyond
// the end yields an empty page, not an error.
func Paginate(results []core.SearchResult, offset, limit int) []core.SearchResult {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return []core.SearchResult{}
	}

	end := len(results)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return results[offset:end]
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = true
		}
	}
	return set
}
