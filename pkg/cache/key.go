package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/searchmux/searchmux/pkg/core"
)

// Key derives a deterministic, opaque cache key from the normalized query
// and a canonical serialization of everything that changes the merged
// result set: provider restriction, filter axes and the aggregate flag.
// Limit and offset are deliberately excluded so that every page of one
// logical search is served from a single cached entry.
func Key(req *core.SearchRequest) string {
	var parts []string
	parts = append(parts, "q="+NormalizeQuery(req.Query))

	if len(req.Providers) > 0 {
		providers := lowerSorted(req.Providers)
		parts = append(parts, "providers="+strings.Join(providers, ","))
	}

	f := req.Filters
	if f.Specialty != "" {
		parts = append(parts, "specialty="+strings.ToLower(f.Specialty))
	}
	if len(f.EvidenceLevels) > 0 {
		parts = append(parts, "evidence="+strings.Join(lowerSorted(f.EvidenceLevels), ","))
	}
	if len(f.ContentTypes) > 0 {
		parts = append(parts, "types="+strings.Join(lowerSorted(f.ContentTypes), ","))
	}
	if f.Recency != "" {
		parts = append(parts, "recency="+strings.ToLower(f.Recency))
	}
	parts = append(parts, fmt.Sprintf("aggregate=%t", req.Aggregate))

	sum := sha256.Sum256([]byte(strings.Join(parts, "&")))
	return hex.EncodeToString(sum[:])
}

// NormalizeQuery lower-cases, trims and collapses internal whitespace so
// that queries differing only in casing or spacing share a cache entry.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

func lowerSorted(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(strings.ToLower(v))
		if v != "" {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
