package cache

import (
	"strings"
	"time"

	"github.com/searchmux/searchmux/pkg/core"
)

// TTL buckets. The policy favors short lifetimes for anything that smells
// time-sensitive and long lifetimes for stable domain knowledge.
const (
	TTLTimeSensitive = 10 * time.Minute
	TTLRecent        = 15 * time.Minute
	TTLMonth         = time.Hour
	TTLStable        = 2 * time.Hour
	TTLDefault       = 30 * time.Minute
)

// timeSensitiveTerms mark queries whose answers churn quickly.
var timeSensitiveTerms = []string{
	"breaking",
	"urgent",
	"latest",
	"today",
	"news",
	"outbreak",
	"recall",
	"alert",
	"emerging",
}

// stableTerms mark queries about settled domain knowledge that rarely
// changes between runs.
var stableTerms = []string{
	"guideline",
	"guidelines",
	"pathophysiology",
	"anatomy",
	"physiology",
	"mechanism",
	"etiology",
	"definition",
	"overview",
	"textbook",
}

// TTLForRequest computes the cache lifetime for a request from its query
// wording and recency filter. Precedence: time-sensitive terms, then the
// recency window, then stable-knowledge terms, then the default.
func TTLForRequest(req *core.SearchRequest) time.Duration {
	query := strings.ToLower(req.Query)

	if containsAny(query, timeSensitiveTerms) {
		return TTLTimeSensitive
	}

	switch strings.ToLower(req.Filters.Recency) {
	case core.RecencyDay, core.RecencyWeek:
		return TTLRecent
	case core.RecencyMonth:
		return TTLMonth
	}

	if containsAny(query, stableTerms) {
		return TTLStable
	}

	return TTLDefault
}

func containsAny(query string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(query, term) {
			return true
		}
	}
	return false
}
