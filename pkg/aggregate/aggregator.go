package aggregate

import (
	"context"
	"sort"

	"github.com/searchmux/searchmux/pkg/core"
)

// Best-provider scoring weights: breadth is rewarded up to a cap, speed is
// rewarded down to a floor of zero, and average result relevance carries
// the remaining weight.
const (
	breadthPointsPerResult = 4
	breadthCap             = 40
	speedBudgetSeconds     = 30
	relevanceWeight        = 30
)

// Enricher annotates a deduplicated result list with classification data
// (evidence level, content type, specialty) and refreshed relevance scores.
// It is an optional collaborator; when none is configured the aggregator
// uses provider-native scores unchanged.
type Enricher interface {
	Enrich(ctx context.Context, query string, results []core.SearchResult) ([]core.SearchResult, error)
}

// NopEnricher passes results through untouched.
type NopEnricher struct{}

func (NopEnricher) Enrich(ctx context.Context, query string, results []core.SearchResult) ([]core.SearchResult, error) {
	return results, nil
}

// Merge concatenates the result lists of all successful responses in
// invocation order and deduplicates them by canonical URL. The first
// occurrence wins; later occurrences are dropped and counted. Results
// without a URL are kept as-is (nothing to dedupe on).
func Merge(responses []core.ProviderResponse) ([]core.SearchResult, int) {
	var merged []core.SearchResult
	seen := make(map[string]bool)
	duplicates := 0

	for _, resp := range responses {
		if !resp.Success {
			continue
		}
		for _, result := range resp.Results {
			key := CanonicalURL(result.URL)
			if key == "" {
				merged = append(merged, result)
				continue
			}
			if seen[key] {
				duplicates++
				continue
			}
			seen[key] = true
			merged = append(merged, result)
		}
	}

	return merged, duplicates
}

// SortByRelevance orders results by relevance score descending. The sort
// is stable: ties keep the relative order produced by Merge, which is
// provider invocation order, then list order within each provider.
func SortByRelevance(results []core.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})
}

// SelectBestProvider picks the provider that produced the most useful
// results in this run, for observability only. Only successful providers
// with at least one result are eligible; ok=false means none were.
func SelectBestProvider(responses []core.ProviderResponse) (string, bool) {
	best := ""
	bestScore := -1.0

	for _, resp := range responses {
		if !resp.Success || len(resp.Results) == 0 {
			continue
		}
		score := providerScore(resp)
		if score > bestScore {
			bestScore = score
			best = resp.Provider
		}
	}

	return best, best != ""
}

func providerScore(resp core.ProviderResponse) float64 {
	breadth := float64(len(resp.Results) * breadthPointsPerResult)
	if breadth > breadthCap {
		breadth = breadthCap
	}

	speed := speedBudgetSeconds - resp.SearchTime
	if speed < 0 {
		speed = 0
	}

	var total float64
	for _, r := range resp.Results {
		total += r.Relevance
	}
	quality := total / float64(len(resp.Results)) * relevanceWeight

	return breadth + speed + quality
}
