package aggregate

import (
	"testing"

	"github.com/searchmux/searchmux/pkg/core"
)

func successResponse(provider string, searchTime float64, results ...core.SearchResult) core.ProviderResponse {
	return core.ProviderResponse{
		Provider:   provider,
		Success:    true,
		Results:    results,
		TotalCount: len(results),
		SearchTime: searchTime,
	}
}

func result(url string, relevance float64) core.SearchResult {
	return core.SearchResult{Title: url, URL: url, Relevance: relevance}
}

func TestMergeDeduplicatesByCanonicalURL(t *testing.T) {
	responses := []core.ProviderResponse{
		successResponse("brave", 1,
			result("https://example.org/hypertension", 0.9),
		),
		successResponse("duckduckgo", 1,
			result("HTTPS://Example.org/hypertension?src=ddg", 0.7),
			result("https://other.org/page", 0.5),
		),
	}

	merged, duplicates := Merge(responses)

	if len(merged) != 2 {
		t.Fatalf("merged len = %d, want 2", len(merged))
	}
	if duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", duplicates)
	}
	// First occurrence wins.
	if merged[0].Provider != "" && merged[0].Relevance != 0.9 {
		t.Errorf("expected first occurrence kept, got %+v", merged[0])
	}
}

func TestMergeSkipsFailedProviders(t *testing.T) {
	responses := []core.ProviderResponse{
		{Provider: "down", Success: false, Error: "timeout",
			Results: []core.SearchResult{result("https://example.org/a", 0.9)}},
		successResponse("up", 1, result("https://example.org/b", 0.5)),
	}

	merged, _ := Merge(responses)
	if len(merged) != 1 || merged[0].URL != "https://example.org/b" {
		t.Errorf("failed provider results leaked into merge: %+v", merged)
	}
}

func TestMergeIdempotent(t *testing.T) {
	results := []core.SearchResult{
		result("https://example.org/a", 0.9),
		result("https://example.org/b", 0.8),
		result("https://example.org/c", 0.7),
	}

	once, dup1 := Merge([]core.ProviderResponse{successResponse("p", 1, results...)})
	if dup1 != 0 {
		t.Fatalf("unexpected duplicates in single merge: %d", dup1)
	}

	// Merging the list with itself removes exactly the size of the copy.
	twice, dup2 := Merge([]core.ProviderResponse{
		successResponse("p", 1, results...),
		successResponse("p", 1, results...),
	})

	if len(twice) != len(once) {
		t.Errorf("double merge len = %d, want %d", len(twice), len(once))
	}
	if dup2 != len(results) {
		t.Errorf("duplicates = %d, want %d", dup2, len(results))
	}
}

func TestMergeKeepsResultsWithoutURL(t *testing.T) {
	responses := []core.ProviderResponse{
		successResponse("p", 1,
			core.SearchResult{Title: "answer one"},
			core.SearchResult{Title: "answer two"},
		),
	}

	merged, duplicates := Merge(responses)
	if len(merged) != 2 || duplicates != 0 {
		t.Errorf("URL-less results mishandled: len=%d dup=%d", len(merged), duplicates)
	}
}

func TestSortByRelevanceStable(t *testing.T) {
	results := []core.SearchResult{
		{ID: "a", Relevance: 0.5},
		{ID: "b", Relevance: 0.9},
		{ID: "c", Relevance: 0.5},
		{ID: "d", Relevance: 0.5},
	}

	SortByRelevance(results)

	if results[0].ID != "b" {
		t.Errorf("highest relevance not first: %+v", results)
	}
	// Equal scores keep their pre-sort relative order.
	got := []string{results[1].ID, results[2].ID, results[3].ID}
	want := []string{"a", "c", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tie order changed: got %v, want %v", got, want)
		}
	}
}

func TestSelectBestProvider(t *testing.T) {
	responses := []core.ProviderResponse{
		// 3 results x 4 = 12, speed 30-1 = 29, quality 0.9*30 = 27 => 68
		successResponse("fast_quality", 1,
			result("https://a.org/1", 0.9),
			result("https://a.org/2", 0.9),
			result("https://a.org/3", 0.9),
		),
		// 10 results, breadth capped at 40, speed 30-25 = 5, quality 0.3*30 = 9 => 54
		successResponse("broad_slow", 25,
			result("https://b.org/1", 0.3), result("https://b.org/2", 0.3),
			result("https://b.org/3", 0.3), result("https://b.org/4", 0.3),
			result("https://b.org/5", 0.3), result("https://b.org/6", 0.3),
			result("https://b.org/7", 0.3), result("https://b.org/8", 0.3),
			result("https://b.org/9", 0.3), result("https://b.org/10", 0.3),
		),
	}

	best, ok := SelectBestProvider(responses)
	if !ok {
		t.Fatal("expected a best provider")
	}
	if best != "fast_quality" {
		t.Errorf("best = %q, want fast_quality", best)
	}
}

func TestSelectBestProviderIgnoresFailuresAndEmpties(t *testing.T) {
	responses := []core.ProviderResponse{
		{Provider: "down", Success: false, Error: "timeout"},
		successResponse("empty", 1),
	}

	if best, ok := SelectBestProvider(responses); ok {
		t.Errorf("no provider should be eligible, got %q", best)
	}
}

func TestSelectBestProviderSpeedFloor(t *testing.T) {
	// A provider slower than the speed budget gets zero speed points, not
	// negative ones.
	slow := successResponse("glacial", 120, result("https://a.org/1", 1.0))
	score := providerScore(slow)
	want := 4.0 + 0.0 + 30.0
	if score != want {
		t.Errorf("score = %v, want %v", score, want)
	}
}
