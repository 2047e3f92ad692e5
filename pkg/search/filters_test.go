package search

import (
	"testing"

	"github.com/searchmux/searchmux/pkg/core"
)

func labeled(id, evidence, contentType, specialty string) core.SearchResult {
	return core.SearchResult{
		ID:            id,
		URL:           "https://example.org/" + id,
		EvidenceLevel: evidence,
		ContentType:   contentType,
		Specialty:     specialty,
	}
}

func ids(results []core.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestApplyFiltersNoConstraints(t *testing.T) {
	results := []core.SearchResult{
		labeled("a", "rct", "journal-article", "cardiology"),
		labeled("b", "", "", ""),
	}

	filtered := ApplyFilters(results, core.Filters{})
	if len(filtered) != 2 {
		t.Errorf("empty filter set should keep everything, got %v", ids(filtered))
	}
}

func TestApplyFiltersEvidenceLevels(t *testing.T) {
	results := []core.SearchResult{
		labeled("a", "rct", "", ""),
		labeled("b", "guideline", "", ""),
		labeled("c", "", "", ""),
	}

	filtered := ApplyFilters(results, core.Filters{EvidenceLevels: []string{"RCT"}})
	if len(filtered) != 1 || filtered[0].ID != "a" {
		t.Errorf("evidence filter result = %v, want [a]", ids(filtered))
	}
}

func TestApplyFiltersContentTypes(t *testing.T) {
	results := []core.SearchResult{
		labeled("a", "", "journal-article", ""),
		labeled("b", "", "web", ""),
	}

	filtered := ApplyFilters(results, core.Filters{ContentTypes: []string{"web"}})
	if len(filtered) != 1 || filtered[0].ID != "b" {
		t.Errorf("content type filter result = %v, want [b]", ids(filtered))
	}
}

func TestSpecialtyFilterLeniency(t *testing.T) {
	// Unclassified results are never excluded by a specialty filter,
	// whatever the filter value.
	unclassified := labeled("u", "", "", "")
	match := labeled("m", "", "", "Cardiology")
	other := labeled("o", "", "", "nephrology")

	for _, specialty := range []string{"cardiology", "oncology", "anything"} {
		filtered := ApplyFilters([]core.SearchResult{unclassified, match, other},
			core.Filters{Specialty: specialty})
		found := false
		for _, r := range filtered {
			if r.ID == "u" {
				found = true
			}
		}
		if !found {
			t.Errorf("specialty=%q removed the unclassified result", specialty)
		}
	}

	filtered := ApplyFilters([]core.SearchResult{unclassified, match, other},
		core.Filters{Specialty: "cardiology"})
	if len(filtered) != 2 {
		t.Errorf("filtered = %v, want [u m]", ids(filtered))
	}
}

func TestPaginateBounds(t *testing.T) {
	results := []core.SearchResult{
		labeled("a", "", "", ""), labeled("b", "", "", ""),
		labeled("c", "", "", ""), labeled("d", "", "", ""),
	}

	tests := []struct {
		name   string
		offset int
		limit  int
		want   []string
	}{
		{"first page", 0, 2, []string{"a", "b"}},
		{"second page", 2, 2, []string{"c", "d"}},
		{"partial last page", 3, 10, []string{"d"}},
		{"offset at length", 4, 2, []string{}},
		{"offset beyond length", 100, 2, []string{}},
		{"limit larger than list", 0, 50, []string{"a", "b", "c", "d"}},
		{"zero limit means no cap", 1, 0, []string{"b", "c", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := Paginate(results, tt.offset, tt.limit)
			got := ids(page)
			if len(got) != len(tt.want) {
				t.Fatalf("page = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("page = %v, want %v", got, tt.want)
				}
			}
		})
	}
}
