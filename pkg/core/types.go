package core

import (
	"strings"
)

const (
	// DefaultLimit is the page size used when a request does not specify one.
	DefaultLimit = 20

	// MaxLimit is the hard cap on the page size. Requests asking for more
	// are clamped, not rejected.
	MaxLimit = 100
)

// Execution modes for a search request.
const (
	ModeParallel   = "parallel"
	ModeSequential = "sequential"
)

// Recency buckets accepted in the filter set. An empty value means no
// recency constraint.
const (
	RecencyDay   = "day"
	RecencyWeek  = "week"
	RecencyMonth = "month"
	RecencyYear  = "year"
)

// Filters narrows a merged result set and windows it into a page.
// Empty filter lists mean "no constraint" on that axis.
type Filters struct {
	Specialty      string   `json:"specialty,omitempty"`
	EvidenceLevels []string `json:"evidenceLevels,omitempty"`
	ContentTypes   []string `json:"contentTypes,omitempty"`
	Recency        string   `json:"recency,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Offset         int      `json:"offset,omitempty"`
}

// SearchRequest is the input to an orchestration run.
//
// Providers restricts the run to the named provider instances; empty means
// all enabled providers. Mode selects parallel fan-out (the default) or
// sequential invocation in priority order. Aggregate controls whether
// results are merged and deduplicated across providers.
type SearchRequest struct {
	Query     string   `json:"q"`
	Providers []string `json:"providers,omitempty"`
	Mode      string   `json:"mode,omitempty"`
	Aggregate bool     `json:"aggregateResults"`
	Filters   Filters  `json:"filters"`
}

// NewSearchRequest returns a request with the defaults applied: parallel
// execution, aggregation enabled, default page size.
func NewSearchRequest(query string) *SearchRequest {
	return &SearchRequest{
		Query:     query,
		Mode:      ModeParallel,
		Aggregate: true,
		Filters:   Filters{Limit: DefaultLimit},
	}
}

// Normalize trims the query and clamps pagination to the documented bounds.
// It never fails; validation proper happens in the orchestrator.
func (r *SearchRequest) Normalize() {
	r.Query = strings.TrimSpace(r.Query)
	if r.Mode == "" {
		r.Mode = ModeParallel
	}
	if r.Filters.Limit <= 0 {
		r.Filters.Limit = DefaultLimit
	}
	if r.Filters.Limit > MaxLimit {
		r.Filters.Limit = MaxLimit
	}
	if r.Filters.Offset < 0 {
		r.Filters.Offset = 0
	}
}

// Sequential reports whether the request asks for sequential dispatch.
func (r *SearchRequest) Sequential() bool {
	return r.Mode == ModeSequential
}

// SearchResult is one item returned by a provider, normalized to the
// common shape. Identity for deduplication is the canonical form of URL.
type SearchResult struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Snippet       string  `json:"snippet,omitempty"`
	Source        string  `json:"source,omitempty"`
	Provider      string  `json:"provider"`
	Relevance     float64 `json:"relevance"`
	EvidenceLevel string  `json:"evidenceLevel,omitempty"`
	ContentType   string  `json:"contentType,omitempty"`
	Specialty     string  `json:"specialty,omitempty"`
	PublishedAt   string  `json:"publishedAt,omitempty"`
}

// ProviderResponse is the outcome of one provider call within a run.
// It is created once per dispatch attempt and never mutated afterwards.
// SearchTime is wall-clock seconds, recorded on success and failure alike.
type ProviderResponse struct {
	Provider   string         `json:"provider"`
	Success    bool           `json:"success"`
	Results    []SearchResult `json:"results,omitempty"`
	TotalCount int            `json:"totalCount,omitempty"`
	SearchTime float64        `json:"searchTime"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// OrchestrationResult is the final envelope of a run: the merged, filtered
// result list plus per-provider diagnostics. This is the unit that gets
// cached and returned to callers.
type OrchestrationResult struct {
	Results           []SearchResult     `json:"results"`
	Providers         []ProviderResponse `json:"providers"`
	AggregatedCount   int                `json:"aggregatedCount"`
	TotalSearchTime   float64            `json:"totalSearchTime"`
	DuplicatesRemoved int                `json:"duplicatesRemoved"`
	BestProvider      string             `json:"bestProvider,omitempty"`
	CacheHit          bool               `json:"cacheHit"`
	CacheKey          string             `json:"cacheKey,omitempty"`
}
