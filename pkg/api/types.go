package api

import (
	"time"

	"github.com/searchmux/searchmux/pkg/analytics"
	"github.com/searchmux/searchmux/pkg/cache"
	"github.com/searchmux/searchmux/pkg/core"
)

// SearchRequestBody is the wire form of a search request. Parallel and
// AggregateResults are pointers so an omitted field keeps its default
// (both true) while an explicit false is honored.
type SearchRequestBody struct {
	Query            string       `json:"q"`
	Providers        []string     `json:"providers,omitempty"`
	Parallel         *bool        `json:"parallel,omitempty"`
	AggregateResults *bool        `json:"aggregateResults,omitempty"`
	Filters          core.Filters `json:"filters"`
}

// ToSearchRequest translates the wire form into the orchestrator's request.
func (b *SearchRequestBody) ToSearchRequest() *core.SearchRequest {
	req := core.NewSearchRequest(b.Query)
	req.Providers = b.Providers
	if b.Parallel != nil && !*b.Parallel {
		req.Mode = core.ModeSequential
	}
	if b.AggregateResults != nil {
		req.Aggregate = *b.AggregateResults
	}
	if b.Filters.Limit > 0 {
		req.Filters = b.Filters
	} else {
		limit := req.Filters.Limit
		req.Filters = b.Filters
		req.Filters.Limit = limit
	}
	return req
}

type ProviderInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Enabled  bool   `json:"enabled"`
	Priority int    `json:"priority"`
	Timeout  string `json:"timeout"`
}

type ListProvidersResponse struct {
	Providers []ProviderInfo `json:"providers"`
	Count     int            `json:"count"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type StatsResponse struct {
	Cache     cache.Stats      `json:"cache"`
	Analytics *analytics.Stats `json:"analytics,omitempty"`
	Listeners int              `json:"listeners"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}
