package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/searchmux/searchmux/pkg/cache"
	"github.com/searchmux/searchmux/pkg/core"
	"github.com/searchmux/searchmux/pkg/realtime"
)

// fakeProvider returns canned results or an error.
type fakeProvider struct {
	name    string
	results []core.SearchResult
	err     error
	calls   int
	mu      sync.Mutex
}

func (p *fakeProvider) Type() string { return "fake" }
func (p *fakeProvider) Name() string { return p.name }
func (p *fakeProvider) Search(ctx context.Context, req *core.SearchRequest) (*core.ResultPage, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return &core.ResultPage{Results: p.results}, nil
}
func (p *fakeProvider) ConfigType() interface{}            { return nil }
func (p *fakeProvider) SetConfig(config interface{}) error { return nil }
func (p *fakeProvider) GetConfig() interface{}             { return nil }
func (p *fakeProvider) Close() error                       { return nil }
func (p *fakeProvider) Factory(instanceName string, config interface{}) (core.Provider, error) {
	// Hand the prototype itself back so tests keep their canned results
	// and call counters on the registered instance.
	return p, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestService(t *testing.T, providers ...*fakeProvider) (*Service, *cache.Store) {
	t.Helper()

	registry := core.NewRegistry()
	var specs []core.ProviderSpec
	for i, p := range providers {
		if err := registry.RegisterPrototype(p.name, p); err != nil {
			t.Fatal(err)
		}
		if err := registry.CreateProvider(p.name, p.name, nil); err != nil {
			t.Fatal(err)
		}
		specs = append(specs, core.ProviderSpec{
			Name:     p.name,
			Type:     "fake",
			Enabled:  true,
			Priority: i + 1,
			Timeout:  time.Second,
		})
	}

	store := cache.NewStore(32)
	return NewService(registry, specs, store), store
}

func providerResults(provider string, urls ...string) []core.SearchResult {
	results := make([]core.SearchResult, len(urls))
	for i, u := range urls {
		results[i] = core.SearchResult{
			ID:        fmt.Sprintf("%s-%d", provider, i),
			Title:     u,
			URL:       u,
			Provider:  provider,
			Relevance: 0.9 - float64(i)*0.1,
		}
	}
	return results
}

func TestSearchEmptyQuery(t *testing.T) {
	service, _ := newTestService(t, &fakeProvider{name: "p1"})

	for _, query := range []string{"", "   ", "\t"} {
		_, err := service.Search(context.Background(), core.NewSearchRequest(query))
		if !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("query %q: expected ErrEmptyQuery, got %v", query, err)
		}
	}
}

func TestSearchNoProviders(t *testing.T) {
	registry := core.NewRegistry()
	service := NewService(registry, nil, cache.NewStore(8))

	_, err := service.Search(context.Background(), core.NewSearchRequest("sepsis"))
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestSearchRestrictionToUnknownProvider(t *testing.T) {
	p := &fakeProvider{name: "p1", results: providerResults("p1", "https://a.org/1")}
	service, _ := newTestService(t, p)

	req := core.NewSearchRequest("sepsis")
	req.Providers = []string{"does_not_exist"}

	_, err := service.Search(context.Background(), req)
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestSearchMergesAndDeduplicates(t *testing.T) {
	p1 := &fakeProvider{name: "p1", results: providerResults("p1",
		"https://example.org/hypertension", "https://example.org/a")}
	p2 := &fakeProvider{name: "p2", results: providerResults("p2",
		"HTTPS://EXAMPLE.ORG/hypertension?utm=1", "https://example.org/b")}
	service, _ := newTestService(t, p1, p2)

	result, err := service.Search(context.Background(), core.NewSearchRequest("hypertension guidelines"))
	if err != nil {
		t.Fatal(err)
	}

	if result.DuplicatesRemoved != 1 {
		t.Errorf("duplicatesRemoved = %d, want 1", result.DuplicatesRemoved)
	}
	if result.AggregatedCount != 3 {
		t.Errorf("aggregatedCount = %d, want 3", result.AggregatedCount)
	}
	if len(result.Providers) != 2 {
		t.Errorf("provider diagnostics len = %d, want 2", len(result.Providers))
	}
	if result.CacheHit {
		t.Error("first run must not be a cache hit")
	}
	if result.BestProvider == "" {
		t.Error("expected a best provider")
	}
}

func TestSearchCacheRoundTrip(t *testing.T) {
	p := &fakeProvider{name: "p1", results: providerResults("p1", "https://a.org/1", "https://a.org/2")}
	service, _ := newTestService(t, p)

	first, err := service.Search(context.Background(), core.NewSearchRequest("metformin dosing"))
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheHit {
		t.Fatal("first search should miss")
	}

	second, err := service.Search(context.Background(), core.NewSearchRequest("Metformin   Dosing"))
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit {
		t.Fatal("second search should hit the cache despite case/spacing differences")
	}
	if p.callCount() != 1 {
		t.Errorf("provider called %d times, want 1", p.callCount())
	}
	if len(second.Results) != len(first.Results) {
		t.Errorf("cached results len = %d, want %d", len(second.Results), len(first.Results))
	}
}

func TestSearchEmptyResultsNotCached(t *testing.T) {
	p := &fakeProvider{name: "p1", err: errors.New("backend down")}
	service, store := newTestService(t, p)

	result, err := service.Search(context.Background(), core.NewSearchRequest("transient outage"))
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Results) != 0 {
		t.Fatalf("expected empty results, got %d", len(result.Results))
	}
	if result.BestProvider != "" {
		t.Errorf("bestProvider = %q, want none", result.BestProvider)
	}
	if len(result.Providers) != 1 || result.Providers[0].Success {
		t.Errorf("provider diagnostics wrong: %+v", result.Providers)
	}
	if result.Providers[0].Error == "" {
		t.Error("failed provider missing error message")
	}
	if store.Len() != 0 {
		t.Error("empty result set was cached")
	}

	// A second identical request dispatches again rather than serving a
	// cached empty set.
	if _, err := service.Search(context.Background(), core.NewSearchRequest("transient outage")); err != nil {
		t.Fatal(err)
	}
	if p.callCount() != 2 {
		t.Errorf("provider called %d times, want 2", p.callCount())
	}
}

func TestSearchTTLBucketApplied(t *testing.T) {
	p := &fakeProvider{name: "p1", results: providerResults("p1", "https://a.org/1")}
	service, store := newTestService(t, p)

	req := core.NewSearchRequest("breaking news outbreak")
	result, err := service.Search(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	entry, ok := store.Entry(result.CacheKey)
	if !ok {
		t.Fatal("expected entry in cache after successful search")
	}
	if entry.TTL != cache.TTLTimeSensitive {
		t.Errorf("ttl = %v, want %v", entry.TTL, cache.TTLTimeSensitive)
	}
}

func TestSearchPaginationFromCache(t *testing.T) {
	urls := make([]string, 10)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://a.org/%d", i)
	}
	p := &fakeProvider{name: "p1", results: providerResults("p1", urls...)}
	service, _ := newTestService(t, p)

	req := core.NewSearchRequest("sepsis")
	req.Filters.Limit = 3
	first, err := service.Search(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Results) != 3 {
		t.Fatalf("page len = %d, want 3", len(first.Results))
	}

	// Different page, same cache entry.
	req2 := core.NewSearchRequest("sepsis")
	req2.Filters.Limit = 3
	req2.Filters.Offset = 3
	second, err := service.Search(context.Background(), req2)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit {
		t.Error("second page should be served from cache")
	}
	if len(second.Results) != 3 {
		t.Errorf("second page len = %d, want 3", len(second.Results))
	}
	if second.Results[0].ID == first.Results[0].ID {
		t.Error("second page repeats the first page")
	}

	// Offset beyond the cached set yields an empty page.
	req3 := core.NewSearchRequest("sepsis")
	req3.Filters.Offset = 99
	third, err := service.Search(context.Background(), req3)
	if err != nil {
		t.Fatal(err)
	}
	if len(third.Results) != 0 {
		t.Errorf("expected empty page, got %d results", len(third.Results))
	}
}

func TestSearchWithoutAggregation(t *testing.T) {
	shared := "https://example.org/shared"
	p1 := &fakeProvider{name: "p1", results: providerResults("p1", shared)}
	p2 := &fakeProvider{name: "p2", results: providerResults("p2", shared)}
	service, _ := newTestService(t, p1, p2)

	req := core.NewSearchRequest("sepsis")
	req.Aggregate = false

	result, err := service.Search(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Results) != 2 {
		t.Errorf("non-aggregated results len = %d, want 2", len(result.Results))
	}
	if result.DuplicatesRemoved != 0 {
		t.Errorf("duplicatesRemoved = %d, want 0 without aggregation", result.DuplicatesRemoved)
	}
}

func TestSearchEnricherSupersedesScores(t *testing.T) {
	p := &fakeProvider{name: "p1", results: providerResults("p1",
		"https://a.org/low", "https://a.org/high")}
	service, _ := newTestService(t, p)

	service.SetEnricher(enricherFunc(func(ctx context.Context, query string, results []core.SearchResult) ([]core.SearchResult, error) {
		out := make([]core.SearchResult, len(results))
		copy(out, results)
		for i := range out {
			// Invert the provider-native ordering.
			if out[i].URL == "https://a.org/high" {
				out[i].Relevance = 1.0
				out[i].Specialty = "cardiology"
			} else {
				out[i].Relevance = 0.1
			}
		}
		return out, nil
	}))

	result, err := service.Search(context.Background(), core.NewSearchRequest("ejection fraction"))
	if err != nil {
		t.Fatal(err)
	}
	if result.Results[0].URL != "https://a.org/high" {
		t.Errorf("enriched scores not applied to sort: %+v", result.Results)
	}
	if result.Results[0].Specialty != "cardiology" {
		t.Error("enrichment annotations not carried through")
	}
}

func TestSearchEnricherFailureFallsBack(t *testing.T) {
	p := &fakeProvider{name: "p1", results: providerResults("p1", "https://a.org/1")}
	service, _ := newTestService(t, p)

	service.SetEnricher(enricherFunc(func(ctx context.Context, query string, results []core.SearchResult) ([]core.SearchResult, error) {
		return nil, errors.New("enrichment service down")
	}))

	result, err := service.Search(context.Background(), core.NewSearchRequest("sepsis"))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Results) != 1 {
		t.Errorf("enricher failure dropped results: %d", len(result.Results))
	}
}

func TestSearchBroadcastsEvent(t *testing.T) {
	p := &fakeProvider{name: "p1", results: providerResults("p1", "https://a.org/1")}
	service, _ := newTestService(t, p)

	hub := realtime.NewHub(4)
	service.SetHub(hub)
	_, events := hub.Register()

	if _, err := service.Search(context.Background(), core.NewSearchRequest("sepsis")); err != nil {
		t.Fatal(err)
	}

	select {
	case event := <-events:
		if event.Search.Query != "sepsis" {
			t.Errorf("event query = %q, want sepsis", event.Search.Query)
		}
		if event.Search.ResultCount != 1 {
			t.Errorf("event resultCount = %d, want 1", event.Search.ResultCount)
		}
	case <-time.After(time.Second):
		t.Fatal("no event broadcast after search")
	}
}

func TestSearchRecorderFailureDoesNotFailSearch(t *testing.T) {
	p := &fakeProvider{name: "p1", results: providerResults("p1", "https://a.org/1")}
	service, _ := newTestService(t, p)

	recorded := make(chan string, 1)
	service.SetRecorder(recorderFunc(func(ctx context.Context, query string, providers []string, resultCount int, searchTimeMs int64, cacheHit bool) error {
		recorded <- query
		return errors.New("sink unavailable")
	}))

	result, err := service.Search(context.Background(), core.NewSearchRequest("sepsis"))
	if err != nil {
		t.Fatalf("recorder failure leaked into search: %v", err)
	}
	if len(result.Results) != 1 {
		t.Error("result degraded by recorder failure")
	}

	select {
	case query := <-recorded:
		if query != "sepsis" {
			t.Errorf("recorded query = %q", query)
		}
	case <-time.After(time.Second):
		t.Fatal("recorder never invoked")
	}
}

// enricherFunc adapts a function to the aggregate.Enricher interface.
type enricherFunc func(ctx context.Context, query string, results []core.SearchResult) ([]core.SearchResult, error)

func (f enricherFunc) Enrich(ctx context.Context, query string, results []core.SearchResult) ([]core.SearchResult, error) {
	return f(ctx, query, results)
}

// recorderFunc adapts a function to the Recorder interface.
type recorderFunc func(ctx context.Context, query string, providers []string, resultCount int, searchTimeMs int64, cacheHit bool) error

func (f recorderFunc) Record(ctx context.Context, query string, providers []string, resultCount int, searchTimeMs int64, cacheHit bool) error {
	return f(ctx, query, providers, resultCount, searchTimeMs, cacheHit)
}
