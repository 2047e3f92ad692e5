// Package search ties the orchestration pipeline together: cache lookup,
// provider dispatch, aggregation, filtering and cache store. It is the
// single entry point the API and CLI layers call.
//
// A run moves through cache check, dispatching, aggregating, filtering and
// caching. A cache hit short-circuits straight to the final envelope.
// Provider failures degrade the result set but never fail the request;
// only a malformed request or an empty usable provider set is fatal.
package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/searchmux/searchmux/pkg/aggregate"
	"github.com/searchmux/searchmux/pkg/cache"
	"github.com/searchmux/searchmux/pkg/core"
	"github.com/searchmux/searchmux/pkg/dispatch"
	"github.com/searchmux/searchmux/pkg/log"
	"github.com/searchmux/searchmux/pkg/realtime"
)

var (
	// ErrEmptyQuery rejects a request before any provider is contacted.
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrNoProviders rejects a request whose enabled-and-requested
	// provider set is empty.
	ErrNoProviders = errors.New("no providers available for request")
)

// Recorder receives a summary of every completed orchestration for
// persistence. Implementations must be safe for concurrent use. Recording
// is fire-and-forget: a recorder failure never fails the search.
type Recorder interface {
	Record(ctx context.Context, query string, providers []string, resultCount int, searchTimeMs int64, cacheHit bool) error
}

// Service orchestrates searches across the configured providers.
type Service struct {
	registry   *core.Registry
	mu         sync.RWMutex
	specs      map[string]core.ProviderSpec
	store      *cache.Store
	dispatcher *dispatch.Dispatcher
	enricher   aggregate.Enricher
	recorder   Recorder
	hub        *realtime.Hub
	logger     *log.Logger
}

// NewService creates a search service over the given provider registry and
// per-instance specs, caching results in store. Enrichment defaults to a
// passthrough; analytics and event broadcasting are off until configured.
func NewService(registry *core.Registry, specs []core.ProviderSpec, store *cache.Store) *Service {
	specMap := make(map[string]core.ProviderSpec, len(specs))
	for _, spec := range specs {
		specMap[spec.Name] = spec
	}
	return &Service{
		registry:   registry,
		specs:      specMap,
		store:      store,
		dispatcher: dispatch.NewDispatcher(),
		enricher:   aggregate.NopEnricher{},
		logger:     log.ForService("search"),
	}
}

// SetEnricher installs an enrichment step applied to the deduplicated
// result list before the final sort. A nil enricher restores passthrough.
func (s *Service) SetEnricher(enricher aggregate.Enricher) {
	if enricher == nil {
		enricher = aggregate.NopEnricher{}
	}
	s.enricher = enricher
}

// SetRecorder installs a fire-and-forget analytics sink.
func (s *Service) SetRecorder(recorder Recorder) {
	s.recorder = recorder
}

// SetHub installs an event hub receiving a SearchEvent per completed run.
func (s *Service) SetHub(hub *realtime.Hub) {
	s.hub = hub
}

// UpdateSpecs replaces the provider specs, typically after a configuration
// reload. In-flight searches keep the set they started with.
func (s *Service) UpdateSpecs(specs []core.ProviderSpec) {
	specMap := make(map[string]core.ProviderSpec, len(specs))
	for _, spec := range specs {
		specMap[spec.Name] = spec
	}
	s.mu.Lock()
	s.specs = specMap
	s.mu.Unlock()
}

// Specs returns the provider specs this service dispatches to, sorted by
// priority then name.
func (s *Service) Specs() []core.ProviderSpec {
	s.mu.RLock()
	specs := make([]core.ProviderSpec, 0, len(s.specs))
	for _, spec := range s.specs {
		specs = append(specs, spec)
	}
	s.mu.RUnlock()
	sortSpecs(specs)
	return specs
}

// Search runs one orchestration: cache lookup, dispatch, aggregation,
// filtering and cache store. The returned envelope is always well-formed;
// provider failures show up only in its Providers diagnostics. The only
// errors are ErrEmptyQuery and ErrNoProviders.
func (s *Service) Search(ctx context.Context, req *core.SearchRequest) (*core.OrchestrationResult, error) {
	req.Normalize()
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}

	key := cache.Key(req)
	start := time.Now()

	if cached, ok := s.store.Get(key); ok {
		s.logger.Debugf("cache hit for %q", req.Query)
		envelope := cached
		envelope.Results = Paginate(cached.Results, req.Filters.Offset, req.Filters.Limit)
		envelope.CacheHit = true
		envelope.CacheKey = key
		s.observe(req, &envelope)
		return &envelope, nil
	}

	handles, err := s.selectHandles(req)
	if err != nil {
		return nil, err
	}

	s.logger.Infof("dispatching %q to %d providers (%s)", req.Query, len(handles), req.Mode)
	responses, err := s.dispatcher.Run(ctx, req, handles)
	if err != nil {
		// Only an empty handle set reaches here, and selectHandles
		// already guards that.
		return nil, ErrNoProviders
	}

	var results []core.SearchResult
	duplicates := 0
	if req.Aggregate {
		results, duplicates = aggregate.Merge(responses)
		results = s.enrich(ctx, req.Query, results)
		aggregate.SortByRelevance(results)
	} else {
		for _, resp := range responses {
			if resp.Success {
				results = append(results, resp.Results...)
			}
		}
	}

	aggregatedCount := len(results)
	filtered := ApplyFilters(results, req.Filters)
	best, _ := aggregate.SelectBestProvider(responses)

	full := core.OrchestrationResult{
		Results:           filtered,
		Providers:         responses,
		AggregatedCount:   aggregatedCount,
		TotalSearchTime:   time.Since(start).Seconds(),
		DuplicatesRemoved: duplicates,
		BestProvider:      best,
		CacheKey:          key,
	}

	// A transient "all providers down" response must not be served from
	// cache later, so empty result sets are never stored.
	if len(filtered) > 0 {
		s.store.Set(key, full, cache.TTLForRequest(req))
	}

	envelope := full
	envelope.Results = Paginate(filtered, req.Filters.Offset, req.Filters.Limit)
	s.observe(req, &envelope)
	return &envelope, nil
}

// enrich applies the configured enrichment step, falling back to the
// original list when the collaborator is unavailable or fails.
func (s *Service) enrich(ctx context.Context, query string, results []core.SearchResult) []core.SearchResult {
	if len(results) == 0 {
		return results
	}
	enriched, err := s.enricher.Enrich(ctx, query, results)
	if err != nil {
		s.logger.Warnf("enrichment failed, using provider-native scores: %v", err)
		return results
	}
	return enriched
}

// selectHandles builds the dispatch set: the configured, enabled provider
// instances, narrowed to an explicit restriction when the request carries
// one. The order is deterministic (priority, then name) so merge order is
// reproducible for a fixed provider configuration.
func (s *Service) selectHandles(req *core.SearchRequest) ([]dispatch.Handle, error) {
	var requested map[string]bool
	if len(req.Providers) > 0 {
		requested = make(map[string]bool, len(req.Providers))
		for _, name := range req.Providers {
			requested[strings.ToLower(strings.TrimSpace(name))] = true
		}
	}

	var specs []core.ProviderSpec
	s.mu.RLock()
	for name, spec := range s.specs {
		if !spec.Enabled {
			continue
		}
		if requested != nil && !requested[strings.ToLower(name)] {
			continue
		}
		specs = append(specs, spec)
	}
	s.mu.RUnlock()
	sortSpecs(specs)

	var handles []dispatch.Handle
	for _, spec := range specs {
		provider, err := s.registry.GetProvider(spec.Name)
		if err != nil {
			s.logger.Warnf("configured provider %s not in registry: %v", spec.Name, err)
			continue
		}
		handles = append(handles, dispatch.Handle{Spec: spec, Provider: provider})
	}

	if len(handles) == 0 {
		return nil, ErrNoProviders
	}
	return handles, nil
}

// observe emits the analytics record and the realtime event for a
// completed run. Both paths are best effort and never fail the search.
func (s *Service) observe(req *core.SearchRequest, result *core.OrchestrationResult) {
	providers := make([]string, 0, len(result.Providers))
	for _, resp := range result.Providers {
		providers = append(providers, resp.Provider)
	}
	searchTimeMs := int64(result.TotalSearchTime * 1000)

	if s.hub != nil {
		s.hub.Broadcast(realtime.SearchEvent{
			Query:             req.Query,
			Providers:         providers,
			ResultCount:       len(result.Results),
			DuplicatesRemoved: result.DuplicatesRemoved,
			BestProvider:      result.BestProvider,
			CacheHit:          result.CacheHit,
			SearchTimeMs:      searchTimeMs,
			CreatedAt:         time.Now().UTC(),
		})
	}

	if s.recorder != nil {
		query := req.Query
		cacheHit := result.CacheHit
		resultCount := len(result.Results)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.recorder.Record(ctx, query, providers, resultCount, searchTimeMs, cacheHit); err != nil {
				s.logger.Warnf("recording search: %v", err)
			}
		}()
	}
}

func sortSpecs(specs []core.ProviderSpec) {
	sort.SliceStable(specs, func(i, j int) bool {
		if specs[i].Priority != specs[j].Priority {
			return specs[i].Priority < specs[j].Priority
		}
		return specs[i].Name < specs[j].Name
	})
}
