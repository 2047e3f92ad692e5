package core

import (
	"context"
	"time"
)

// Provider represents an external search backend that can answer a query.
// All backends in searchmux implement this interface to integrate with the
// dispatcher.
//
// Providers are self-contained units that:
// - Know how to talk to their specific backend (API shape, auth, paging)
// - Translate backend payloads into the common SearchResult shape
// - Manage their own configuration and lifecycle
//
// Key concepts:
// - Type vs Name: Type is the backend category (e.g. "brave"), Name is the
//   configured instance (e.g. "brave_main"). Two instances of one type can
//   coexist with different credentials.
// - Statelessness: Search must be safe for concurrent calls; providers hold
//   no per-request mutable state.
// - Cancellation: Search must respect ctx. The dispatcher bounds every call
//   with a per-provider timeout and abandons calls that overrun it.
//
// Registration pattern:
//
//	func init() {
//		core.RegisterProviderPrototype("brave", &Provider{})
//	}
type Provider interface {
	// Type returns the backend type identifier (e.g. "duckduckgo",
	// "brave", "pubmed"). Used for factory registration and configuration
	// matching.
	Type() string

	// Name returns the unique instance name for this provider. This is
	// what callers pass in SearchRequest.Providers and what shows up in
	// ProviderResponse diagnostics.
	Name() string

	// Search executes the query against the backend and returns a page of
	// results in the common shape. Implementations must honor ctx
	// cancellation and return transport and decode problems as errors;
	// the dispatcher converts them into failure responses.
	Search(ctx context.Context, req *SearchRequest) (*ResultPage, error)

	// ConfigType returns a pointer to an empty configuration struct for
	// this provider type. Used to decode per-provider config blocks.
	ConfigType() interface{}

	// SetConfig updates the provider configuration. Should validate and
	// return an error if invalid.
	SetConfig(config interface{}) error

	// GetConfig returns the current configuration.
	GetConfig() interface{}

	// Close releases any resources held by the provider.
	Close() error

	// Factory creates a new instance of this provider type with the given
	// instance name and configuration (nil means defaults).
	Factory(instanceName string, config interface{}) (Provider, error)
}

// ResultPage is what a provider hands back from one Search call: the
// translated results plus optional hints. TotalCount may exceed
// len(Results) when the backend reports a larger match count; zero means
// unknown and is filled from the result count. Metadata carries
// backend-specific details (model name, usage counters) for diagnostics.
type ResultPage struct {
	Results    []SearchResult
	TotalCount int
	Metadata   map[string]any
}

// ProviderSpec is the immutable per-instance configuration the dispatcher
// needs: whether the instance participates, its position in sequential
// mode (lower priority goes first) and its timeout budget.
type ProviderSpec struct {
	Name     string
	Type     string
	Enabled  bool
	Priority int
	Timeout  time.Duration
}

// DefaultProviderTimeout bounds a provider call when the configuration does
// not specify a budget.
const DefaultProviderTimeout = 10 * time.Second
