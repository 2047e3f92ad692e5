package cache

import (
	"sync"
	"time"

	"github.com/searchmux/searchmux/pkg/core"
	"github.com/searchmux/searchmux/pkg/log"
)

// DefaultCapacity bounds the store when the configuration does not set one.
const DefaultCapacity = 256

// Entry is a cached orchestration result with its lifecycle bookkeeping.
type Entry struct {
	Key       string
	Value     core.OrchestrationResult
	CreatedAt time.Time
	TTL       time.Duration
	Hits      int64
}

// Expired reports whether the entry is past its TTL at the given time.
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// Stats are the observable counters of a store.
type Stats struct {
	Entries     int   `json:"entries"`
	Capacity    int   `json:"capacity"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
	Expirations int64 `json:"expirations"`
}

// Store is a process-local, capacity-bounded result cache with per-entry
// TTLs. Entries past their TTL are treated as misses and removed on read;
// when the store is full, the entry inserted first is evicted. Recent
// reads do not move an entry: eviction order is insertion order, not LRU.
//
// The store is safe for concurrent use. It is a performance optimization
// only; callers must not rely on it for correctness.
type Store struct {
	mu          sync.Mutex
	entries     map[string]*Entry
	order       []string // insertion order, oldest first
	capacity    int
	hits        int64
	misses      int64
	evictions   int64
	expirations int64
	logger      *log.Logger

	// now is the clock; overridable in tests.
	now func() time.Time
}

// NewStore creates a store holding at most capacity entries. A capacity
// of zero or less falls back to DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		entries:  make(map[string]*Entry),
		capacity: capacity,
		logger:   log.ForService("cache"),
		now:      time.Now,
	}
}

// Get returns the cached result for key, or ok=false on a miss. An entry
// older than its TTL counts as a miss and is removed.
func (s *Store) Get(key string) (core.OrchestrationResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		s.misses++
		return core.OrchestrationResult{}, false
	}

	if entry.Expired(s.now()) {
		s.removeLocked(key)
		s.misses++
		s.expirations++
		s.logger.Debugf("entry %s expired after %v", key, entry.TTL)
		return core.OrchestrationResult{}, false
	}

	entry.Hits++
	s.hits++
	return entry.Value, true
}

// Set stores value under key with the given TTL. An existing key is
// overwritten in place (last write wins) and keeps its insertion position.
// When a new key would exceed capacity, the oldest-inserted entry is
// evicted first.
func (s *Store) Set(key string, value core.OrchestrationResult, ttl time.Duration) {
	if ttl <= 0 {
		ttl = TTLDefault
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, exists := s.entries[key]; exists {
		entry.Value = value
		entry.CreatedAt = s.now()
		entry.TTL = ttl
		return
	}

	if len(s.entries) >= s.capacity && len(s.order) > 0 {
		oldest := s.order[0]
		s.removeLocked(oldest)
		s.evictions++
		s.logger.Debugf("evicted %s to make room", oldest)
	}

	s.entries[key] = &Entry{
		Key:       key,
		Value:     value,
		CreatedAt: s.now(),
		TTL:       ttl,
	}
	s.order = append(s.order, key)
	s.logger.Debugf("stored %s with ttl %v", key, ttl)
}

// SweepExpired removes all entries past their TTL and returns how many
// were dropped.
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if entry.Expired(now) {
			s.removeLocked(key)
			s.expirations++
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debugf("sweep removed %d expired entries", removed)
	}
	return removed
}

// Entry returns a copy of the entry stored under key without touching hit
// counters or expiring it. Intended for diagnostics.
func (s *Store) Entry(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		return Entry{}, false
	}
	return *entry, true
}

// Len returns the current number of entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Entries:     len(s.entries),
		Capacity:    s.capacity,
		Hits:        s.hits,
		Misses:      s.misses,
		Evictions:   s.evictions,
		Expirations: s.expirations,
	}
}

// removeLocked drops key from the map and the insertion-order list.
// Caller must hold s.mu.
func (s *Store) removeLocked(key string) {
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
