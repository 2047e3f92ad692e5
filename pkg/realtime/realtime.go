package realtime

// Package realtime provides a lightweight in-process publish/subscribe hub
// used to fan out completed-search events to multiple listeners (e.g.
// WebSocket sessions on the firehose endpoint).
//
// Fan-out is best effort: slow listeners drop events, they never apply
// backpressure to the search path. There is no persistence or replay;
// the stream is ephemeral.

import (
	"sync"
	"time"
)

// SearchEvent summarizes one completed orchestration run.
type SearchEvent struct {
	Query             string    `json:"query"`
	Providers         []string  `json:"providers"`
	ResultCount       int       `json:"resultCount"`
	DuplicatesRemoved int       `json:"duplicatesRemoved"`
	BestProvider      string    `json:"bestProvider,omitempty"`
	CacheHit          bool      `json:"cacheHit"`
	SearchTimeMs      int64     `json:"searchTimeMs"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Event is the hub's envelope, allowing future introduction of additional
// event kinds without changing channel element types. For now only
// Type == "search" is produced.
type Event struct {
	Type   string      `json:"type"`
	Search SearchEvent `json:"search"`
}

// Hub is an in-memory fan-out dispatcher. Each registered listener
// receives events via its own buffered channel. If a listener's buffer is
// full when an event arrives, that event is dropped for that listener
// only, so a single slow consumer cannot degrade delivery to the rest.
//
// The hub is concurrency-safe.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan Event
	nextID    uint64
	bufSize   int
}

// NewHub constructs a hub with the given per-listener buffer size.
// If bufSize <= 0, a default of 32 is used.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{
		listeners: make(map[uint64]chan Event),
		bufSize:   bufSize,
	}
}

// Register adds a new listener and returns (listenerID, receiveOnlyChannel).
// Callers must later Unregister(id) to release resources.
func (h *Hub) Register() (uint64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes the listener with the given id and closes its channel.
// It is safe to call multiple times; unknown ids are ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Broadcast delivers an event to all registered listeners (best effort).
// Accepted input types:
//   - Event
//   - SearchEvent (wrapped as Event{Type: "search"})
//
// Any other type is ignored silently.
func (h *Hub) Broadcast(event interface{}) {
	var e Event
	switch v := event.(type) {
	case Event:
		e = v
	case SearchEvent:
		e = Event{Type: "search", Search: v}
	default:
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- e:
		default:
			// Drop for slow listener.
		}
	}
}

// Size returns the current number of active listeners (approximate).
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
