package api

import (
	"encoding/json"
	"net/http"

	"github.com/searchmux/searchmux/pkg/analytics"
	"github.com/searchmux/searchmux/pkg/cache"
	"github.com/searchmux/searchmux/pkg/log"
	"github.com/searchmux/searchmux/pkg/realtime"
	"github.com/searchmux/searchmux/pkg/search"
)

type Server struct {
	service   *search.Service
	store     *cache.Store
	analytics *analytics.Store
	hub       *realtime.Hub
	logger    *log.Logger
}

// NewServer builds the HTTP layer over the search service. The analytics
// store and hub are optional; when nil the stats endpoint omits history
// and the firehose endpoint reports unavailability.
func NewServer(service *search.Service, store *cache.Store) *Server {
	return &Server{
		service: service,
		store:   store,
		logger:  log.ForService("api"),
	}
}

// SetAnalytics wires the analytics store into the stats endpoint.
func (s *Server) SetAnalytics(store *analytics.Store) {
	s.analytics = store
}

// SetHub wires the event hub into the firehose WebSocket endpoint.
func (s *Server) SetHub(hub *realtime.Hub) {
	s.hub = hub
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
