package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/searchmux/searchmux/pkg/search"
	"github.com/searchmux/searchmux/pkg/version"
)

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var body SearchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request", "Request body must be valid JSON")
		return
	}

	result, err := s.service.Search(r.Context(), body.ToSearchRequest())
	if err != nil {
		switch {
		case errors.Is(err, search.ErrEmptyQuery):
			s.writeError(w, http.StatusBadRequest, "Invalid request", "Query must not be empty")
		case errors.Is(err, search.ErrNoProviders):
			s.writeError(w, http.StatusUnprocessableEntity, "No providers available", "No enabled provider matches the request")
		default:
			s.writeError(w, http.StatusInternalServerError, "Search failed", err.Error())
		}
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	specs := s.service.Specs()

	providers := make([]ProviderInfo, len(specs))
	for i, spec := range specs {
		providers[i] = ProviderInfo{
			Name:     spec.Name,
			Type:     spec.Type,
			Enabled:  spec.Enabled,
			Priority: spec.Priority,
			Timeout:  spec.Timeout.String(),
		}
	}

	response := ListProvidersResponse{
		Providers: providers,
		Count:     len(providers),
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	response := StatsResponse{
		Cache: s.store.Stats(),
	}
	if s.hub != nil {
		response.Listeners = s.hub.Size()
	}
	if s.analytics != nil {
		stats, err := s.analytics.Stats(r.Context())
		if err != nil {
			s.logger.Warnf("reading analytics stats: %v", err)
		} else {
			response.Analytics = stats
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, response)
}
