// Package enrich calls an external HTTP service that re-scores and
// annotates merged search results (relevance, evidence level, specialty,
// content type). The service is optional; callers fall back to
// provider-native scores when it is absent or failing.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/searchmux/searchmux/pkg/core"
)

const defaultTimeout = 5 * time.Second

// Client posts the merged result list to the enrichment endpoint and
// applies the returned annotations by result ID. Results the service does
// not mention pass through unchanged.
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type enrichRequest struct {
	Query   string              `json:"query"`
	Results []core.SearchResult `json:"results"`
}

// Annotation carries the fields the service may override per result.
// Pointer fields distinguish "not mentioned" from zero values.
type Annotation struct {
	ID            string   `json:"id"`
	Relevance     *float64 `json:"relevance,omitempty"`
	EvidenceLevel string   `json:"evidenceLevel,omitempty"`
	ContentType   string   `json:"contentType,omitempty"`
	Specialty     string   `json:"specialty,omitempty"`
}

type enrichResponse struct {
	Annotations []Annotation `json:"annotations"`
}

// Enrich implements aggregate.Enricher.
func (c *Client) Enrich(ctx context.Context, query string, results []core.SearchResult) ([]core.SearchResult, error) {
	if len(results) == 0 {
		return results, nil
	}

	body, err := json.Marshal(enrichRequest{Query: query, Results: results})
	if err != nil {
		return nil, fmt.Errorf("encoding enrichment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building enrichment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling enrichment service: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("enrichment service returned status %d", resp.StatusCode)
	}

	var decoded enrichResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding enrichment response: %w", err)
	}

	byID := make(map[string]Annotation, len(decoded.Annotations))
	for _, annotation := range decoded.Annotations {
		byID[annotation.ID] = annotation
	}

	enriched := make([]core.SearchResult, len(results))
	copy(enriched, results)
	for i := range enriched {
		annotation, ok := byID[enriched[i].ID]
		if !ok {
			continue
		}
		if annotation.Relevance != nil {
			enriched[i].Relevance = *annotation.Relevance
		}
		if annotation.EvidenceLevel != "" {
			enriched[i].EvidenceLevel = annotation.EvidenceLevel
		}
		if annotation.ContentType != "" {
			enriched[i].ContentType = annotation.ContentType
		}
		if annotation.Specialty != "" {
			enriched[i].Specialty = annotation.Specialty
		}
	}
	return enriched, nil
}
