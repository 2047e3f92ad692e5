package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/searchmux/searchmux/pkg/core"
)

func TestEnrichAppliesAnnotations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var req struct {
			Query   string              `json:"query"`
			Results []core.SearchResult `json:"results"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Query != "heart failure" {
			t.Errorf("query = %q", req.Query)
		}
		if len(req.Results) != 2 {
			t.Errorf("results len = %d", len(req.Results))
		}

		relevance := 0.95
		resp := map[string]interface{}{
			"annotations": []Annotation{
				{ID: "a", Relevance: &relevance, Specialty: "cardiology", EvidenceLevel: "guideline"},
			},
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatal(err)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	results := []core.SearchResult{
		{ID: "a", URL: "https://a.org/1", Relevance: 0.4},
		{ID: "b", URL: "https://a.org/2", Relevance: 0.5, ContentType: "web"},
	}

	enriched, err := client.Enrich(context.Background(), "heart failure", results)
	if err != nil {
		t.Fatal(err)
	}

	if enriched[0].Relevance != 0.95 || enriched[0].Specialty != "cardiology" || enriched[0].EvidenceLevel != "guideline" {
		t.Errorf("annotation not applied: %+v", enriched[0])
	}
	// Unmentioned result passes through untouched.
	if enriched[1].Relevance != 0.5 || enriched[1].ContentType != "web" {
		t.Errorf("unmentioned result changed: %+v", enriched[1])
	}
	// The input slice must not be mutated.
	if results[0].Relevance != 0.4 {
		t.Error("input slice mutated")
	}
}

func TestEnrichServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Enrich(context.Background(), "q", []core.SearchResult{{ID: "a"}})
	if err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestEnrichTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(server.URL, 20*time.Millisecond)
	start := time.Now()
	_, err := client.Enrich(context.Background(), "q", []core.SearchResult{{ID: "a"}})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Error("timeout not enforced")
	}
}

func TestEnrichEmptyInputSkipsCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	enriched, err := client.Enrich(context.Background(), "q", nil)
	if err != nil {
		t.Fatal(err)
	}
	if enriched != nil {
		t.Errorf("enriched = %v", enriched)
	}
	if called {
		t.Error("service called for empty input")
	}
}
