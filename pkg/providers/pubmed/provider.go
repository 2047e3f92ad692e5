// Package pubmed queries the NCBI E-utilities API (esearch + esummary)
// for biomedical literature. Results carry an evidence level derived from
// the article's publication types, so downstream filters can narrow to
// RCTs, guidelines or reviews.
package pubmed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/searchmux/searchmux/pkg/core"
)

func init() {
	prototype := &Provider{}
	core.RegisterProviderPrototype("pubmed", prototype)
}

const (
	defaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	articleURL     = "https://pubmed.ncbi.nlm.nih.gov/%s/"
)

type Config struct {
	// APIKey raises the NCBI rate limit from 3 to 10 requests per second.
	// Optional.
	APIKey string `toml:"api_key,omitempty"`
	// BaseURL overrides the E-utilities endpoint, mainly for tests.
	BaseURL    string `toml:"base_url,omitempty"`
	MaxResults int    `toml:"max_results"`
}

func (c *Config) Validate() error {
	if c.MaxResults <= 0 {
		c.MaxResults = 20
	}
	if c.MaxResults > 100 {
		c.MaxResults = 100
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	return nil
}

type Provider struct {
	config       *Config
	client       *http.Client
	instanceName string
}

func NewProvider(instanceName string, config interface{}) (core.Provider, error) {
	var pubmedConfig *Config
	if config == nil {
		pubmedConfig = &Config{}
	} else {
		var ok bool
		pubmedConfig, ok = config.(*Config)
		if !ok {
			return nil, fmt.Errorf("invalid config type for PubMed provider")
		}
	}

	if err := pubmedConfig.Validate(); err != nil {
		return nil, err
	}

	return &Provider{
		config:       pubmedConfig,
		client:       &http.Client{Timeout: 30 * time.Second},
		instanceName: instanceName,
	}, nil
}

func (p *Provider) Type() string {
	return "pubmed"
}

func (p *Provider) Name() string {
	return p.instanceName
}

func (p *Provider) ConfigType() interface{} {
	return &Config{}
}

func (p *Provider) SetConfig(config interface{}) error {
	if cfg, ok := config.(*Config); ok {
		if err := cfg.Validate(); err != nil {
			return err
		}
		p.config = cfg
		return nil
	}
	return fmt.Errorf("invalid config type for PubMed provider")
}

func (p *Provider) GetConfig() interface{} {
	return p.config
}

func (p *Provider) Close() error {
	return nil
}

func (p *Provider) Factory(instanceName string, config interface{}) (core.Provider, error) {
	return NewProvider(instanceName, config)
}

type esearchResponse struct {
	ESearchResult struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type esummaryDoc struct {
	UID      string   `json:"uid"`
	Title    string   `json:"title"`
	PubDate  string   `json:"pubdate"`
	Source   string   `json:"source"`
	PubTypes []string `json:"pubtype"`
	Authors  []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

func (p *Provider) Search(ctx context.Context, req *core.SearchRequest) (*core.ResultPage, error) {
	ids, totalCount, err := p.esearch(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &core.ResultPage{TotalCount: totalCount}, nil
	}

	docs, err := p.esummary(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]core.SearchResult, 0, len(ids))
	for i, id := range ids {
		doc, ok := docs[id]
		if !ok {
			continue
		}
		results = append(results, core.SearchResult{
			ID:            "pubmed-" + id,
			Title:         strings.TrimSpace(doc.Title),
			URL:           fmt.Sprintf(articleURL, id),
			Snippet:       snippetFromDoc(doc),
			Source:        doc.Source,
			Provider:      p.instanceName,
			Relevance:     rankRelevance(i),
			EvidenceLevel: evidenceLevel(doc.PubTypes),
			ContentType:   "journal-article",
			PublishedAt:   doc.PubDate,
		})
	}

	return &core.ResultPage{
		Results:    results,
		TotalCount: totalCount,
		Metadata:   map[string]any{"database": "pubmed"},
	}, nil
}

func (p *Provider) esearch(ctx context.Context, req *core.SearchRequest) ([]string, int, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", req.Query)
	params.Set("retmode", "json")
	params.Set("retmax", strconv.Itoa(p.config.MaxResults))
	params.Set("sort", "relevance")
	if days := relDays(req.Filters.Recency); days > 0 {
		params.Set("reldate", strconv.Itoa(days))
		params.Set("datetype", "pdat")
	}
	if p.config.APIKey != "" {
		params.Set("api_key", p.config.APIKey)
	}

	var decoded esearchResponse
	if err := p.getJSON(ctx, p.config.BaseURL+"/esearch.fcgi?"+params.Encode(), &decoded); err != nil {
		return nil, 0, fmt.Errorf("esearch: %w", err)
	}

	totalCount, _ := strconv.Atoi(decoded.ESearchResult.Count)
	return decoded.ESearchResult.IDList, totalCount, nil
}

func (p *Provider) esummary(ctx context.Context, ids []string) (map[string]esummaryDoc, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "json")
	if p.config.APIKey != "" {
		params.Set("api_key", p.config.APIKey)
	}

	// esummary keys each document by its uid, alongside a "uids" index
	// entry that is a plain array. Decode lazily and skip the index.
	var decoded struct {
		Result map[string]json.RawMessage `json:"result"`
	}
	if err := p.getJSON(ctx, p.config.BaseURL+"/esummary.fcgi?"+params.Encode(), &decoded); err != nil {
		return nil, fmt.Errorf("esummary: %w", err)
	}

	docs := make(map[string]esummaryDoc, len(ids))
	for key, raw := range decoded.Result {
		if key == "uids" {
			continue
		}
		var doc esummaryDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		docs[key] = doc
	}
	return docs, nil
}

func (p *Provider) getJSON(ctx context.Context, apiURL string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func snippetFromDoc(doc esummaryDoc) string {
	var authors []string
	for i, author := range doc.Authors {
		if i >= 3 {
			authors = append(authors, "et al")
			break
		}
		authors = append(authors, author.Name)
	}
	parts := []string{}
	if len(authors) > 0 {
		parts = append(parts, strings.Join(authors, ", "))
	}
	if doc.Source != "" {
		parts = append(parts, doc.Source)
	}
	if doc.PubDate != "" {
		parts = append(parts, doc.PubDate)
	}
	return strings.Join(parts, ". ")
}

// evidenceLevel derives the strongest evidence category present in the
// article's publication types.
func evidenceLevel(pubTypes []string) string {
	ranked := []struct {
		match string
		level string
	}{
		{"meta-analysis", "meta-analysis"},
		{"systematic review", "systematic-review"},
		{"practice guideline", "guideline"},
		{"guideline", "guideline"},
		{"randomized controlled trial", "rct"},
		{"clinical trial", "clinical-trial"},
		{"review", "review"},
	}

	for _, candidate := range ranked {
		for _, pubType := range pubTypes {
			if strings.EqualFold(pubType, candidate.match) {
				return candidate.level
			}
		}
	}
	return "study"
}

// relDays maps the common recency buckets onto esearch's reldate window.
func relDays(recency string) int {
	switch recency {
	case core.RecencyDay:
		return 1
	case core.RecencyWeek:
		return 7
	case core.RecencyMonth:
		return 30
	case core.RecencyYear:
		return 365
	default:
		return 0
	}
}

// rankRelevance decays from 0.9 with position, bottoming out at 0.1.
// esearch already sorts by relevance, so position order is meaningful.
func rankRelevance(position int) float64 {
	relevance := 0.9 - float64(position)*0.04
	if relevance < 0.1 {
		relevance = 0.1
	}
	return relevance
}
