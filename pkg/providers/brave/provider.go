// Package brave queries the Brave Search web API. It requires an API key
// and forwards recency filters natively via the freshness parameter.
package brave

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

	"github.com/google/uuid"

	"github.com/searchmux/searchmux/pkg/core"
)

func init() {
	prototype := &Provider{}
	core.RegisterProviderPrototype("brave", prototype)
}

const defaultBaseURL = "https://api.search.brave.com/res/v1/web/search"

type Config struct {
	APIKey string `toml:"api_key"`
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL    string `toml:"base_url,omitempty"`
	MaxResults int    `toml:"max_results"`
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("brave provider requires an api_key")
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 20
	}
	if c.MaxResults > 20 {
		// Brave caps count at 20 per request.
		c.MaxResults = 20
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
	braveConfig, ok := config.(*Config)
	if !ok || braveConfig == nil {
		return nil, fmt.Errorf("brave provider requires a config block with an api_key")
	}

	if err := braveConfig.Validate(); err != nil {
		return nil, err
	}

	return &Provider{
		config:       braveConfig,
		client:       &http.Client{Timeout: 30 * time.Second},
		instanceName: instanceName,
	}, nil
}

func (p *Provider) Type() string {
	return "brave"
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
	return fmt.Errorf("invalid config type for Brave provider")
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

type braveResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Age         string `json:"age"`
	PageAge     string `json:"page_age"`
	Profile     struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type braveResponse struct {
	Web struct {
		Results []braveResult `json:"results"`
	} `json:"web"`
	Query struct {
		Original string `json:"original"`
	} `json:"query"`
}

func (p *Provider) Search(ctx context.Context, req *core.SearchRequest) (*core.ResultPage, error) {
	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("count", strconv.Itoa(p.config.MaxResults))
	if freshness := freshnessParam(req.Filters.Recency); freshness != "" {
		params.Set("freshness", freshness)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Subscription-Token", p.config.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var decoded braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	results := make([]core.SearchResult, 0, len(decoded.Web.Results))
	for i, item := range decoded.Web.Results {
		results = append(results, core.SearchResult{
			ID:          uuid.NewString(),
			Title:       item.Title,
			URL:         item.URL,
			Snippet:     item.Description,
			Source:      item.Profile.Name,
			Provider:    p.instanceName,
			Relevance:   rankRelevance(i),
			ContentType: "web",
			PublishedAt: strings.TrimSpace(item.PageAge),
		})
	}

	return &core.ResultPage{Results: results}, nil
}

// freshnessParam maps the common recency buckets onto Brave's freshness
// values. Unknown values are dropped rather than rejected.
func freshnessParam(recency string) string {
	switch recency {
	case core.RecencyDay:
		return "pd"
	case core.RecencyWeek:
		return "pw"
	case core.RecencyMonth:
		return "pm"
	case core.RecencyYear:
		return "py"
	default:
		return ""
	}
}

// rankRelevance decays from 0.9 with position, bottoming out at 0.1.
func rankRelevance(position int) float64 {
	relevance := 0.9 - float64(position)*0.04
	if relevance < 0.1 {
		relevance = 0.1
	}
	return relevance
}
