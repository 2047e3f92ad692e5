package duckduckgo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/searchmux/searchmux/pkg/core"
)

func init() {
	prototype := &Provider{}
	core.RegisterProviderPrototype("duckduckgo", prototype)
}

const defaultBaseURL = "https://api.duckduckgo.com"

type Config struct {
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL    string `toml:"base_url,omitempty"`
	MaxResults int    `toml:"max_results"`
}

func (c *Config) Validate() error {
	if c.MaxResults <= 0 {
		c.MaxResults = 20
	}
	if c.MaxResults > 50 {
		c.MaxResults = 50
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	return nil
}

// Provider queries the DuckDuckGo instant answer API. The API returns an
// abstract plus related topics rather than ranked web hits, so results are
// synthesized from both, with the abstract (when present) ranked first.
type Provider struct {
	config       *Config
	client       *http.Client
	instanceName string
}

func NewProvider(instanceName string, config interface{}) (core.Provider, error) {
	var ddgConfig *Config
	if config == nil {
		ddgConfig = &Config{}
	} else {
		var ok bool
		ddgConfig, ok = config.(*Config)
		if !ok {
			return nil, fmt.Errorf("invalid config type for DuckDuckGo provider")
		}
	}

	if err := ddgConfig.Validate(); err != nil {
		return nil, err
	}

	return &Provider{
		config:       ddgConfig,
		client:       &http.Client{Timeout: 30 * time.Second},
		instanceName: instanceName,
	}, nil
}

func (p *Provider) Type() string {
	return "duckduckgo"
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
	return fmt.Errorf("invalid config type for DuckDuckGo provider")
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

type ddgTopic struct {
	Text     string     `json:"Text"`
	FirstURL string     `json:"FirstURL"`
	Topics   []ddgTopic `json:"Topics"`
}

type ddgResponse struct {
	Abstract       string     `json:"Abstract"`
	AbstractText   string     `json:"AbstractText"`
	AbstractURL    string     `json:"AbstractURL"`
	AbstractSource string     `json:"AbstractSource"`
	Answer         string     `json:"Answer"`
	Definition     string     `json:"Definition"`
	DefinitionURL  string     `json:"DefinitionURL"`
	Heading        string     `json:"Heading"`
	RelatedTopics  []ddgTopic `json:"RelatedTopics"`
}

func (p *Provider) Search(ctx context.Context, req *core.SearchRequest) (*core.ResultPage, error) {
	apiURL := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1",
		strings.TrimRight(p.config.BaseURL, "/"), url.QueryEscape(req.Query))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

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

	var decoded ddgResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	results := p.translate(&decoded)
	return &core.ResultPage{
		Results: results,
		Metadata: map[string]any{
			"heading":    decoded.Heading,
			"answerType": decoded.Answer != "",
		},
	}, nil
}

// translate flattens the instant answer payload into ranked results: the
// abstract first, then related topics in API order with decaying relevance.
func (p *Provider) translate(decoded *ddgResponse) []core.SearchResult {
	var results []core.SearchResult

	if decoded.AbstractText != "" && decoded.AbstractURL != "" {
		results = append(results, core.SearchResult{
			ID:        uuid.NewString(),
			Title:     decoded.Heading,
			URL:       decoded.AbstractURL,
			Snippet:   decoded.AbstractText,
			Source:    decoded.AbstractSource,
			Provider:  p.instanceName,
			Relevance: 0.95,
		})
	}

	var appendTopic func(topic ddgTopic)
	appendTopic = func(topic ddgTopic) {
		if len(results) >= p.config.MaxResults {
			return
		}
		if topic.Text != "" && topic.FirstURL != "" {
			title, snippet := splitTopicText(topic.Text)
			results = append(results, core.SearchResult{
				ID:        uuid.NewString(),
				Title:     title,
				URL:       topic.FirstURL,
				Snippet:   snippet,
				Provider:  p.instanceName,
				Relevance: rankRelevance(len(results)),
			})
		}
		for _, child := range topic.Topics {
			appendTopic(child)
		}
	}
	for _, topic := range decoded.RelatedTopics {
		appendTopic(topic)
	}

	return results
}

// rankRelevance decays from 0.9 with position, bottoming out at 0.1.
func rankRelevance(position int) float64 {
	relevance := 0.9 - float64(position)*0.04
	if relevance < 0.1 {
		relevance = 0.1
	}
	return relevance
}

func splitTopicText(text string) (title string, snippet string) {
	parts := strings.SplitN(text, " - ", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return strings.TrimSpace(text), ""
}
