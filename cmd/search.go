package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/searchmux/searchmux/pkg/cache"
	"github.com/searchmux/searchmux/pkg/config"
	"github.com/searchmux/searchmux/pkg/core"
	"github.com/searchmux/searchmux/pkg/search"
)

// Define styles using lipgloss
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	resultTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("214"))

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32")).
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("32")).
			Padding(0, 1).
			Margin(1, 0, 1, 0)

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Run a one-shot search across the configured providers",
		ArgsUsage: "QUERY",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "provider",
				Usage: "Restrict to specific provider(s). Can be used multiple times",
			},
			&cli.BoolFlag{
				Name:  "sequential",
				Usage: "Query providers one at a time in priority order",
			},
			&cli.BoolFlag{
				Name:  "no-aggregate",
				Usage: "Skip cross-provider merge and deduplication",
			},
			&cli.StringFlag{
				Name:  "specialty",
				Usage: "Filter results by medical specialty",
			},
			&cli.StringSliceFlag{
				Name:  "evidence",
				Usage: "Filter by evidence level (rct, guideline, meta-analysis, ...)",
			},
			&cli.StringSliceFlag{
				Name:  "content-type",
				Usage: "Filter by content type (web, journal-article, ...)",
			},
			&cli.StringFlag{
				Name:  "recency",
				Usage: "Recency window: day, week, month or year",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results",
				Value: core.DefaultLimit,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Result offset for pagination",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the raw JSON envelope instead of formatted output",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.Join(c.Args().Slice(), " ")
			return runSearch(ctx, c, query)
		},
	}
}

func runSearch(ctx context.Context, c *cli.Command, query string) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	registry := core.GetGlobalRegistry()
	if err := createProvidersFromConfig(registry, cfg); err != nil {
		return fmt.Errorf("creating providers: %w", err)
	}
	defer func() {
		if err := registry.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close registry: %v\n", err)
		}
	}()

	// One-shot runs get a throwaway cache; the store is still exercised so
	// repeated queries within scripts behave like the server.
	service := search.NewService(registry, cfg.ProviderSpecs(), cache.NewStore(cfg.Cache.Capacity))

	req := core.NewSearchRequest(query)
	req.Providers = c.StringSlice("provider")
	if c.Bool("sequential") {
		req.Mode = core.ModeSequential
	}
	if c.Bool("no-aggregate") {
		req.Aggregate = false
	}
	req.Filters = core.Filters{
		Specialty:      c.String("specialty"),
		EvidenceLevels: c.StringSlice("evidence"),
		ContentTypes:   c.StringSlice("content-type"),
		Recency:        c.String("recency"),
		Limit:          c.Int("limit"),
		Offset:         c.Int("offset"),
	}

	result, err := service.Search(ctx, req)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	printResult(query, result)
	return nil
}

func printResult(query string, result *core.OrchestrationResult) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("Search: %s", query)))

	if len(result.Results) == 0 {
		fmt.Println(noDataStyle.Render("No results."))
	}

	caser := cases.Title(language.English)
	for i, r := range result.Results {
		fmt.Printf("%s %s\n", metaStyle.Render(fmt.Sprintf("%2d.", i+1)), resultTitleStyle.Render(r.Title))
		fmt.Printf("    %s\n", urlStyle.Render(r.URL))
		if r.Snippet != "" {
			fmt.Printf("    %s\n", r.Snippet)
		}

		meta := []string{caser.String(r.Provider), fmt.Sprintf("relevance %.2f", r.Relevance)}
		if r.EvidenceLevel != "" {
			meta = append(meta, r.EvidenceLevel)
		}
		if r.Specialty != "" {
			meta = append(meta, r.Specialty)
		}
		if r.PublishedAt != "" {
			meta = append(meta, r.PublishedAt)
		}
		fmt.Printf("    %s\n\n", metaStyle.Render(strings.Join(meta, " · ")))
	}

	for _, resp := range result.Providers {
		if !resp.Success {
			fmt.Println(failureStyle.Render(fmt.Sprintf("provider %s failed: %s", resp.Provider, resp.Error)))
		}
	}

	summary := fmt.Sprintf("%d results from %d providers in %.2fs (%d duplicates removed)",
		len(result.Results), len(result.Providers), result.TotalSearchTime, result.DuplicatesRemoved)
	if result.BestProvider != "" {
		summary += fmt.Sprintf(" · best: %s", result.BestProvider)
	}
	if result.CacheHit {
		summary += " · cached"
	}
	fmt.Println(summaryStyle.Render(summary))
}
