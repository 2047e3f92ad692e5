package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/searchmux/searchmux/pkg/analytics"
	"github.com/searchmux/searchmux/pkg/config"
)

// StatsCommand creates the stats command
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show search history statistics from the analytics database",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "recent",
				Usage: "Number of recent searches to show",
				Value: 10,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return showStats(ctx, c.String("config"), c.Int("recent"))
		},
	}
}

func showStats(ctx context.Context, configPath string, recentCount int) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := analytics.NewStore(cfg.AnalyticsDBPath())
	if err != nil {
		return fmt.Errorf("opening analytics database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close analytics store: %v\n", err)
		}
	}()

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}

	fmt.Printf("Total searches:   %d\n", stats.TotalSearches)
	fmt.Printf("Cache hit rate:   %.1f%%\n", stats.CacheHitRate*100)
	fmt.Printf("Avg search time:  %.0fms\n", stats.AvgSearchTimeMs)
	fmt.Printf("Avg result count: %.1f\n", stats.AvgResultCount)

	top, err := store.TopQueries(ctx, 10)
	if err != nil {
		return fmt.Errorf("reading top queries: %w", err)
	}
	if len(top) > 0 {
		type entry struct {
			query string
			count int64
		}
		entries := make([]entry, 0, len(top))
		for query, count := range top {
			entries = append(entries, entry{query, count})
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].count != entries[j].count {
				return entries[i].count > entries[j].count
			}
			return entries[i].query < entries[j].query
		})

		fmt.Println("\nTop queries:")
		for _, e := range entries {
			fmt.Printf("  %4d  %s\n", e.count, e.query)
		}
	}

	records, err := store.Recent(ctx, recentCount)
	if err != nil {
		return fmt.Errorf("reading recent searches: %w", err)
	}
	if len(records) > 0 {
		fmt.Println("\nRecent searches:")
		for _, record := range records {
			hit := ""
			if record.CacheHit {
				hit = " (cached)"
			}
			fmt.Printf("  %s  %-40q %d results in %dms%s\n",
				record.CreatedAt.Format("2006-01-02 15:04"), record.Query,
				record.ResultCount, record.SearchTimeMs, hit)
		}
	}

	return nil
}
