package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/searchmux/searchmux/pkg/config"
	"github.com/searchmux/searchmux/pkg/core"
)

// ProvidersCommand creates the providers command
func ProvidersCommand() *cli.Command {
	return &cli.Command{
		Name:  "providers",
		Usage: "List configured providers and available provider types",
		Action: func(ctx context.Context, c *cli.Command) error {
			return listProviders(c.String("config"))
		},
	}
}

func listProviders(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	registry := core.GetGlobalRegistry()
	prototypes := registry.ListPrototypes()
	sort.Strings(prototypes)

	fmt.Println("Available provider types:")
	for _, name := range prototypes {
		fmt.Printf("  %s\n", name)
	}

	specs := cfg.ProviderSpecs()
	sort.Slice(specs, func(i, j int) bool {
		if specs[i].Priority != specs[j].Priority {
			return specs[i].Priority < specs[j].Priority
		}
		return specs[i].Name < specs[j].Name
	})

	fmt.Println("\nConfigured providers:")
	if len(specs) == 0 {
		fmt.Println("  (none; run 'searchmux init' and edit the config file)")
		return nil
	}
	for _, spec := range specs {
		state := "enabled"
		if !spec.Enabled {
			state = "disabled"
		}
		fmt.Printf("  %s (type %s, priority %d, timeout %s, %s)\n",
			spec.Name, spec.Type, spec.Priority, spec.Timeout, state)
	}
	return nil
}
