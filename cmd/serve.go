package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/klauspost/compress/gzhttp"
	"github.com/urfave/cli/v3"

	"github.com/searchmux/searchmux/pkg/analytics"
	"github.com/searchmux/searchmux/pkg/api"
	"github.com/searchmux/searchmux/pkg/cache"
	"github.com/searchmux/searchmux/pkg/config"
	"github.com/searchmux/searchmux/pkg/core"
	"github.com/searchmux/searchmux/pkg/enrich"
	"github.com/searchmux/searchmux/pkg/log"
	"github.com/searchmux/searchmux/pkg/realtime"
	"github.com/searchmux/searchmux/pkg/search"
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the search API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Listen address (overrides config)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"), c.String("listen"))
		},
	}
}

func serve(ctx context.Context, configPath, listenOverride string) error {
	logger := log.ForService("serve")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if listenOverride != "" {
		cfg.Listen = listenOverride
	}

	registry := core.GetGlobalRegistry()
	if err := createProvidersFromConfig(registry, cfg); err != nil {
		return fmt.Errorf("creating providers: %w", err)
	}
	defer func() {
		if err := registry.Close(); err != nil {
			logger.Warnf("closing registry: %v", err)
		}
	}()

	store := cache.NewStore(cfg.Cache.Capacity)
	hub := realtime.NewHub(0)

	service := search.NewService(registry, cfg.ProviderSpecs(), store)
	service.SetHub(hub)

	if cfg.Enrichment != nil && cfg.Enrichment.URL != "" {
		service.SetEnricher(enrich.NewClient(cfg.Enrichment.URL, cfg.Enrichment.Timeout.Duration))
		logger.Infof("enrichment service: %s", cfg.Enrichment.URL)
	}

	server := api.NewServer(service, store)
	server.SetHub(hub)

	if cfg.Analytics.Enabled {
		recorder, err := analytics.NewStore(cfg.AnalyticsDBPath())
		if err != nil {
			return fmt.Errorf("opening analytics database: %w", err)
		}
		defer func() {
			if err := recorder.Close(); err != nil {
				logger.Warnf("closing analytics store: %v", err)
			}
		}()
		service.SetRecorder(recorder)
		server.SetAnalytics(recorder)
	}

	return runServer(ctx, cfg, configPath, registry, service, store, server, logger)
}

func runServer(ctx context.Context, cfg *config.Config, configPath string, registry *core.Registry, service *search.Service, store *cache.Store, server *api.Server, logger *log.Logger) error {
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)

	handler := api.CorsMiddleware(gzhttp.GzipHandler(mux))

	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: handler,
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Periodic cache sweep so expired entries do not linger until read.
	go func() {
		ticker := time.NewTicker(cfg.Cache.SweepInterval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := store.SweepExpired(); removed > 0 {
					logger.Debugf("swept %d expired cache entries", removed)
				}
			case <-serveCtx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.Listen)
		logger.Infof("endpoints: POST /api/search, GET /api/providers, GET /api/stats, GET /api/firehose/ws, GET /health")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Signal handling - includes SIGHUP for reload
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	var cfgMutex sync.Mutex
	currentConfig := cfg

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("creating config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnf("closing config file watcher: %v", err)
			}
		}()

		if err := watcher.Add(configPath); err != nil {
			logger.Warnf("watching config file %s: %v", configPath, err)
		} else {
			logger.Infof("watching config file for changes: %s", configPath)
		}
	}

	var watchEvents chan fsnotify.Event
	var watchErrors chan error
	if watcher != nil {
		watchEvents = watcher.Events
		watchErrors = watcher.Errors
	}

	for {
		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				logger.Infof("received SIGHUP, reloading configuration")
				if err := reloadConfiguration(configPath, registry, service, &cfgMutex, &currentConfig); err != nil {
					logger.Errorf("reloading configuration: %v", err)
				}
			case syscall.SIGINT, syscall.SIGTERM:
				logger.Infof("shutting down")
				cancel()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer shutdownCancel()
				return httpServer.Shutdown(shutdownCtx)
			}
		case event, ok := <-watchEvents:
			if !ok {
				continue
			}
			// Editors often replace the file, so react to rename and
			// remove too, re-adding the path afterwards.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					time.Sleep(200 * time.Millisecond)
					if _, err := os.Stat(configPath); os.IsNotExist(err) {
						logger.Warnf("config file removed and not replaced, skipping reload")
						continue
					}
					if err := watcher.Add(configPath); err != nil {
						logger.Warnf("re-adding config file to watcher: %v", err)
					}
				} else {
					time.Sleep(100 * time.Millisecond)
				}

				logger.Infof("config file changed (%s), reloading", event.Op)
				if err := reloadConfiguration(configPath, registry, service, &cfgMutex, &currentConfig); err != nil {
					logger.Errorf("reloading configuration after file change: %v", err)
				}
			}
		case err, ok := <-watchErrors:
			if !ok {
				continue
			}
			logger.Warnf("config file watcher: %v", err)
		}
	}
}

// reloadConfiguration rebuilds the provider set from the config file.
// Listen address, cache and analytics settings require a restart.
func reloadConfiguration(configPath string, registry *core.Registry, service *search.Service, cfgMutex *sync.Mutex, currentConfig **config.Config) error {
	cfgMutex.Lock()
	defer cfgMutex.Unlock()

	logger := log.ForService("serve")

	newCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading new config: %w", err)
	}

	// Drop instances that disappeared from the config.
	oldConfig := *currentConfig
	for name := range oldConfig.Providers {
		if _, stillThere := newCfg.Providers[name]; !stillThere {
			logger.Infof("removing provider: %s", name)
			if err := registry.RemoveProvider(name); err != nil {
				logger.Warnf("removing provider %s: %v", name, err)
			}
		}
	}

	// CreateProvider replaces existing instances, closing the old one.
	if err := createProvidersFromConfig(registry, newCfg); err != nil {
		return fmt.Errorf("creating providers: %w", err)
	}

	service.UpdateSpecs(newCfg.ProviderSpecs())
	*currentConfig = newCfg

	logger.Infof("configuration reloaded: %d providers", len(newCfg.Providers))
	return nil
}
