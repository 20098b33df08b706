package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/deal-comb/app/api"
	"github.com/lysyi3m/deal-comb/app/category"
	"github.com/lysyi3m/deal-comb/app/cfg"
	"github.com/lysyi3m/deal-comb/app/database"
	"github.com/lysyi3m/deal-comb/app/feed"
	"github.com/lysyi3m/deal-comb/app/marketplace"
	"github.com/lysyi3m/deal-comb/app/normalizer"
	"github.com/lysyi3m/deal-comb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("Starting Deal Comb server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	registry := category.NewRegistry()
	dealRepo := database.NewDealRepository(db, registry)
	categoryRepo := database.NewCategoryRepository(db)

	// Restore categories persisted by earlier runs so partition slugs stay
	// stable across restarts
	persisted, err := categoryRepo.List()
	if err != nil {
		slog.Error("Failed to load persisted categories", "error", err)
		os.Exit(1)
	}
	for _, cat := range persisted {
		registry.Restore(cat.Name, cat.Slug)
		if err := dealRepo.EnsurePartition(cat.Name); err != nil {
			slog.Error("Failed to restore category partition", "category", cat.Name, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("Restored categories", "count", len(persisted))

	sources, err := marketplace.LoadSources(appCfg.CategoriesFile)
	if err != nil {
		slog.Error("Failed to load categories file", "path", appCfg.CategoriesFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded category sources", "file", appCfg.CategoriesFile, "categories", len(sources.Categories))

	client := marketplace.NewClient(appCfg.MarketplaceURL, appCfg.MarketplaceKey,
		appCfg.UserAgent, sources.Categories)
	norm := normalizer.New(sources.Feed.Link)

	generator := feed.NewGenerator(sources.Feed.Title, sources.Feed.Description, sources.Feed.Link)
	cache := feed.NewCache(dealRepo, registry, generator, appCfg.FeedPageSize)

	refresher := tasks.NewRefresher(client, norm, dealRepo, categoryRepo,
		registry, cache, appCfg.MaxItems)

	scheduler := tasks.NewScheduler(refresher, time.Duration(appCfg.RefreshInterval)*time.Second)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background refresh scheduler started", "interval_seconds", appCfg.RefreshInterval)

	apiHandler := api.NewHandler(cache, registry, dealRepo, categoryRepo, refresher)
	server := api.NewServer(apiHandler, appCfg.AccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}
