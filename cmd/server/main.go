package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jdekker/atblog/internal/atproto"
	"github.com/jdekker/atblog/internal/blog"
	"github.com/jdekker/atblog/internal/cache"
	"github.com/jdekker/atblog/internal/config"
	"github.com/jdekker/atblog/internal/firehose"
	"github.com/jdekker/atblog/internal/httpserver"
	"github.com/jdekker/atblog/internal/identity"
	"github.com/jdekker/atblog/internal/markdown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Cache store: SQLite when a path is configured, otherwise in-memory.
	var store cache.Store = cache.NewMemory()
	if cfg.CachePath != "" {
		sqlite, err := cache.NewSQLite(cfg.CachePath)
		if err != nil {
			return fmt.Errorf("open cache database: %w", err)
		}
		defer sqlite.Close()
		store = sqlite
		logger.Info("using persistent cache", "path", cfg.CachePath)
	}

	resolver := identity.NewResolver(cfg.AppViewURL, cfg.PLCDirectoryURL, store, cfg.CacheTTL, logger)
	client := atproto.NewClient(logger)
	pipeline := markdown.NewPipeline(cfg.ExcerptLength)
	service := blog.NewService(cfg.Actor, cfg.Collection, resolver, client, pipeline, store, cfg.CacheTTL, logger)

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Warm the blog cache and, once the identity is known, start the
	// firehose invalidator in the background.
	go func() {
		snap := service.Load(ctx)
		if snap.Identity == nil {
			logger.Warn("initial load did not resolve identity, firehose disabled until restart")
			return
		}
		logger.Info("blog loaded", "handle", snap.Identity.Handle, "posts", snap.Collection.Len())

		if !cfg.FirehoseEnabled() {
			return
		}
		subscriber := firehose.NewSubscriber(cfg.FirehoseURL, snap.Identity.DID, cfg.Collection, service, logger)
		if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("firehose subscriber exited with error", "error", err)
		}
	}()

	// Start the HTTP server
	server := httpserver.NewServer(cfg, service, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port, "actor", cfg.Actor)

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
