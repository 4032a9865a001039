package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/questlab/player/internal/backend"
	"github.com/questlab/player/internal/config"
	"github.com/questlab/player/internal/database"
	"github.com/questlab/player/internal/defcache"
	"github.com/questlab/player/internal/handler/health"
	"github.com/questlab/player/internal/journal"
	"github.com/questlab/player/internal/migrations"
	"github.com/questlab/player/internal/player"
	"github.com/questlab/player/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- Result journal ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(ctx, db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	results := journal.New(db)
	logger.Info("opened journal", "path", cfg.DBPath)

	// --- QuestLab backend ---
	client := backend.NewClient(backend.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
	})
	logger.Info("using backend", "url", client.BaseURL())

	required := map[string]health.Checker{
		"journal": health.CheckFunc(db.PingContext),
		"backend": health.CheckFunc(client.Ping),
	}
	optional := map[string]health.Checker{}

	// --- Definition cache ---
	var loader player.Loader = client
	if cfg.RedisURL != "" {
		rdb, err := defcache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()

		cache := defcache.New(rdb, client, cfg.CacheTTL, logger)
		loader = cache
		optional["redis"] = health.CheckFunc(cache.Ping)
		logger.Info("caching definitions in redis", "ttl", cfg.CacheTTL)
	}

	// --- Sessions ---
	sessions := server.NewSessions(server.SessionsConfig{
		Loader:    loader,
		Submitter: client,
		Recorder:  results,
		Logger:    logger,
		IdleTTL:   cfg.SessionTTL,
	})
	defer sessions.Close()

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Sessions: sessions,
		Results:  results,
		Health:   health.NewHandler(logger, required, optional).Routes(),
		SPADir:   cfg.SPADir,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		return sessions.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}
