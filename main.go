package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/csgonades/nade-api/api"
	"github.com/csgonades/nade-api/api/handler"
	"github.com/csgonades/nade-api/auth"
	"github.com/csgonades/nade-api/cache"
	"github.com/csgonades/nade-api/config"
	"github.com/csgonades/nade-api/engagement"
	"github.com/csgonades/nade-api/media"
	"github.com/csgonades/nade-api/nade"
	"github.com/csgonades/nade-api/store"
	"github.com/csgonades/nade-api/vidmeta"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	tokens, err := auth.NewManager(cfg.JWTSecret, 0)
	if err != nil {
		slog.Error("failed to configure token verification", "error", err)
		os.Exit(1)
	}

	db, err := store.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to open database connection", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	items := cache.New[*nade.Nade]("nade_items", cfg.ItemCacheTTL)
	lists := cache.New[[]string]("nade_lists", cfg.ListCacheTTL)
	defer items.Stop()
	defer lists.Stop()

	nades := nade.NewRepository(db, nade.NewCoordinator(items, lists), cfg.RecentLimit)

	deps := api.Deps{
		Store:     db,
		Nades:     nades,
		Favorites: engagement.NewFavorites(db, nades),
		Comments:  engagement.NewComments(db, nades),
		Auth:      tokens,
		Feed:      handler.NewFeedHub(),
	}
	if cfg.VideoMetaURL != "" {
		deps.Videos = vidmeta.NewClient(cfg.VideoMetaURL, cfg.VideoMetaTimeout)
	} else {
		slog.Warn("VIDEO_META_URL is not set, videos are stored without metadata")
	}
	if cfg.ImageDir != "" {
		images, err := media.NewDiskStore(cfg.ImageDir, cfg.ImageBaseURL)
		if err != nil {
			slog.Error("failed to prepare image directory", "dir", cfg.ImageDir, "error", err)
			os.Exit(1)
		}
		deps.Images = images
	}

	h, stopLimiter := api.NewRouter(deps, cfg)

	// Start periodic purging of expired soft deletions.
	sweeper := api.NewDeletedSweeper(nades, cfg)
	sweeper.Start(context.Background())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	// Start server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("nade api listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt or SIGTERM (e.g. from container orchestration).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	deps.Feed.Shutdown()
	stopLimiter()
	sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	slog.Info("server stopped")
}
