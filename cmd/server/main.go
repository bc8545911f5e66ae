package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/eventquery/internal/allowlist"
	"github.com/gyaneshwarpardhi/eventquery/internal/api"
	"github.com/gyaneshwarpardhi/eventquery/internal/bus"
	"github.com/gyaneshwarpardhi/eventquery/internal/config"
	"github.com/gyaneshwarpardhi/eventquery/internal/datekey"
	"github.com/gyaneshwarpardhi/eventquery/internal/query"
	"github.com/gyaneshwarpardhi/eventquery/internal/store"
	"github.com/gyaneshwarpardhi/eventquery/internal/uploader"
)

func main() {
	cfgPath := flag.String("config", "configs/query.yaml", "Path to YAML config")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	earliest, _ := datekey.Parse(cfg.Query.EarliestDate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Allowlist snapshot ────────────────────────────────────────────────────
	var allow *allowlist.List
	if cfg.Allowlist.File != "" {
		allow, err = allowlist.FromFile(cfg.Allowlist.File)
		if err != nil {
			slog.Error("failed to load allowlist", "err", err)
			os.Exit(1)
		}
		stopWatch, err := allow.Watch(cfg.Allowlist.File)
		if err != nil {
			slog.Warn("allowlist watcher unavailable (live refresh disabled)", "err", err)
		} else {
			defer stopWatch()
		}
	} else {
		allow, err = allowlist.FetchURL(ctx, cfg.Allowlist.URL)
		if err != nil {
			slog.Error("failed to fetch allowlist", "err", err)
			os.Exit(1)
		}
	}
	slog.Info("allowlist loaded", "sources", allow.Len())

	// ── Object cache store ────────────────────────────────────────────────────
	cache, err := store.NewGCS(ctx, cfg.Storage.Bucket)
	if err != nil {
		slog.Error("failed to open object store", "bucket", cfg.Storage.Bucket, "err", err)
		os.Exit(1)
	}
	defer cache.Close()

	// ── Persistence queue + pipeline ──────────────────────────────────────────
	uploads := uploader.New(ctx, cache, cfg.Uploader.Workers, cfg.Uploader.QueueDepth)
	feed := bus.New(cfg.Bus.Base, cfg.Bus.Token, cfg.Bus.CacheDays,
		bus.WithTimeout(time.Duration(cfg.Bus.TimeoutSeconds)*time.Second))
	pipeline := query.NewPipeline(cache, uploads, feed, cfg.Server.ServiceBase, cfg.Query.ExcludedSources)

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.New(pipeline, allow, uploads, earliest)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	uploads.Drain()
	cancel()
	slog.Info("goodbye")
}
