package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/obsidianstack/reportvault/server/internal/api"
	"github.com/obsidianstack/reportvault/server/internal/auth"
	"github.com/obsidianstack/reportvault/server/internal/collections"
	"github.com/obsidianstack/reportvault/server/internal/config"
	"github.com/obsidianstack/reportvault/server/internal/docstore"
	"github.com/obsidianstack/reportvault/server/internal/ledger"
	"github.com/obsidianstack/reportvault/server/internal/metrics"
	"github.com/obsidianstack/reportvault/server/internal/queue"
	"github.com/obsidianstack/reportvault/server/internal/ws"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("reportvault-server starting", "config", *configPath)

	if err := run(*configPath); err != nil {
		slog.Error("reportvault-server failed", "err", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"data_root", cfg.Store.DataRoot,
		"queue_dir", cfg.Queue.Dir,
		"target", cfg.Queue.TargetCollection,
		"cache_ttl", cfg.Cache.TTL,
		"ledger", cfg.Ledger.Path,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := docstore.New(cfg.Store.DataRoot, docstore.Options{
		Attempts: cfg.Store.Retry.Attempts,
		Delay:    cfg.Store.Retry.Delay,
		Strict:   cfg.Store.Strict,
	})
	if err != nil {
		return err
	}

	// Read-through cache with background eviction.
	var collOpts []collections.Option
	for name, ttl := range cfg.Cache.Collections {
		collOpts = append(collOpts, collections.WithCollectionTTL(name, ttl))
	}
	colls := collections.New(st, cfg.Cache.TTL, collOpts...)
	go colls.Run(ctx)

	var (
		queueOpts []queue.Option
		history   api.History
	)
	if cfg.Ledger.Path != "" {
		l, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return err
		}
		defer l.Close()
		queueOpts = append(queueOpts, queue.WithRecorder(l))
		history = l
	}

	q := queue.New(queue.Config{
		Dir:            cfg.Queue.Dir,
		Target:         cfg.Queue.TargetCollection,
		DeadLetterDir:  cfg.Queue.DeadLetterDir,
		RescanInterval: cfg.Queue.RescanInterval,
		EmptyGrace:     cfg.Queue.EmptyGrace,
		Exclusive:      cfg.Queue.Exclusive,
	}, colls, queueOpts...)
	if err := q.Start(ctx); err != nil {
		return err
	}
	defer q.Stop() //nolint:errcheck

	// WebSocket hub: periodic queue status plus every item outcome.
	hub := ws.New(q, cfg.Server.StatusInterval)
	go hub.Run(ctx)
	go hub.Forward(ctx, q.Results())

	// Cache TTLs follow config edits; everything else needs a restart.
	go func() {
		err := config.Watch(ctx, configPath, func(next *config.Config) {
			colls.SetTTL(next.Cache.TTL, next.Cache.Collections)
			slog.Info("cache ttl updated", "ttl", next.Cache.TTL, "overrides", len(next.Cache.Collections))
		})
		if err != nil {
			slog.Warn("config watch disabled", "err", err)
		}
	}()

	authCfg := cfg.Server.Auth
	mux := http.NewServeMux()
	mux.Handle("/api/", auth.Middleware(authCfg.Mode, authCfg.EffectiveHeader(), authCfg.Key(),
		api.New(colls, q, history)))
	mux.Handle("/metrics", metrics.Handler(q))
	mux.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
		if !auth.Check(authCfg.Mode, authCfg.EffectiveHeader(), authCfg.Key(), r) {
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		hub.ServeHTTP(w, r)
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	slog.Info("reportvault-server shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return httpSrv.Shutdown(shutdownCtx)
}
