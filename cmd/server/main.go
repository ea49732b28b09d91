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

	"github.com/dgallion1/richconv/internal/api"
	"github.com/dgallion1/richconv/internal/config"
	"github.com/dgallion1/richconv/internal/convert"
	"github.com/dgallion1/richconv/internal/pathstore"
	"github.com/dgallion1/richconv/internal/pipeline"
	"github.com/dgallion1/richconv/internal/schema"
	"github.com/dgallion1/richconv/internal/store"
)

func main() {
	cfg := config.Load()

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}

	// One converter, shared by the API and the batch workers.
	metrics := api.NewMetrics()
	conv := schema.NewConverter(
		convert.WithMaxDepth(cfg.MaxDepth),
		convert.WithLogger(log.With("component", "convert")),
		convert.WithObserver(metrics),
	)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, conv, st, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, conv, st, metrics, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		// No new submissions once the listener is down.
		orch.Stop()
		st.Close()
	}()

	log.Info("starting richconv", "port", cfg.Port, "store", cfg.StoreBackend, "max_depth", cfg.MaxDepth)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		return store.OpenSQLite(ctx, cfg.SQLitePath)
	case config.BackendPathstore:
		return store.NewPathstoreStore(pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
