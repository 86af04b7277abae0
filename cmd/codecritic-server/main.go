// Package main provides the CodeCritic review API server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codecritic/codecritic/internal/auth"
	"github.com/codecritic/codecritic/internal/config"
	"github.com/codecritic/codecritic/internal/db"
	"github.com/codecritic/codecritic/internal/llm"
	"github.com/codecritic/codecritic/internal/metrics"
	"github.com/codecritic/codecritic/internal/review"
	"github.com/codecritic/codecritic/internal/server"
	"github.com/codecritic/codecritic/internal/service"
)

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() {
		if err := closeLog(); err != nil {
			slog.Error("failed to close log file", "error", err)
		}
	}()
	slog.SetDefault(logger)

	slog.Info("starting codecritic-server", "port", cfg.Port, "provider", cfg.LLMProvider)

	collector := metrics.NewCollector()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger, collector)
	if err != nil {
		cancel()
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := store.InitSchema(ctx); err != nil {
		cancel()
		slog.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	if *wipeDB || os.Getenv("CODECRITIC_WIPE_DB") == "true" {
		if err := store.WipeData(ctx); err != nil {
			cancel()
			slog.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
		slog.Warn("database wiped")
	}

	model, err := llm.NewModel(ctx, cfg, collector)
	cancel()
	if err != nil {
		slog.Error("failed to create model client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	executor := review.NewExecutor(model, store, collector, cfg.RetryAttempts, cfg.RetryBackoff)

	dispatcher := service.NewDispatcher(executor, store, cfg.QueueSize)
	dispatcher.Start(cfg.Workers)

	reviews := service.NewReviewService(store, dispatcher, collector, cfg.RateLimit, cfg.RateWindow, cfg.StatsTopIssues)
	authSvc := auth.NewService(store, cfg.JWTSecret, cfg.TokenExpiry, cfg.GoogleClientID)

	srv := server.New(&cfg, reviews, authSvc, collector)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // status streams hijack the connection and are exempt
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("API available", "url", "http://localhost:"+cfg.Port+"/api")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Drain queued review jobs before closing the store.
	if err := dispatcher.Close(); err != nil {
		slog.Error("dispatcher drain failed", "error", err)
	}

	slog.Info("server stopped")
}
