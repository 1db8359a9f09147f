package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/quiz-engine/internal/api"
	"github.com/terra-clan/quiz-engine/internal/bank"
	"github.com/terra-clan/quiz-engine/internal/cleanup"
	"github.com/terra-clan/quiz-engine/internal/config"
	"github.com/terra-clan/quiz-engine/internal/events"
	"github.com/terra-clan/quiz-engine/internal/limits"
	"github.com/terra-clan/quiz-engine/internal/storage"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting grading-server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"database", cfg.Database.Driver,
		"events", cfg.Events.Publisher,
	)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	taskBank := bank.New(logger)
	if err := taskBank.LoadFromDir(cfg.Bank.Dir); err != nil {
		slog.Warn("failed to load task bank", "dir", cfg.Bank.Dir, "error", err)
	}
	slog.Info("task bank loaded", "tasks", taskBank.Len())

	repo, err := storage.Open(initCtx, cfg.Database.Driver, cfg.Database.DSN, cfg.Database.MigrationsDir, logger)
	if err != nil {
		slog.Error("failed to open attempt archive", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	var guard limits.Guard
	if cfg.Redis.Address != "" {
		guard, err = limits.NewRedisGuard(initCtx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.AttemptTTL)
		if err != nil {
			slog.Error("failed to create redis guard", "error", err)
			os.Exit(1)
		}
		slog.Info("redis attempt guard enabled", "address", cfg.Redis.Address)
	} else {
		guard = limits.NewMemoryGuard(cfg.Redis.AttemptTTL)
	}
	defer guard.Close()

	bus, err := events.NewBus(events.Config{
		Backend:      cfg.Events.Publisher,
		KafkaBrokers: cfg.Events.Brokers,
		TopicName:    cfg.Events.Topic,
		Logger:       logger,
	})
	if err != nil {
		slog.Error("failed to create event bus", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := api.NewHub(logger)
	go func() {
		if err := bus.Consume(ctx, hub.BroadcastScored); err != nil {
			slog.Error("score feed consumer stopped", "error", err)
		}
	}()

	cleaner := cleanup.NewCleaner(repo, cfg.Cleanup.Interval, cfg.Cleanup.Retention, logger)
	cleaner.Start(ctx)

	server := api.NewServer(cfg.Server, api.Deps{
		Bank:      taskBank,
		Repo:      repo,
		Publisher: bus,
		Guard:     guard,
		Hub:       hub,
		Logger:    logger,
	})
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := bus.Close(); err != nil {
		slog.Error("event bus close error", "error", err)
	}

	slog.Info("grading-server stopped")
}
