// Worker: a long-running process that claims jobs from the shared store and
// executes them through the handler registry. Many instances may run
// concurrently; the atomic claim is the only coordination between them.
// Each instance also competes for the reaper election.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/db"
	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/handlers"
	"github.com/lorekeep/lorekeep/internal/migrate"
	"github.com/lorekeep/lorekeep/internal/provider"
	"github.com/lorekeep/lorekeep/internal/registry"
	"github.com/lorekeep/lorekeep/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	logger.Info("connecting to database")
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect to database failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrate.Run(ctx, pool); err != nil {
		logger.Error("run migrations failed", "err", err)
		os.Exit(1)
	}

	models := provider.NewOpenAIClient(cfg.ProviderAPIKey, cfg.ProviderBaseURL)

	reg := registry.New()
	reg.Register(domain.TypeTextGeneration, &handlers.TextGeneration{
		Provider:     models,
		DefaultModel: cfg.ProviderModel,
	})
	reg.Register(domain.TypeVideoIngest, &handlers.VideoIngest{
		Provider: models,
		Model:    "whisper-1",
	})
	reg.Register(domain.TypeIndexRefresh, &handlers.IndexRefresh{Pool: pool})

	hostname, _ := os.Hostname()
	w := worker.New(uuid.New(), hostname, pool, reg, logger,
		cfg.ClaimLease, cfg.PollInterval, cfg.HandlerTimeout, cfg.MaxAttempts)

	if err := w.Register(ctx); err != nil {
		logger.Error("worker registration failed", "err", err)
		os.Exit(1)
	}

	go w.RunHeartbeat(ctx)
	go worker.RunReaper(ctx, pool, cfg.MaxAttempts, logger)

	w.Run(ctx)
	logger.Info("worker stopped")
}
