// Control plane: the HTTP surface in front of the job queue. Hosts the
// dispatcher (admission control + job creation), tenant-scoped status and
// listing queries, the credit balance endpoint, and ops endpoints.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/lorekeep/lorekeep/internal/api"
	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/credits"
	"github.com/lorekeep/lorekeep/internal/db"
	"github.com/lorekeep/lorekeep/internal/dispatch"
	"github.com/lorekeep/lorekeep/internal/migrate"
	"github.com/lorekeep/lorekeep/internal/ratelimit"
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

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("parse redis URL failed", "err", err)
		os.Exit(1)
	}
	rc := redis.NewClient(redisOpts)
	defer rc.Close()

	if err := rc.Ping(ctx).Err(); err != nil {
		logger.Error("redis ping failed", "err", err)
		os.Exit(1)
	}

	ledger := credits.NewLedger(pool, cfg.DefaultMonthlyCredits)
	limiter := ratelimit.New(rc,
		ratelimit.Limits{Limit: cfg.GlobalRateLimit, Window: cfg.GlobalRateWindow},
		ratelimit.Limits{Limit: cfg.AIRateLimit, Window: cfg.AIRateWindow})
	dispatcher := dispatch.New(pool, limiter, ledger, logger)

	server := api.NewServer(pool, rc, dispatcher, ledger, limiter, logger)

	httpServer := &http.Server{
		Addr:         cfg.APIAddr,
		Handler:      server.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.APIAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http serve error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
	logger.Info("http server stopped")
}
