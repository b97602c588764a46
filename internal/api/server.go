package api

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/lorekeep/lorekeep/internal/credits"
	"github.com/lorekeep/lorekeep/internal/dispatch"
	"github.com/lorekeep/lorekeep/internal/ratelimit"
)

type Server struct {
	pool       *pgxpool.Pool
	redis      *redis.Client
	dispatcher *dispatch.Dispatcher
	ledger     *credits.Ledger
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
	handler    http.Handler
}

func NewServer(
	pool *pgxpool.Pool,
	rc *redis.Client,
	dispatcher *dispatch.Dispatcher,
	ledger *credits.Ledger,
	limiter *ratelimit.Limiter,
	logger *slog.Logger,
) *Server {
	s := &Server{
		pool:       pool,
		redis:      rc,
		dispatcher: dispatcher,
		ledger:     ledger,
		limiter:    limiter,
		logger:     logger,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}
