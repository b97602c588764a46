// Package testutil provides database and Redis fixtures for integration
// tests. Tests that need real backends skip unless TEST_DATABASE_URL /
// TEST_REDIS_URL are set, so the pure-logic suite stays runnable anywhere.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/lorekeep/lorekeep/internal/migrate"
)

// NewPool connects to the test database, applies migrations, and wipes all
// tables so every test starts clean.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := migrate.Run(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	// Children before parents: usage_records and documents reference jobs.
	for _, table := range []string{"usage_records", "documents", "jobs", "credit_pools", "workers"} {
		if _, err := pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}

	return pool
}

// NewRedis connects to the test Redis instance and flushes it.
func NewRedis(t *testing.T) *redis.Client {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse TEST_REDIS_URL: %v", err)
	}
	rc := redis.NewClient(opts)
	t.Cleanup(func() { rc.Close() })

	if err := rc.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flush test redis: %v", err)
	}

	return rc
}
