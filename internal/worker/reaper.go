package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// reaperLockKey is the PostgreSQL advisory lock used for reaper election.
// Exactly one worker process in the cluster wins it at a time.
const reaperLockKey = int64(0x4C4B5250)

// RunReaper competes for the advisory lock and runs the reaper loop on the
// winner. The lock lives on a dedicated pooled connection, so a crashed
// winner releases it automatically and another worker takes over.
// Non-winners retry every 10 seconds.
func RunReaper(ctx context.Context, pool *pgxpool.Pool, maxAttempts int, logger *slog.Logger) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := pool.Acquire(ctx)
		if err != nil {
			logger.Error("reaper: acquire failed", "err", err)
			sleep(ctx, 5*time.Second)
			continue
		}

		var won bool
		err = conn.QueryRow(ctx,
			`SELECT pg_try_advisory_lock($1)`, reaperLockKey).Scan(&won)
		if err != nil || !won {
			conn.Release()
			sleep(ctx, 10*time.Second)
			continue
		}

		logger.Info("reaper: won election")
		runReaperLoop(ctx, pool, maxAttempts, logger)
		releaseReaperLock(conn, logger)
	}
}

// releaseReaperLock unlocks the election before the session goes back to the
// pool. Advisory locks are session-scoped: a pooled connection still holding
// one would block every future election until the pool recycles it. The
// unlock runs on its own deadline because ctx is usually already canceled
// here; if it fails anyway, the session is discarded rather than pooled.
func releaseReaperLock(conn *pgxpool.Conn, logger *slog.Logger) {
	unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := conn.Exec(unlockCtx,
		`SELECT pg_advisory_unlock($1)`, reaperLockKey); err != nil {
		logger.Error("reaper: unlock failed, discarding session", "err", err)
		_ = conn.Hijack().Close(unlockCtx)
		return
	}
	conn.Release()
}

func runReaperLoop(ctx context.Context, pool *pgxpool.Pool, maxAttempts int, logger *slog.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := reapExpiredLeases(ctx, pool, maxAttempts, logger); err != nil {
				logger.Error("reaper: lease reap failed", "err", err)
				return
			}
			reapDeadWorkers(ctx, pool, logger)
		}
	}
}

// reapExpiredLeases recovers processing jobs whose lease ran out — the
// worker crashed, hung past its timeout, or failed to commit its completion.
// Recovery counts as a transient failure: attempts is incremented and the
// backoff applied in SQL mirrors computeBackoff (5 min doubling, 1 h cap),
// so a job that keeps killing workers still terminates at the attempt
// budget instead of looping forever.
//
// FOR UPDATE SKIP LOCKED keeps the reaper from blocking behind a worker
// that is concurrently committing its fenced outcome. LIMIT bounds work
// per cycle.
func reapExpiredLeases(ctx context.Context, pool *pgxpool.Pool, maxAttempts int, logger *slog.Logger) error {
	// Exhausted jobs go terminal.
	failed, err := pool.Exec(ctx, `
		WITH expired AS (
			SELECT id FROM jobs
			WHERE status = 'processing'
			  AND lease_expires_at < NOW()
			  AND attempts + 1 >= $1
			ORDER BY lease_expires_at ASC
			LIMIT 500
			FOR UPDATE SKIP LOCKED
		)
		UPDATE jobs SET
			status           = 'failed',
			attempts         = attempts + 1,
			result           = jsonb_build_object(
				'error', 'handler failed',
				'reason', 'lease expired',
				'retryable', true,
				'attempt', attempts + 1),
			completed_at     = NOW(),
			lease_expires_at = NULL,
			next_retry_at    = NULL,
			updated_at       = NOW()
		FROM expired
		WHERE jobs.id = expired.id`, maxAttempts)
	if err != nil {
		return err
	}

	// The rest go back to pending with backoff.
	requeued, err := pool.Exec(ctx, `
		WITH expired AS (
			SELECT id FROM jobs
			WHERE status = 'processing'
			  AND lease_expires_at < NOW()
			  AND attempts + 1 < $1
			ORDER BY lease_expires_at ASC
			LIMIT 500
			FOR UPDATE SKIP LOCKED
		)
		UPDATE jobs SET
			status           = 'pending',
			attempts         = attempts + 1,
			worker_id        = NULL,
			lease_expires_at = NULL,
			next_retry_at    = NOW() + make_interval(secs =>
				LEAST(300 * power(2, jobs.attempts), 3600)),
			result           = jsonb_build_object(
				'error', 'transient handler failure',
				'reason', 'lease expired',
				'retryable', true,
				'attempt', attempts + 1),
			updated_at       = NOW()
		FROM expired
		WHERE jobs.id = expired.id`, maxAttempts)
	if err != nil {
		return err
	}

	if failed.RowsAffected() > 0 || requeued.RowsAffected() > 0 {
		logger.Info("reaper: recovered expired leases",
			"requeued", requeued.RowsAffected(),
			"failed", failed.RowsAffected())
	}
	return nil
}

// reapDeadWorkers marks workers silent for over a minute. Informational
// only — job recovery keys off leases, not worker liveness.
func reapDeadWorkers(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) {
	tag, err := pool.Exec(ctx, `
		UPDATE workers SET status = 'dead'
		WHERE status = 'active'
		  AND last_heartbeat < NOW() - interval '60 seconds'`)
	if err != nil {
		logger.Error("reaper: dead worker sweep failed", "err", err)
		return
	}
	if tag.RowsAffected() > 0 {
		logger.Warn("reaper: marked workers dead", "count", tag.RowsAffected())
	}
}
