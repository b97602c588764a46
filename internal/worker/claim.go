package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/queue"
)

// claimSQL atomically selects and locks the oldest eligible pending job.
//
// FOR UPDATE SKIP LOCKED is what lets many workers share one queue with no
// coordinator: a worker that loses the race for a row moves on to the next
// one instead of blocking behind the winner's transaction. Eligibility means
// pending with no retry hold, or a retry hold that has elapsed. The lease
// ($2, seconds) bounds how long a crashed worker can strand the row before
// the reaper re-queues it.
//
// The CTE column is aliased: RETURNING resolves names against the FROM-list
// tables as well as jobs, so a candidate column named id would make every
// unqualified reference ambiguous.
const claimSQL = `
WITH candidate AS (
    SELECT id AS claim_id FROM jobs
    WHERE status = 'pending'
      AND (next_retry_at IS NULL OR next_retry_at <= NOW())
    ORDER BY created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
UPDATE jobs SET
    status           = 'processing',
    worker_id        = $1,
    lease_expires_at = NOW() + ($2 * interval '1 second'),
    updated_at       = NOW()
FROM candidate
WHERE jobs.id = candidate.claim_id
RETURNING ` + queue.JobColumns

// Claim attempts to take exclusive ownership of one eligible job.
// Returns nil, nil when nothing is claimable (normal idle state).
func Claim(ctx context.Context, pool *pgxpool.Pool, workerID uuid.UUID, lease time.Duration) (*domain.Job, error) {
	row := pool.QueryRow(ctx, claimSQL, workerID, int(lease/time.Second))
	job, err := queue.ScanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}
