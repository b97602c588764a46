package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/registry"
)

// Terminal and retry transitions are fenced on (status='processing',
// worker_id, live lease): a worker whose lease expired — and whose job the
// reaper may already have handed to someone else — gets RowsAffected 0 and
// must not double-apply its outcome.

// markCompleted commits the success result and any handler side effects as
// one transaction with the processing→completed transition. If any insert
// fails the whole transaction rolls back and the job stays processing until
// its lease expires, so it is retried rather than completed with missing
// side effects.
func markCompleted(
	ctx context.Context, pool *pgxpool.Pool,
	job *domain.Job, workerID uuid.UUID, outcome registry.Outcome,
) (bool, error) {
	result, err := json.Marshal(outcome.Result)
	if err != nil {
		return false, fmt.Errorf("encode result: %w", err)
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE jobs SET
			status           = 'completed',
			result           = $1,
			completed_at     = NOW(),
			lease_expires_at = NULL,
			next_retry_at    = NULL,
			updated_at       = NOW()
		WHERE id = $2
		  AND status = 'processing'
		  AND worker_id = $3
		  AND lease_expires_at > NOW()`,
		result, job.ID, workerID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	if effects := outcome.SideEffects; effects != nil {
		if doc := effects.Document; doc != nil {
			_, err = tx.Exec(ctx, `
				INSERT INTO documents (id, tenant_id, job_id, title, content)
				VALUES ($1, $2, $3, $4, $5)`,
				uuid.New(), job.TenantID, job.ID, doc.Title, doc.Content)
			if err != nil {
				return false, fmt.Errorf("persist document: %w", err)
			}
		}
		if usage := effects.Usage; usage != nil {
			_, err = tx.Exec(ctx, `
				INSERT INTO usage_records
					(id, tenant_id, job_id, job_type, tokens_in, tokens_out, credits_charged)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				uuid.New(), job.TenantID, job.ID, job.Type,
				usage.TokensIn, usage.TokensOut, usage.CreditsCharged)
			if err != nil {
				return false, fmt.Errorf("persist usage record: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// markRetry re-queues a transiently failed job. attempts is incremented,
// the worker released, and next_retry_at pushed out by computeBackoff so the
// claim query skips the row until the backoff elapses. The failure reason is
// stored in result for observability without losing retry eligibility.
func markRetry(
	ctx context.Context, pool *pgxpool.Pool,
	job *domain.Job, workerID uuid.UUID, reason string,
) (bool, error) {
	failure, err := json.Marshal(domain.FailureResult{
		Error:     "transient handler failure",
		Reason:    reason,
		Retryable: true,
		Attempt:   job.Attempts + 1,
	})
	if err != nil {
		return false, err
	}

	backoff := computeBackoff(job.Attempts)
	tag, err := pool.Exec(ctx, `
		UPDATE jobs SET
			status           = 'pending',
			attempts         = attempts + 1,
			worker_id        = NULL,
			lease_expires_at = NULL,
			next_retry_at    = NOW() + ($1 * interval '1 millisecond'),
			result           = $2,
			updated_at       = NOW()
		WHERE id = $3
		  AND status = 'processing'
		  AND worker_id = $4
		  AND lease_expires_at > NOW()`,
		backoff.Milliseconds(), failure, job.ID, workerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// markFailed moves a job to the terminal failed state: permanent handler
// failures, and transient failures that have exhausted the attempt budget.
func markFailed(
	ctx context.Context, pool *pgxpool.Pool,
	job *domain.Job, workerID uuid.UUID, reason string, retryable bool,
) (bool, error) {
	failure, err := json.Marshal(domain.FailureResult{
		Error:     "handler failed",
		Reason:    reason,
		Retryable: retryable,
		Attempt:   job.Attempts + 1,
	})
	if err != nil {
		return false, err
	}

	tag, err := pool.Exec(ctx, `
		UPDATE jobs SET
			status           = 'failed',
			attempts         = attempts + 1,
			result           = $1,
			completed_at     = NOW(),
			lease_expires_at = NULL,
			next_retry_at    = NULL,
			updated_at       = NOW()
		WHERE id = $2
		  AND status = 'processing'
		  AND worker_id = $3
		  AND lease_expires_at > NOW()`,
		failure, job.ID, workerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// computeBackoff returns the retry delay after a given number of prior
// failed attempts: 5 minutes doubling per attempt, capped at 1 hour, with
// ±25% jitter so a burst of failures does not retry in lockstep.
func computeBackoff(priorAttempts int) time.Duration {
	base := 5 * time.Minute
	maxDelay := 1 * time.Hour
	shift := priorAttempts
	if shift > 10 {
		shift = 10
	}
	d := base * time.Duration(1<<shift)
	if d > maxDelay {
		d = maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(d/2))) - d/4
	return d + jitter
}
