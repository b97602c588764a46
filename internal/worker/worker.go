package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/metrics"
	"github.com/lorekeep/lorekeep/internal/registry"
)

type Worker struct {
	ID       uuid.UUID
	Hostname string
	Pool     *pgxpool.Pool
	Registry *registry.Registry
	Logger   *slog.Logger

	Lease          time.Duration
	PollInterval   time.Duration
	HandlerTimeout time.Duration
	MaxAttempts    int
}

func New(
	id uuid.UUID,
	hostname string,
	pool *pgxpool.Pool,
	reg *registry.Registry,
	logger *slog.Logger,
	lease, pollInterval, handlerTimeout time.Duration,
	maxAttempts int,
) *Worker {
	if lease <= 0 {
		lease = 10 * time.Minute
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if handlerTimeout <= 0 || handlerTimeout >= lease {
		// The hard handler timeout must expire before the lease does, or a
		// slow handler's outcome would race the reaper.
		handlerTimeout = lease / 2
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Worker{
		ID:             id,
		Hostname:       hostname,
		Pool:           pool,
		Registry:       reg,
		Logger:         logger,
		Lease:          lease,
		PollInterval:   pollInterval,
		HandlerTimeout: handlerTimeout,
		MaxAttempts:    maxAttempts,
	}
}

// Run polls for claimable jobs until ctx is canceled. Jobs execute
// synchronously; one worker process holds at most one job at a time, and a
// single job's failure never stops the loop.
func (w *Worker) Run(ctx context.Context) {
	w.Logger.Info("worker starting",
		"worker_id", w.ID,
		"hostname", w.Hostname,
		"types", w.Registry.Types())

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := Claim(ctx, w.Pool, w.ID, w.Lease)
		if err != nil {
			w.Logger.Error("claim error", "err", err)
			sleep(ctx, w.PollInterval)
			continue
		}
		if job == nil {
			sleep(ctx, w.PollInterval)
			continue
		}

		w.runJob(ctx, job)
	}
}

func (w *Worker) runJob(ctx context.Context, job *domain.Job) {
	log := w.Logger.With(
		"job_id", job.ID,
		"tenant_id", job.TenantID,
		"type", job.Type,
		"attempt", job.Attempts)

	handler, err := w.Registry.Lookup(job.Type)
	if err != nil {
		// A type with no handler can never succeed on any worker.
		log.Error("unknown job type", "err", err)
		w.finishFailed(ctx, job, err.Error(), false, log)
		return
	}

	log.Info("job started")

	timer := prometheus.NewTimer(metrics.HandlerDuration.WithLabelValues(job.Type))
	outcome := w.execute(ctx, job, handler)
	timer.ObserveDuration()

	if ctx.Err() != nil {
		// Shutdown mid-job: leave the row processing; the lease will expire
		// and the reaper re-queues it on another worker.
		log.Info("job abandoned for shutdown")
		return
	}

	switch {
	case outcome.OK:
		updated, err := markCompleted(ctx, w.Pool, job, w.ID, outcome)
		if err != nil {
			// Row stays processing; reaper retries after the lease.
			log.Error("failed to mark completed", "err", err)
			return
		}
		if !updated {
			log.Warn("stale completion ignored")
			return
		}
		metrics.JobsCompleted.WithLabelValues(job.Type).Inc()
		log.Info("job completed")

	case outcome.Retryable && job.Attempts+1 < w.MaxAttempts:
		updated, err := markRetry(ctx, w.Pool, job, w.ID, outcome.Reason)
		if err != nil {
			log.Error("failed to mark retry", "err", err)
			return
		}
		if !updated {
			log.Warn("stale retry ignored")
			return
		}
		metrics.JobsRetried.WithLabelValues(job.Type).Inc()
		log.Warn("job failed, will retry",
			"reason", outcome.Reason,
			"attempts", job.Attempts+1,
			"max_attempts", w.MaxAttempts)

	default:
		w.finishFailed(ctx, job, outcome.Reason, outcome.Retryable, log)
	}
}

// execute runs the handler under the hard per-attempt timeout. A handler
// that overruns the deadline reports a transient failure.
func (w *Worker) execute(ctx context.Context, job *domain.Job, handler registry.Handler) registry.Outcome {
	execCtx, cancel := context.WithTimeout(ctx, w.HandlerTimeout)
	defer cancel()

	outcome := handler.Process(execCtx, job)

	if !outcome.OK && execCtx.Err() == context.DeadlineExceeded {
		return registry.Transient("handler timed out")
	}
	return outcome
}

func (w *Worker) finishFailed(ctx context.Context, job *domain.Job, reason string, retryable bool, log *slog.Logger) {
	updated, err := markFailed(ctx, w.Pool, job, w.ID, reason, retryable)
	if err != nil {
		log.Error("failed to mark failed", "err", err)
		return
	}
	if !updated {
		log.Warn("stale failure ignored")
		return
	}
	metrics.JobsFailed.WithLabelValues(job.Type).Inc()
	log.Warn("job failed permanently",
		"reason", reason,
		"attempts", job.Attempts+1)
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
