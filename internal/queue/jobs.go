package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorekeep/lorekeep/internal/domain"
)

// JobColumns is the canonical jobs SELECT list; ScanJob expects this order.
const JobColumns = `
	id, tenant_id, type, status, payload, result, attempts, worker_id,
	lease_expires_at, next_retry_at, created_at, updated_at, completed_at`

// Insert persists a new job row. Jobs are always born pending with zero
// attempts; the dispatcher has already validated and sanitized the payload.
func Insert(ctx context.Context, pool *pgxpool.Pool, tenantID, jobType string, payload json.RawMessage) (uuid.UUID, error) {
	jobID := uuid.New()
	_, err := pool.Exec(ctx, `
		INSERT INTO jobs (id, tenant_id, type, status, payload, attempts)
		VALUES ($1, $2, $3, 'pending', $4, 0)`,
		jobID, tenantID, jobType, payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert job: %w", err)
	}
	return jobID, nil
}

// GetByID returns a job only when it belongs to tenantID. A job in another
// tenant's scope is indistinguishable from a missing one — this is the
// isolation boundary for polling clients.
func GetByID(ctx context.Context, pool *pgxpool.Pool, tenantID string, jobID uuid.UUID) (*domain.Job, error) {
	row := pool.QueryRow(ctx, `
		SELECT `+JobColumns+`
		FROM jobs
		WHERE id = $1 AND tenant_id = $2`,
		jobID, tenantID)

	job, err := ScanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// ListByTenant returns a tenant's newest jobs, optionally filtered by status.
func ListByTenant(ctx context.Context, pool *pgxpool.Pool, tenantID string, status *domain.JobStatus, limit int) ([]*domain.Job, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := pool.Query(ctx, `
		SELECT `+JobColumns+`
		FROM jobs
		WHERE tenant_id = $1
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3`,
		tenantID, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := ScanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func ScanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job    domain.Job
		status string
	)
	err := row.Scan(
		&job.ID,
		&job.TenantID,
		&job.Type,
		&status,
		&job.Payload,
		&job.Result,
		&job.Attempts,
		&job.WorkerID,
		&job.LeaseExpiresAt,
		&job.NextRetryAt,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}
