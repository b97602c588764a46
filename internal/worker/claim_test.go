package worker

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/queue"
	"github.com/lorekeep/lorekeep/internal/testutil"
)

func insertPending(t *testing.T, pool *pgxpool.Pool, tenantID, jobType string) uuid.UUID {
	t.Helper()
	id, err := queue.Insert(context.Background(), pool, tenantID, jobType, json.RawMessage(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	return id
}

// RETURNING resolves names against the FROM-list as well as the update
// target, so any candidate output name that is also a jobs column makes the
// whole claim statement fail with an ambiguous-column error.
func TestClaimQueryReturningUnambiguous(t *testing.T) {
	cteList := claimSQL[strings.Index(claimSQL, "SELECT")+len("SELECT") : strings.Index(claimSQL, "FROM jobs")]

	jobsCols := make(map[string]bool)
	for _, col := range strings.Split(queue.JobColumns, ",") {
		jobsCols[strings.TrimSpace(col)] = true
	}

	for _, expr := range strings.Split(cteList, ",") {
		fields := strings.Fields(expr)
		if len(fields) == 0 {
			continue
		}
		name := fields[len(fields)-1]
		if jobsCols[name] {
			t.Errorf("candidate CTE exposes %q, which collides with the RETURNING list", name)
		}
	}
}

func TestClaimTakesOldestPending(t *testing.T) {
	pool := testutil.NewPool(t)
	ctx := context.Background()

	first := insertPending(t, pool, "tenant-a", "text-generation")
	insertPending(t, pool, "tenant-a", "text-generation")

	workerID := uuid.New()
	job, err := Claim(ctx, pool, workerID, 10*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if job == nil {
		t.Fatal("no job claimed from a non-empty queue")
	}
	if job.ID != first {
		t.Errorf("claimed %s, want oldest %s", job.ID, first)
	}
	if job.Status != domain.StatusProcessing {
		t.Errorf("status = %s, want processing", job.Status)
	}
	if job.WorkerID == nil || *job.WorkerID != workerID {
		t.Errorf("worker_id = %v, want %s", job.WorkerID, workerID)
	}
	if job.LeaseExpiresAt == nil || !job.LeaseExpiresAt.After(time.Now()) {
		t.Errorf("lease_expires_at = %v, want a future deadline", job.LeaseExpiresAt)
	}
}

func TestClaimEmptyQueue(t *testing.T) {
	pool := testutil.NewPool(t)

	job, err := Claim(context.Background(), pool, uuid.New(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if job != nil {
		t.Fatalf("claimed %s from an empty queue", job.ID)
	}
}

func TestClaimSkipsFutureRetryHold(t *testing.T) {
	pool := testutil.NewPool(t)
	ctx := context.Background()

	held := insertPending(t, pool, "tenant-a", "text-generation")
	_, err := pool.Exec(ctx,
		`UPDATE jobs SET next_retry_at = NOW() + interval '10 minutes' WHERE id = $1`, held)
	if err != nil {
		t.Fatal(err)
	}
	ready := insertPending(t, pool, "tenant-a", "text-generation")

	job, err := Claim(ctx, pool, uuid.New(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if job == nil {
		t.Fatal("no job claimed")
	}
	if job.ID != ready {
		t.Errorf("claimed %s, want %s (the held job should be skipped)", job.ID, ready)
	}

	job, err = Claim(ctx, pool, uuid.New(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if job != nil {
		t.Errorf("claimed held job %s before its retry time", job.ID)
	}
}

func TestClaimElapsedRetryHoldIsEligible(t *testing.T) {
	pool := testutil.NewPool(t)
	ctx := context.Background()

	id := insertPending(t, pool, "tenant-a", "text-generation")
	_, err := pool.Exec(ctx,
		`UPDATE jobs SET next_retry_at = NOW() - interval '1 second', attempts = 1 WHERE id = $1`, id)
	if err != nil {
		t.Fatal(err)
	}

	job, err := Claim(ctx, pool, uuid.New(), time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if job == nil || job.ID != id {
		t.Fatalf("elapsed retry hold not claimable: %v", job)
	}
	if job.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", job.Attempts)
	}
}

// The exclusivity property: N pending jobs, M concurrent claimers, and every
// job ends up held by exactly one worker.
func TestClaimConcurrentExclusivity(t *testing.T) {
	pool := testutil.NewPool(t)
	ctx := context.Background()

	const jobs = 8
	const claimers = 16
	for i := 0; i < jobs; i++ {
		insertPending(t, pool, "tenant-a", "text-generation")
	}

	var wg sync.WaitGroup
	claimed := make(chan uuid.UUID, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := Claim(ctx, pool, uuid.New(), time.Minute)
			if err != nil {
				t.Error(err)
				return
			}
			if job != nil {
				claimed <- job.ID
			}
		}()
	}
	wg.Wait()
	close(claimed)

	seen := make(map[uuid.UUID]bool)
	for id := range claimed {
		if seen[id] {
			t.Errorf("job %s claimed twice", id)
		}
		seen[id] = true
	}
	if len(seen) != jobs {
		t.Errorf("claimed %d distinct jobs, want %d", len(seen), jobs)
	}

	var pending int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM jobs WHERE status = 'pending'`).Scan(&pending); err != nil {
		t.Fatal(err)
	}
	if pending != 0 {
		t.Errorf("%d jobs still pending after exhaustive claiming", pending)
	}
}
