package handlers

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/testutil"
)

func TestIndexRefreshCountsTenantDocuments(t *testing.T) {
	pool := testutil.NewPool(t)
	ctx := context.Background()

	jobID, err := uuid.NewRandom()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO jobs (id, tenant_id, type, status, payload, attempts)
		VALUES ($1, 'tenant-a', 'text-generation', 'completed', '{}', 0)`, jobID); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := pool.Exec(ctx, `
			INSERT INTO documents (id, tenant_id, job_id, title, content)
			VALUES ($1, 'tenant-a', $2, 'doc', 'body')`, uuid.New(), jobID); err != nil {
			t.Fatal(err)
		}
	}

	h := &IndexRefresh{Pool: pool}
	out := h.Process(ctx, jobWithPayload(domain.TypeIndexRefresh, `{"collection_id":"main"}`))
	if !out.OK {
		t.Fatalf("outcome not OK: %+v", out)
	}
	if out.Result["documents_indexed"] != int64(2) {
		t.Errorf("documents_indexed = %v, want 2", out.Result["documents_indexed"])
	}
	if out.SideEffects != nil {
		t.Error("index refresh must not charge credits or write documents")
	}
}

func TestIndexRefreshMissingCollection(t *testing.T) {
	pool := testutil.NewPool(t)

	h := &IndexRefresh{Pool: pool}
	out := h.Process(context.Background(), jobWithPayload(domain.TypeIndexRefresh, `{}`))
	if out.OK || out.Retryable {
		t.Errorf("missing collection_id should be permanent: %+v", out)
	}
}
