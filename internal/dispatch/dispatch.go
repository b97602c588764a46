package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorekeep/lorekeep/internal/credits"
	"github.com/lorekeep/lorekeep/internal/domain"
	"github.com/lorekeep/lorekeep/internal/metrics"
	"github.com/lorekeep/lorekeep/internal/queue"
	"github.com/lorekeep/lorekeep/internal/ratelimit"
)

// estimatedCost is the credit charge reserved at admission time, per job
// type. index-refresh is administrative and free; it still passes through
// the global rate class.
var estimatedCost = map[string]int64{
	domain.TypeTextGeneration: 1,
	domain.TypeVideoIngest:    5,
	domain.TypeIndexRefresh:   0,
}

// Principal identifies the caller for rate limiting. UserID throttles
// per-seat abuse; TenantID scopes everything else.
type Principal struct {
	TenantID string
	UserID   string
}

func (p Principal) RateKey() string {
	if p.UserID != "" {
		return p.TenantID + ":" + p.UserID
	}
	return p.TenantID
}

type Request struct {
	Type    string
	Payload map[string]any
}

// Dispatcher is the synchronous entry point in front of the queue. Gate
// order is fixed: validate, sanitize, rate limit, credits, insert. Nothing
// before the credit reserve has a side effect, so early rejections roll back
// nothing.
type Dispatcher struct {
	pool    *pgxpool.Pool
	limiter *ratelimit.Limiter
	ledger  *credits.Ledger
	logger  *slog.Logger
}

func New(pool *pgxpool.Pool, limiter *ratelimit.Limiter, ledger *credits.Ledger, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{pool: pool, limiter: limiter, ledger: ledger, logger: logger}
}

// Dispatch admits and persists one job, returning its id immediately. The
// caller never blocks on execution; it polls the status endpoint instead.
// The rate decision is returned even on denial so the API layer can attach
// limit headers to every response that reached the gate.
func (d *Dispatcher) Dispatch(ctx context.Context, principal Principal, req Request) (uuid.UUID, ratelimit.Decision, error) {
	if err := validatePayload(req.Type, req.Payload); err != nil {
		return uuid.Nil, ratelimit.Decision{}, err
	}

	clean := Sanitize(req.Payload)

	class := ratelimit.ClassForJobType(req.Type)
	decision, err := d.limiter.Allow(ctx, principal.RateKey(), class)
	if err != nil {
		return uuid.Nil, decision, fmt.Errorf("rate limiter: %w", err)
	}
	if !decision.Allowed {
		metrics.AdmissionDenied.WithLabelValues(domain.ReasonRateLimited).Inc()
		return uuid.Nil, decision, &domain.AdmissionError{
			Reason:     domain.ReasonRateLimited,
			Message:    fmt.Sprintf("rate limit exceeded for class %s", class),
			RetryAfter: decision.RetryAfter,
		}
	}

	cost := estimatedCost[req.Type]
	period := credits.CurrentPeriod()
	if cost > 0 {
		res, err := d.ledger.Reserve(ctx, principal.TenantID, period, cost)
		if err != nil {
			return uuid.Nil, decision, fmt.Errorf("credit ledger: %w", err)
		}
		if !res.OK {
			metrics.AdmissionDenied.WithLabelValues(domain.ReasonInsufficientCredits).Inc()
			return uuid.Nil, decision, &domain.AdmissionError{
				Reason:     domain.ReasonInsufficientCredits,
				Message:    fmt.Sprintf("need %d credits, %d available", cost, res.Available),
				RetryAfter: credits.UntilRollover(time.Now()),
			}
		}
	}

	payload, err := json.Marshal(clean)
	if err != nil {
		// Payload came from decoded JSON; re-encoding cannot realistically
		// fail, but a reserved credit must not leak if it does.
		if cost > 0 {
			_ = d.ledger.Refund(ctx, principal.TenantID, period, cost)
		}
		return uuid.Nil, decision, &domain.ValidationError{Field: "payload", Message: "not encodable"}
	}

	jobID, err := queue.Insert(ctx, d.pool, principal.TenantID, req.Type, payload)
	if err != nil {
		if cost > 0 {
			_ = d.ledger.Refund(ctx, principal.TenantID, period, cost)
		}
		return uuid.Nil, decision, err
	}

	metrics.JobsDispatched.WithLabelValues(req.Type).Inc()
	d.logger.Info("job dispatched",
		"job_id", jobID,
		"tenant_id", principal.TenantID,
		"type", req.Type,
		"cost", cost)

	return jobID, decision, nil
}

// EstimatedCost reports the admission charge for a job type. Unknown types
// are free; they are rejected by validation before the ledger is consulted.
func EstimatedCost(jobType string) int64 {
	return estimatedCost[jobType]
}
