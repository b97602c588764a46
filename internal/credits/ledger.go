package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger is the per-tenant, per-period credit allowance. Reserve is the only
// authoritative operation; Balance exists for display and carries no
// admission authority.
type Ledger struct {
	pool           *pgxpool.Pool
	defaultCredits int64
}

func NewLedger(pool *pgxpool.Pool, defaultCredits int64) *Ledger {
	return &Ledger{pool: pool, defaultCredits: defaultCredits}
}

type Reservation struct {
	OK        bool
	Available int64
}

type BalanceInfo struct {
	Total     int64
	Used      int64
	Available int64
}

// Reserve atomically charges amount against the tenant's pool for period.
// The check and the increment are a single UPDATE guarded by the balance
// predicate, so two concurrent reservations can never both win the last
// credit. A pool is provisioned lazily with the default allowance the first
// time a tenant/period is seen.
func (l *Ledger) Reserve(ctx context.Context, tenantID, period string, amount int64) (Reservation, error) {
	if amount < 0 {
		return Reservation{}, fmt.Errorf("reserve: negative amount %d", amount)
	}

	if err := l.ensurePool(ctx, tenantID, period); err != nil {
		return Reservation{}, err
	}

	var available int64
	err := l.pool.QueryRow(ctx, `
		UPDATE credit_pools SET
			used_credits = used_credits + $3,
			updated_at   = NOW()
		WHERE tenant_id = $1
		  AND period_key = $2
		  AND used_credits + $3 <= total_credits
		RETURNING total_credits - used_credits`,
		tenantID, period, amount,
	).Scan(&available)
	if err == nil {
		return Reservation{OK: true, Available: available}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, fmt.Errorf("reserve %s/%s: %w", tenantID, period, err)
	}

	// No row updated: the pool exists but cannot cover the amount.
	bal, balErr := l.Balance(ctx, tenantID, period)
	if balErr != nil {
		return Reservation{}, fmt.Errorf("reserve %s/%s: %w", tenantID, period, balErr)
	}
	return Reservation{OK: false, Available: bal.Available}, nil
}

// Refund returns amount to the pool, clamped so used_credits never goes
// negative. Used when a reserved job cannot be inserted.
func (l *Ledger) Refund(ctx context.Context, tenantID, period string, amount int64) error {
	_, err := l.pool.Exec(ctx, `
		UPDATE credit_pools SET
			used_credits = GREATEST(used_credits - $3, 0),
			updated_at   = NOW()
		WHERE tenant_id = $1 AND period_key = $2`,
		tenantID, period, amount)
	return err
}

// Balance is a pure read for UI display.
func (l *Ledger) Balance(ctx context.Context, tenantID, period string) (BalanceInfo, error) {
	if err := l.ensurePool(ctx, tenantID, period); err != nil {
		return BalanceInfo{}, err
	}

	var b BalanceInfo
	err := l.pool.QueryRow(ctx, `
		SELECT total_credits, used_credits, total_credits - used_credits
		FROM credit_pools
		WHERE tenant_id = $1 AND period_key = $2`,
		tenantID, period,
	).Scan(&b.Total, &b.Used, &b.Available)
	if err != nil {
		return BalanceInfo{}, fmt.Errorf("balance %s/%s: %w", tenantID, period, err)
	}
	return b, nil
}

// Grant raises a tenant's allowance for a period (plan upgrades, top-ups).
func (l *Ledger) Grant(ctx context.Context, tenantID, period string, credits int64) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO credit_pools (tenant_id, period_key, total_credits)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, period_key) DO UPDATE
			SET total_credits = credit_pools.total_credits + EXCLUDED.total_credits,
			    updated_at    = NOW()`,
		tenantID, period, credits)
	return err
}

func (l *Ledger) ensurePool(ctx context.Context, tenantID, period string) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO credit_pools (tenant_id, period_key, total_credits)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, period_key) DO NOTHING`,
		tenantID, period, l.defaultCredits)
	if err != nil {
		return fmt.Errorf("provision pool %s/%s: %w", tenantID, period, err)
	}
	return nil
}
