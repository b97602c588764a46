package worker

import (
	"context"
	"time"
)

// Register upserts the worker row. Safe on restart: ON CONFLICT refreshes
// the heartbeat and re-marks the worker active.
func (w *Worker) Register(ctx context.Context) error {
	_, err := w.Pool.Exec(ctx, `
		INSERT INTO workers (id, hostname)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE
			SET hostname       = EXCLUDED.hostname,
			    status         = 'active',
			    last_heartbeat = NOW()`,
		w.ID, w.Hostname)
	return err
}

// RunHeartbeat refreshes last_heartbeat every 5 seconds so the reaper can
// tell live workers from crashed ones. Run in a goroutine alongside Run.
func (w *Worker) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := w.Pool.Exec(ctx,
				`UPDATE workers SET last_heartbeat = NOW() WHERE id = $1`, w.ID)
			if err != nil {
				w.Logger.Error("heartbeat failed", "err", err)
			}
		}
	}
}
