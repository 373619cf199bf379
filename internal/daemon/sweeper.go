package daemon

import (
	"context"
	"time"

	"phototag/internal/logging"
	"phototag/internal/notifications"
)

// ReconcileResult reports one reconciliation pass.
type ReconcileResult struct {
	Requeued    int64
	LeasesReset int64
}

// Reconcile re-enqueues orphaned photos and clears lapsed leases once.
func (d *Daemon) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult
	requeued, err := d.store.RequeueOrphans(ctx, d.cfg.Sweep.OrphanGrace())
	if err != nil {
		return result, err
	}
	result.Requeued = requeued
	reset, err := d.store.ResetExpiredLeases(ctx)
	if err != nil {
		return result, err
	}
	result.LeasesReset = reset

	if result.Requeued > 0 || result.LeasesReset > 0 {
		d.logger.Info("queue reconciled",
			logging.Int64("requeued", result.Requeued),
			logging.Int64("leases_reset", result.LeasesReset),
			logging.String(logging.FieldEventType, "queue_reconciled"),
		)
		if d.notifier != nil {
			if err := d.notifier.Publish(ctx, notifications.EventQueueRequeued, notifications.Payload{
				"requeued":     result.Requeued,
				"leases_reset": result.LeasesReset,
			}); err != nil {
				d.logger.Debug("requeue notification not delivered", logging.Error(err))
			}
		}
	}
	return result, nil
}

func (d *Daemon) runSweeper(ctx context.Context) {
	defer d.wg.Done()
	interval := d.cfg.Sweep.Interval()
	if interval <= 0 {
		d.logger.Info("reconciliation sweep disabled")
		return
	}

	d.sweep(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

func (d *Daemon) sweep(ctx context.Context) {
	if _, err := d.Reconcile(ctx); err != nil && ctx.Err() == nil {
		logging.WarnWithContext(d.logger, "reconciliation sweep failed", "sweep_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access; the sweep retries next interval"),
		)
	}
}
