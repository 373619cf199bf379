package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"phototag/internal/logging"
	"phototag/internal/queue"
)

// keepLease renews the lease every interval until ctx ends. When the lease is
// lost it calls onLost once and returns. Transient renewal failures are
// logged and retried on the next tick.
func (m *Manager) keepLease(ctx context.Context, logger *slog.Logger, photoID int64, workerID string, onLost func()) {
	if m.heartbeat <= 0 {
		return
	}
	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expiry, err := m.store.ExtendLease(ctx, photoID, workerID, m.lease)
			switch {
			case err == nil:
				logger.Debug("lease extended", logging.String("lease_expiry", expiry.UTC().Format(time.RFC3339)))
			case errors.Is(err, queue.ErrStaleLease):
				logging.WarnWithContext(logger, "lease lost during detection", "lease_lost",
					logging.String(logging.FieldErrorHint, "raise worker.lease_seconds if detections are slow"),
				)
				onLost()
				return
			case errors.Is(err, context.Canceled):
				return
			default:
				logger.Warn("lease extension failed", logging.Error(err))
			}
		}
	}
}
