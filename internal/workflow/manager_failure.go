package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"phototag/internal/logging"
	"phototag/internal/notifications"
	"phototag/internal/queue"
	"phototag/internal/services"
)

// handleFailure applies the retry policy to a failed job and returns the
// error the loop should act on.
func (m *Manager) handleFailure(ctx context.Context, logger *slog.Logger, workerID string, photoID int64, cause error) error {
	if ctx.Err() != nil {
		m.release(ctx, logger, photoID, workerID)
		logger.Info("released photo on shutdown", logging.String(logging.FieldEventType, "released_on_shutdown"))
		return ctx.Err()
	}

	if !services.CountsAttempt(cause) {
		logging.WarnWithContext(logger, "store unavailable; photo stays queued", "store_unavailable",
			logging.Error(cause),
			logging.String(logging.FieldErrorHint, services.ErrorHint(cause)),
		)
		m.release(ctx, logger, photoID, workerID)
		return cause
	}

	attempts, err := m.store.RecordAttempt(ctx, photoID, workerID, cause.Error())
	if err != nil {
		if errors.Is(err, queue.ErrStaleLease) {
			logging.WarnWithContext(logger, "lease lost before recording failure", "lease_lost", logging.Error(cause))
			return nil
		}
		m.release(ctx, logger, photoID, workerID)
		return fmt.Errorf("record attempt: %w", err)
	}

	if attempts >= m.maxAttempts {
		return m.exhaust(ctx, logger, workerID, photoID, attempts, cause)
	}

	m.setLastError(cause)
	delay := m.retryDelay(attempts)
	logging.WarnWithContext(logger, "tagging attempt failed; will retry", "attempt_failed",
		logging.Int("attempts", attempts),
		logging.Int("max_attempts", m.maxAttempts),
		logging.Duration("retry_in", delay),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, services.ErrorHint(cause)),
	)
	if err := m.store.ReleaseAfter(ctx, photoID, workerID, delay); err != nil && !errors.Is(err, queue.ErrStaleLease) {
		logger.Warn("release after failure failed; lease will expire", logging.Error(err))
	}
	return errJobFailed
}

// exhaust moves the photo to failed and drops its entry.
func (m *Manager) exhaust(ctx context.Context, logger *slog.Logger, workerID string, photoID int64, attempts int, cause error) error {
	exhausted := fmt.Errorf("%w after %d attempts: %w", services.ErrExhausted, attempts, cause)
	if err := m.store.DeadLetter(ctx, photoID, workerID, cause.Error()); err != nil {
		if errors.Is(err, queue.ErrStaleLease) {
			logging.WarnWithContext(logger, "lease lost before dead-lettering", "lease_lost")
			return nil
		}
		return fmt.Errorf("dead letter: %w", err)
	}
	m.failed.Add(1)
	m.setLastError(exhausted)
	logging.ErrorWithContext(logger, "photo failed permanently", "photo_failed",
		logging.Int("attempts", attempts),
		logging.Error(exhausted),
		logging.String(logging.FieldErrorHint, services.ErrorHint(exhausted)),
	)
	m.publish(ctx, logger, notifications.EventPhotoFailed, notifications.Payload{
		"photo_id": photoID,
		"attempts": attempts,
		"error":    cause.Error(),
	})
	return errJobFailed
}

// release gives the entry back using a context that survives shutdown. A
// failed release is logged; the lease then simply expires.
func (m *Manager) release(ctx context.Context, logger *slog.Logger, photoID int64, workerID string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.grace)
	defer cancel()
	if err := m.store.Release(releaseCtx, photoID, workerID); err != nil && !errors.Is(err, queue.ErrStaleLease) {
		logger.Warn("release failed; lease will expire", logging.Error(err))
	}
}
