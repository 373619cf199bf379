package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"phototag/internal/logging"
	"phototag/internal/notifications"
	"phototag/internal/queue"
	"phototag/internal/services"
)

// errJobFailed reports that a claimed photo failed and was released or
// dead-lettered. The loop moves straight on to the next claim.
var errJobFailed = errors.New("tagging job failed")

func (m *Manager) process(ctx context.Context, workerID string, photoID int64) error {
	ctx = services.WithWorkerID(services.WithPhotoID(ctx, photoID), workerID)
	logger := logging.WithContext(ctx, m.logger)
	m.setLastPhoto(photoID)

	if err := m.store.MarkProcessing(ctx, photoID, workerID); err != nil {
		if errors.Is(err, queue.ErrStaleLease) {
			logging.WarnWithContext(logger, "lease lost before processing", "lease_lost")
			return nil
		}
		return m.handleFailure(ctx, logger, workerID, photoID, fmt.Errorf("mark processing: %w", err))
	}

	photo, err := m.store.GetPhoto(ctx, photoID)
	if err != nil {
		return m.handleFailure(ctx, logger, workerID, photoID, fmt.Errorf("load photo: %w", err))
	}
	if photo.Attempts >= m.maxAttempts {
		// A previous run counted the last attempt but never dead-lettered.
		return m.exhaust(ctx, logger, workerID, photo.ID, photo.Attempts, errors.New(photo.LastError))
	}

	detectCtx, cancelDetect := context.WithCancel(ctx)
	var leaseLost atomic.Bool
	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		m.keepLease(detectCtx, logger, photoID, workerID, func() {
			leaseLost.Store(true)
			cancelDetect()
		})
	}()

	started := time.Now()
	detections, detectErr := m.detector.Detect(detectCtx, photo.StoragePath)
	cancelDetect()
	<-heartbeatDone

	if leaseLost.Load() {
		logger.Info("discarding detection for lost lease", logging.String(logging.FieldEventType, "result_discarded"))
		return nil
	}
	if detectErr != nil {
		if !errors.Is(detectErr, services.ErrDetectionFailed) && !errors.Is(detectErr, context.Canceled) {
			detectErr = services.Wrap(services.ErrDetectionFailed, "detector", "detect", "", detectErr)
		}
		return m.handleFailure(ctx, logger, workerID, photoID, detectErr)
	}

	tags := FilterDetections(detections, m.threshold)
	if err := m.store.CompleteTagging(ctx, photoID, workerID, tags); err != nil {
		if errors.Is(err, queue.ErrStaleLease) {
			m.logStaleCommit(ctx, logger, photoID)
			return nil
		}
		return m.handleFailure(ctx, logger, workerID, photoID, fmt.Errorf("commit tags: %w", err))
	}

	m.processed.Add(1)
	logger.Info("photo tagged",
		logging.Tags(tags),
		logging.Int("detections", len(detections)),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "photo_tagged"),
	)
	m.publish(ctx, logger, notifications.EventPhotoTagged, notifications.Payload{
		"photo_id": photoID,
		"tags":     tags,
	})
	return nil
}

// logStaleCommit records a commit rejected because another worker took the
// lease; that worker's result stands.
func (m *Manager) logStaleCommit(ctx context.Context, logger *slog.Logger, photoID int64) {
	attrs := []logging.Attr{logging.String(logging.FieldErrorHint, "raise worker.lease_seconds if detections are slow")}
	if current, err := m.store.GetPhoto(ctx, photoID); err == nil {
		attrs = append(attrs, logging.String("current_state", string(current.State)))
	}
	logging.WarnWithContext(logger, "lease expired before commit; result discarded", "stale_commit", attrs...)
}

func (m *Manager) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		logger.Debug("notification not delivered", logging.String("event", string(event)), logging.Error(err))
	}
}

func (m *Manager) setLastPhoto(id int64) {
	m.mu.Lock()
	m.lastPhoto = id
	m.mu.Unlock()
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
