package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"

	"phototag/internal/logging"
	"phototag/internal/notifications"
	"phototag/internal/services"
)

// NewWorkerID returns a lease owner id unique across hosts and processes.
func NewWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

// Start launches the worker loops. It returns once they are running.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.detector == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: no detector configured", services.ErrConfiguration)
	}
	count := m.cfg.Worker.Concurrency
	if count < 1 {
		count = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.workers = make([]string, count)
	m.wakers = make([]chan struct{}, count)
	for i := range count {
		m.workers[i] = NewWorkerID()
		m.wakers[i] = make(chan struct{}, 1)
	}
	workers := append([]string(nil), m.workers...)
	wakers := append([]chan struct{}(nil), m.wakers...)
	m.wg.Add(count)
	m.mu.Unlock()

	if m.notifier != nil {
		m.wg.Add(1)
		go m.forwardWakeups(runCtx, wakers)
	}
	for i := range count {
		go m.runLoop(runCtx, workers[i], wakers[i])
	}
	m.logger.Info("workflow started",
		logging.Int("workers", count),
		logging.Float64("confidence_threshold", m.threshold),
		logging.Duration("lease", m.lease),
		logging.String(logging.FieldEventType, "workflow_started"),
	)
	return nil
}

// Stop cancels the loops and waits for them. In-flight photos are released
// before the loops exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped",
		logging.Int64("processed", m.processed.Load()),
		logging.Int64("failed", m.failed.Load()),
		logging.String(logging.FieldEventType, "workflow_stopped"),
	)
}

// RunOnce claims and processes at most one entry as workerID. It reports
// whether an entry was claimed.
func (m *Manager) RunOnce(ctx context.Context, workerID string) (bool, error) {
	entry, err := m.store.Claim(ctx, workerID, m.lease)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	return true, m.process(ctx, workerID, entry.PhotoID)
}

// Drain processes entries as workerID until none are claimable. It returns
// the number of entries handled.
func (m *Manager) Drain(ctx context.Context, workerID string) (int, error) {
	handled := 0
	for {
		if err := ctx.Err(); err != nil {
			return handled, err
		}
		claimed, err := m.RunOnce(ctx, workerID)
		if claimed {
			handled++
		}
		if err != nil && !errors.Is(err, errJobFailed) {
			return handled, err
		}
		if !claimed {
			return handled, nil
		}
	}
}

func (m *Manager) runLoop(ctx context.Context, workerID string, wake <-chan struct{}) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String(logging.FieldWorkerID, workerID))
	logger.Debug("worker loop started")

	for {
		if ctx.Err() != nil {
			return
		}
		claimed, err := m.RunOnce(ctx, workerID)
		switch {
		case err == nil && claimed:
			continue
		case err == nil:
			m.waitForWork(ctx, wake)
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			return
		case errors.Is(err, errJobFailed):
			continue
		default:
			m.handleLoopError(ctx, logger, err)
		}
	}
}

func (m *Manager) handleLoopError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(logger, "worker iteration failed", "worker_iteration_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, services.ErrorHint(err)),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.errorRetry):
	}
}

// waitForWork sleeps for the jittered poll interval or until a wakeup.
func (m *Manager) waitForWork(ctx context.Context, wake <-chan struct{}) {
	timer := time.NewTimer(m.jitteredPoll())
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-wake:
	case <-timer.C:
	}
}

func (m *Manager) jitteredPoll() time.Duration {
	base := m.pollInterval
	if base <= 0 {
		base = time.Second
	}
	return m.jitter(base)
}

// retryDelay is how long a photo that failed its attempts-th try waits
// before it can be claimed again: error_retry_seconds per attempt, jittered.
func (m *Manager) retryDelay(attempts int) time.Duration {
	if m.errorRetry <= 0 || attempts < 1 {
		return 0
	}
	return m.jitter(m.errorRetry * time.Duration(attempts))
}

func (m *Manager) jitter(d time.Duration) time.Duration {
	if m.pollJitter <= 0 {
		return d
	}
	factor := 1 + m.pollJitter*(2*rand.Float64()-1)
	return time.Duration(float64(d) * factor)
}

// forwardWakeups turns enqueue notifications into non-blocking wakeups for
// every loop. Subscription failures fall back to polling.
func (m *Manager) forwardWakeups(ctx context.Context, wakers []chan struct{}) {
	defer m.wg.Done()
	events, err := m.notifier.Subscribe(ctx)
	if err != nil {
		logging.WarnWithContext(m.logger, "notification subscribe failed; polling only", "wakeup_subscribe_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.redis_addr"),
		)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			if msg.Event != notifications.EventPhotoEnqueued && msg.Event != notifications.EventQueueRequeued {
				continue
			}
			for _, w := range wakers {
				select {
				case w <- struct{}{}:
				default:
				}
			}
		}
	}
}
