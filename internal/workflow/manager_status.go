package workflow

import (
	"context"

	"phototag/internal/detection"
	"phototag/internal/logging"
	"phototag/internal/queue"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	Workers     []string
	Processed   int64
	Failed      int64
	LastError   string
	LastPhotoID int64
	QueueStats  queue.Stats
	Detector    detection.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:     m.running,
		Workers:     append([]string(nil), m.workers...),
		LastPhotoID: m.lastPhoto,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()

	summary.Processed = m.processed.Load()
	summary.Failed = m.failed.Load()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.QueueStats = stats
	if m.detector != nil {
		summary.Detector = detection.CheckHealth(ctx, m.detector)
	}
	return summary
}
