package workflow

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"phototag/internal/config"
	"phototag/internal/detection"
	"phototag/internal/logging"
	"phototag/internal/notifications"
	"phototag/internal/queue"
)

// Store is the queue surface the workers use. *queue.Store satisfies it.
type Store interface {
	Claim(ctx context.Context, workerID string, lease time.Duration) (*queue.Entry, error)
	ExtendLease(ctx context.Context, photoID int64, workerID string, lease time.Duration) (time.Time, error)
	MarkProcessing(ctx context.Context, photoID int64, workerID string) error
	GetPhoto(ctx context.Context, id int64) (*queue.Photo, error)
	CompleteTagging(ctx context.Context, photoID int64, workerID string, tags []string) error
	Release(ctx context.Context, photoID int64, workerID string) error
	ReleaseAfter(ctx context.Context, photoID int64, workerID string, delay time.Duration) error
	RecordAttempt(ctx context.Context, photoID int64, workerID, reason string) (int, error)
	DeadLetter(ctx context.Context, photoID int64, workerID, reason string) error
	Stats(ctx context.Context) (queue.Stats, error)
}

// Manager coordinates the tagging worker pool.
type Manager struct {
	cfg      *config.Config
	store    Store
	detector detection.Detector
	notifier notifications.Service
	logger   *slog.Logger

	threshold    float64
	lease        time.Duration
	heartbeat    time.Duration
	pollInterval time.Duration
	pollJitter   float64
	errorRetry   time.Duration
	grace        time.Duration
	maxAttempts  int

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	workers   []string
	wakers    []chan struct{}
	lastErr   error
	lastPhoto int64

	processed atomic.Int64
	failed    atomic.Int64
}

// NewManager constructs a workflow manager. notifier may be nil, in which
// case idle workers rely on polling alone.
func NewManager(cfg *config.Config, store Store, detector detection.Detector, notifier notifications.Service, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        store,
		detector:     detector,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		threshold:    cfg.Worker.ConfidenceThreshold,
		lease:        cfg.Worker.LeaseDuration(),
		heartbeat:    cfg.Worker.HeartbeatInterval(),
		pollInterval: cfg.Worker.PollInterval(),
		pollJitter:   cfg.Worker.PollJitter,
		errorRetry:   cfg.Worker.ErrorRetryInterval(),
		grace:        cfg.Worker.ShutdownGrace(),
		maxAttempts:  cfg.Worker.MaxAttempts,
	}
}
