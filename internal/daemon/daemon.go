package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"phototag/internal/config"
	"phototag/internal/ingest"
	"phototag/internal/logging"
	"phototag/internal/notifications"
	"phototag/internal/queue"
	"phototag/internal/workflow"
)

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	pipeline *ingest.Pipeline
	workflow *workflow.Manager
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	StoreDriver  string
	StorePath    string
	LockFilePath string
	APIAddress   string
	Workflow     workflow.StatusSummary
}

// New constructs a daemon with initialized dependencies. notifier may be nil.
func New(cfg *config.Config, store *queue.Store, pipeline *ingest.Pipeline, wf *workflow.Manager, notifier notifications.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || pipeline == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, ingest pipeline, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		pipeline: pipeline,
		workflow: wf,
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, launches the workflow manager, the
// reconciliation sweep and the API server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another phototag daemon holds %s", d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.workflow.Stop()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.wg.Add(1)
	go d.runSweeper(runCtx)

	d.running.Store(true)
	d.logger.Info("phototag daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock. In-flight
// photos are released back to the queue before Stop returns.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("phototag daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon. The store is owned by the caller.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StoreDriver:  d.store.Driver(),
		StorePath:    d.store.Location(),
		LockFilePath: d.lockPath,
		APIAddress:   d.api.address(),
		Workflow:     d.workflow.Status(ctx),
	}
}
