package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"phototag/internal/config"
	"phototag/internal/daemon"
	"phototag/internal/detection"
	"phototag/internal/ingest"
	"phototag/internal/logging"
	"phototag/internal/notifications"
	"phototag/internal/preflight"
	"phototag/internal/queue"
	"phototag/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// WorkersOnly skips the HTTP API and the reconciliation sweep.
	WorkersOnly bool
	// Logger overrides the logger built from configuration.
	Logger *slog.Logger
}

// Runtime holds the components shared by the serve and worker commands.
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *queue.Store
	Detector detection.Detector
	Notifier notifications.Service
	Pipeline *ingest.Pipeline
	Manager  *workflow.Manager

	closers []func() error
}

// Open builds every component from cfg. Callers must Close the runtime.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	if logger == nil {
		var err error
		logger, err = logging.NewFromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}

	rt := &Runtime{Config: cfg, Logger: logger}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	rt.Store = store
	rt.closers = append(rt.closers, store.Close)

	detector, closer, err := detection.New(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("init detector: %w", err)
	}
	rt.Detector = detector
	rt.closers = append(rt.closers, closer.Close)

	rt.Notifier = notifications.NewService(cfg, logger)
	rt.closers = append(rt.closers, rt.Notifier.Close)

	rt.Pipeline = ingest.NewPipeline(store, cfg.Paths.LibraryDir,
		ingest.WithNotifier(rt.Notifier),
		ingest.WithLogger(logger),
	)
	rt.Manager = workflow.NewManager(cfg, store, detector, rt.Notifier, logger)
	return rt, nil
}

// Close releases components in reverse order of construction.
func (rt *Runtime) Close() error {
	if rt == nil {
		return nil
	}
	var firstErr error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	rt.closers = nil
	return firstErr
}

// Preflight runs readiness checks against the opened components.
func (rt *Runtime) Preflight(ctx context.Context) []preflight.Result {
	return preflight.RunAll(ctx, rt.Config, preflight.Dependencies{
		Store:    rt.Store,
		Detector: rt.Detector,
		Notifier: rt.Notifier,
	})
}

// Run starts the phototag daemon and blocks until the context is cancelled
// or SIGINT/SIGTERM arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := Open(signalCtx, cfg, opts.Logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.Logger

	for _, result := range preflight.Failed(rt.Preflight(signalCtx)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "photos stay queued until the dependency recovers"),
		)
	}

	if opts.WorkersOnly {
		if err := rt.Manager.Start(signalCtx); err != nil {
			return fmt.Errorf("start workflow: %w", err)
		}
		<-signalCtx.Done()
		logger.Info("phototag workers shutting down")
		rt.Manager.Stop()
		return nil
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, "phototag.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := daemon.New(cfg, rt.Store, rt.Pipeline, rt.Manager, rt.Notifier, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}
	defer d.Close()

	<-signalCtx.Done()
	logger.Info("phototag daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
