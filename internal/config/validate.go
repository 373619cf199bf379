package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateDetector(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"api.max_upload_mb":        c.API.MaxUploadMB,
		"api.read_timeout_seconds": c.API.ReadTimeoutSec,
		"detector.timeout_seconds": c.Detector.TimeoutSeconds,
	}); err != nil {
		return err
	}
	// 0 disables the background sweep; `queue reconcile` still works.
	if c.Sweep.IntervalSeconds < 0 {
		return errors.New("sweep.interval_seconds must not be negative")
	}
	if c.Sweep.OrphanGraceSeconds < 0 {
		return errors.New("sweep.orphan_grace_seconds must not be negative")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case StoreDriverSQLite:
		if c.Store.Path == "" {
			return errors.New("store.path must be set for the sqlite driver")
		}
	case StoreDriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required when store.driver is postgres")
		}
	default:
		return fmt.Errorf("store.driver: unsupported value %q (want sqlite or postgres)", c.Store.Driver)
	}
	return nil
}

func (c *Config) validateWorker() error {
	if err := ensurePositiveMap(map[string]int{
		"worker.concurrency":            c.Worker.Concurrency,
		"worker.max_attempts":           c.Worker.MaxAttempts,
		"worker.lease_seconds":          c.Worker.LeaseSeconds,
		"worker.heartbeat_seconds":      c.Worker.HeartbeatSeconds,
		"worker.poll_interval_seconds":  c.Worker.PollIntervalSeconds,
		"worker.error_retry_seconds":    c.Worker.ErrorRetrySeconds,
		"worker.shutdown_grace_seconds": c.Worker.ShutdownGraceSecs,
	}); err != nil {
		return err
	}
	if c.Worker.HeartbeatSeconds >= c.Worker.LeaseSeconds {
		return errors.New("worker.heartbeat_seconds must be less than worker.lease_seconds")
	}
	if c.Worker.ConfidenceThreshold < 0 || c.Worker.ConfidenceThreshold > 1 {
		return errors.New("worker.confidence_threshold must be between 0 and 1")
	}
	if c.Worker.PollJitter < 0 || c.Worker.PollJitter >= 1 {
		return errors.New("worker.poll_jitter must be in [0, 1)")
	}
	return nil
}

func (c *Config) validateDetector() error {
	switch c.Detector.Provider {
	case DetectorHTTP:
		if c.Detector.URL == "" {
			return errors.New("detector.url is required for the http provider")
		}
	case DetectorGemini:
		if c.Detector.GeminiAPIKey == "" {
			defaultPath, err := DefaultConfigPath()
			if err != nil {
				defaultPath = defaultConfigPath
			}
			return fmt.Errorf("detector.gemini_api_key is required. Set GEMINI_API_KEY env var or edit %s (create with 'phototag config init')", defaultPath)
		}
	default:
		return fmt.Errorf("detector.provider: unsupported value %q (want http or gemini)", c.Detector.Provider)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
