package testsupport

import (
	"path/filepath"
	"testing"

	"phototag/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Worker timings are shortened so loops react within test deadlines.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Store.Path = filepath.Join(base, "data", "phototag.db")
	cfg.API.Bind = "127.0.0.1:0"
	cfg.Worker.Concurrency = 1
	cfg.Worker.LeaseSeconds = 30
	cfg.Worker.HeartbeatSeconds = 10
	cfg.Worker.PollIntervalSeconds = 1
	cfg.Worker.ErrorRetrySeconds = 1
	cfg.Worker.ShutdownGraceSecs = 5

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMaxAttempts overrides the attempt limit.
func WithMaxAttempts(n int) ConfigOption {
	return func(c *config.Config) {
		c.Worker.MaxAttempts = n
	}
}

// WithConcurrency overrides the worker pool size.
func WithConcurrency(n int) ConfigOption {
	return func(c *config.Config) {
		c.Worker.Concurrency = n
	}
}

// WithDetectorURL points the http detector at a test server.
func WithDetectorURL(url string) ConfigOption {
	return func(c *config.Config) {
		c.Detector.Provider = config.DetectorHTTP
		c.Detector.URL = url
	}
}

// WithAPIToken enables bearer authentication on the API server.
func WithAPIToken(token string) ConfigOption {
	return func(c *config.Config) {
		c.API.Token = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
