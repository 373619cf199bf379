package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir" env:"DATA_DIR"`
	LibraryDir string `toml:"library_dir" env:"LIBRARY_DIR"`
	LogDir     string `toml:"log_dir" env:"LOG_DIR"`
}

// Store selects the database backing the photo records and the job queue.
type Store struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string `toml:"driver" env:"DRIVER"`
	// Path is the SQLite database file. Defaults to <data_dir>/phototag.db.
	Path string `toml:"path" env:"PATH"`
	// DSN is the PostgreSQL connection string used when Driver is "postgres".
	DSN string `toml:"dsn" env:"DSN"`
}

// Worker contains the tagging worker pool settings.
type Worker struct {
	Concurrency         int     `toml:"concurrency" env:"CONCURRENCY"`
	ConfidenceThreshold float64 `toml:"confidence_threshold" env:"CONFIDENCE_THRESHOLD"`
	MaxAttempts         int     `toml:"max_attempts" env:"MAX_ATTEMPTS"`
	LeaseSeconds        int     `toml:"lease_seconds" env:"LEASE_SECONDS"`
	HeartbeatSeconds    int     `toml:"heartbeat_seconds" env:"HEARTBEAT_SECONDS"`
	PollIntervalSeconds int     `toml:"poll_interval_seconds" env:"POLL_INTERVAL_SECONDS"`
	PollJitter          float64 `toml:"poll_jitter" env:"POLL_JITTER"` // fraction of the poll interval
	ErrorRetrySeconds   int     `toml:"error_retry_seconds" env:"ERROR_RETRY_SECONDS"`
	ShutdownGraceSecs   int     `toml:"shutdown_grace_seconds" env:"SHUTDOWN_GRACE_SECONDS"`
}

// Detector selects and configures the object-detection backend.
type Detector struct {
	// Provider is "http" (a detection sidecar such as a YOLO server) or "gemini".
	Provider       string `toml:"provider" env:"PROVIDER"`
	URL            string `toml:"url" env:"URL"`
	TimeoutSeconds int    `toml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	GeminiAPIKey   string `toml:"gemini_api_key" env:"GEMINI_API_KEY"`
	GeminiModel    string `toml:"gemini_model" env:"GEMINI_MODEL"`
}

// API contains the HTTP upload and query server settings.
type API struct {
	Bind           string `toml:"bind" env:"BIND"`
	Token          string `toml:"token" env:"TOKEN"`
	MaxUploadMB    int    `toml:"max_upload_mb" env:"MAX_UPLOAD_MB"`
	ReadTimeoutSec int    `toml:"read_timeout_seconds" env:"READ_TIMEOUT_SECONDS"`
}

// Notifications configures the Redis channel used to wake idle workers.
type Notifications struct {
	RedisAddr     string `toml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `toml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `toml:"redis_db" env:"REDIS_DB"`
	Channel       string `toml:"channel" env:"CHANNEL"`
}

// Sweep configures the reconciliation pass that re-enqueues orphaned photos.
type Sweep struct {
	IntervalSeconds    int `toml:"interval_seconds" env:"INTERVAL_SECONDS"`
	OrphanGraceSeconds int `toml:"orphan_grace_seconds" env:"ORPHAN_GRACE_SECONDS"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" env:"FORMAT"`
	Level  string `toml:"level" env:"LEVEL"`
}

// Config encapsulates all configuration values for phototag.
//
// Configuration sections by subsystem:
//   - Paths: data, library and log directories
//   - Store: SQLite file or PostgreSQL DSN
//   - Worker: pool size, confidence threshold, lease and retry timing
//   - Detector: detection backend selection and credentials
//   - API: upload/query server bind address and token
//   - Notifications: Redis wakeup channel
//   - Sweep: orphan reconciliation cadence
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths" envPrefix:"PATHS_"`
	Store         Store         `toml:"store" envPrefix:"STORE_"`
	Worker        Worker        `toml:"worker" envPrefix:"WORKER_"`
	Detector      Detector      `toml:"detector" envPrefix:"DETECTOR_"`
	API           API           `toml:"api" envPrefix:"API_"`
	Notifications Notifications `toml:"notifications" envPrefix:"NOTIFICATIONS_"`
	Sweep         Sweep         `toml:"sweep" envPrefix:"SWEEP_"`
	Logging       Logging       `toml:"logging" envPrefix:"LOGGING_"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. Environment
// variables prefixed with PHOTOTAG_ override file values. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("phototag.toml")
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{defaultPath, projectPath} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon and CLI write into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LibraryDir, c.Paths.LogDir}
	if c.Store.Driver == StoreDriverSQLite && c.Store.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Store.Path))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the file guarding against two daemons sharing one data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "phototag.lock")
}

// LeaseDuration returns the queue lease granted on each claim.
func (w Worker) LeaseDuration() time.Duration {
	return time.Duration(w.LeaseSeconds) * time.Second
}

// HeartbeatInterval returns how often an in-flight lease is renewed.
func (w Worker) HeartbeatInterval() time.Duration {
	return time.Duration(w.HeartbeatSeconds) * time.Second
}

// PollInterval returns the idle backoff before jitter is applied.
func (w Worker) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalSeconds) * time.Second
}

// ErrorRetryInterval returns the backoff applied after a store outage. Failed
// detections wait this long per recorded attempt before they are retried.
func (w Worker) ErrorRetryInterval() time.Duration {
	return time.Duration(w.ErrorRetrySeconds) * time.Second
}

// ShutdownGrace bounds how long Stop waits for in-flight jobs.
func (w Worker) ShutdownGrace() time.Duration {
	return time.Duration(w.ShutdownGraceSecs) * time.Second
}

// Timeout returns the per-request detector deadline.
func (d Detector) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// MaxUploadBytes returns the upload size limit for the HTTP API.
func (a API) MaxUploadBytes() int64 {
	return int64(a.MaxUploadMB) << 20
}

// Interval returns the reconciliation sweep period.
func (s Sweep) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// OrphanGrace returns how old a pending photo without a queue entry must be
// before the sweep re-enqueues it.
func (s Sweep) OrphanGrace() time.Duration {
	return time.Duration(s.OrphanGraceSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		switch {
		case pathValue == "~":
			pathValue = home
		case len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\'):
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
