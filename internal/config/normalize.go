package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeDetector()
	c.normalizeAPI()
	c.normalizeLogging()
	c.Notifications.RedisAddr = strings.TrimSpace(c.Notifications.RedisAddr)
	if strings.TrimSpace(c.Notifications.Channel) == "" {
		c.Notifications.Channel = DefaultNotificationChannel
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "", "sqlite3":
		c.Store.Driver = StoreDriverSQLite
	case "postgresql", "pgx":
		c.Store.Driver = StoreDriverPostgres
	}
	if c.Store.Driver != StoreDriverSQLite {
		c.Store.DSN = strings.TrimSpace(c.Store.DSN)
		return nil
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		c.Store.Path = filepath.Join(c.Paths.DataDir, defaultDBName)
	}
	var err error
	if c.Store.Path, err = expandPath(c.Store.Path); err != nil {
		return fmt.Errorf("store.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeDetector() {
	c.Detector.Provider = strings.ToLower(strings.TrimSpace(c.Detector.Provider))
	if c.Detector.Provider == "" {
		c.Detector.Provider = defaultDetectorProvider
	}
	c.Detector.URL = strings.TrimSpace(c.Detector.URL)
	c.Detector.GeminiModel = strings.TrimSpace(c.Detector.GeminiModel)
	if c.Detector.GeminiModel == "" {
		c.Detector.GeminiModel = defaultGeminiModel
	}
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format != "json" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
