package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

const envPrefix = "PHOTOTAG_"

// applyEnv overlays PHOTOTAG_* environment variables onto values read from
// the file. Unset variables leave the file value untouched.
func (c *Config) applyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	if strings.TrimSpace(c.Detector.GeminiAPIKey) == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.Detector.GeminiAPIKey = strings.TrimSpace(value)
		}
	}
	return nil
}
