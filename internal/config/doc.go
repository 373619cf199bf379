// Package config loads, normalizes, and validates phototag configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and overlays PHOTOTAG_* environment variables
// plus the GEMINI_API_KEY fallback. The Config type centralizes every knob the
// daemon, the tagging workers and the CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
