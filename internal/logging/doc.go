// Package logging assembles structured slog loggers and formatting helpers used
// across phototag.
//
// It owns the console and JSON handlers, fans records out to stdout and the
// log file, and exposes context-aware helpers so worker and ingestion code can
// tag log lines with photo IDs, worker identities and correlation IDs. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
