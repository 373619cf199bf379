package logging

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler writes each record to every sink whose level admits it. The
// daemon uses it to log to stdout and <log_dir>/phototag.log at once.
type teeHandler []slog.Handler

func newTeeHandler(sinks ...slog.Handler) slog.Handler {
	var live teeHandler
	for _, h := range sinks {
		if h != nil {
			live = append(live, h)
		}
	}
	switch len(live) {
	case 0:
		return discardHandler{}
	case 1:
		return live[0]
	default:
		return live
	}
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, record.Level) {
			errs = append(errs, h.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t teeHandler) each(fn func(slog.Handler) slog.Handler) teeHandler {
	next := make(teeHandler, len(t))
	for i, h := range t {
		next[i] = fn(h)
	}
	return next
}
