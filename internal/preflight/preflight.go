package preflight

import (
	"context"

	"golang.org/x/sync/errgroup"

	"phototag/internal/config"
	"phototag/internal/detection"
	"phototag/internal/notifications"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Dependencies carries the live components RunAll probes. Nil fields are
// reported as not configured.
type Dependencies struct {
	Store    StorePinger
	Detector detection.Detector
	Notifier notifications.Service
}

// RunAll executes every applicable check concurrently and returns the results
// in a stable order.
func RunAll(ctx context.Context, cfg *config.Config, deps Dependencies) []Result {
	if cfg == nil {
		return nil
	}

	checks := []func(context.Context) Result{
		func(context.Context) Result { return CheckDirectoryAccess("Data directory", cfg.Paths.DataDir) },
		func(context.Context) Result { return CheckDirectoryAccess("Library directory", cfg.Paths.LibraryDir) },
		func(ctx context.Context) Result { return CheckStore(ctx, deps.Store) },
		func(ctx context.Context) Result { return CheckDetector(ctx, deps.Detector) },
		func(ctx context.Context) Result { return CheckNotifications(ctx, deps.Notifier) },
	}

	results := make([]Result, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			results[i] = check(gctx)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
