package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"phototag/internal/config"
	"phototag/internal/detection"
	"phototag/internal/notifications"
	"phototag/internal/queue"
	"phototag/internal/testsupport"
	"phototag/internal/workflow"
)

type harness struct {
	cfg      *config.Config
	store    *queue.Store
	notifier *notifications.LocalService
	manager  *workflow.Manager
}

func newHarness(t *testing.T, detector detection.Detector, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	notifier := notifications.NewLocal()
	t.Cleanup(func() { notifier.Close() })
	return &harness{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		manager:  workflow.NewManager(cfg, store, detector, notifier, nil),
	}
}

func staticDetector(detections ...detection.Detection) detection.Func {
	return func(context.Context, string) ([]detection.Detection, error) {
		return detections, nil
	}
}

// countingDetector records how often each storage path was detected.
type countingDetector struct {
	mu     sync.Mutex
	calls  map[string]int
	result []detection.Detection
}

func newCountingDetector(result ...detection.Detection) *countingDetector {
	return &countingDetector{calls: make(map[string]int), result: result}
}

func (c *countingDetector) Detect(_ context.Context, path string) ([]detection.Detection, error) {
	c.mu.Lock()
	c.calls[path]++
	c.mu.Unlock()
	return c.result, nil
}

func (c *countingDetector) snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.calls))
	for k, v := range c.calls {
		out[k] = v
	}
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func stateCount(t *testing.T, store *queue.Store, state queue.State) int {
	t.Helper()
	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	return stats.States[state]
}
