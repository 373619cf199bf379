package preflight_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"phototag/internal/detection"
	"phototag/internal/notifications"
	"phototag/internal/preflight"
	"phototag/internal/testsupport"
)

func TestCheckDirectoryAccessOK(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccessNotExist(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed || result.Detail == "" {
		t.Fatalf("expected failure with detail, got %+v", result)
	}
}

func TestCheckDirectoryAccessNotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := preflight.CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

type failingStore struct{ err error }

func (f failingStore) CheckHealth(context.Context) error { return f.err }

func TestCheckStore(t *testing.T) {
	if result := preflight.CheckStore(context.Background(), nil); result.Passed {
		t.Fatal("nil store should fail")
	}
	if result := preflight.CheckStore(context.Background(), failingStore{err: context.DeadlineExceeded}); result.Passed || result.Detail != "check timed out" {
		t.Fatalf("unexpected result %+v", result)
	}
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if result := preflight.CheckStore(context.Background(), store); !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
}

func TestCheckDetector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	down := detection.NewHTTPDetector(srv.URL, time.Second)
	if result := preflight.CheckDetector(context.Background(), down); result.Passed {
		t.Fatalf("expected failure for 503 detector, got %+v", result)
	}
	if result := preflight.CheckDetector(context.Background(), nil); result.Passed {
		t.Fatal("missing detector should fail")
	}
	plain := detection.Func(func(context.Context, string) ([]detection.Detection, error) { return nil, nil })
	if result := preflight.CheckDetector(context.Background(), plain); !result.Passed {
		t.Fatalf("func detector should pass, got %+v", result)
	}
}

type flakyPinger struct{ notifications.Service }

func (flakyPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestCheckNotifications(t *testing.T) {
	local := notifications.NewLocal()
	defer local.Close()
	if result := preflight.CheckNotifications(context.Background(), local); !result.Passed {
		t.Fatalf("local notifier should pass, got %+v", result)
	}
	if result := preflight.CheckNotifications(context.Background(), flakyPinger{}); result.Passed {
		t.Fatal("failing ping should fail")
	}
}

func TestRunAllReportsEveryCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	plain := detection.Func(func(context.Context, string) ([]detection.Detection, error) { return nil, nil })

	results := preflight.RunAll(context.Background(), cfg, preflight.Dependencies{Store: store, Detector: plain})
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if failed := preflight.Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures %+v", failed)
	}
	if results[0].Name != "Data directory" || results[2].Name != "Queue store" {
		t.Fatalf("results out of order: %+v", results)
	}
}
