package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"phototag/internal/api"
	"phototag/internal/config"
	"phototag/internal/daemon"
	"phototag/internal/detection"
	"phototag/internal/ingest"
	"phototag/internal/logging"
	"phototag/internal/notifications"
	"phototag/internal/queue"
	"phototag/internal/testsupport"
	"phototag/internal/workflow"
)

type harness struct {
	cfg    *config.Config
	store  *queue.Store
	daemon *daemon.Daemon
}

func newHarness(t *testing.T, detector detection.Detector, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	return &harness{cfg: cfg, store: store, daemon: newDaemon(t, cfg, store, detector)}
}

func newDaemon(t *testing.T, cfg *config.Config, store *queue.Store, detector detection.Detector) *daemon.Daemon {
	t.Helper()
	logger := logging.NewNop()
	notifier := notifications.NewLocal()
	t.Cleanup(func() { notifier.Close() })
	pipeline := ingest.NewPipeline(store, cfg.Paths.LibraryDir, ingest.WithNotifier(notifier), ingest.WithLogger(logger))
	mgr := workflow.NewManager(cfg, store, detector, notifier, logger)
	d, err := daemon.New(cfg, store, pipeline, mgr, notifier, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func catDetector() detection.Detector {
	return detection.Func(func(context.Context, string) ([]detection.Detection, error) {
		return []detection.Detection{{Label: "cat", Confidence: 0.92}, {Label: "sofa", Confidence: 0.1}}, nil
	})
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := daemon.New(nil, nil, nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestStartRejectsSecondInstance(t *testing.T) {
	h := newHarness(t, catDetector())
	ctx := context.Background()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.daemon.Start(ctx); err == nil {
		t.Fatal("expected second Start on the same daemon to fail")
	}

	other := newDaemon(t, h.cfg, h.store, catDetector())
	if err := other.Start(ctx); err == nil {
		t.Fatal("expected lock contention error")
	}

	status := h.daemon.Status(ctx)
	if !status.Running || status.LockFilePath != h.cfg.LockPath() || status.APIAddress == "" {
		t.Fatalf("unexpected status %+v", status)
	}
	if len(status.Workflow.Workers) != h.cfg.Worker.Concurrency {
		t.Fatalf("expected %d workers, got %v", h.cfg.Worker.Concurrency, status.Workflow.Workers)
	}

	h.daemon.Stop()
	if h.daemon.Status(ctx).Running {
		t.Fatal("daemon should report stopped")
	}
	if err := other.Start(ctx); err != nil {
		t.Fatalf("Start after release: %v", err)
	}
	other.Stop()
}

func TestStartWithoutDetectorReleasesLock(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.daemon.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail without a detector")
	}
	other := newDaemon(t, h.cfg, h.store, catDetector())
	if err := other.Start(context.Background()); err != nil {
		t.Fatalf("lock should be free after failed Start: %v", err)
	}
	other.Stop()
}

func TestReconcileRequeuesOrphans(t *testing.T) {
	h := newHarness(t, catDetector())
	h.cfg.Sweep.OrphanGraceSeconds = 0
	ctx := context.Background()

	photo, err := h.store.InsertPhoto(ctx, queue.NewPhoto{
		Filename:    "lost.jpg",
		StoragePath: "/library/2024-05-01/lost.jpg",
		CaptureDate: "2024-05-01",
	})
	if err != nil {
		t.Fatalf("InsertPhoto: %v", err)
	}

	result, err := h.daemon.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if result.Requeued != 1 {
		t.Fatalf("expected 1 requeued photo, got %+v", result)
	}
	entry, err := h.store.GetEntry(ctx, photo.ID)
	if err != nil || entry == nil {
		t.Fatalf("expected queue entry, got %v, %v", entry, err)
	}

	again, err := h.daemon.Reconcile(ctx)
	if err != nil || again.Requeued != 0 {
		t.Fatalf("second pass should be a no-op, got %+v, %v", again, err)
	}
}

func TestZeroSweepIntervalDisablesSweep(t *testing.T) {
	h := newHarness(t, catDetector())
	h.cfg.Sweep.IntervalSeconds = 0
	h.cfg.Sweep.OrphanGraceSeconds = 0
	ctx := context.Background()

	photo, err := h.store.InsertPhoto(ctx, queue.NewPhoto{
		Filename:    "lost.jpg",
		StoragePath: "/library/2024-05-01/lost.jpg",
		CaptureDate: "2024-05-01",
	})
	if err != nil {
		t.Fatalf("InsertPhoto: %v", err)
	}
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.daemon.Stop()

	if entry, err := h.store.GetEntry(ctx, photo.ID); err != nil || entry != nil {
		t.Fatalf("disabled sweep re-enqueued the orphan: %+v, %v", entry, err)
	}
}

func TestDaemonTagsUploadedPhoto(t *testing.T) {
	h := newHarness(t, catDetector())
	ctx := context.Background()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	base := "http://" + h.daemon.Status(ctx).APIAddress

	body, contentType := multipartUpload(t, "kitchen.jpg", testsupport.JPEGBytes(t), "2024-06-01")
	resp, err := http.Post(base+"/upload", contentType, body)
	if err != nil {
		t.Fatalf("POST /upload: %v", err)
	}
	var uploaded api.UploadResponse
	decodeJSON(t, resp, http.StatusCreated, &uploaded)

	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := http.Get(fmt.Sprintf("%s/photos/%d", base, uploaded.ID))
		if err != nil {
			t.Fatalf("GET photo: %v", err)
		}
		var photo api.Photo
		decodeJSON(t, resp, http.StatusOK, &photo)
		if photo.State == string(queue.StateTagged) {
			if len(photo.Tags) != 1 || photo.Tags[0] != "cat" {
				t.Fatalf("unexpected tags %v", photo.Tags)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("photo not tagged in time, state %s", photo.State)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func multipartUpload(t *testing.T, filename string, data []byte, captureDate string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" || data != nil {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if captureDate != "" {
		if err := mw.WriteField("capture_date", captureDate); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func decodeJSON(t *testing.T, resp *http.Response, wantStatus int, out any) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("expected status %d, got %d", wantStatus, resp.StatusCode)
	}
	if out == nil {
		return
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func serve(t *testing.T, h *harness) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h.daemon.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
