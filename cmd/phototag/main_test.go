package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"phototag/internal/api"
	"phototag/internal/testsupport"
)

type cliEnv struct {
	base       string
	configPath string
}

func newCLIEnv(t *testing.T, detectorURL, token string) *cliEnv {
	t.Helper()
	base := t.TempDir()
	configPath := filepath.Join(base, "phototag.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
library_dir = %q
log_dir = %q

[worker]
concurrency = 1
poll_interval_seconds = 1
error_retry_seconds = 1

[detector]
provider = "http"
url = %q
timeout_seconds = 5

[api]
bind = "127.0.0.1:0"
token = %q

[sweep]
orphan_grace_seconds = 0
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "library"),
		filepath.Join(base, "logs"),
		detectorURL,
		token,
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &cliEnv{base: base, configPath: configPath}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--config", e.configPath}, args...)...)
}

func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("phototag %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func (e *cliEnv) writeJPEG(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.base, "incoming", name)
	testsupport.WriteJPEG(t, path)
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func detectorServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "conf", "phototag.toml")

	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("expected output to mention %s, got %q", target, out)
	}
	data, err := os.ReadFile(target)
	if err != nil || !strings.Contains(string(data), "[worker]") {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := newCLIEnv(t, "http://127.0.0.1:1/detect", "super-secret-token")
	out := env.mustRun(t, "config", "show")
	if strings.Contains(out, "super-secret-token") {
		t.Fatalf("token leaked: %s", out)
	}
	if !strings.Contains(out, "********") || !strings.Contains(out, env.configPath) {
		t.Fatalf("unexpected output %s", out)
	}
	if out := env.mustRun(t, "config", "validate"); !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output %s", out)
	}
}

func TestIngestListAndShow(t *testing.T) {
	env := newCLIEnv(t, "http://127.0.0.1:1/detect", "")
	path := env.writeJPEG(t, "garden.jpg")

	out := env.mustRun(t, "ingest", path, "--date", "2024-05-01")
	if !strings.Contains(out, "queued") || !strings.Contains(out, "2024-05-01") {
		t.Fatalf("unexpected ingest output %s", out)
	}

	var photos []api.Photo
	decodeOutput(t, env.mustRun(t, "photos", "list", "--json"), &photos)
	if len(photos) != 1 || photos[0].Filename != "garden.jpg" || photos[0].State != "pending" {
		t.Fatalf("unexpected photos %+v", photos)
	}
	stored := filepath.Join(env.base, "library", "2024-05-01", "garden.jpg")
	if photos[0].StoragePath != stored {
		t.Fatalf("expected storage path %s, got %s", stored, photos[0].StoragePath)
	}

	show := env.mustRun(t, "photos", "show", fmt.Sprint(photos[0].ID))
	if !strings.Contains(show, "State:     pending") {
		t.Fatalf("unexpected show output %s", show)
	}
	if _, err := env.run(t, "photos", "show", "999"); err == nil {
		t.Fatal("expected error for unknown photo")
	}

	var stats api.QueueStats
	decodeOutput(t, env.mustRun(t, "queue", "stats", "--json"), &stats)
	if stats.QueueDepth != 1 || stats.Counts["pending"] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	list := env.mustRun(t, "queue", "list")
	if !strings.Contains(list, "garden.jpg") {
		t.Fatalf("queue list missing entry: %s", list)
	}
}

func TestIngestReportsInvalidFiles(t *testing.T) {
	env := newCLIEnv(t, "http://127.0.0.1:1/detect", "")
	good := env.writeJPEG(t, "good.jpg")
	bad := filepath.Join(env.base, "incoming", "notes.txt")
	if err := os.WriteFile(bad, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := env.run(t, "ingest", good, bad)
	if err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Fatalf("expected partial failure, got %v", err)
	}
	if !strings.Contains(out, "invalid_format") {
		t.Fatalf("expected failure reason in output: %s", out)
	}
}

func TestWorkerDrainTagsPhotos(t *testing.T) {
	srv := detectorServer(t, `{"detections":[{"label":"Cat","confidence":0.9},{"label":"lamp","confidence":0.05}]}`)
	env := newCLIEnv(t, srv.URL, "")
	env.mustRun(t, "ingest", env.writeJPEG(t, "a.jpg"), env.writeJPEG(t, "b.jpg"), "--date", "2024-05-02")

	out := env.mustRun(t, "worker", "--drain")
	if !strings.Contains(out, "Processed 2 photo(s)") {
		t.Fatalf("unexpected worker output %s", out)
	}

	var photos []api.Photo
	decodeOutput(t, env.mustRun(t, "photos", "list", "--tag", "cat", "--json"), &photos)
	if len(photos) != 2 {
		t.Fatalf("expected 2 tagged photos, got %+v", photos)
	}
	for _, p := range photos {
		if p.State != "tagged" || len(p.Tags) != 1 || p.Tags[0] != "cat" {
			t.Fatalf("unexpected photo %+v", p)
		}
	}

	if out := env.mustRun(t, "worker", "--once"); !strings.Contains(out, "Queue is empty") {
		t.Fatalf("expected empty queue, got %s", out)
	}
}

func TestWorkerFlagsAreExclusive(t *testing.T) {
	env := newCLIEnv(t, "http://127.0.0.1:1/detect", "")
	if _, err := env.run(t, "worker", "--once", "--drain"); err == nil {
		t.Fatal("expected error for --once with --drain")
	}
}

func TestQueueMaintenanceCommands(t *testing.T) {
	srv := detectorServer(t, `{"detections":[{"label":"dog","confidence":0.8}]}`)
	env := newCLIEnv(t, srv.URL, "")
	env.mustRun(t, "ingest", env.writeJPEG(t, "c.jpg"), "--date", "2024-05-03")

	if out := env.mustRun(t, "queue", "retry", "1"); !strings.Contains(out, "Re-enqueued 0 photo(s)") {
		t.Fatalf("pending photos should be skipped, got %s", out)
	}
	env.mustRun(t, "worker", "--drain")
	if out := env.mustRun(t, "queue", "retry"); !strings.Contains(out, "Re-enqueued 0 photo(s)") {
		t.Fatalf("unexpected retry output %s", out)
	}
	if out := env.mustRun(t, "queue", "retry", "1"); !strings.Contains(out, "Re-enqueued 1 photo(s)") {
		t.Fatalf("unexpected retry output %s", out)
	}
	if _, err := env.run(t, "queue", "retry", "abc"); err == nil {
		t.Fatal("expected error for invalid id")
	}
	if out := env.mustRun(t, "queue", "reconcile"); !strings.Contains(out, "Re-enqueued 0 orphaned photo(s)") {
		t.Fatalf("unexpected reconcile output %s", out)
	}
	if out := env.mustRun(t, "queue", "health"); !strings.Contains(out, "Healthy") {
		t.Fatalf("unexpected health output %s", out)
	}
}

func TestExportWritesYAML(t *testing.T) {
	env := newCLIEnv(t, "http://127.0.0.1:1/detect", "")
	env.mustRun(t, "ingest", env.writeJPEG(t, "d.jpg"), "--date", "2024-05-04")

	target := filepath.Join(env.base, "out", "catalog.yaml")
	out := env.mustRun(t, "export", target)
	if !strings.Contains(out, "Exported 1 photo(s)") {
		t.Fatalf("unexpected export output %s", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "filename: d.jpg") {
		t.Fatalf("unexpected export content %s", data)
	}

	if _, err := env.run(t, "export", filepath.Join(env.base, "out", "catalog.csv")); err == nil {
		t.Fatal("expected error for unknown export format")
	}
}

func TestCheckReportsUnreachableDetector(t *testing.T) {
	env := newCLIEnv(t, "http://127.0.0.1:1/detect", "")
	out, err := env.run(t, "check")
	if err == nil {
		t.Fatal("expected failing check")
	}
	if !strings.Contains(out, "Detector") || !strings.Contains(out, "FAIL") {
		t.Fatalf("unexpected check output %s", out)
	}
}

func decodeOutput(t *testing.T, out string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
}
