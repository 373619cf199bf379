package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const maxResponseBytes = 4 << 20

// HTTPDetector posts images to a detection sidecar as multipart/form-data
// (field "file") and expects {"detections":[{"label":..,"confidence":..}]}.
type HTTPDetector struct {
	url    string
	client *http.Client
}

// NewHTTPDetector constructs a detector for the given endpoint.
func NewHTTPDetector(url string, timeout time.Duration) *HTTPDetector {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPDetector{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
	}
}

type detectResponse struct {
	Detections []Detection `json:"detections"`
}

// Detect uploads the file at storagePath and decodes the detections.
func (d *HTTPDetector) Detect(ctx context.Context, storagePath string) ([]Detection, error) {
	if d.url == "" {
		return nil, detectionError("detect", "detector url not configured", nil)
	}
	f, err := os.Open(storagePath)
	if err != nil {
		return nil, detectionError("detect", "open image", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(storagePath))
	if err != nil {
		return nil, detectionError("detect", "build request", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, detectionError("detect", "read image", err)
	}
	if err := writer.Close(); err != nil {
		return nil, detectionError("detect", "build request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, &body)
	if err != nil {
		return nil, detectionError("detect", "build request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, detectionError("detect", "request", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, detectionError("detect", "read response", err)
	}
	if resp.StatusCode >= 400 {
		return nil, detectionError("detect", fmt.Sprintf("status %d: %s", resp.StatusCode, snippet(payload)), nil)
	}

	var parsed detectResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, detectionError("detect", "decode response", err)
	}
	return parsed.Detections, nil
}

// HealthCheck issues a GET against the detector endpoint. Any response
// below 500 counts as reachable since many sidecars only accept POST.
func (d *HTTPDetector) HealthCheck(ctx context.Context) Health {
	health := Health{Provider: "http", Endpoint: d.url}
	if d.url == "" {
		health.Detail = "detector url not configured"
		return health
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		health.Detail = err.Error()
		return health
	}
	resp, err := d.client.Do(req)
	if err != nil {
		health.Detail = err.Error()
		return health
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode >= 500 {
		health.Detail = fmt.Sprintf("status %d", resp.StatusCode)
		return health
	}
	health.Ready = true
	health.Detail = fmt.Sprintf("status %d", resp.StatusCode)
	return health
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}
