package detection

import (
	"context"
	"fmt"
	"io"
	"strings"

	"phototag/internal/config"
	"phototag/internal/services"
)

// Detection is one object label reported by a detector.
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Detector runs object detection over a stored image. Implementations must
// be safe for concurrent use by several workers.
type Detector interface {
	Detect(ctx context.Context, storagePath string) ([]Detection, error)
}

// Health summarises a detector probe for status output.
type Health struct {
	Provider string
	Endpoint string
	Ready    bool
	Detail   string
}

// HealthChecker is implemented by detectors that can probe their backend.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}

// Func adapts a plain function into a Detector.
type Func func(ctx context.Context, storagePath string) ([]Detection, error)

// Detect calls f.
func (f Func) Detect(ctx context.Context, storagePath string) ([]Detection, error) {
	return f(ctx, storagePath)
}

// New builds the detector selected by cfg.Detector.Provider. The returned
// closer releases backend clients and is never nil.
func New(ctx context.Context, cfg *config.Config) (Detector, io.Closer, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("%w: detector config unavailable", services.ErrConfiguration)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Detector.Provider)) {
	case config.DetectorHTTP, "":
		return NewHTTPDetector(cfg.Detector.URL, cfg.Detector.Timeout()), nopCloser{}, nil
	case config.DetectorGemini:
		det, err := NewGeminiDetector(ctx, cfg.Detector.GeminiAPIKey, cfg.Detector.GeminiModel, cfg.Detector.Timeout())
		if err != nil {
			return nil, nil, err
		}
		return det, det, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown detector provider %q", services.ErrConfiguration, cfg.Detector.Provider)
	}
}

// CheckHealth probes d when it supports health checks. Detectors without a
// probe report ready.
func CheckHealth(ctx context.Context, d Detector) Health {
	if checker, ok := d.(HealthChecker); ok {
		return checker.HealthCheck(ctx)
	}
	return Health{Provider: "func", Ready: true, Detail: "no probe"}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func detectionError(op, message string, err error) error {
	return services.Wrap(services.ErrDetectionFailed, "detector", op, message, err)
}
