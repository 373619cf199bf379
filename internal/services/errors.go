package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDetectionFailed marks a detector call that produced no usable result.
	ErrDetectionFailed = errors.New("detection failed")
	// ErrStoreUnavailable marks metadata store or queue operations that could
	// not reach the database (busy, locked, connection refused).
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrExhausted marks a photo whose processing attempts reached the limit.
	ErrExhausted = errors.New("attempts exhausted")
	// ErrInvalidFormat marks uploads that are not a supported image.
	ErrInvalidFormat = errors.New("invalid format")
	// ErrStorageFailure marks uploads whose bytes or records could not be persisted.
	ErrStorageFailure = errors.New("storage failure")
	ErrConfiguration  = errors.New("configuration error")
	ErrNotFound       = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrDetectionFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// CountsAttempt reports whether a processing failure should consume one of the
// photo's attempts. Store outages are retried without penalising the photo.
func CountsAttempt(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrStoreUnavailable)
}

// ErrorHint returns a short operator-facing hint for a classified error.
func ErrorHint(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStoreUnavailable):
		return "check database availability; the job stays queued"
	case errors.Is(err, ErrDetectionFailed):
		return "check the detector endpoint or model credentials"
	case errors.Is(err, ErrExhausted):
		return "inspect last_error and run 'phototag queue retry' once fixed"
	case errors.Is(err, ErrInvalidFormat):
		return "upload a png, jpeg or webp image"
	case errors.Is(err, ErrStorageFailure):
		return "check library_dir permissions and free space"
	case errors.Is(err, ErrConfiguration):
		return "review the configuration file"
	default:
		return "check logs for details"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{component, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
