package services

import "context"

type contextKey string

const (
	photoIDKey   contextKey = "photo_id"
	workerIDKey  contextKey = "worker_id"
	requestIDKey contextKey = "request_id"
)

// WithPhotoID annotates context with the photo identifier being processed.
func WithPhotoID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, photoIDKey, id)
}

// PhotoIDFromContext extracts the photo identifier if present.
func PhotoIDFromContext(ctx context.Context) (int64, bool) {
	switch val := ctx.Value(photoIDKey).(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithWorkerID annotates context with the lease owner identity of a tagging loop.
func WithWorkerID(ctx context.Context, workerID string) context.Context {
	if workerID == "" {
		return ctx
	}
	return context.WithValue(ctx, workerIDKey, workerID)
}

// WorkerIDFromContext returns the worker identity if present.
func WorkerIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(workerIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
