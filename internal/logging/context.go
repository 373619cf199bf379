package logging

import (
	"context"
	"log/slog"

	"phototag/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldPhotoID is the standardized structured logging key for photo identifiers.
	FieldPhotoID = "photo_id"
	// FieldWorkerID is the standardized structured logging key for lease owners.
	FieldWorkerID = "worker_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering (e.g. "lease_lost").
	FieldEventType = "event_type"
	// FieldErrorHint carries a short operator-facing next step.
	FieldErrorHint = "error_hint"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.PhotoIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldPhotoID, id))
	}
	if worker, ok := services.WorkerIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldWorkerID, worker))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
