// Package detection wraps the object-detection backends that turn a stored
// photo into labelled detections.
//
// Two providers exist: an HTTP sidecar that accepts a multipart upload and a
// Gemini vision model. Both report failures wrapped with
// services.ErrDetectionFailed so the workflow can count the attempt.
package detection
