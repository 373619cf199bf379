// Package api defines wire-format types and converters for the HTTP API and
// the CLI's JSON output. It translates queue models into transport-friendly
// DTOs so that clients never couple to internal types.
//
// # Key Types
//
// Photo: a photo record with its tags and lifecycle state.
//
// QueueEntry: a queue row joined with its photo, including lease details.
//
// QueueStats: per-state counts plus queue depth and lease occupancy.
//
// UploadResponse: the POST /upload reply ({"message","filename","date_taken","id"}).
//
// # Design Notes
//
// JSON keys are snake_case to match the upload contract existing clients
// already parse. Timestamps use RFC3339 with milliseconds. Tags are always
// emitted as an array, never null.
package api
