// Package notifications carries pipeline events between the upload surface
// and tagging workers.
//
// Ingest publishes EventPhotoEnqueued after a photo is queued; idle workers
// subscribe and poll immediately instead of waiting out their interval. With
// a Redis address configured the events travel over pub/sub so that separate
// worker processes wake too; otherwise an in-process broadcaster is used.
//
// Notifications are hints only. The queue table stays the source of truth
// and workers keep polling when no event arrives.
package notifications
