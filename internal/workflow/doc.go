// Package workflow runs the tagging workers that drain the photo queue.
//
// A Manager starts worker.concurrency loops. Each loop claims one queue entry
// under a lease, marks the photo processing, runs the detector while a
// heartbeat keeps the lease alive, keeps detections at or above the
// confidence threshold and commits the resulting tags together with the
// acknowledgement. Failures count an attempt and release the entry, or move
// the photo to failed once max_attempts is reached. Store outages release the
// entry without counting an attempt.
//
// Loops in several processes may share one database; the atomic claim in the
// queue package is the only coordination between them. Idle loops poll with
// jitter and wake early when the notifications service reports a new upload.
package workflow
