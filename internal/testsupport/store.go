package testsupport

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"phototag/internal/config"
	"phototag/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

var photoSeq atomic.Int64

// InsertPhoto creates a pending photo record (without writing any file) and
// enqueues it.
func InsertPhoto(t testing.TB, store *queue.Store, captureDate string) *queue.Photo {
	t.Helper()

	n := photoSeq.Add(1)
	name := fmt.Sprintf("photo-%d.jpg", n)
	photo, err := store.InsertPhoto(context.Background(), queue.NewPhoto{
		Filename:    name,
		StoragePath: filepath.Join("/library", captureDate, name),
		CaptureDate: captureDate,
	})
	if err != nil {
		t.Fatalf("store.InsertPhoto: %v", err)
	}
	if _, err := store.Enqueue(context.Background(), photo.ID); err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return photo
}

// Clock is a manually advanced time source for lease tests.
type Clock struct {
	now atomic.Int64
}

// NewClock returns a clock frozen at start.
func NewClock(start time.Time) *Clock {
	c := &Clock{}
	c.now.Store(start.UnixNano())
	return c
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	return time.Unix(0, c.now.Load())
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.now.Add(int64(d))
}
