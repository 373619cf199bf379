package queue_test

import (
	"context"
	"testing"
	"time"

	"phototag/internal/queue"
	"phototag/internal/testsupport"
)

func TestRequeueOrphansRestoresMissingEntries(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	clock := testsupport.NewClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	store.SetClock(clock.Now)
	ctx := context.Background()

	orphan, err := store.InsertPhoto(ctx, queue.NewPhoto{
		Filename:    "orphan.jpg",
		StoragePath: "/library/2024-05-01/orphan.jpg",
		CaptureDate: "2024-05-01",
	})
	if err != nil {
		t.Fatalf("InsertPhoto failed: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Orphans != 1 || health.Healthy() {
		t.Fatalf("expected one orphan, got %+v", health)
	}

	if n, err := store.RequeueOrphans(ctx, time.Minute); err != nil || n != 0 {
		t.Fatalf("photo inside grace window must be left alone: %d, %v", n, err)
	}
	clock.Advance(2 * time.Minute)
	n, err := store.RequeueOrphans(ctx, time.Minute)
	if err != nil {
		t.Fatalf("RequeueOrphans failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one requeued photo, got %d", n)
	}
	entry, err := store.GetEntry(ctx, orphan.ID)
	if err != nil || entry == nil {
		t.Fatalf("expected entry for orphan, got %+v, %v", entry, err)
	}
	health, _ = store.Health(ctx)
	if !health.Healthy() {
		t.Fatalf("expected healthy store, got %+v", health)
	}
}

func TestResetExpiredLeasesReturnsPhotoToPending(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	clock := testsupport.NewClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	store.SetClock(clock.Now)
	ctx := context.Background()
	photo := testsupport.InsertPhoto(t, store, "2024-05-01")

	if _, err := store.Claim(ctx, "w1", time.Minute); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := store.MarkProcessing(ctx, photo.ID, "w1"); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	if n, _ := store.ResetExpiredLeases(ctx); n != 0 {
		t.Fatalf("live lease must not be reset, got %d", n)
	}

	clock.Advance(2 * time.Minute)
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.ExpiredLeases != 1 || stats.Leased != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	n, err := store.ResetExpiredLeases(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ResetExpiredLeases = %d, %v", n, err)
	}
	got, _ := store.GetPhoto(ctx, photo.ID)
	if got.State != queue.StatePending {
		t.Fatalf("expected pending, got %s", got.State)
	}
	entry, _ := store.GetEntry(ctx, photo.ID)
	if entry == nil || entry.Claimed() {
		t.Fatalf("expected unleased entry, got %+v", entry)
	}
}

func TestRetryFailedResetsAttempts(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	photo := testsupport.InsertPhoto(t, store, "2024-05-01")

	if _, err := store.Claim(ctx, "w1", time.Hour); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if _, err := store.RecordAttempt(ctx, photo.ID, "w1", "boom"); err != nil {
		t.Fatalf("RecordAttempt failed: %v", err)
	}
	if err := store.DeadLetter(ctx, photo.ID, "w1", ""); err != nil {
		t.Fatalf("DeadLetter failed: %v", err)
	}

	n, err := store.RetryFailed(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RetryFailed = %d, %v", n, err)
	}
	got, _ := store.GetPhoto(ctx, photo.ID)
	if got.State != queue.StatePending || got.Attempts != 0 || got.LastError != "" {
		t.Fatalf("unexpected retried photo %+v", got)
	}
	if entry, _ := store.GetEntry(ctx, photo.ID); entry == nil {
		t.Fatal("expected retried photo to be enqueued")
	}
	if n, _ := store.Requeue(ctx, photo.ID); n != 0 {
		t.Fatalf("pending photo must not be requeued twice, got %d", n)
	}
}

func TestStatsCountsStates(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	first := testsupport.InsertPhoto(t, store, "2024-05-01")
	testsupport.InsertPhoto(t, store, "2024-05-02")

	if _, err := store.Claim(ctx, "w1", time.Hour); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if err := store.CompleteTagging(ctx, first.ID, "w1", []string{"cat"}); err != nil {
		t.Fatalf("CompleteTagging failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.States[queue.StateTagged] != 1 || stats.States[queue.StatePending] != 1 {
		t.Fatalf("unexpected state counts %+v", stats.States)
	}
	if stats.QueueDepth != 1 || stats.OldestEntry == nil {
		t.Fatalf("unexpected queue stats %+v", stats)
	}
	if err := store.CheckHealth(ctx); err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
}
