package ingest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"phototag/internal/ingest"
	"phototag/internal/notifications"
	"phototag/internal/queue"
	"phototag/internal/services"
	"phototag/internal/testsupport"
)

func newPipeline(t *testing.T, opts ...ingest.Option) (*ingest.Pipeline, *queue.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return ingest.NewPipeline(store, cfg.Paths.LibraryDir, opts...), store, cfg.Paths.LibraryDir
}

func TestIngestStoresAndQueuesPhoto(t *testing.T) {
	notifier := notifications.NewLocal()
	defer notifier.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := notifier.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	pipeline, store, library := newPipeline(t, ingest.WithNotifier(notifier))
	id, err := pipeline.Ingest(ctx, ingest.Upload{
		Data:        testsupport.JPEGBytes(t),
		Filename:    "My Cat.jpg",
		CaptureDate: "2024-05-01",
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	photo, err := store.GetPhoto(ctx, id)
	if err != nil {
		t.Fatalf("GetPhoto failed: %v", err)
	}
	wantPath := filepath.Join(library, "2024-05-01", "My_Cat.jpg")
	if photo.StoragePath != wantPath || photo.Filename != "My_Cat.jpg" {
		t.Fatalf("unexpected location %s (%s)", photo.StoragePath, photo.Filename)
	}
	if photo.State != queue.StatePending || len(photo.Tags) != 0 || photo.Attempts != 0 {
		t.Fatalf("unexpected initial record %+v", photo)
	}
	if _, err := os.Stat(wantPath); err != nil {
		t.Fatalf("image not written: %v", err)
	}
	entry, err := store.GetEntry(ctx, id)
	if err != nil || entry == nil || entry.Claimed() {
		t.Fatalf("expected unclaimed entry, got %+v, %v", entry, err)
	}

	select {
	case msg := <-events:
		if msg.Event != notifications.EventPhotoEnqueued || msg.Payload["photo_id"] != id {
			t.Fatalf("unexpected event %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no enqueue notification published")
	}
}

func TestIngestFallsBackToUploadDate(t *testing.T) {
	clock := time.Date(2025, 2, 3, 10, 0, 0, 0, time.Local)
	pipeline, store, _ := newPipeline(t, ingest.WithClock(func() time.Time { return clock }))

	id, err := pipeline.Ingest(context.Background(), ingest.Upload{Data: testsupport.PNGBytes(t), Filename: "plain.png"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	photo, _ := store.GetPhoto(context.Background(), id)
	if photo.CaptureDate != "2025-02-03" {
		t.Fatalf("expected upload date, got %s", photo.CaptureDate)
	}
}

func TestIngestUsesEXIFCaptureDate(t *testing.T) {
	taken := time.Date(2021, 7, 4, 12, 30, 0, 0, time.UTC)
	data := testsupport.JPEGWithDateTimeOriginal(t, taken)

	got, ok := ingest.CaptureDate(data)
	if !ok {
		t.Fatal("expected EXIF capture date")
	}
	if got.Format("2006-01-02") != "2021-07-04" {
		t.Fatalf("unexpected capture date %v", got)
	}

	pipeline, store, library := newPipeline(t)
	id, err := pipeline.Ingest(context.Background(), ingest.Upload{Data: data, Filename: "beach.jpg"})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	photo, _ := store.GetPhoto(context.Background(), id)
	if photo.CaptureDate != "2021-07-04" {
		t.Fatalf("expected EXIF date folder, got %s", photo.CaptureDate)
	}
	if filepath.Dir(photo.StoragePath) != filepath.Join(library, "2021-07-04") {
		t.Fatalf("unexpected storage path %s", photo.StoragePath)
	}
}

func TestIngestRejectsInvalidUploads(t *testing.T) {
	pipeline, store, library := newPipeline(t)
	cases := []struct {
		name   string
		upload ingest.Upload
	}{
		{"disallowed extension", ingest.Upload{Data: testsupport.JPEGBytes(t), Filename: "cat.gif"}},
		{"no extension", ingest.Upload{Data: testsupport.JPEGBytes(t), Filename: "cat"}},
		{"empty filename", ingest.Upload{Data: testsupport.JPEGBytes(t), Filename: ""}},
		{"empty data", ingest.Upload{Filename: "cat.jpg"}},
		{"not an image", ingest.Upload{Data: []byte("hello world"), Filename: "cat.jpg"}},
		{"bad capture date", ingest.Upload{Data: testsupport.JPEGBytes(t), Filename: "cat.jpg", CaptureDate: "yesterday"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := pipeline.Ingest(context.Background(), tc.upload)
			var ingestErr *ingest.Error
			if !errors.As(err, &ingestErr) || ingestErr.Kind != ingest.KindInvalidFormat {
				t.Fatalf("expected invalid format error, got %v", err)
			}
			if !errors.Is(err, services.ErrInvalidFormat) {
				t.Fatalf("expected services.ErrInvalidFormat, got %v", err)
			}
		})
	}

	photos, err := store.FindPhotos(context.Background(), queue.Filter{})
	if err != nil || len(photos) != 0 {
		t.Fatalf("rejected uploads must not be recorded: %d, %v", len(photos), err)
	}
	if entries, _ := os.ReadDir(library); len(entries) != 0 {
		t.Fatalf("rejected uploads must not be written, found %d entries", len(entries))
	}
}

func TestIngestKeepsCollidingNames(t *testing.T) {
	pipeline, store, _ := newPipeline(t)
	ctx := context.Background()
	upload := ingest.Upload{Data: testsupport.JPEGBytes(t), Filename: "cat.jpg", CaptureDate: "2024-05-01"}

	first, err := pipeline.Ingest(ctx, upload)
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	second, err := pipeline.Ingest(ctx, upload)
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	a, _ := store.GetPhoto(ctx, first)
	b, _ := store.GetPhoto(ctx, second)
	if a.StoragePath == b.StoragePath {
		t.Fatalf("collision overwrote %s", a.StoragePath)
	}
	if b.Filename != "cat_1.jpg" {
		t.Fatalf("expected suffixed name, got %s", b.Filename)
	}
}

type failingStore struct {
	insertErr  error
	enqueueErr error
	inserted   []queue.NewPhoto
}

func (f *failingStore) InsertPhoto(_ context.Context, in queue.NewPhoto) (*queue.Photo, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserted = append(f.inserted, in)
	return &queue.Photo{ID: int64(len(f.inserted)), Filename: in.Filename, StoragePath: in.StoragePath, CaptureDate: in.CaptureDate, State: queue.StatePending}, nil
}

func (f *failingStore) Enqueue(context.Context, int64) (bool, error) {
	if f.enqueueErr != nil {
		return false, f.enqueueErr
	}
	return true, nil
}

func TestIngestReportsStorageFailures(t *testing.T) {
	library := t.TempDir()
	upload := ingest.Upload{Data: testsupport.JPEGBytes(t), Filename: "cat.jpg", CaptureDate: "2024-05-01"}

	insertFails := &failingStore{insertErr: services.Wrap(services.ErrStoreUnavailable, "store", "insert", "", errors.New("database is locked"))}
	_, err := ingest.NewPipeline(insertFails, library).Ingest(context.Background(), upload)
	var ingestErr *ingest.Error
	if !errors.As(err, &ingestErr) || ingestErr.Kind != ingest.KindStorageFailure {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if !errors.Is(err, services.ErrStorageFailure) || !errors.Is(err, services.ErrStoreUnavailable) {
		t.Fatalf("expected both markers to match, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(library, "2024-05-01", "cat.jpg")); !os.IsNotExist(statErr) {
		t.Fatalf("image should be removed after insert failure, stat err=%v", statErr)
	}

	enqueueFails := &failingStore{enqueueErr: errors.New("connection refused")}
	_, err = ingest.NewPipeline(enqueueFails, library).Ingest(context.Background(), upload)
	if !errors.As(err, &ingestErr) || ingestErr.Kind != ingest.KindStorageFailure {
		t.Fatalf("expected storage failure on enqueue, got %v", err)
	}
	if len(enqueueFails.inserted) != 1 {
		t.Fatalf("record should exist for the reconciliation sweep, got %d", len(enqueueFails.inserted))
	}

	readOnly := filepath.Join(t.TempDir(), "file-not-dir")
	if err := os.WriteFile(readOnly, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = ingest.NewPipeline(&failingStore{}, readOnly).Ingest(context.Background(), upload)
	if !errors.As(err, &ingestErr) || ingestErr.Kind != ingest.KindStorageFailure {
		t.Fatalf("expected storage failure on write, got %v", err)
	}
}

func TestIngestFile(t *testing.T) {
	pipeline, _, _ := newPipeline(t)
	src := filepath.Join(t.TempDir(), "holiday.jpg")
	testsupport.WriteJPEG(t, src)

	photo, err := pipeline.IngestFile(context.Background(), src, "2023-12-25")
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if photo.Filename != "holiday.jpg" || photo.CaptureDate != "2023-12-25" {
		t.Fatalf("unexpected photo %+v", photo)
	}
}
