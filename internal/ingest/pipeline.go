package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"phototag/internal/fileutil"
	"phototag/internal/logging"
	"phototag/internal/notifications"
	"phototag/internal/queue"
	"phototag/internal/services"
	"phototag/internal/textutil"
)

// Upload is one image handed to the pipeline.
type Upload struct {
	Data     []byte
	Filename string
	// CaptureDate overrides EXIF when set (YYYY-MM-DD).
	CaptureDate string
}

// PhotoStore is the subset of queue.Store the pipeline needs.
type PhotoStore interface {
	InsertPhoto(ctx context.Context, in queue.NewPhoto) (*queue.Photo, error)
	Enqueue(ctx context.Context, photoID int64) (bool, error)
}

// Pipeline validates uploads, files them under the library by capture date,
// records them and queues them for tagging.
type Pipeline struct {
	store      PhotoStore
	libraryDir string
	notifier   notifications.Service
	logger     *slog.Logger
	now        func() time.Time
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithNotifier publishes photo_enqueued events after each successful ingest.
func WithNotifier(n notifications.Service) Option {
	return func(p *Pipeline) {
		p.notifier = n
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithClock replaces the time source used when no capture date is known.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline constructs an ingestion pipeline writing under libraryDir.
func NewPipeline(store PhotoStore, libraryDir string, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      store,
		libraryDir: libraryDir,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "ingest")
	return p
}

// Ingest stores the upload and queues it, returning the new photo id. Any
// failure is an *Error of kind InvalidFormat or StorageFailure.
func (p *Pipeline) Ingest(ctx context.Context, upload Upload) (int64, error) {
	photo, err := p.Accept(ctx, upload)
	if err != nil {
		return 0, err
	}
	return photo.ID, nil
}

// Accept is Ingest returning the stored record.
func (p *Pipeline) Accept(ctx context.Context, upload Upload) (*queue.Photo, error) {
	if _, err := Validate(upload.Filename, upload.Data); err != nil {
		return nil, err
	}

	captureDate, err := p.resolveCaptureDate(upload)
	if err != nil {
		return nil, err
	}

	name := storedName(upload.Filename)
	dir := filepath.Join(p.libraryDir, captureDate)
	path, err := fileutil.WriteUnique(dir, name, upload.Data, 0o644)
	if err != nil {
		return nil, storageFailure("write image", err)
	}

	photo, err := p.store.InsertPhoto(ctx, queue.NewPhoto{
		Filename:    filepath.Base(path),
		StoragePath: path,
		CaptureDate: captureDate,
	})
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			p.logger.Warn("failed to remove image after insert failure",
				logging.String("path", path),
				logging.Error(rmErr),
			)
		}
		return nil, storageFailure("record photo", err)
	}

	ctx = services.WithPhotoID(ctx, photo.ID)
	logger := logging.WithContext(ctx, p.logger)
	if _, err := p.store.Enqueue(ctx, photo.ID); err != nil {
		logging.ErrorWithContext(logger, "photo stored but not queued", "enqueue_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the reconciliation sweep re-enqueues it"),
		)
		return nil, storageFailure(fmt.Sprintf("enqueue photo %d", photo.ID), err)
	}

	logger.Info("photo ingested",
		logging.String("filename", photo.Filename),
		logging.String("capture_date", photo.CaptureDate),
		logging.String(logging.FieldEventType, "photo_ingested"),
	)
	p.publish(ctx, photo)
	return photo, nil
}

// IngestFile reads path from disk and ingests it under its base name.
func (p *Pipeline) IngestFile(ctx context.Context, path, captureDate string) (*queue.Photo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, invalidFormat("read "+path, err)
	}
	return p.Accept(ctx, Upload{Data: data, Filename: filepath.Base(path), CaptureDate: captureDate})
}

func (p *Pipeline) resolveCaptureDate(upload Upload) (string, error) {
	if strings.TrimSpace(upload.CaptureDate) != "" {
		return ParseCaptureDate(upload.CaptureDate)
	}
	if taken, ok := CaptureDate(upload.Data); ok {
		return taken.Format(dateLayout), nil
	}
	return p.now().Format(dateLayout), nil
}

func (p *Pipeline) publish(ctx context.Context, photo *queue.Photo) {
	if p.notifier == nil {
		return
	}
	err := p.notifier.Publish(ctx, notifications.EventPhotoEnqueued, notifications.Payload{
		"photo_id":     photo.ID,
		"filename":     photo.Filename,
		"capture_date": photo.CaptureDate,
	})
	if err != nil {
		p.logger.Debug("enqueue notification not delivered", logging.Error(err))
	}
}

// storedName sanitizes the client filename, keeping its extension even when
// the stem sanitizes away.
func storedName(filename string) string {
	ext := textutil.Extension(filename)
	name := textutil.SanitizeFileName(filename)
	if textutil.Extension(name) != ext || strings.TrimSuffix(name, "."+ext) == "" {
		return "upload." + ext
	}
	return name
}
