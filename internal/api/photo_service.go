package api

import (
	"context"
	"errors"

	"phototag/internal/queue"
)

// PhotoReader abstracts the store reads needed for API queries.
type PhotoReader interface {
	FindPhotos(ctx context.Context, filter queue.Filter) ([]*queue.Photo, error)
	GetPhoto(ctx context.Context, id int64) (*queue.Photo, error)
	Stats(ctx context.Context) (queue.Stats, error)
	ListEntries(ctx context.Context, limit int) ([]*queue.EntryView, error)
}

// PhotoService exposes read-only photo and queue queries returning DTOs.
type PhotoService struct {
	store PhotoReader
}

// NewPhotoService constructs a PhotoService around the provided reader.
func NewPhotoService(store PhotoReader) *PhotoService {
	if store == nil {
		return nil
	}
	return &PhotoService{store: store}
}

// Find returns photos matching the filter.
func (s *PhotoService) Find(ctx context.Context, filter queue.Filter) ([]Photo, error) {
	if s == nil || s.store == nil {
		return nil, errors.New("photo store unavailable")
	}
	photos, err := s.store.FindPhotos(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FromPhotos(photos), nil
}

// Describe fetches a single photo.
func (s *PhotoService) Describe(ctx context.Context, id int64) (*Photo, error) {
	if s == nil || s.store == nil {
		return nil, errors.New("photo store unavailable")
	}
	photo, err := s.store.GetPhoto(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromPhoto(photo)
	return &dto, nil
}

// Stats returns queue summary counts.
func (s *PhotoService) Stats(ctx context.Context) (QueueStats, error) {
	if s == nil || s.store == nil {
		return QueueStats{}, errors.New("photo store unavailable")
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return QueueStats{}, err
	}
	return FromStats(stats), nil
}

// Entries lists queue rows, oldest first.
func (s *PhotoService) Entries(ctx context.Context, limit int) ([]QueueEntry, error) {
	if s == nil || s.store == nil {
		return nil, errors.New("photo store unavailable")
	}
	views, err := s.store.ListEntries(ctx, limit)
	if err != nil {
		return nil, err
	}
	return FromEntryViews(views), nil
}
