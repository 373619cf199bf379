package queue

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"time"
)

const photoColumns = "id, filename, storage_path, capture_date, state, attempts, last_error, created_at, updated_at, tagged_at"

const entryColumns = "photo_id, lease_owner, lease_expiry, enqueued_at, claim_count, retry_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(scanner rowScanner) (*Photo, error) {
	var (
		photo     Photo
		state     string
		lastError sql.NullString
		created   int64
		updated   int64
		tagged    sql.NullInt64
	)
	if err := scanner.Scan(
		&photo.ID,
		&photo.Filename,
		&photo.StoragePath,
		&photo.CaptureDate,
		&state,
		&photo.Attempts,
		&lastError,
		&created,
		&updated,
		&tagged,
	); err != nil {
		return nil, err
	}
	photo.State = State(state)
	photo.LastError = lastError.String
	photo.CreatedAt = fromMillis(created)
	photo.UpdatedAt = fromMillis(updated)
	photo.TaggedAt = nullableMillis(tagged)
	return &photo, nil
}

func scanEntry(scanner rowScanner) (*Entry, error) {
	var (
		entry    Entry
		owner    sql.NullString
		expiry   sql.NullInt64
		enqueued int64
		retryAt  int64
	)
	if err := scanner.Scan(&entry.PhotoID, &owner, &expiry, &enqueued, &entry.ClaimCount, &retryAt); err != nil {
		return nil, err
	}
	entry.LeaseOwner = owner.String
	entry.LeaseExpiry = nullableMillis(expiry)
	entry.EnqueuedAt = fromMillis(enqueued)
	entry.RetryAt = retryMillis(retryAt)
	return &entry, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullableMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

// retryMillis maps the retry_at column, where 0 means no backoff, to a
// nullable time.
func retryMillis(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := fromMillis(ms)
	return &t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// tagBatchSize bounds the photo ids bound into one tag query. SQLite allows
// 32766 variables per statement and Postgres 65535.
var tagBatchSize = 500

// loadTags fills Tags on each photo, querying tagBatchSize photos at a time.
func (s *Store) loadTags(ctx context.Context, photos []*Photo) error {
	byID := make(map[int64]*Photo, len(photos))
	for _, p := range photos {
		p.Tags = []string{}
		byID[p.ID] = p
	}
	for batch := range slices.Chunk(photos, tagBatchSize) {
		if err := s.loadTagBatch(ctx, batch, byID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadTagBatch(ctx context.Context, batch []*Photo, byID map[int64]*Photo) error {
	args := make([]any, len(batch))
	for i, p := range batch {
		args[i] = p.ID
	}
	rows, err := s.query(ctx,
		"SELECT photo_id, tag FROM photo_tags WHERE photo_id IN ("+makePlaceholders(len(args))+") ORDER BY photo_id, tag",
		args...,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id  int64
			tag string
		)
		if err := rows.Scan(&id, &tag); err != nil {
			return err
		}
		if p, ok := byID[id]; ok {
			p.Tags = append(p.Tags, tag)
		}
	}
	return rows.Err()
}

// NormalizeTags trims, lower-cases, de-duplicates and sorts tag labels.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	slices.Sort(out)
	return out
}
