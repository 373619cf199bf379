package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const captureDateLayout = "2006-01-02"

// InsertPhoto persists a new pending photo with no tags and zero attempts.
func (s *Store) InsertPhoto(ctx context.Context, in NewPhoto) (*Photo, error) {
	if strings.TrimSpace(in.StoragePath) == "" {
		return nil, errors.New("insert photo: storage path is required")
	}
	if _, err := time.Parse(captureDateLayout, in.CaptureDate); err != nil {
		return nil, fmt.Errorf("insert photo: capture date %q is not YYYY-MM-DD", in.CaptureDate)
	}

	now := toMillis(s.now())
	var id int64
	err := retryOnBusy(ensureContext(ctx), func() error {
		return s.queryRow(ctx,
			`INSERT INTO photos (filename, storage_path, capture_date, state, attempts, created_at, updated_at)
			 VALUES (?, ?, ?, ?, 0, ?, ?) RETURNING id`,
			in.Filename, in.StoragePath, in.CaptureDate, string(StatePending), now, now,
		).Scan(&id)
	})
	if err != nil {
		return nil, classify("insert photo", err)
	}
	return s.GetPhoto(ctx, id)
}

// GetPhoto fetches a photo with its tags.
func (s *Store) GetPhoto(ctx context.Context, id int64) (*Photo, error) {
	photo, err := scanPhoto(s.queryRow(ctx, "SELECT "+photoColumns+" FROM photos WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPhotoNotFound
	}
	if err != nil {
		return nil, classify("get photo", err)
	}
	if err := s.loadTags(ctx, []*Photo{photo}); err != nil {
		return nil, classify("load tags", err)
	}
	return photo, nil
}

// GetPhotoByPath looks a photo up by its storage path.
func (s *Store) GetPhotoByPath(ctx context.Context, storagePath string) (*Photo, error) {
	photo, err := scanPhoto(s.queryRow(ctx, "SELECT "+photoColumns+" FROM photos WHERE storage_path = ?", storagePath))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPhotoNotFound
	}
	if err != nil {
		return nil, classify("get photo by path", err)
	}
	if err := s.loadTags(ctx, []*Photo{photo}); err != nil {
		return nil, classify("load tags", err)
	}
	return photo, nil
}

// FindPhotos returns photos matching every populated filter field, newest
// capture date first. A tag filter matches photos carrying any listed tag;
// filter tags are normalized like stored tags, so matching ignores case.
func (s *Store) FindPhotos(ctx context.Context, filter Filter) ([]*Photo, error) {
	var (
		clauses []string
		args    []any
	)
	if date := strings.TrimSpace(filter.CaptureDate); date != "" {
		clauses = append(clauses, "p.capture_date = ?")
		args = append(args, date)
	}
	if tags := NormalizeTags(filter.Tags); len(tags) > 0 {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM photo_tags t WHERE t.photo_id = p.id AND t.tag IN ("+makePlaceholders(len(tags))+"))")
		for _, tag := range tags {
			args = append(args, tag)
		}
	}
	if len(filter.States) > 0 {
		clauses = append(clauses, "p.state IN ("+makePlaceholders(len(filter.States))+")")
		for _, state := range filter.States {
			args = append(args, string(state))
		}
	}

	query := "SELECT " + prefixColumns("p.", photoColumns) + " FROM photos p"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY p.capture_date DESC, p.id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, classify("find photos", err)
	}
	defer rows.Close()

	var photos []*Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, classify("scan photo", err)
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("find photos", err)
	}
	if err := s.loadTags(ctx, photos); err != nil {
		return nil, classify("load tags", err)
	}
	return photos, nil
}

// DeletePhoto removes a photo, its tags and any queue entry.
func (s *Store) DeletePhoto(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	err := s.withTx(ctx, func(tx *txn) error {
		if _, err := tx.exec(ctx, "DELETE FROM queue_entries WHERE photo_id = ?", id); err != nil {
			return err
		}
		if _, err := tx.exec(ctx, "DELETE FROM photo_tags WHERE photo_id = ?", id); err != nil {
			return err
		}
		res, err := tx.exec(ctx, "DELETE FROM photos WHERE id = ?", id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrPhotoNotFound
		}
		return nil
	})
	return classify("delete photo", err)
}

func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = prefix + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
