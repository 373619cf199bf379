package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Enqueue adds an unclaimed entry for the photo. It reports false when an
// entry already exists, which callers treat as success.
func (s *Store) Enqueue(ctx context.Context, photoID int64) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`INSERT INTO queue_entries (photo_id, enqueued_at, claim_count) VALUES (?, ?, 0)
		 ON CONFLICT (photo_id) DO NOTHING`,
		photoID, toMillis(s.now()),
	)
	if err != nil {
		return false, classify("enqueue", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, classify("enqueue", err)
	}
	return n == 1, nil
}

// Claim atomically leases one claimable entry to workerID. An entry is
// claimable when it has no lease or its lease has expired, and any retry
// delay set by ReleaseAfter has passed. Claim returns nil, nil when nothing
// is claimable.
func (s *Store) Claim(ctx context.Context, workerID string, lease time.Duration) (*Entry, error) {
	if strings.TrimSpace(workerID) == "" {
		return nil, errors.New("claim: worker id is required")
	}
	if lease <= 0 {
		return nil, errors.New("claim: lease duration must be positive")
	}
	now := s.now()
	nowMs := toMillis(now)
	expiry := toMillis(now.Add(lease))

	query := s.dialect.claimQuery()

	var entry *Entry
	err := retryOnBusy(ensureContext(ctx), func() error {
		var scanErr error
		entry, scanErr = scanEntry(s.queryRow(ctx, query, workerID, expiry, nowMs, nowMs, nowMs, nowMs))
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("claim", err)
	}
	return entry, nil
}

// ExtendLease renews a lease the caller still owns.
func (s *Store) ExtendLease(ctx context.Context, photoID int64, workerID string, lease time.Duration) (time.Time, error) {
	expiry := s.now().Add(lease)
	res, err := s.execWithRetry(ctx,
		"UPDATE queue_entries SET lease_expiry = ? WHERE photo_id = ? AND lease_owner = ?",
		toMillis(expiry), photoID, workerID,
	)
	if err != nil {
		return time.Time{}, classify("extend lease", err)
	}
	if err := requireRow(res, "extend lease"); err != nil {
		return time.Time{}, err
	}
	return fromMillis(toMillis(expiry)), nil
}

// MarkProcessing moves a claimed photo into the processing state.
func (s *Store) MarkProcessing(ctx context.Context, photoID int64, workerID string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE photos SET state = ?, updated_at = ?
		 WHERE id = ? AND EXISTS (SELECT 1 FROM queue_entries q WHERE q.photo_id = ? AND q.lease_owner = ?)`,
		string(StateProcessing), toMillis(s.now()), photoID, photoID, workerID,
	)
	if err != nil {
		return classify("mark processing", err)
	}
	return requireRow(res, "mark processing")
}

// Acknowledge removes the entry after successful processing. It fails with
// ErrStaleLease when workerID no longer owns the lease.
func (s *Store) Acknowledge(ctx context.Context, photoID int64, workerID string) error {
	res, err := s.execWithRetry(ctx,
		"DELETE FROM queue_entries WHERE photo_id = ? AND lease_owner = ?",
		photoID, workerID,
	)
	if err != nil {
		return classify("acknowledge", err)
	}
	return requireRow(res, "acknowledge")
}

// Release clears the lease so the entry is immediately claimable again and
// returns the photo to pending.
func (s *Store) Release(ctx context.Context, photoID int64, workerID string) error {
	return s.ReleaseAfter(ctx, photoID, workerID, 0)
}

// ReleaseAfter is Release with a retry delay: the entry stays unclaimable
// for delay. A non-positive delay behaves like Release.
func (s *Store) ReleaseAfter(ctx context.Context, photoID int64, workerID string, delay time.Duration) error {
	ctx = ensureContext(ctx)
	var retryAt int64
	if delay > 0 {
		retryAt = toMillis(s.now().Add(delay))
	}
	err := s.withTx(ctx, func(tx *txn) error {
		res, err := tx.exec(ctx,
			"UPDATE queue_entries SET lease_owner = NULL, lease_expiry = NULL, retry_at = ? WHERE photo_id = ? AND lease_owner = ?",
			retryAt, photoID, workerID,
		)
		if err != nil {
			return err
		}
		if err := requireRow(res, "release"); err != nil {
			return err
		}
		_, err = tx.exec(ctx,
			"UPDATE photos SET state = ?, updated_at = ? WHERE id = ? AND state = ?",
			string(StatePending), toMillis(s.now()), photoID, string(StateProcessing),
		)
		return err
	})
	return classify("release", err)
}

// RecordAttempt counts one failed processing attempt against a photo whose
// lease workerID holds, and returns the new attempt total.
func (s *Store) RecordAttempt(ctx context.Context, photoID int64, workerID, reason string) (int, error) {
	var attempts int
	err := retryOnBusy(ensureContext(ctx), func() error {
		return s.queryRow(ctx,
			`UPDATE photos SET attempts = attempts + 1, last_error = ?, updated_at = ?
			 WHERE id = ? AND EXISTS (SELECT 1 FROM queue_entries q WHERE q.photo_id = ? AND q.lease_owner = ?)
			 RETURNING attempts`,
			nullableString(reason), toMillis(s.now()), photoID, photoID, workerID,
		).Scan(&attempts)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrStaleLease
	}
	if err != nil {
		return 0, classify("record attempt", err)
	}
	return attempts, nil
}

// DeadLetter removes the entry and marks the photo failed. A non-empty
// workerID requires the caller to hold the lease; an empty workerID is an
// operator action and applies unconditionally.
func (s *Store) DeadLetter(ctx context.Context, photoID int64, workerID, reason string) error {
	ctx = ensureContext(ctx)
	err := s.withTx(ctx, func(tx *txn) error {
		if workerID != "" {
			res, err := tx.exec(ctx, "DELETE FROM queue_entries WHERE photo_id = ? AND lease_owner = ?", photoID, workerID)
			if err != nil {
				return err
			}
			if err := requireRow(res, "dead letter"); err != nil {
				return err
			}
		} else if _, err := tx.exec(ctx, "DELETE FROM queue_entries WHERE photo_id = ?", photoID); err != nil {
			return err
		}
		res, err := tx.exec(ctx,
			"UPDATE photos SET state = ?, last_error = COALESCE(?, last_error), updated_at = ? WHERE id = ?",
			string(StateFailed), nullableString(reason), toMillis(s.now()), photoID,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrPhotoNotFound
		}
		return nil
	})
	return classify("dead letter", err)
}

// CompleteTagging writes the tag set, marks the photo tagged and removes
// its queue entry in one transaction. If workerID no longer owns the lease
// nothing is written and ErrStaleLease is returned.
func (s *Store) CompleteTagging(ctx context.Context, photoID int64, workerID string, tags []string) error {
	ctx = ensureContext(ctx)
	tags = NormalizeTags(tags)
	err := s.withTx(ctx, func(tx *txn) error {
		res, err := tx.exec(ctx, "DELETE FROM queue_entries WHERE photo_id = ? AND lease_owner = ?", photoID, workerID)
		if err != nil {
			return err
		}
		if err := requireRow(res, "complete tagging"); err != nil {
			return err
		}
		if _, err := tx.exec(ctx, "DELETE FROM photo_tags WHERE photo_id = ?", photoID); err != nil {
			return err
		}
		for _, tag := range tags {
			if _, err := tx.exec(ctx,
				"INSERT INTO photo_tags (photo_id, tag) VALUES (?, ?) ON CONFLICT (photo_id, tag) DO NOTHING",
				photoID, tag,
			); err != nil {
				return err
			}
		}
		now := toMillis(s.now())
		_, err = tx.exec(ctx,
			"UPDATE photos SET state = ?, last_error = NULL, updated_at = ?, tagged_at = ? WHERE id = ?",
			string(StateTagged), now, now, photoID,
		)
		return err
	})
	return classify("complete tagging", err)
}

// GetEntry returns the queue entry for a photo, or nil when none exists.
func (s *Store) GetEntry(ctx context.Context, photoID int64) (*Entry, error) {
	entry, err := scanEntry(s.queryRow(ctx, "SELECT "+entryColumns+" FROM queue_entries WHERE photo_id = ?", photoID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get entry", err)
	}
	return entry, nil
}

// ListEntries returns queue entries joined with photo details, oldest first.
func (s *Store) ListEntries(ctx context.Context, limit int) ([]*EntryView, error) {
	query := `SELECT q.photo_id, q.lease_owner, q.lease_expiry, q.enqueued_at, q.claim_count, q.retry_at, p.filename, p.state, p.attempts
		FROM queue_entries q JOIN photos p ON p.id = q.photo_id
		ORDER BY q.enqueued_at, q.photo_id`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, classify("list entries", err)
	}
	defer rows.Close()

	var views []*EntryView
	for rows.Next() {
		var (
			view     EntryView
			owner    sql.NullString
			expiry   sql.NullInt64
			enqueued int64
			retryAt  int64
			state    string
		)
		if err := rows.Scan(&view.PhotoID, &owner, &expiry, &enqueued, &view.ClaimCount, &retryAt, &view.Filename, &state, &view.Attempts); err != nil {
			return nil, classify("scan entry", err)
		}
		view.LeaseOwner = owner.String
		view.LeaseExpiry = nullableMillis(expiry)
		view.EnqueuedAt = fromMillis(enqueued)
		view.RetryAt = retryMillis(retryAt)
		view.State = State(state)
		views = append(views, &view)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list entries", err)
	}
	return views, nil
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return ErrStaleLease
	}
	return nil
}
