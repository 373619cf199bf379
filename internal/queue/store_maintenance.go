package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Stats returns photo counts by state plus queue occupancy.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{States: make(map[State]int, len(allStates))}
	for _, state := range allStates {
		stats.States[state] = 0
	}

	rows, err := s.query(ctx, "SELECT state, COUNT(1) FROM photos GROUP BY state")
	if err != nil {
		return Stats{}, classify("photo stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			state string
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return Stats{}, classify("photo stats", err)
		}
		stats.States[State(state)] = count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, classify("photo stats", err)
	}

	now := toMillis(s.now())
	var oldest sql.NullInt64
	err = s.queryRow(ctx,
		`SELECT COUNT(1),
			COALESCE(SUM(CASE WHEN lease_expiry > ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN lease_expiry <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN lease_expiry IS NULL AND retry_at > ? THEN 1 ELSE 0 END), 0),
			MIN(enqueued_at)
		 FROM queue_entries`,
		now, now, now,
	).Scan(&stats.QueueDepth, &stats.Leased, &stats.ExpiredLeases, &stats.BackingOff, &oldest)
	if err != nil {
		return Stats{}, classify("queue stats", err)
	}
	stats.OldestEntry = nullableMillis(oldest)
	return stats, nil
}

// Health runs the consistency checks reported by `phototag queue health`.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	health := HealthSummary{Driver: s.dialect.name, Location: s.location}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return health, classify("health", err)
	}
	health.SchemaVersion = version

	now := toMillis(s.now())
	err = s.queryRow(ctx,
		`SELECT
			(SELECT COUNT(1) FROM photos),
			(SELECT COUNT(1) FROM queue_entries),
			(SELECT COUNT(1) FROM queue_entries WHERE lease_expiry <= ?),
			(SELECT COUNT(1) FROM photos p WHERE p.state IN (?, ?)
				AND NOT EXISTS (SELECT 1 FROM queue_entries q WHERE q.photo_id = p.id)),
			(SELECT COUNT(1) FROM queue_entries q JOIN photos p ON p.id = q.photo_id WHERE p.state IN (?, ?))`,
		now, string(StatePending), string(StateProcessing), string(StateTagged), string(StateFailed),
	).Scan(&health.Photos, &health.QueueDepth, &health.ExpiredLeases, &health.Orphans, &health.StrayEntries)
	if err != nil {
		return health, classify("health", err)
	}
	return health, nil
}

// CheckHealth verifies the database answers within the context deadline.
func (s *Store) CheckHealth(ctx context.Context) error {
	ctx = ensureContext(ctx)
	if err := s.db.PingContext(ctx); err != nil {
		return classify("ping", err)
	}
	var one int
	if err := s.queryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return classify("ping", err)
	}
	return nil
}

// RequeueOrphans restores the queue invariant after partial failures: pending
// or processing photos older than grace that lack an entry get one, and
// entries left behind for tagged or failed photos are dropped. It returns the
// number of photos re-enqueued.
func (s *Store) RequeueOrphans(ctx context.Context, grace time.Duration) (int64, error) {
	ctx = ensureContext(ctx)
	now := s.now()
	cutoff := toMillis(now.Add(-grace))
	var requeued int64
	err := s.withTx(ctx, func(tx *txn) error {
		if _, err := tx.exec(ctx,
			`UPDATE photos SET state = ?, updated_at = ?
			 WHERE state = ? AND updated_at <= ?
			 AND NOT EXISTS (SELECT 1 FROM queue_entries q WHERE q.photo_id = photos.id)`,
			string(StatePending), toMillis(now), string(StateProcessing), cutoff,
		); err != nil {
			return err
		}
		res, err := tx.exec(ctx,
			`INSERT INTO queue_entries (photo_id, enqueued_at, claim_count)
			 SELECT p.id, ?, 0 FROM photos p
			 WHERE p.state = ? AND p.updated_at <= ?
			 AND NOT EXISTS (SELECT 1 FROM queue_entries q WHERE q.photo_id = p.id)
			 ON CONFLICT (photo_id) DO NOTHING`,
			toMillis(now), string(StatePending), cutoff,
		)
		if err != nil {
			return err
		}
		requeued, _ = res.RowsAffected()
		_, err = tx.exec(ctx,
			"DELETE FROM queue_entries WHERE photo_id IN (SELECT id FROM photos WHERE state IN (?, ?))",
			string(StateTagged), string(StateFailed),
		)
		return err
	})
	if err != nil {
		return 0, classify("requeue orphans", err)
	}
	return requeued, nil
}

// ResetExpiredLeases clears leases that have lapsed and returns their photos
// to pending so that status output reflects reality. Expired entries are
// claimable regardless; this only tidies state.
func (s *Store) ResetExpiredLeases(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	now := toMillis(s.now())
	var reset int64
	err := s.withTx(ctx, func(tx *txn) error {
		if _, err := tx.exec(ctx,
			`UPDATE photos SET state = ?, updated_at = ?
			 WHERE state = ? AND id IN (SELECT photo_id FROM queue_entries WHERE lease_expiry <= ?)`,
			string(StatePending), now, string(StateProcessing), now,
		); err != nil {
			return err
		}
		res, err := tx.exec(ctx,
			"UPDATE queue_entries SET lease_owner = NULL, lease_expiry = NULL WHERE lease_expiry <= ?",
			now,
		)
		if err != nil {
			return err
		}
		reset, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, classify("reset expired leases", err)
	}
	return reset, nil
}

// RetryFailed resets every failed photo to pending with zero attempts and
// enqueues it again.
func (s *Store) RetryFailed(ctx context.Context) (int64, error) {
	ids, err := s.photoIDsInState(ctx, StateFailed)
	if err != nil {
		return 0, err
	}
	return s.Requeue(ctx, ids...)
}

// Requeue resets the given failed or tagged photos to pending with zero
// attempts and enqueues them. Existing tags stay until the next successful
// run replaces them. Photos still pending or processing are skipped.
func (s *Store) Requeue(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ctx = ensureContext(ctx)
	now := toMillis(s.now())
	var count int64
	err := s.withTx(ctx, func(tx *txn) error {
		count = 0
		for _, id := range ids {
			res, err := tx.exec(ctx,
				"UPDATE photos SET state = ?, attempts = 0, last_error = NULL, updated_at = ? WHERE id = ? AND state IN (?, ?)",
				string(StatePending), now, id, string(StateFailed), string(StateTagged),
			)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				continue
			}
			if _, err := tx.exec(ctx,
				"INSERT INTO queue_entries (photo_id, enqueued_at, claim_count) VALUES (?, ?, 0) ON CONFLICT (photo_id) DO NOTHING",
				id, now,
			); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, classify("requeue", err)
	}
	return count, nil
}

func (s *Store) photoIDsInState(ctx context.Context, state State) ([]int64, error) {
	rows, err := s.query(ctx, "SELECT id FROM photos WHERE state = ? ORDER BY id", string(state))
	if err != nil {
		return nil, classify("list photo ids", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan photo id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
