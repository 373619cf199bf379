// Package queue persists photo records and the tagging job queue.
//
// Photos, their tags and queue entries live in one database (SQLite by
// default, PostgreSQL for multi-host worker pools) so that the claim,
// acknowledge and tag-commit steps can be expressed as single statements or
// short transactions. Claim grants a time-bounded lease to one worker; every
// later step is guarded by the lease owner and fails with ErrStaleLease once
// another worker has taken over. Entries whose lease expires become claimable
// again, which is how work held by a crashed worker is recovered.
//
// Database outages surface as services.ErrStoreUnavailable so callers can
// back off without charging the photo an attempt. Schema changes bump the
// version in schema.go.
package queue
