package queue

import (
	_ "embed"
	"strconv"
	"strings"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

type dialect struct {
	name        string
	schema      string
	tableExists string
	// claimLock is appended to the claim candidate subquery.
	claimLock string
	numbered  bool
}

var sqliteDialect = dialect{
	name:        "sqlite",
	schema:      sqliteSchema,
	tableExists: "SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?",
}

var postgresDialect = dialect{
	name:        "postgres",
	schema:      postgresSchema,
	tableExists: "SELECT COUNT(1) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?",
	claimLock:   " FOR UPDATE SKIP LOCKED",
	numbered:    true,
}

// rebind rewrites ? placeholders as $1, $2, ... for dialects that need it.
// Queries in this package never contain a literal question mark.
func (d dialect) rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// claimQuery leases the oldest claimable entry. Its arguments are the
// worker id, the new lease expiry, then the current time four times. The
// outer predicate re-checks claimability so that a concurrent claim
// committed between subquery and update yields no row instead of a steal.
func (d dialect) claimQuery() string {
	return `UPDATE queue_entries
		SET lease_owner = ?, lease_expiry = ?, claim_count = claim_count + 1
		WHERE photo_id = (
			SELECT photo_id FROM queue_entries
			WHERE (lease_expiry IS NULL OR lease_expiry <= ?) AND retry_at <= ?
			ORDER BY enqueued_at, photo_id
			LIMIT 1` + d.claimLock + `
		)
		AND (lease_expiry IS NULL OR lease_expiry <= ?) AND retry_at <= ?
		RETURNING ` + entryColumns
}

func (d dialect) statements() []string {
	parts := strings.Split(d.schema, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
