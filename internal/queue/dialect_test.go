package queue

import (
	"strings"
	"testing"
)

func TestRebind(t *testing.T) {
	cases := []struct {
		name    string
		dialect dialect
		query   string
		want    string
	}{
		{
			name:    "sqlite keeps question marks",
			dialect: sqliteDialect,
			query:   "SELECT 1 FROM photos WHERE id = ? AND state = ?",
			want:    "SELECT 1 FROM photos WHERE id = ? AND state = ?",
		},
		{
			name:    "postgres numbers in order",
			dialect: postgresDialect,
			query:   "UPDATE photos SET state = ?, updated_at = ? WHERE id = ?",
			want:    "UPDATE photos SET state = $1, updated_at = $2 WHERE id = $3",
		},
		{
			name:    "postgres without placeholders",
			dialect: postgresDialect,
			query:   "SELECT COUNT(1) FROM queue_entries",
			want:    "SELECT COUNT(1) FROM queue_entries",
		},
		{
			name:    "repeated argument gets its own number",
			dialect: postgresDialect,
			query:   "WHERE id = ? AND EXISTS (SELECT 1 FROM queue_entries q WHERE q.photo_id = ? AND q.lease_owner = ?)",
			want:    "WHERE id = $1 AND EXISTS (SELECT 1 FROM queue_entries q WHERE q.photo_id = $2 AND q.lease_owner = $3)",
		},
		{
			name:    "placeholder list",
			dialect: postgresDialect,
			query:   "photo_id IN (" + makePlaceholders(12) + ")",
			want:    "photo_id IN ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.dialect.rebind(tc.query); got != tc.want {
				t.Fatalf("rebind(%q) = %q, want %q", tc.query, got, tc.want)
			}
		})
	}
}

func TestClaimQueryPerDialect(t *testing.T) {
	pg := postgresDialect.rebind(postgresDialect.claimQuery())
	if !strings.Contains(pg, "LIMIT 1 FOR UPDATE SKIP LOCKED\n") {
		t.Fatalf("postgres claim must lock its candidate with SKIP LOCKED:\n%s", pg)
	}
	for i := 1; i <= 6; i++ {
		if !strings.Contains(pg, "$"+string(rune('0'+i))) {
			t.Fatalf("postgres claim missing $%d:\n%s", i, pg)
		}
	}
	if strings.Contains(pg, "?") || strings.Contains(pg, "$7") {
		t.Fatalf("postgres claim has unexpected placeholders:\n%s", pg)
	}
	if !strings.HasSuffix(pg, "RETURNING "+entryColumns) {
		t.Fatalf("claim must return the entry columns:\n%s", pg)
	}

	lite := sqliteDialect.claimQuery()
	if strings.Contains(lite, "FOR UPDATE") {
		t.Fatalf("sqlite claim must not use row locks:\n%s", lite)
	}
	if n := strings.Count(lite, "?"); n != 6 {
		t.Fatalf("sqlite claim has %d placeholders, want 6", n)
	}
	if strings.Count(lite, "retry_at <= ?") != 2 {
		t.Fatalf("claim must honour retry delays in both predicates:\n%s", lite)
	}
}

func TestStatementsSplitSchema(t *testing.T) {
	for _, d := range []dialect{sqliteDialect, postgresDialect} {
		stmts := d.statements()
		if len(stmts) == 0 {
			t.Fatalf("%s: no schema statements", d.name)
		}
		var sawEntries bool
		for _, stmt := range stmts {
			if strings.HasSuffix(stmt, ";") || stmt == "" {
				t.Fatalf("%s: malformed statement %q", d.name, stmt)
			}
			if strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS queue_entries") {
				sawEntries = true
				if !strings.Contains(stmt, "retry_at") {
					t.Fatalf("%s: queue_entries lacks retry_at", d.name)
				}
			}
		}
		if !sawEntries {
			t.Fatalf("%s: queue_entries table missing", d.name)
		}
	}
}
