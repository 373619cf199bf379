package queue

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"phototag/internal/config"
	"phototag/internal/services"
)

// Store persists photo records and the tagging job queue in one database so
// that tag writes and lease acknowledgement commit together.
type Store struct {
	db       *sql.DB
	dialect  dialect
	location string
	now      func() time.Time
}

const (
	sqliteBusyCode          = 5
	sqliteLockedCode        = 6
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		// Extended result codes keep the primary code in the low byte.
		switch coder.Code() & 0xff {
		case sqliteBusyCode, sqliteLockedCode:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// isUnavailable reports errors meaning the database could not be reached or
// could not grant a lock, as opposed to errors in the request itself.
func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if isSQLiteBusy(err) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil || !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// classify wraps database failures so callers can tell an outage from a
// rejected request. Lease and lookup sentinels pass through untouched.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStaleLease), errors.Is(err, ErrPhotoNotFound):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case isUnavailable(err):
		return services.Wrap(services.ErrStoreUnavailable, "store", op, "", err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	query = s.dialect.rebind(query)
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	return res, err
}

// withTx runs fn inside a transaction, retrying the whole transaction while
// SQLite reports the database as busy. fn must only use the supplied tx.
func (s *Store) withTx(ctx context.Context, fn func(tx *txn) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(&txn{tx: tx, dialect: s.dialect}); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// txn rebinds placeholders for the active dialect.
type txn struct {
	tx      *sql.Tx
	dialect dialect
}

func (t *txn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.rebind(query), args...)
}

func (t *txn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.rebind(query), args...)
}

func (t *txn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ensureContext(ctx), s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ensureContext(ctx), s.dialect.rebind(query), args...)
}

// Open connects to the database selected by cfg.Store and ensures the schema.
func Open(cfg *config.Config) (*Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		return OpenPostgres(cfg.Store.DSN)
	case config.StoreDriverSQLite, "":
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, fmt.Errorf("ensure directories: %w", err)
		}
		return OpenSQLite(cfg.Store.Path)
	default:
		return nil, fmt.Errorf("%w: unsupported store driver %q", services.ErrConfiguration, cfg.Store.Driver)
	}
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_txlock", "immediate")
	db, err := sql.Open("sqlite", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes writers inside this process; busy_timeout
	// covers other processes sharing the file.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return newStore(db, sqliteDialect, path)
}

// OpenPostgres connects to PostgreSQL through the pgx database/sql driver.
func OpenPostgres(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return newStore(db, postgresDialect, redactDSN(dsn))
}

func newStore(db *sql.DB, d dialect, location string) (*Store, error) {
	store := &Store{db: db, dialect: d, location: location, now: time.Now}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, classify("init schema", err)
	}
	return store, nil
}

// SetClock replaces the time source used for lease arithmetic.
func (s *Store) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.now = now
}

// Driver returns the dialect name ("sqlite" or "postgres").
func (s *Store) Driver() string {
	return s.dialect.name
}

// Location returns the database file path or the redacted DSN.
func (s *Store) Location() string {
	return s.location
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func redactDSN(dsn string) string {
	parsed, err := url.Parse(dsn)
	if err != nil || parsed.User == nil {
		return dsn
	}
	return parsed.Redacted()
}
