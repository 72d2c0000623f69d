/*
Package sqlite provides a SQLite-backed implementation of shift.Store.

PURPOSE:
  Durable local storage for the shift calendar. Each collection is its own
  table of (key, value) rows; values are opaque JSON produced by the
  repository layer.

KEY TABLES:
  schedule:      date key -> JSON array of shift ids
  special_dates: date key -> true
  settings:      "userSettings" -> settings record
  metadata:      "scheduleTitle" and other single values

SCHEMA VERSIONING:
  The schema version lives in PRAGMA user_version. New() applies every
  migration above the stored version inside one transaction and bumps the
  version. Re-opening an up-to-date database is a no-op, and no migration
  ever drops a table, so initialization is idempotent.

TRANSACTIONS:
  RunTransaction maps onto BeginTx / Rollback / Commit. The rollback is
  deferred, so an error from the body, a failed statement or a canceled
  context leaves the table exactly as it was.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection so that
  ":memory:" databases are shared by every call.

USAGE:
  store, err := sqlite.New("./shiftbook.db")
  if errors.Is(err, shift.ErrStoreUnavailable) {
      // fall back to store.NewMemory()
  }
  defer store.Close()

SEE ALSO:
  - shift/store.go: Interface definition
  - shift/store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/shiftbook/metrics"
	"github.com/warp/shiftbook/shift"
)

// Compile-time check that Store implements shift.Store.
var _ shift.Store = (*Store)(nil)

// tables maps collections to table names.
var tables = map[shift.Collection]string{
	shift.CollectionSchedule:     "schedule",
	shift.CollectionSpecialDates: "special_dates",
	shift.CollectionSettings:     "settings",
	shift.CollectionMetadata:     "metadata",
}

// Store implements shift.Store using SQLite.
type Store struct {
	db       *sql.DB
	mu       sync.RWMutex
	path     string
	recorder metrics.Recorder
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithRecorder reports transaction outcomes to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Store) { s.recorder = metrics.OrNoop(r) }
}

// WithClock overrides the clock used for updated_at columns.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New opens (creating if needed) the database at dbPath and brings its schema
// up to date. Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", shift.ErrStoreUnavailable, err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{
		db:       db,
		path:     dbPath,
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to open database: %v", shift.ErrStoreUnavailable, err)
	}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to migrate database: %v", shift.ErrStoreUnavailable, err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string { return s.path }

// =============================================================================
// SCHEMA
// =============================================================================

// migrations[i] upgrades the schema from version i to i+1.
var migrations = []string{
	// 1: one key/value table per collection
	`
	CREATE TABLE IF NOT EXISTS schedule (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS special_dates (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);
	`,
	// 2: last write time per record
	`
	ALTER TABLE schedule ADD COLUMN updated_at TEXT NOT NULL DEFAULT '';
	ALTER TABLE special_dates ADD COLUMN updated_at TEXT NOT NULL DEFAULT '';
	ALTER TABLE settings ADD COLUMN updated_at TEXT NOT NULL DEFAULT '';
	ALTER TABLE metadata ADD COLUMN updated_at TEXT NOT NULL DEFAULT '';
	`,
}

// SchemaVersion is the version New() migrates to.
var SchemaVersion = len(migrations)

// migrate applies pending migrations in a single upgrade transaction.
func (s *Store) migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.userVersion(ctx, s.db)
	if err != nil {
		return err
	}
	if current >= len(migrations) {
		return nil
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for v := current; v < len(migrations); v++ {
		if _, err := sqlTx.ExecContext(ctx, migrations[v]); err != nil {
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
	}
	if _, err := sqlTx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", len(migrations))); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	return sqlTx.Commit()
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) userVersion(ctx context.Context, q queryer) (int, error) {
	var v int
	if err := q.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// SchemaVersion returns the stored schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userVersion(ctx, s.db)
}

// =============================================================================
// KEY/VALUE OPERATIONS (shift.Store interface)
// =============================================================================

func (s *Store) Get(ctx context.Context, c shift.Collection, key string) ([]byte, bool, error) {
	table, err := tableFor(c)
	if err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(ctx, s.db, table, key)
}

func (s *Store) Put(ctx context.Context, c shift.Collection, key string, value []byte) error {
	table, err := tableFor(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.put(ctx, s.db, table, key, value)
}

func (s *Store) GetAll(ctx context.Context, c shift.Collection) ([]shift.Record, error) {
	table, err := tableFor(c)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getAll(ctx, s.db, table)
}

func (s *Store) Clear(ctx context.Context, c shift.Collection) error {
	table, err := tableFor(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clear(ctx, s.db, table)
}

func (s *Store) get(ctx context.Context, q queryer, table, key string) ([]byte, bool, error) {
	var value []byte
	err := q.QueryRowContext(ctx, "SELECT value FROM "+table+" WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %s/%s: %w", table, key, err)
	}
	return value, true, nil
}

func (s *Store) put(ctx context.Context, q queryer, table, key string, value []byte) error {
	query := `
		INSERT INTO ` + table + ` (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query, key, value, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", table, key, err)
	}
	return nil
}

func (s *Store) getAll(ctx context.Context, q queryer, table string) ([]shift.Record, error) {
	rows, err := q.QueryContext(ctx, "SELECT key, value FROM "+table+" ORDER BY key ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var records []shift.Record
	for rows.Next() {
		var r shift.Record
		if err := rows.Scan(&r.Key, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) clear(ctx context.Context, q queryer, table string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// RunTransaction executes fn within a database transaction.
// If fn returns error, the transaction is rolled back.
// If fn returns nil, the transaction is committed.
func (s *Store) RunTransaction(ctx context.Context, c shift.Collection, mode shift.TxMode, fn func(shift.Bucket) error) (err error) {
	table, err := tableFor(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		outcome := metrics.OutcomeCommitted
		if err != nil {
			outcome = metrics.OutcomeRolledBack
		}
		s.recorder.IncTransaction(string(c), mode.String(), outcome)
	}()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	bucket := &txBucket{tx: sqlTx, parent: s, table: table, mode: mode}
	if err := fn(bucket); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txBucket struct {
	tx     *sql.Tx
	parent *Store
	table  string
	mode   shift.TxMode
}

func (b *txBucket) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return b.parent.get(ctx, b.tx, b.table, key)
}

func (b *txBucket) Put(ctx context.Context, key string, value []byte) error {
	if b.mode != shift.ReadWrite {
		return shift.ErrReadOnlyTx
	}
	return b.parent.put(ctx, b.tx, b.table, key, value)
}

func (b *txBucket) GetAll(ctx context.Context) ([]shift.Record, error) {
	return b.parent.getAll(ctx, b.tx, b.table)
}

func (b *txBucket) Clear(ctx context.Context) error {
	if b.mode != shift.ReadWrite {
		return shift.ErrReadOnlyTx
	}
	return b.parent.clear(ctx, b.tx, b.table)
}

// Helper functions

func tableFor(c shift.Collection) (string, error) {
	table, ok := tables[c]
	if !ok {
		return "", fmt.Errorf("%w: %q", shift.ErrUnknownCollection, string(c))
	}
	return table, nil
}
