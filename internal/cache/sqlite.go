package cache

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"mangarecap/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when the table layout changes; older databases are rejected.
const schemaVersion = 1

// ErrSchemaMismatch indicates the cache database was written by another layout.
var ErrSchemaMismatch = errors.New("cache schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteStore keeps entries in a single SQLite table.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	mu     sync.Mutex
	now    func() time.Time
}

// OpenSQLite initializes or connects to the cache database at path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{
		db:     db,
		path:   path,
		logger: logging.NewComponentLogger(logger, "cache"),
		now:    time.Now,
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (run 'mangarecap cache clear' or delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
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

func (s *SQLiteStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	return affected, err
}

// Get returns the live value for key.
func (s *SQLiteStore) Get(ctx context.Context, key Key) ([]byte, bool) {
	entry, ok := s.getEntry(ctx, key)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

func (s *SQLiteStore) getEntry(ctx context.Context, key Key) (Entry, bool) {
	entry, err := s.lookup(ctx, key.Hash())
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("cache read failed, treating as miss",
				logging.String(logging.FieldEventType, "cache_read_failed"),
				logging.String("path", s.path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run 'mangarecap cache clear' if the database is damaged"),
				logging.String(logging.FieldImpact, "provider will be called again"),
			)
		}
		return Entry{}, false
	}
	if entry.Expired(s.now()) {
		s.mu.Lock()
		_, _ = s.exec(ctx,
			"DELETE FROM cache_entries WHERE key = ? AND ttl_seconds > 0 AND created_at + ttl_seconds * 1000000000 <= ?",
			entry.Key, s.now().UnixNano(),
		)
		s.mu.Unlock()
		return Entry{}, false
	}
	return entry, true
}

func (s *SQLiteStore) lookup(ctx context.Context, hash string) (Entry, error) {
	var (
		entry      Entry
		createdAt  int64
		ttlSeconds int64
	)
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			"SELECT key, kind, provider_id, created_at, ttl_seconds, value FROM cache_entries WHERE key = ?",
			hash,
		).Scan(&entry.Key, &entry.Kind, &entry.ProviderID, &createdAt, &ttlSeconds, &entry.Value)
	})
	if err != nil {
		return Entry{}, err
	}
	entry.CreatedAt = time.Unix(0, createdAt).UTC()
	entry.TTL = time.Duration(ttlSeconds) * time.Second
	return entry, nil
}

// Put stores value under key. Re-putting identical bytes over a live entry is a no-op.
func (s *SQLiteStore) Put(ctx context.Context, key Key, value []byte, ttl time.Duration) error {
	hash := key.Hash()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, err := s.lookup(ctx, hash); err == nil && !existing.Expired(now) && bytes.Equal(existing.Value, value) {
		return nil
	}
	if value == nil {
		value = []byte{}
	}
	_, err := s.exec(ctx, `INSERT INTO cache_entries (key, kind, provider_id, created_at, ttl_seconds, value)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			kind = excluded.kind,
			provider_id = excluded.provider_id,
			created_at = excluded.created_at,
			ttl_seconds = excluded.ttl_seconds,
			value = excluded.value`,
		hash, key.Kind, key.ProviderID, now.UnixNano(), ttlSeconds(ttl), value,
	)
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Invalidate removes key if present.
func (s *SQLiteStore) Invalidate(ctx context.Context, key Key) error {
	_, err := s.exec(ctx, "DELETE FROM cache_entries WHERE key = ?", key.Hash())
	return err
}

// Prune deletes expired entries.
func (s *SQLiteStore) Prune(ctx context.Context) (int, error) {
	affected, err := s.exec(ctx,
		"DELETE FROM cache_entries WHERE ttl_seconds > 0 AND created_at + ttl_seconds * 1000000000 <= ?",
		s.now().UnixNano(),
	)
	return int(affected), err
}

// Clear deletes every entry.
func (s *SQLiteStore) Clear(ctx context.Context) (int, error) {
	affected, err := s.exec(ctx, "DELETE FROM cache_entries")
	return int(affected), err
}

// Stats aggregates entry counts per kind.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Backend: "sqlite", Location: s.path, ByKind: map[string]int{}}
	now := s.now().UnixNano()
	rows, err := s.db.QueryContext(ctx, `SELECT kind,
			SUM(CASE WHEN ttl_seconds > 0 AND created_at + ttl_seconds * 1000000000 <= ? THEN 1 ELSE 0 END),
			COUNT(*),
			COALESCE(SUM(LENGTH(value)), 0)
		FROM cache_entries GROUP BY kind`, now)
	if err != nil {
		return stats, fmt.Errorf("query cache stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			kind           string
			expired, total int
			size           int64
		)
		if err := rows.Scan(&kind, &expired, &total, &size); err != nil {
			return stats, fmt.Errorf("scan cache stats: %w", err)
		}
		stats.ByKind[kind] = total - expired
		stats.Entries += total - expired
		stats.Expired += expired
		stats.Bytes += size
	}
	return stats, rows.Err()
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
