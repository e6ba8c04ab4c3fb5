package cache

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"mangarecap/internal/config"
	"mangarecap/internal/fileutil"
	"mangarecap/internal/logging"
	"mangarecap/internal/services"
)

// Key identifies one cached provider output.
type Key struct {
	Kind          string
	Fingerprint   string
	ProviderID    string
	ConfigVersion string
}

// Hash returns the SHA-256 storage key.
func (k Key) Hash() string {
	return fileutil.HashStrings(k.Kind, k.Fingerprint, k.ProviderID, k.ConfigVersion)
}

// Entry is one stored value with its metadata.
type Entry struct {
	Key        string
	Kind       string
	ProviderID string
	CreatedAt  time.Time
	TTL        time.Duration
	Value      []byte
}

// ExpiresAt returns the zero time for entries that never expire.
func (e Entry) ExpiresAt() time.Time {
	if e.TTL <= 0 {
		return time.Time{}
	}
	return e.CreatedAt.Add(e.TTL)
}

// Expired reports whether the entry is past its TTL at now.
func (e Entry) Expired(now time.Time) bool {
	expires := e.ExpiresAt()
	return !expires.IsZero() && !now.Before(expires)
}

// ttlSeconds rounds up so a sub-second TTL still expires.
func ttlSeconds(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return int64((ttl + time.Second - 1) / time.Second)
}

// Stats summarizes cache contents for the CLI.
type Stats struct {
	Backend     string
	Location    string
	Entries     int
	Expired     int
	Bytes       int64
	ByKind      map[string]int
	MemoryItems int
}

// Store is the cache contract used by the pipeline.
type Store interface {
	Get(ctx context.Context, key Key) ([]byte, bool)
	Put(ctx context.Context, key Key, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, key Key) error
	Prune(ctx context.Context) (int, error)
	Clear(ctx context.Context) (int, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// entryReader is implemented by durable backends so the memory tier can
// honour the remaining lifetime of an entry it backfills.
type entryReader interface {
	getEntry(ctx context.Context, key Key) (Entry, bool)
}

// binaryKinds are stored as raw payload files instead of embedded JSON.
var binaryKinds = map[string]bool{"tts": true}

// Dir returns the cache directory under a run directory.
func Dir(workDir string) string {
	return filepath.Join(workDir, "cache")
}

// Open builds the store selected by cfg rooted at the config's work dir.
func Open(cfg *config.Config, logger *slog.Logger) (Store, error) {
	if cfg == nil || !cfg.Cache.Enabled {
		return Noop{}, nil
	}
	root := Dir(cfg.Paths.WorkDir)

	var (
		store Store
		err   error
	)
	switch cfg.Cache.Backend {
	case "sqlite":
		store, err = OpenSQLite(filepath.Join(root, "cache.db"), logger)
	case "file", "":
		store, err = NewFileStore(root, logger)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "cache", "open", "unknown backend "+cfg.Cache.Backend, nil)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Cache.MemoryEnabled {
		store = NewTiered(store, time.Duration(cfg.Cache.MemoryTTLSeconds)*time.Second, logger)
	}
	logging.NewComponentLogger(logger, "cache").Debug("cache opened",
		logging.String("backend", cfg.Cache.Backend),
		logging.Bool("memory_tier", cfg.Cache.MemoryEnabled),
		logging.String("location", root),
	)
	return store, nil
}

// Noop is the store used when caching is disabled.
type Noop struct{}

func (Noop) Get(context.Context, Key) ([]byte, bool)               { return nil, false }
func (Noop) Put(context.Context, Key, []byte, time.Duration) error { return nil }
func (Noop) Invalidate(context.Context, Key) error                 { return nil }
func (Noop) Prune(context.Context) (int, error)                    { return 0, nil }
func (Noop) Clear(context.Context) (int, error)                    { return 0, nil }
func (Noop) Stats(context.Context) (Stats, error)                  { return Stats{Backend: "disabled"}, nil }
func (Noop) Close() error                                          { return nil }
