package cache

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"mangarecap/internal/logging"
)

// Tiered fronts a durable store with a bounded-lifetime in-memory map.
// Reads hit memory first; misses fall through and backfill.
type Tiered struct {
	memory  *gocache.Cache
	durable Store
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewTiered wraps durable. memoryTTL caps how long a value stays in memory.
func NewTiered(durable Store, memoryTTL time.Duration, logger *slog.Logger) *Tiered {
	if memoryTTL <= 0 {
		memoryTTL = 5 * time.Minute
	}
	return &Tiered{
		memory:  gocache.New(memoryTTL, 2*memoryTTL),
		durable: durable,
		ttl:     memoryTTL,
		logger:  logging.NewComponentLogger(logger, "cache"),
		now:     time.Now,
	}
}

// Get serves from memory, then the durable store.
func (t *Tiered) Get(ctx context.Context, key Key) ([]byte, bool) {
	hash := key.Hash()
	if value, ok := t.memory.Get(hash); ok {
		if data, ok := value.([]byte); ok {
			return bytes.Clone(data), true
		}
	}

	if reader, ok := t.durable.(entryReader); ok {
		entry, found := reader.getEntry(ctx, key)
		if !found {
			return nil, false
		}
		t.remember(hash, entry.Value, entry.ExpiresAt())
		t.logger.Debug("cache memory backfill",
			logging.String("kind", key.Kind),
			logging.String(logging.FieldProvider, key.ProviderID),
		)
		return entry.Value, true
	}

	data, found := t.durable.Get(ctx, key)
	if found {
		t.memory.Set(hash, data, t.ttl)
	}
	return data, found
}

// Put writes through to the durable store, then memory.
func (t *Tiered) Put(ctx context.Context, key Key, value []byte, ttl time.Duration) error {
	if err := t.durable.Put(ctx, key, value, ttl); err != nil {
		return err
	}
	var expires time.Time
	if ttl > 0 {
		expires = t.now().Add(ttl)
	}
	t.remember(key.Hash(), bytes.Clone(value), expires)
	return nil
}

func (t *Tiered) remember(hash string, value []byte, expires time.Time) {
	lifetime := t.ttl
	if !expires.IsZero() {
		remaining := expires.Sub(t.now())
		if remaining <= 0 {
			return
		}
		lifetime = min(lifetime, remaining)
	}
	t.memory.Set(hash, value, lifetime)
}

// Invalidate drops key from both tiers.
func (t *Tiered) Invalidate(ctx context.Context, key Key) error {
	t.memory.Delete(key.Hash())
	return t.durable.Invalidate(ctx, key)
}

// Prune sweeps expired memory items and the durable store.
func (t *Tiered) Prune(ctx context.Context) (int, error) {
	t.memory.DeleteExpired()
	return t.durable.Prune(ctx)
}

// Clear empties both tiers.
func (t *Tiered) Clear(ctx context.Context) (int, error) {
	t.memory.Flush()
	return t.durable.Clear(ctx)
}

// Stats reports durable stats plus the number of memory items.
func (t *Tiered) Stats(ctx context.Context) (Stats, error) {
	stats, err := t.durable.Stats(ctx)
	stats.MemoryItems = t.memory.ItemCount()
	return stats, err
}

// Close closes the durable store.
func (t *Tiered) Close() error {
	t.memory.Flush()
	return t.durable.Close()
}
