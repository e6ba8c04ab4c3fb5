package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mangarecap/internal/logging"
	"mangarecap/internal/testsupport"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type backend struct {
	name string
	open func(t *testing.T, c *clock) Store
}

func backends() []backend {
	return []backend{
		{"file", func(t *testing.T, c *clock) Store {
			s, err := NewFileStore(t.TempDir(), logging.NewNop())
			if err != nil {
				t.Fatalf("NewFileStore: %v", err)
			}
			s.now = c.now
			return s
		}},
		{"sqlite", func(t *testing.T, c *clock) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"), logging.NewNop())
			if err != nil {
				t.Fatalf("OpenSQLite: %v", err)
			}
			s.now = c.now
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
	}
}

func textKey(fp string) Key {
	return Key{Kind: "text_gen", Fingerprint: fp, ProviderID: "synthetic", ConfigVersion: "v1"}
}

func TestKeyHashDependsOnEveryField(t *testing.T) {
	base := Key{Kind: "ocr", Fingerprint: "f", ProviderID: "p", ConfigVersion: "v1"}
	variants := []Key{
		{Kind: "tts", Fingerprint: "f", ProviderID: "p", ConfigVersion: "v1"},
		{Kind: "ocr", Fingerprint: "g", ProviderID: "p", ConfigVersion: "v1"},
		{Kind: "ocr", Fingerprint: "f", ProviderID: "q", ConfigVersion: "v1"},
		{Kind: "ocr", Fingerprint: "f", ProviderID: "p", ConfigVersion: "v2"},
	}
	for _, v := range variants {
		if v.Hash() == base.Hash() {
			t.Fatalf("hash collision between %+v and %+v", base, v)
		}
	}
	if base.Hash() != (Key{Kind: "ocr", Fingerprint: "f", ProviderID: "p", ConfigVersion: "v1"}).Hash() {
		t.Fatal("hash is not deterministic")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			c := &clock{t: time.Unix(1_700_000_000, 0)}
			store := b.open(t, c)

			if _, ok := store.Get(ctx, textKey("a")); ok {
				t.Fatal("expected miss on empty store")
			}
			if err := store.Put(ctx, textKey("a"), []byte("resumo do capítulo"), time.Hour); err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, ok := store.Get(ctx, textKey("a"))
			if !ok || string(got) != "resumo do capítulo" {
				t.Fatalf("Get = %q, %v", got, ok)
			}

			audioKey := Key{Kind: "tts", Fingerprint: "s", ProviderID: "espeak", ConfigVersion: "v1"}
			payload := []byte{0x52, 0x49, 0x46, 0x46, 0x00, 0xff, 0x10}
			if err := store.Put(ctx, audioKey, payload, time.Hour); err != nil {
				t.Fatalf("Put binary: %v", err)
			}
			got, ok = store.Get(ctx, audioKey)
			if !ok || string(got) != string(payload) {
				t.Fatalf("binary Get = %v, %v", got, ok)
			}

			if err := store.Invalidate(ctx, textKey("a")); err != nil {
				t.Fatalf("Invalidate: %v", err)
			}
			if _, ok := store.Get(ctx, textKey("a")); ok {
				t.Fatal("expected miss after invalidate")
			}
		})
	}
}

func TestPutIsIdempotent(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			c := &clock{t: time.Unix(1_700_000_000, 0)}
			store := b.open(t, c)
			key := textKey("idem")

			if err := store.Put(ctx, key, []byte("same"), time.Hour); err != nil {
				t.Fatalf("Put: %v", err)
			}
			first := mustEntry(t, store, key)

			c.t = c.t.Add(10 * time.Minute)
			if err := store.Put(ctx, key, []byte("same"), time.Hour); err != nil {
				t.Fatalf("second Put: %v", err)
			}
			second := mustEntry(t, store, key)
			if !second.CreatedAt.Equal(first.CreatedAt) {
				t.Fatalf("identical put changed CreatedAt: %v -> %v", first.CreatedAt, second.CreatedAt)
			}

			if err := store.Put(ctx, key, []byte("different"), time.Hour); err != nil {
				t.Fatalf("overwrite Put: %v", err)
			}
			third := mustEntry(t, store, key)
			if string(third.Value) != "different" || !third.CreatedAt.After(first.CreatedAt) {
				t.Fatalf("expected overwrite, got %+v", third)
			}
		})
	}
}

func TestEntriesExpire(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			c := &clock{t: time.Unix(1_700_000_000, 0)}
			store := b.open(t, c)

			if err := store.Put(ctx, textKey("short"), []byte("x"), time.Hour); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := store.Put(ctx, textKey("forever"), []byte("y"), 0); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := store.Put(ctx, textKey("blink"), []byte("w"), 500*time.Millisecond); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if _, ok := store.Get(ctx, textKey("blink")); !ok {
				t.Fatal("sub-second ttl entry should be live right after put")
			}

			c.t = c.t.Add(2 * time.Hour)
			if _, ok := store.Get(ctx, textKey("short")); ok {
				t.Fatal("expected expired entry to miss")
			}
			if _, ok := store.Get(ctx, textKey("forever")); !ok {
				t.Fatal("zero ttl entry should not expire")
			}
			if _, ok := store.Get(ctx, textKey("blink")); ok {
				t.Fatal("sub-second ttl entry must expire")
			}

			if err := store.Put(ctx, textKey("stale"), []byte("z"), time.Hour); err != nil {
				t.Fatalf("Put: %v", err)
			}
			c.t = c.t.Add(2 * time.Hour)
			removed, err := store.Prune(ctx)
			if err != nil {
				t.Fatalf("Prune: %v", err)
			}
			if removed != 1 {
				t.Fatalf("expected 1 pruned entry, got %d", removed)
			}
			stats, err := store.Stats(ctx)
			if err != nil {
				t.Fatalf("Stats: %v", err)
			}
			if stats.Entries != 1 || stats.ByKind["text_gen"] != 1 {
				t.Fatalf("unexpected stats %+v", stats)
			}

			cleared, err := store.Clear(ctx)
			if err != nil {
				t.Fatalf("Clear: %v", err)
			}
			if cleared != 1 {
				t.Fatalf("expected 1 cleared entry, got %d", cleared)
			}
		})
	}
}

func TestFileStoreExpiredReadKeepsFreshPut(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Unix(1_700_000_000, 0)}
	store, err := NewFileStore(t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	store.now = c.now
	key := textKey("race")

	if err := store.Put(ctx, key, []byte("old"), time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	c.t = c.t.Add(time.Hour)
	if err := store.Put(ctx, key, []byte("new"), time.Minute); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// A reader that saw the old entry expire before this Put landed.
	store.removeIfExpired(store.path(key))

	got, ok := store.Get(ctx, key)
	if !ok || string(got) != "new" {
		t.Fatalf("expected fresh entry to survive, got %q %v", got, ok)
	}
}

func TestFileStoreCorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	key := Key{Kind: "tts", Fingerprint: "f", ProviderID: "p", ConfigVersion: "v1"}
	if err := store.Put(ctx, key, []byte("audio-bytes"), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	path := store.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)-3], 0o644); err != nil {
		t.Fatalf("truncate entry: %v", err)
	}
	if _, ok := store.Get(ctx, key); ok {
		t.Fatal("truncated entry must read as a miss")
	}
	if filepath.Ext(path) != ".bin" {
		t.Fatalf("expected .bin layout for audio, got %s", path)
	}
}

func TestTieredServesFromMemory(t *testing.T) {
	ctx := context.Background()
	durable, err := NewFileStore(t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	tiered := NewTiered(durable, time.Minute, logging.NewNop())

	key := textKey("mem")
	if err := tiered.Put(ctx, key, []byte("hot"), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Remove behind the memory tier's back.
	if err := durable.Invalidate(ctx, key); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	got, ok := tiered.Get(ctx, key)
	if !ok || string(got) != "hot" {
		t.Fatalf("expected memory hit, got %q %v", got, ok)
	}
	got[0] = 'n'
	if again, _ := tiered.Get(ctx, key); string(again) != "hot" {
		t.Fatalf("caller mutation leaked into memory tier: %q", again)
	}

	other := textKey("cold")
	if err := durable.Put(ctx, other, []byte("from disk"), time.Hour); err != nil {
		t.Fatalf("durable Put: %v", err)
	}
	if got, ok := tiered.Get(ctx, other); !ok || string(got) != "from disk" {
		t.Fatalf("expected fall-through hit, got %q %v", got, ok)
	}
	stats, err := tiered.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.MemoryItems != 2 {
		t.Fatalf("expected 2 memory items, got %d", stats.MemoryItems)
	}

	if err := tiered.Invalidate(ctx, key); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok := tiered.Get(ctx, key); ok {
		t.Fatal("expected miss after tiered invalidate")
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	cfg.Cache.Enabled = false
	store, err := Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open disabled: %v", err)
	}
	if _, ok := store.(Noop); !ok {
		t.Fatalf("expected Noop store, got %T", store)
	}

	cfg.Cache.Enabled = true
	cfg.Cache.Backend = "sqlite"
	cfg.Cache.MemoryEnabled = false
	store, err = Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*SQLiteStore); !ok {
		t.Fatalf("expected SQLiteStore, got %T", store)
	}
	if _, err := os.Stat(filepath.Join(Dir(cfg.Paths.WorkDir), "cache.db")); err != nil {
		t.Fatalf("expected cache.db: %v", err)
	}

	cfg.Cache.Backend = "file"
	cfg.Cache.MemoryEnabled = true
	store, err = Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Open file: %v", err)
	}
	if _, ok := store.(*Tiered); !ok {
		t.Fatalf("expected Tiered store, got %T", store)
	}
}

func mustEntry(t *testing.T, store Store, key Key) Entry {
	t.Helper()
	reader, ok := store.(entryReader)
	if !ok {
		t.Fatalf("%T does not expose entries", store)
	}
	entry, found := reader.getEntry(context.Background(), key)
	if !found {
		t.Fatalf("entry %s missing", key.Fingerprint)
	}
	return entry
}
