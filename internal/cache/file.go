package cache

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"mangarecap/internal/fileutil"
	"mangarecap/internal/logging"
)

// record is the on-disk header. Text kinds embed Value; binary kinds leave it
// empty and append the payload after the header.
type record struct {
	Key        string    `json:"key"`
	Kind       string    `json:"kind"`
	ProviderID string    `json:"provider_id"`
	CreatedAt  time.Time `json:"created_at"`
	TTLSeconds int64     `json:"ttl_seconds"`
	Size       int       `json:"size"`
	Value      *string   `json:"value,omitempty"`
}

func (r record) entry(value []byte) Entry {
	return Entry{
		Key:        r.Key,
		Kind:       r.Kind,
		ProviderID: r.ProviderID,
		CreatedAt:  r.CreatedAt,
		TTL:        time.Duration(r.TTLSeconds) * time.Second,
		Value:      value,
	}
}

// FileStore keeps one file per entry under <root>/<kind>/.
type FileStore struct {
	root   string
	logger *slog.Logger
	mu     sync.Mutex
	now    func() time.Time
}

// NewFileStore creates the cache root if needed.
func NewFileStore(root string, logger *slog.Logger) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("cache root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{
		root:   root,
		logger: logging.NewComponentLogger(logger, "cache"),
		now:    time.Now,
	}, nil
}

func (s *FileStore) path(key Key) string {
	ext := ".json"
	if binaryKinds[key.Kind] {
		ext = ".bin"
	}
	return filepath.Join(s.root, key.Kind, key.Hash()+ext)
}

// Get returns the live value for key.
func (s *FileStore) Get(ctx context.Context, key Key) ([]byte, bool) {
	entry, ok := s.getEntry(ctx, key)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

func (s *FileStore) getEntry(_ context.Context, key Key) (Entry, bool) {
	path := s.path(key)
	entry, err := readEntryFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("cache read failed, treating as miss",
				logging.String(logging.FieldEventType, "cache_read_failed"),
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run 'mangarecap cache prune' or delete the file"),
				logging.String(logging.FieldImpact, "provider will be called again"),
			)
		}
		return Entry{}, false
	}
	if entry.Expired(s.now()) {
		s.removeIfExpired(path)
		return Entry{}, false
	}
	return entry, true
}

// removeIfExpired re-reads under the lock so a concurrent Put survives.
func (s *FileStore) removeIfExpired(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := readEntryFile(path)
	if err != nil || !entry.Expired(s.now()) {
		return
	}
	_ = os.Remove(path)
}

// Put stores value under key. Re-putting identical bytes over a live entry is a no-op.
func (s *FileStore) Put(_ context.Context, key Key, value []byte, ttl time.Duration) error {
	path := s.path(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, err := readEntryFile(path); err == nil && !existing.Expired(now) && bytes.Equal(existing.Value, value) {
		return nil
	}

	rec := record{
		Key:        key.Hash(),
		Kind:       key.Kind,
		ProviderID: key.ProviderID,
		CreatedAt:  now.UTC(),
		TTLSeconds: ttlSeconds(ttl),
		Size:       len(value),
	}
	data, err := encodeEntry(rec, value, binaryKinds[key.Kind])
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Invalidate removes key if present.
func (s *FileStore) Invalidate(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove cache entry: %w", err)
	}
	return nil
}

// Prune deletes expired and unreadable entries.
func (s *FileStore) Prune(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	err := s.walk(ctx, func(path string, entry Entry, readErr error) error {
		if readErr == nil && !entry.Expired(now) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

// Clear deletes every entry.
func (s *FileStore) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	err := s.walk(ctx, func(path string, _ Entry, _ error) error {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

// Stats walks the cache tree.
func (s *FileStore) Stats(ctx context.Context) (Stats, error) {
	now := s.now()
	stats := Stats{Backend: "file", Location: s.root, ByKind: map[string]int{}}
	err := s.walk(ctx, func(path string, entry Entry, readErr error) error {
		if info, err := os.Stat(path); err == nil {
			stats.Bytes += info.Size()
		}
		if readErr != nil || entry.Expired(now) {
			stats.Expired++
			return nil
		}
		stats.Entries++
		stats.ByKind[entry.Kind]++
		return nil
	})
	return stats, err
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) walk(ctx context.Context, fn func(path string, entry Entry, readErr error) error) error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") || (!strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".bin")) {
			return nil
		}
		entry, readErr := readEntryFile(path)
		return fn(path, entry, readErr)
	})
}

func encodeEntry(rec record, value []byte, binaryPayload bool) ([]byte, error) {
	if !binaryPayload {
		text := string(value)
		rec.Value = &text
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encode cache entry: %w", err)
		}
		return data, nil
	}
	header, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode cache header: %w", err)
	}
	buf := make([]byte, 4, 4+len(header)+len(value))
	binary.BigEndian.PutUint32(buf, uint32(len(header)))
	buf = append(buf, header...)
	buf = append(buf, value...)
	return buf, nil
}

func readEntryFile(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	if strings.HasSuffix(path, ".bin") {
		return decodeBinaryEntry(data)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Entry{}, fmt.Errorf("decode cache entry: %w", err)
	}
	if rec.Value == nil {
		return Entry{}, errors.New("cache entry has no value")
	}
	return rec.entry([]byte(*rec.Value)), nil
}

func decodeBinaryEntry(data []byte) (Entry, error) {
	if len(data) < 4 {
		return Entry{}, errors.New("cache entry truncated")
	}
	headerLen := int(binary.BigEndian.Uint32(data[:4]))
	if headerLen <= 0 || 4+headerLen > len(data) {
		return Entry{}, errors.New("cache entry header out of range")
	}
	var rec record
	if err := json.Unmarshal(data[4:4+headerLen], &rec); err != nil {
		return Entry{}, fmt.Errorf("decode cache header: %w", err)
	}
	payload := data[4+headerLen:]
	if len(payload) != rec.Size {
		return Entry{}, fmt.Errorf("cache payload size %d, header says %d", len(payload), rec.Size)
	}
	return rec.entry(payload), nil
}
