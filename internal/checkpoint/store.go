package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"mangarecap/internal/fileutil"
	"mangarecap/internal/logging"
	"mangarecap/internal/services"
)

const lockRetryDelay = 100 * time.Millisecond

// Dir returns the checkpoint directory under a run directory.
func Dir(workDir string) string {
	return filepath.Join(workDir, "checkpoint")
}

// Store reads and writes chapter checkpoints. Safe for concurrent use.
type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	slots map[string]chan struct{}
}

// Open creates the checkpoint directory under workDir.
func Open(workDir string, logger *slog.Logger) (*Store, error) {
	dir := Dir(workDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{
		dir:    dir,
		logger: logging.NewComponentLogger(logger, "checkpoint"),
		now:    time.Now,
		slots:  map[string]chan struct{}{},
	}, nil
}

// Path returns the checkpoint file for a chapter.
func (s *Store) Path(chapterID string) string {
	return filepath.Join(s.dir, chapterID+".json")
}

func validID(chapterID string) error {
	if strings.TrimSpace(chapterID) == "" || strings.ContainsAny(chapterID, `/\`) || strings.HasPrefix(chapterID, ".") {
		return services.Wrap(services.ErrValidation, "checkpoint", "id", fmt.Sprintf("invalid chapter id %q", chapterID), nil)
	}
	return nil
}

// Load returns the checkpoint for chapterID. A missing or unreadable file
// yields nil with no error; corruption is logged.
func (s *Store) Load(chapterID string) (*Checkpoint, error) {
	if err := validID(chapterID); err != nil {
		return nil, err
	}
	path := s.Path(chapterID)
	var cp Checkpoint
	err := fileutil.ReadJSON(path, &cp)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case err == nil && cp.ChapterID != chapterID:
		err = fmt.Errorf("checkpoint names chapter %q", cp.ChapterID)
	}
	if err != nil {
		s.warnCorrupt(chapterID, path, err)
		return nil, nil
	}
	if cp.Artifacts == nil {
		cp.Artifacts = map[Stage]string{}
	}
	if cp.Providers == nil {
		cp.Providers = map[Stage]string{}
	}
	return &cp, nil
}

func (s *Store) warnCorrupt(chapterID, path string, err error) {
	logging.WarnWithContext(s.logger, "checkpoint unreadable, starting chapter fresh", "checkpoint_corrupt",
		logging.String(logging.FieldChapterID, chapterID),
		logging.String("path", path),
		logging.Error(services.Wrap(services.ErrCheckpointCorrupt, "checkpoint", "load", "", err)),
		logging.String(logging.FieldErrorHint, "the file is replaced on the next save"),
		logging.String(logging.FieldImpact, "completed stages will run again"),
	)
}

// Save persists cp atomically and stamps its timestamps.
func (s *Store) Save(cp *Checkpoint) error {
	if cp == nil {
		return errors.New("checkpoint is nil")
	}
	if err := validID(cp.ChapterID); err != nil {
		return err
	}
	now := s.now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	if err := fileutil.WriteJSONAtomic(s.Path(cp.ChapterID), cp); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", cp.ChapterID, err)
	}
	return nil
}

// Clear removes the checkpoint for chapterID if present.
func (s *Store) Clear(chapterID string) error {
	if err := validID(chapterID); err != nil {
		return err
	}
	if err := os.Remove(s.Path(chapterID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear checkpoint %s: %w", chapterID, err)
	}
	return nil
}

// List returns every readable checkpoint sorted by chapter ID.
func (s *Store) List() ([]Checkpoint, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint dir: %w", err)
	}
	var out []Checkpoint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, ".") {
			continue
		}
		cp, err := s.Load(strings.TrimSuffix(name, ".json"))
		if err != nil || cp == nil {
			continue
		}
		out = append(out, *cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChapterID < out[j].ChapterID })
	return out, nil
}

// Lock serializes work on chapterID. Goroutines in this process queue on a
// per-chapter slot; other processes are excluded by a file lock. The returned
// function releases both.
func (s *Store) Lock(ctx context.Context, chapterID string) (func(), error) {
	if err := validID(chapterID); err != nil {
		return nil, err
	}
	slot := s.slot(chapterID)
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	fl := flock.New(filepath.Join(s.dir, "."+chapterID+".lock"))
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		<-slot
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return nil, fmt.Errorf("lock chapter %s: %w", chapterID, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := fl.Unlock(); err != nil {
				s.logger.Warn("failed to release chapter lock",
					logging.String(logging.FieldChapterID, chapterID),
					logging.Error(err),
				)
			}
			<-slot
		})
	}, nil
}

func (s *Store) slot(chapterID string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[chapterID]
	if !ok {
		slot = make(chan struct{}, 1)
		s.slots[chapterID] = slot
	}
	return slot
}
