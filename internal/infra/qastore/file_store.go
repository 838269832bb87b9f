package qastore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/telembed/telembed/internal/domain/qa"
)

// FileStore persists QA entries as pretty-printed JSON so diffs stay
// reviewable. Writes go to a temp file first and are renamed into place;
// a cross-process flock guards the file against concurrent writers.
type FileStore struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

// NewFileStore constructs a store over the given JSON file path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger.With("component", "qastore.file"),
	}
}

// ReadAll loads every entry. A missing file reads as an empty list and
// the parent directory is created so the first write succeeds.
func (s *FileStore) ReadAll(ctx context.Context) ([]qa.Entry, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("create qa store directory: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock qa store: %w", err)
	}
	defer s.unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.logger.Info("qa store file missing, starting empty", "path", s.path)
		return []qa.Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read qa store: %w", err)
	}
	if len(data) == 0 {
		return []qa.Entry{}, nil
	}

	var entries []qa.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode qa store %s: %w", s.path, err)
	}
	s.logger.Info("qa store loaded", "path", s.path, "entries", len(entries))
	return entries, nil
}

// WriteAll replaces the full entry list atomically.
func (s *FileStore) WriteAll(ctx context.Context, entries []qa.Entry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create qa store directory: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock qa store: %w", err)
	}
	defer s.unlock()

	if entries == nil {
		entries = []qa.Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode qa store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write qa store temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace qa store: %w", err)
	}
	return nil
}

func (s *FileStore) unlock() {
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release qa store lock", "error", err)
	}
}

var _ qa.Store = (*FileStore)(nil)
