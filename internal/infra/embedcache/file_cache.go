package embedcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"github.com/telembed/telembed/internal/domain/embedding"
)

// FileCache is the persistent content-addressed embedding cache: one JSON
// file per embedding model mapping question hashes to vectors. A corrupt
// or missing file degrades to an empty cache, never a startup failure.
type FileCache struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger

	mu   sync.Mutex
	data map[string]embedding.Vector
}

// NewFileCache loads (or initializes) the cache file for the given model
// inside dir. The filename is derived by sanitizing the model name.
func NewFileCache(dir, model string, logger *slog.Logger) (*FileCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "embedcache.file")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("embeddings_cache_%s.json", SanitizeModelName(model)))

	c := &FileCache{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
		data:   map[string]embedding.Vector{},
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Info("no embedding cache file, starting empty", "path", path)
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read embedding cache: %w", err)
	}
	if err := json.Unmarshal(raw, &c.data); err != nil {
		logger.Warn("embedding cache file unreadable, starting empty", "path", path, "error", err)
		c.data = map[string]embedding.Vector{}
	} else {
		logger.Info("embedding cache loaded", "path", path, "entries", len(c.data))
	}
	return c, nil
}

// Get returns the cached vector for a question hash.
func (c *FileCache) Get(_ context.Context, hash string) (embedding.Vector, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vec, ok := c.data[hash]
	return vec, ok, nil
}

// Put stores the vector and rewrites the whole file. A whole-map rewrite
// is fine at this scale; temp-then-rename keeps other keys intact if the
// process dies mid-write.
func (c *FileCache) Put(_ context.Context, hash string, vec embedding.Vector) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[hash] = vec
	return c.persistLocked()
}

// Len returns the number of cached vectors.
func (c *FileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

func (c *FileCache) persistLocked() error {
	if err := c.lock.Lock(); err != nil {
		return fmt.Errorf("lock embedding cache: %w", err)
	}
	defer func() {
		if err := c.lock.Unlock(); err != nil {
			c.logger.Warn("failed to release embedding cache lock", "error", err)
		}
	}()

	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode embedding cache: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write embedding cache temp file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace embedding cache: %w", err)
	}
	return nil
}

// SanitizeModelName maps a model identifier to a filesystem-safe token:
// every non-alphanumeric rune becomes an underscore.
func SanitizeModelName(model string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, model)
}

var _ embedding.Cache = (*FileCache)(nil)
