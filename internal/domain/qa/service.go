package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/telembed/telembed/internal/domain/embedding"
	apperrors "github.com/telembed/telembed/pkg/errors"
)

const defaultMaxKeywordResults = 10

// Embedder produces the vector for a question or query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (embedding.Vector, error)
}

// Service exposes the semantic question answering core: a similarity
// index over QA entries kept strictly in sync with durable storage and
// the embedding cache across every mutation.
type Service interface {
	Reload(ctx context.Context) error
	Ask(ctx context.Context, text string) (Match, bool, error)
	Add(ctx context.Context, question, answer FormattedText) (string, error)
	Update(ctx context.Context, hash string, question, answer FormattedText) (bool, error)
	Delete(ctx context.Context, hash string) (bool, error)
	FindByPrefix(prefix string) (Entry, string, bool)
	SearchKeyword(query string) []Entry
	Entries() []Entry
	Len() int
}

// indexed pairs one entry with the vector of its question. Keeping the
// pair in a single ordered slice makes drift between an entry and its
// vector structurally impossible.
type indexed struct {
	entry  Entry
	vector Vector
}

type service struct {
	cfg      Config
	store    Store
	cache    embedding.Cache
	embedder Embedder
	logger   *slog.Logger
	sleepFn  func(ctx context.Context, d time.Duration) error

	mu    sync.RWMutex
	items []indexed
}

// NewService wires up the QA domain.
func NewService(cfg Config, store Store, cache embedding.Cache, embedder Embedder, logger *slog.Logger) Service {
	if cfg.MaxKeywordResults <= 0 {
		cfg.MaxKeywordResults = defaultMaxKeywordResults
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		cfg:      cfg,
		store:    store,
		cache:    cache,
		embedder: embedder,
		logger:   logger.With("component", "qa.service"),
		sleepFn:  sleepCtx,
	}
}

// Reload is the bulk load path used at startup and after external edits.
// It reads every entry from the store and resolves each vector from the
// cache, generating and caching the missing ones. Only the final swap
// holds the write lock; this is the one path allowed to block for long.
func (s *service) Reload(ctx context.Context) error {
	entries, err := s.store.ReadAll(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceFailed, "read qa store", err)
	}

	items := make([]indexed, 0, len(entries))
	generated := 0
	for _, entry := range entries {
		hash := entry.Hash()
		vec, ok, err := s.cache.Get(ctx, hash)
		if err != nil {
			return apperrors.Wrap(apperrors.CodePersistenceFailed, "read embedding cache", err)
		}
		if ok {
			if err := s.checkDimensions(vec); err != nil {
				return err
			}
			items = append(items, indexed{entry: entry, vector: vec})
			continue
		}

		s.logger.Info("cache miss, generating embedding", "hash", shortHash(hash))
		if s.cfg.RebuildPause > 0 {
			if err := s.sleepFn(ctx, s.cfg.RebuildPause); err != nil {
				return err
			}
		}
		vec, err = s.resolveVector(ctx, entry.Question.Text)
		if err != nil {
			return err
		}
		if err := s.cache.Put(ctx, hash, vec); err != nil {
			return apperrors.Wrap(apperrors.CodePersistenceFailed, "write embedding cache", err)
		}
		items = append(items, indexed{entry: entry, vector: vec})
		generated++
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()

	s.logger.Info("qa index loaded", "entries", len(items), "generated", generated)
	return nil
}

// Ask embeds the query text and returns the nearest entry when its
// cosine similarity meets the acceptance threshold.
func (s *service) Ask(ctx context.Context, text string) (Match, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Match{}, false, apperrors.Wrap(apperrors.CodeInvalidInput, "question cannot be empty", nil)
	}
	if s.Len() == 0 {
		return Match{}, false, nil
	}

	query, err := s.resolveVector(ctx, text)
	if err != nil {
		return Match{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, sim, ok := bestMatch(query, s.items)
	if !ok {
		return Match{}, false, nil
	}
	if sim < s.cfg.SimilarityThreshold {
		s.logger.Info("best match below threshold",
			"similarity", fmt.Sprintf("%.4f", sim), "threshold", s.cfg.SimilarityThreshold)
		return Match{}, false, nil
	}
	s.logger.Info("match found",
		"index", idx, "similarity", fmt.Sprintf("%.4f", sim))
	return Match{Entry: s.items[idx].entry, Similarity: sim}, true, nil
}

// Add embeds the new question, appends the entry/vector pair and
// persists the full entry list plus the single new vector.
func (s *service) Add(ctx context.Context, question, answer FormattedText) (string, error) {
	if strings.TrimSpace(question.Text) == "" {
		return "", apperrors.Wrap(apperrors.CodeInvalidInput, "question cannot be empty", nil)
	}
	entry := Entry{Question: question, Answer: answer}
	vec, err := s.resolveVector(ctx, question.Text)
	if err != nil {
		return "", err
	}
	hash := entry.Hash()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, indexed{entry: entry, vector: vec})

	if err := s.store.WriteAll(ctx, s.entriesLocked()); err != nil {
		return hash, apperrors.Wrap(apperrors.CodePersistenceFailed, "persist qa store", err)
	}
	if err := s.cache.Put(ctx, hash, vec); err != nil {
		return hash, apperrors.Wrap(apperrors.CodePersistenceFailed, "persist embedding cache", err)
	}
	s.logger.Info("qa entry added", "hash", shortHash(hash), "entries", len(s.items))
	return hash, nil
}

// Update regenerates the vector for the possibly changed question and
// replaces the pair in place. Returns false for an unknown hash.
func (s *service) Update(ctx context.Context, hash string, question, answer FormattedText) (bool, error) {
	if _, _, found := s.locate(hash); !found {
		return false, nil
	}
	if strings.TrimSpace(question.Text) == "" {
		return false, apperrors.Wrap(apperrors.CodeInvalidInput, "question cannot be empty", nil)
	}

	vec, err := s.resolveVector(ctx, question.Text)
	if err != nil {
		return false, err
	}
	entry := Entry{Question: question, Answer: answer}
	newHash := entry.Hash()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-locate under the write lock; a concurrent mutation may have
	// moved or removed the entry since the pre-check.
	idx := s.indexOfLocked(hash)
	if idx < 0 {
		return false, nil
	}
	s.items[idx] = indexed{entry: entry, vector: vec}

	if err := s.store.WriteAll(ctx, s.entriesLocked()); err != nil {
		return true, apperrors.Wrap(apperrors.CodePersistenceFailed, "persist qa store", err)
	}
	if err := s.cache.Put(ctx, newHash, vec); err != nil {
		return true, apperrors.Wrap(apperrors.CodePersistenceFailed, "persist embedding cache", err)
	}
	s.logger.Info("qa entry updated", "hash", shortHash(hash), "newHash", shortHash(newHash))
	return true, nil
}

// Delete removes the pair at the matching position. The embedding cache
// is left alone: stale vectors are cheap and reusable.
func (s *service) Delete(ctx context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOfLocked(hash)
	if idx < 0 {
		return false, nil
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)

	if err := s.store.WriteAll(ctx, s.entriesLocked()); err != nil {
		return true, apperrors.Wrap(apperrors.CodePersistenceFailed, "persist qa store", err)
	}
	s.logger.Info("qa entry deleted", "hash", shortHash(hash), "entries", len(s.items))
	return true, nil
}

// FindByPrefix returns the first entry whose full question hash starts
// with the given prefix, plus that full hash, so callers never need to
// know the hashing scheme.
func (s *service) FindByPrefix(prefix string) (Entry, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.items {
		full := item.entry.Hash()
		if HasHashPrefix(full, prefix) {
			return item.entry, full, true
		}
	}
	return Entry{}, "", false
}

// SearchKeyword returns entries whose question text contains the query,
// case-insensitive, capped to keep responses small.
func (s *service) SearchKeyword(query string) []Entry {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, item := range s.items {
		if strings.Contains(strings.ToLower(item.entry.Question.Text), query) {
			out = append(out, item.entry)
			if len(out) >= s.cfg.MaxKeywordResults {
				break
			}
		}
	}
	return out
}

// Entries returns a snapshot of the current entry list.
func (s *service) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entriesLocked()
}

// Len returns the number of indexed entries.
func (s *service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *service) resolveVector(ctx context.Context, text string) (Vector, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, embedding.ErrExhausted) {
			return nil, apperrors.Wrap(apperrors.CodeEmbeddingExhausted, "embedding generation exhausted", err)
		}
		return nil, apperrors.Wrap(apperrors.CodeQAError, "embedding generation failed", err)
	}
	if err := s.checkDimensions(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (s *service) checkDimensions(vec Vector) error {
	if s.cfg.Dimensions > 0 && len(vec) != s.cfg.Dimensions {
		return apperrors.Wrap(apperrors.CodeQAError,
			fmt.Sprintf("vector dimension mismatch: got %d want %d", len(vec), s.cfg.Dimensions), nil)
	}
	return nil
}

func (s *service) locate(hash string) (Entry, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexOfLocked(hash); idx >= 0 {
		return s.items[idx].entry, idx, true
	}
	return Entry{}, -1, false
}

// indexOfLocked requires s.mu held in at least read mode.
func (s *service) indexOfLocked(hash string) int {
	for i, item := range s.items {
		if item.entry.Hash() == hash {
			return i
		}
	}
	return -1
}

// entriesLocked requires s.mu held in at least read mode.
func (s *service) entriesLocked() []Entry {
	out := make([]Entry, len(s.items))
	for i, item := range s.items {
		out[i] = item.entry
	}
	return out
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
