package qa

import (
	"context"
	"errors"
	"testing"

	"github.com/telembed/telembed/internal/domain/embedding"
	apperrors "github.com/telembed/telembed/pkg/errors"
)

type fakeStore struct {
	entries  []Entry
	writes   int
	failNext bool
}

func (s *fakeStore) ReadAll(context.Context) ([]Entry, error) {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *fakeStore) WriteAll(_ context.Context, entries []Entry) error {
	if s.failNext {
		s.failNext = false
		return errors.New("disk full")
	}
	s.entries = make([]Entry, len(entries))
	copy(s.entries, entries)
	s.writes++
	return nil
}

type fakeCache struct {
	data map[string]Vector
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string]Vector{}} }

func (c *fakeCache) Get(_ context.Context, hash string) (Vector, bool, error) {
	v, ok := c.data[hash]
	return v, ok, nil
}

func (c *fakeCache) Put(_ context.Context, hash string, vec Vector) error {
	c.data[hash] = vec
	return nil
}

// mapEmbedder returns canned vectors keyed by text.
type mapEmbedder struct {
	vectors map[string]Vector
	calls   int
}

func (e *mapEmbedder) Embed(_ context.Context, text string) (embedding.Vector, error) {
	e.calls++
	if v, ok := e.vectors[text]; ok {
		return embedding.Vector(v), nil
	}
	return embedding.Vector{0, 0}, nil
}

func plain(text string) FormattedText { return FormattedText{Text: text} }

func newTestService(store *fakeStore, cache *fakeCache, emb Embedder) *service {
	svc := NewService(Config{SimilarityThreshold: 0.8, Dimensions: 2}, store, cache, emb, nil)
	return svc.(*service)
}

func TestAskEmptyIndex(t *testing.T) {
	emb := &mapEmbedder{}
	svc := newTestService(&fakeStore{}, newFakeCache(), emb)

	_, found, err := svc.Ask(context.Background(), "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("empty index must never match")
	}
	if emb.calls != 0 {
		t.Fatal("empty index must not call the provider")
	}
}

func TestAskMatchAboveThreshold(t *testing.T) {
	emb := &mapEmbedder{vectors: map[string]Vector{
		"what is go": {1, 0},
		"query":      {1, 0},
	}}
	store := &fakeStore{}
	svc := newTestService(store, newFakeCache(), emb)

	if _, err := svc.Add(context.Background(), plain("what is go"), plain("a language")); err != nil {
		t.Fatalf("add: %v", err)
	}

	match, found, err := svc.Ask(context.Background(), "query")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !found {
		t.Fatal("expected a match")
	}
	if match.Similarity < 0.999 {
		t.Fatalf("expected similarity 1.0, got %v", match.Similarity)
	}
	if match.Entry.Answer.Text != "a language" {
		t.Fatalf("wrong entry returned: %+v", match.Entry)
	}
}

func TestAskBelowThresholdIsMiss(t *testing.T) {
	emb := &mapEmbedder{vectors: map[string]Vector{
		"what is go": {1, 0},
		"query":      {0, 1}, // orthogonal, similarity 0
	}}
	svc := newTestService(&fakeStore{}, newFakeCache(), emb)
	if _, err := svc.Add(context.Background(), plain("what is go"), plain("a language")); err != nil {
		t.Fatalf("add: %v", err)
	}

	_, found, err := svc.Ask(context.Background(), "query")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if found {
		t.Fatal("sub-threshold best match must not be a hit")
	}
}

func TestAddThenDeleteRestoresLength(t *testing.T) {
	emb := &mapEmbedder{vectors: map[string]Vector{"q1": {1, 0}}}
	store := &fakeStore{}
	svc := newTestService(store, newFakeCache(), emb)

	hash, err := svc.Add(context.Background(), plain("q1"), plain("a1"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if svc.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", svc.Len())
	}

	found, err := svc.Delete(context.Background(), hash)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !found {
		t.Fatal("delete should find the entry")
	}
	if svc.Len() != 0 {
		t.Fatalf("expected empty index, got %d", svc.Len())
	}
	if _, _, ok := svc.FindByPrefix(hash[:8]); ok {
		t.Fatal("deleted entry must not resolve by prefix")
	}
	if len(store.entries) != 0 {
		t.Fatal("store must reflect the delete")
	}
}

func TestDeleteUnknownHash(t *testing.T) {
	svc := newTestService(&fakeStore{}, newFakeCache(), &mapEmbedder{})
	found, err := svc.Delete(context.Background(), QuestionHash("missing"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("unknown hash must report not found")
	}
}

func TestUpdateReplacesInPlace(t *testing.T) {
	emb := &mapEmbedder{vectors: map[string]Vector{
		"q1": {1, 0},
		"q2": {0, 1},
		"q3": {1, 1},
	}}
	store := &fakeStore{}
	cache := newFakeCache()
	svc := newTestService(store, cache, emb)

	h1, _ := svc.Add(context.Background(), plain("q1"), plain("a1"))
	if _, err := svc.Add(context.Background(), plain("q2"), plain("a2")); err != nil {
		t.Fatalf("add: %v", err)
	}

	found, err := svc.Update(context.Background(), h1, plain("q3"), plain("a3"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !found {
		t.Fatal("update should find the entry")
	}
	if svc.Len() != 2 {
		t.Fatalf("update must not change length, got %d", svc.Len())
	}
	if _, _, ok := svc.FindByPrefix(h1[:8]); ok {
		t.Fatal("old hash must no longer resolve")
	}
	entry, full, ok := svc.FindByPrefix(QuestionHash("q3")[:8])
	if !ok || entry.Answer.Text != "a3" {
		t.Fatalf("updated entry not found: ok=%v entry=%+v", ok, entry)
	}
	if _, ok := cache.data[full]; !ok {
		t.Fatal("cache must hold the vector under the new hash")
	}
}

func TestUpdateUnknownHash(t *testing.T) {
	svc := newTestService(&fakeStore{}, newFakeCache(), &mapEmbedder{})
	found, err := svc.Update(context.Background(), "feedbeef", plain("x"), plain("y"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("unknown hash must report not found")
	}
}

func TestInvariantHoldsWhenPersistenceFails(t *testing.T) {
	emb := &mapEmbedder{vectors: map[string]Vector{"q1": {1, 0}}}
	store := &fakeStore{failNext: true}
	svc := newTestService(store, newFakeCache(), emb)

	_, err := svc.Add(context.Background(), plain("q1"), plain("a1"))
	if !apperrors.IsCode(err, apperrors.CodePersistenceFailed) {
		t.Fatalf("expected persistence_failed, got %v", err)
	}
	// In-memory state is ahead of durable state but stays queryable:
	// the entry and its vector moved together.
	if svc.Len() != 1 {
		t.Fatalf("in-memory index should hold the new entry, got %d", svc.Len())
	}
	if len(store.entries) != 0 {
		t.Fatal("durable store must not reflect the failed write")
	}
	match, found, err := svc.Ask(context.Background(), "q1")
	if err != nil || !found {
		t.Fatalf("index should still answer from memory: found=%v err=%v", found, err)
	}
	if match.Entry.Answer.Text != "a1" {
		t.Fatalf("wrong entry returned: %+v", match.Entry)
	}
}

func TestReloadUsesCacheAndGeneratesMisses(t *testing.T) {
	e1 := Entry{Question: plain("q1"), Answer: plain("a1")}
	e2 := Entry{Question: plain("q2"), Answer: plain("a2")}
	store := &fakeStore{entries: []Entry{e1, e2}}
	cache := newFakeCache()
	cache.data[e1.Hash()] = Vector{1, 0}

	emb := &mapEmbedder{vectors: map[string]Vector{"q2": {0, 1}}}
	svc := newTestService(store, cache, emb)

	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if svc.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", svc.Len())
	}
	if emb.calls != 1 {
		t.Fatalf("only the cache miss should hit the provider, got %d calls", emb.calls)
	}
	if _, ok := cache.data[e2.Hash()]; !ok {
		t.Fatal("freshly generated vector must land in the cache")
	}
}

func TestReloadRejectsDimensionMismatch(t *testing.T) {
	e1 := Entry{Question: plain("q1"), Answer: plain("a1")}
	store := &fakeStore{entries: []Entry{e1}}
	cache := newFakeCache()
	cache.data[e1.Hash()] = Vector{1, 0, 0} // three dims, config says two

	svc := newTestService(store, cache, &mapEmbedder{})
	if err := svc.Reload(context.Background()); !apperrors.IsCode(err, apperrors.CodeQAError) {
		t.Fatalf("expected dimension mismatch error, got %v", err)
	}
}

func TestSearchKeyword(t *testing.T) {
	emb := &mapEmbedder{vectors: map[string]Vector{
		"How do I install Go?": {1, 0},
		"Where is the doc?":    {0, 1},
	}}
	svc := newTestService(&fakeStore{}, newFakeCache(), emb)
	if _, err := svc.Add(context.Background(), plain("How do I install Go?"), plain("a")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.Add(context.Background(), plain("Where is the doc?"), plain("b")); err != nil {
		t.Fatalf("add: %v", err)
	}

	hits := svc.SearchKeyword("install go")
	if len(hits) != 1 || hits[0].Answer.Text != "a" {
		t.Fatalf("unexpected keyword hits: %+v", hits)
	}
	if hits := svc.SearchKeyword(""); hits != nil {
		t.Fatal("empty query must return nothing")
	}
}
