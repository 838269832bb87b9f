package embedcache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/telembed/telembed/internal/domain/embedding"
)

// MemoryLayer is a read-through LRU in front of a persistent cache. Hits
// skip the backing store entirely; misses fall through and are promoted.
type MemoryLayer struct {
	hot     *lru.Cache[string, embedding.Vector]
	backing embedding.Cache
}

// NewMemoryLayer wraps backing with an LRU of at most maxEntries vectors.
func NewMemoryLayer(maxEntries int, backing embedding.Cache) (*MemoryLayer, error) {
	hot, err := lru.New[string, embedding.Vector](maxEntries)
	if err != nil {
		return nil, err
	}
	return &MemoryLayer{hot: hot, backing: backing}, nil
}

func (m *MemoryLayer) Get(ctx context.Context, hash string) (embedding.Vector, bool, error) {
	if vec, ok := m.hot.Get(hash); ok {
		return vec, true, nil
	}
	vec, ok, err := m.backing.Get(ctx, hash)
	if err != nil || !ok {
		return nil, ok, err
	}
	m.hot.Add(hash, vec)
	return vec, true, nil
}

func (m *MemoryLayer) Put(ctx context.Context, hash string, vec embedding.Vector) error {
	if err := m.backing.Put(ctx, hash, vec); err != nil {
		return err
	}
	m.hot.Add(hash, vec)
	return nil
}

var _ embedding.Cache = (*MemoryLayer)(nil)
