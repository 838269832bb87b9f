package embedcache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/valkey-io/valkey-go"

	"github.com/telembed/telembed/internal/domain/embedding"
)

// ValkeyCache stores embeddings in a Valkey hash keyed per model, vectors
// serialized as JSON arrays.
type ValkeyCache struct {
	client valkey.Client
	key    string
}

// NewValkeyCache constructs a cache bound to one embedding model.
func NewValkeyCache(client valkey.Client, model string) *ValkeyCache {
	return &ValkeyCache{
		client: client,
		key:    fmt.Sprintf("embeddings:%s", SanitizeModelName(model)),
	}
}

func (c *ValkeyCache) Get(ctx context.Context, hash string) (embedding.Vector, bool, error) {
	cmd := c.client.B().Hget().Key(c.key).Field(hash).Build()
	payload, err := c.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var vec embedding.Vector
	if err := json.Unmarshal([]byte(payload), &vec); err != nil {
		return nil, false, fmt.Errorf("decode cached vector: %w", err)
	}
	return vec, true, nil
}

func (c *ValkeyCache) Put(ctx context.Context, hash string, vec embedding.Vector) error {
	payload, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("encode vector: %w", err)
	}
	cmd := c.client.B().Hset().Key(c.key).FieldValue().FieldValue(hash, string(payload)).Build()
	return c.client.Do(ctx, cmd).Error()
}

var _ embedding.Cache = (*ValkeyCache)(nil)
