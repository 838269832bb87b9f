package embedding

import "context"

// Cache is the persistent hash -> vector mapping that avoids recomputing
// embeddings for unchanged questions. Put is durable; entries are added
// and never proactively evicted, so stale entries for deleted questions
// are harmless and may be reused if the question text reappears.
type Cache interface {
	Get(ctx context.Context, hash string) (Vector, bool, error)
	Put(ctx context.Context, hash string, vec Vector) error
}
