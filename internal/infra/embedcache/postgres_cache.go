package embedcache

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/telembed/telembed/internal/domain/embedding"
)

// PostgresCache keeps embeddings in a pgvector column keyed by model and
// question hash.
type PostgresCache struct {
	pool  *pgxpool.Pool
	model string
}

// NewPostgresCache constructs the cache and provisions its schema.
func NewPostgresCache(ctx context.Context, pool *pgxpool.Pool, model string, dims int) (*PostgresCache, error) {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return nil, fmt.Errorf("provision pgvector extension: %w", err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS embedding_cache (
			model     TEXT NOT NULL,
			hash      TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			PRIMARY KEY (model, hash)
		)
	`, dims)); err != nil {
		return nil, fmt.Errorf("provision embedding_cache: %w", err)
	}
	return &PostgresCache{pool: pool, model: model}, nil
}

func (c *PostgresCache) Get(ctx context.Context, hash string) (embedding.Vector, bool, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT embedding FROM embedding_cache WHERE model = $1 AND hash = $2
	`, c.model, hash)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, false, rows.Err()
	}
	var vec pgvector.Vector
	if err := rows.Scan(&vec); err != nil {
		return nil, false, err
	}
	return toVector(vec), true, rows.Err()
}

func (c *PostgresCache) Put(ctx context.Context, hash string, vec embedding.Vector) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO embedding_cache (model, hash, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (model, hash) DO UPDATE SET embedding = EXCLUDED.embedding
	`, c.model, hash, fromVector(vec))
	return err
}

func toVector(v pgvector.Vector) embedding.Vector {
	slice := v.Slice()
	out := make(embedding.Vector, len(slice))
	for i, f := range slice {
		out[i] = float64(f)
	}
	return out
}

func fromVector(v embedding.Vector) pgvector.Vector {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return pgvector.NewVector(out)
}

var _ embedding.Cache = (*PostgresCache)(nil)
