package deterministic

import (
	"context"
	"hash/fnv"

	"github.com/telembed/telembed/internal/domain/credential"
	"github.com/telembed/telembed/internal/domain/embedding"
)

// Provider avoids network calls by hashing text into a vector. Identical
// text always yields the identical vector, which is enough for offline
// runs and tests exercising the index plumbing.
type Provider struct {
	dim int
}

// New constructs the provider.
func New(dim int) *Provider {
	if dim <= 0 {
		dim = 32
	}
	return &Provider{dim: dim}
}

// Embed converts the text into a pseudo-random vector.
func (p *Provider) Embed(_ context.Context, text string, _ credential.Credential) (embedding.Vector, error) {
	vector := make(embedding.Vector, p.dim)
	hash := fnv.New64a()
	_, _ = hash.Write([]byte(text))
	seed := hash.Sum64()
	for i := 0; i < p.dim; i++ {
		seed = seed*1099511628211 + 1469598103934665603
		vector[i] = float64(seed%997) / 997.0
	}
	return vector, nil
}

var _ embedding.Provider = (*Provider)(nil)
