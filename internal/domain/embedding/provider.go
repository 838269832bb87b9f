package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/telembed/telembed/internal/domain/credential"
)

// Vector is a fixed-length embedding. Dimensionality is set by the model
// and must match between cache reads, index entries and live queries.
type Vector []float64

// Provider converts text to a fixed-dimension vector using one credential.
type Provider interface {
	Embed(ctx context.Context, text string, cred credential.Credential) (Vector, error)
}

// ProviderError is the tagged failure returned by providers. The retry
// policy branches on RateLimited instead of matching message text.
type ProviderError struct {
	StatusCode  int
	Message     string
	RateLimited bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: status=%d rate_limited=%t: %s", e.StatusCode, e.RateLimited, e.Message)
}

// IsRateLimited reports whether err carries the provider's quota signal.
func IsRateLimited(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.RateLimited
}
