package embedding

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/telembed/telembed/internal/domain/credential"
)

// ErrExhausted is returned once a single Embed call has burned through its
// attempt ceiling. It is terminal for that call; the caller may retry later.
var ErrExhausted = errors.New("embedding attempts exhausted")

// Config holds the retry knobs for the generator.
type Config struct {
	MaxAttempts   int
	PoolRetryWait time.Duration // wait when no credential is available
	ErrorWait     time.Duration // wait after a transient provider failure
}

// DefaultConfig mirrors the provider's observed recovery behavior.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   10,
		PoolRetryWait: 60 * time.Second,
		ErrorWait:     5 * time.Second,
	}
}

// Generator produces vectors for text, hiding provider instability behind
// credential rotation and retry.
type Generator struct {
	cfg      Config
	pool     *credential.Pool
	provider Provider
	logger   *slog.Logger
	sleepFn  func(ctx context.Context, d time.Duration) error
}

// NewGenerator wires the generator over a credential pool and provider.
func NewGenerator(cfg Config, pool *credential.Pool, provider Provider, logger *slog.Logger) *Generator {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		cfg:      cfg,
		pool:     pool,
		provider: provider,
		logger:   logger.With("component", "embedding.generator"),
		sleepFn:  sleepCtx,
	}
}

// Embed returns the vector for text. Rate-limited credentials are disabled
// and the next key is tried immediately; transient failures wait a short
// interval. The pool lock is never held across the provider call.
func (g *Generator) Embed(ctx context.Context, text string) (Vector, error) {
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		cred, err := g.pool.Acquire()
		if err != nil {
			g.logger.Error("no credential available, backing off",
				"attempt", attempt, "wait", g.cfg.PoolRetryWait, "error", err)
			if err := g.sleepFn(ctx, g.cfg.PoolRetryWait); err != nil {
				return nil, err
			}
			continue
		}

		vec, err := g.provider.Embed(ctx, text, cred)
		if err == nil {
			return vec, nil
		}

		if IsRateLimited(err) {
			g.logger.Warn("credential rate-limited, rotating",
				"suffix", cred.Suffix(), "attempt", attempt, "error", err)
			g.pool.Disable(cred)
			continue
		}

		g.logger.Error("embedding failed, retrying",
			"suffix", cred.Suffix(), "attempt", attempt, "wait", g.cfg.ErrorWait, "error", err)
		if err := g.sleepFn(ctx, g.cfg.ErrorWait); err != nil {
			return nil, err
		}
	}
	return nil, ErrExhausted
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
