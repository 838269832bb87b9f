package credential

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/telembed/telembed/pkg/util"
)

// ErrNoneAvailable signals that every credential is disabled or over its
// short-term budget. Callers should back off and retry.
var ErrNoneAvailable = errors.New("no credential available")

// Credential is a provider API key handed out by the pool.
type Credential struct {
	Secret string
}

// Suffix returns the last four characters of the secret for log output.
func (c Credential) Suffix() string {
	if len(c.Secret) <= 4 {
		return c.Secret
	}
	return c.Secret[len(c.Secret)-4:]
}

type key struct {
	secret        string
	disabledUntil time.Time
	uses          []time.Time
}

// Limits caps per-credential request rates. Zero values disable accounting.
type Limits struct {
	RequestsPerMinute int
	RequestsPerDay    int
}

// Pool hands out usable credentials in round-robin order and tracks
// per-credential usage and temporary disablement.
type Pool struct {
	mu      sync.Mutex
	keys    []key
	lastIdx int
	limits  Limits
	nowFn   func() time.Time
	logger  *slog.Logger
}

// NewPool constructs a pool over the given secrets.
func NewPool(secrets []string, limits Limits, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	keys := make([]key, 0, len(secrets))
	for _, s := range secrets {
		keys = append(keys, key{secret: s})
	}
	return &Pool{
		keys:   keys,
		limits: limits,
		nowFn:  util.NowUTC,
		logger: logger.With("component", "credential.pool"),
	}
}

// Acquire returns the next usable credential in round-robin order and
// records the use. The whole read-modify-write runs in one critical section.
func (p *Pool) Acquire() (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.keys) == 0 {
		return Credential{}, ErrNoneAvailable
	}

	now := p.nowFn()
	p.refresh(now)

	dayAgo := now.Add(-24 * time.Hour)
	minuteAgo := now.Add(-time.Minute)
	start := (p.lastIdx + 1) % len(p.keys)

	for i := 0; i < len(p.keys); i++ {
		idx := (start + i) % len(p.keys)
		k := &p.keys[idx]
		if !k.disabledUntil.IsZero() {
			continue
		}
		if !p.withinBudget(k, dayAgo, minuteAgo) {
			continue
		}
		k.uses = append(k.uses, now)
		p.lastIdx = idx
		return Credential{Secret: k.secret}, nil
	}

	return Credential{}, ErrNoneAvailable
}

// refresh is the state-transition pass applied at the start of every
// Acquire: expired disables are cleared and stale use timestamps pruned.
func (p *Pool) refresh(now time.Time) {
	dayAgo := now.Add(-24 * time.Hour)
	for i := range p.keys {
		k := &p.keys[i]
		if !k.disabledUntil.IsZero() && !now.Before(k.disabledUntil) {
			k.disabledUntil = time.Time{}
			p.logger.Info("re-enabling credential", "suffix", Credential{Secret: k.secret}.Suffix())
		}
		kept := k.uses[:0]
		for _, t := range k.uses {
			if t.After(dayAgo) {
				kept = append(kept, t)
			}
		}
		k.uses = kept
	}
}

func (p *Pool) withinBudget(k *key, dayAgo, minuteAgo time.Time) bool {
	if p.limits.RequestsPerMinute <= 0 && p.limits.RequestsPerDay <= 0 {
		return true
	}
	if p.limits.RequestsPerDay > 0 && len(k.uses) >= p.limits.RequestsPerDay {
		return false
	}
	if p.limits.RequestsPerMinute > 0 {
		recent := 0
		for _, t := range k.uses {
			if t.After(minuteAgo) {
				recent++
			}
		}
		if recent >= p.limits.RequestsPerMinute {
			return false
		}
	}
	return true
}

// Disable marks the credential unusable until the next UTC day boundary,
// when the provider's daily quota resets. Unknown secrets are a no-op.
func (p *Pool) Disable(cred Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.keys {
		if p.keys[i].secret != cred.Secret {
			continue
		}
		until := nextUTCDay(p.nowFn())
		p.keys[i].disabledUntil = until
		p.logger.Warn("disabling credential until quota reset", "suffix", cred.Suffix(), "until", until)
		return
	}
}

// Size returns the number of configured credentials.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

func nextUTCDay(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
