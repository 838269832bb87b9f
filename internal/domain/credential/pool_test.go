package credential

import (
	"testing"
	"time"
)

func newTestPool(secrets []string, limits Limits, now time.Time) (*Pool, *time.Time) {
	clock := now
	p := NewPool(secrets, limits, nil)
	p.nowFn = func() time.Time { return clock }
	return p, &clock
}

func TestAcquireRoundRobinFairness(t *testing.T) {
	secrets := []string{"key-a", "key-b", "key-c"}
	p, _ := newTestPool(secrets, Limits{}, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	seen := make(map[string]int)
	for i := 0; i < len(secrets); i++ {
		cred, err := p.Acquire()
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		seen[cred.Secret]++
	}

	for _, s := range secrets {
		if seen[s] != 1 {
			t.Fatalf("expected each credential once per cycle, got %v", seen)
		}
	}
}

func TestAcquireSkipsDisabledCredential(t *testing.T) {
	p, _ := newTestPool([]string{"key-a", "key-b"}, Limits{}, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	p.Disable(Credential{Secret: "key-a"})

	cred, err := p.Acquire()
	if err != nil {
		t.Fatalf("expected the second credential, got error: %v", err)
	}
	if cred.Secret != "key-b" {
		t.Fatalf("expected key-b, got %s", cred.Secret)
	}
}

func TestDisabledCredentialReenablesAfterUTCDayBoundary(t *testing.T) {
	start := time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)
	p, clock := newTestPool([]string{"key-a"}, Limits{}, start)

	p.Disable(Credential{Secret: "key-a"})
	if _, err := p.Acquire(); err != ErrNoneAvailable {
		t.Fatalf("expected ErrNoneAvailable while disabled, got %v", err)
	}

	*clock = time.Date(2025, 3, 2, 0, 0, 1, 0, time.UTC)
	cred, err := p.Acquire()
	if err != nil {
		t.Fatalf("expected credential after quota reset, got %v", err)
	}
	if cred.Secret != "key-a" {
		t.Fatalf("expected key-a, got %s", cred.Secret)
	}
}

func TestAcquireHonorsPerMinuteBudget(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p, clock := newTestPool([]string{"key-a"}, Limits{RequestsPerMinute: 2, RequestsPerDay: 100}, start)

	for i := 0; i < 2; i++ {
		if _, err := p.Acquire(); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if _, err := p.Acquire(); err != ErrNoneAvailable {
		t.Fatalf("expected over-budget credential to be skipped, got %v", err)
	}

	*clock = start.Add(61 * time.Second)
	if _, err := p.Acquire(); err != nil {
		t.Fatalf("expected budget to free up after a minute, got %v", err)
	}
}

func TestAcquireHonorsDailyBudget(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	p, clock := newTestPool([]string{"key-a"}, Limits{RequestsPerMinute: 100, RequestsPerDay: 3}, start)

	for i := 0; i < 3; i++ {
		*clock = start.Add(time.Duration(i) * 2 * time.Minute)
		if _, err := p.Acquire(); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	*clock = start.Add(10 * time.Minute)
	if _, err := p.Acquire(); err != ErrNoneAvailable {
		t.Fatalf("expected daily cap to reject, got %v", err)
	}

	// Uses older than 24h are pruned lazily on the next acquire.
	*clock = start.Add(25 * time.Hour)
	if _, err := p.Acquire(); err != nil {
		t.Fatalf("expected stale uses to be pruned, got %v", err)
	}
}

func TestDisableUnknownCredentialIsNoop(t *testing.T) {
	p, _ := newTestPool([]string{"key-a"}, Limits{}, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	p.Disable(Credential{Secret: "does-not-exist"})

	if _, err := p.Acquire(); err != nil {
		t.Fatalf("pool should be unaffected, got %v", err)
	}
}

func TestAcquireEmptyPool(t *testing.T) {
	p, _ := newTestPool(nil, Limits{}, time.Now())
	if _, err := p.Acquire(); err != ErrNoneAvailable {
		t.Fatalf("expected ErrNoneAvailable, got %v", err)
	}
}
