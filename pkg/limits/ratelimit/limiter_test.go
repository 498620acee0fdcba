package ratelimit

import (
	"sync"
	"testing"
	"time"

	"zeno-hq/gateway/pkg/config"
)

func testLimiter(requests int, window time.Duration, burst int) (*IPLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewIPLimiter(config.RateLimitConfig{
		Enabled:       true,
		Requests:      requests,
		Window:        window,
		Burst:         burst,
		IdleTTL:       15 * time.Minute,
		SweepInterval: time.Minute,
	})
	l.now = clock.Now
	return l, clock
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestIPLimiter_QuotaEnforced(t *testing.T) {
	l, _ := testLimiter(5, time.Minute, 5)

	// First N requests within the window are admitted.
	for i := 0; i < 5; i++ {
		if d := l.Admit("10.0.0.1"); !d.Allowed {
			t.Fatalf("Request %d should be admitted", i+1)
		}
	}

	// Request N+1 is denied with a retry hint.
	d := l.Admit("10.0.0.1")
	if d.Allowed {
		t.Fatal("Request beyond quota should be denied")
	}
	if d.RetryAfter <= 0 {
		t.Errorf("Denied decision should carry a retry hint, got %v", d.RetryAfter)
	}
}

func TestIPLimiter_IndependentPerIP(t *testing.T) {
	l, _ := testLimiter(2, time.Minute, 2)

	l.Admit("10.0.0.1")
	l.Admit("10.0.0.1")
	if d := l.Admit("10.0.0.1"); d.Allowed {
		t.Fatal("First client should be out of quota")
	}

	if d := l.Admit("10.0.0.2"); !d.Allowed {
		t.Fatal("Second client must not be affected by the first client's quota")
	}
}

func TestIPLimiter_Refill(t *testing.T) {
	l, clock := testLimiter(60, time.Minute, 2)

	l.Admit("10.0.0.1")
	l.Admit("10.0.0.1")
	if d := l.Admit("10.0.0.1"); d.Allowed {
		t.Fatal("Bucket should be empty")
	}

	// 60/min refills one token per second.
	clock.Advance(time.Second)
	if d := l.Admit("10.0.0.1"); !d.Allowed {
		t.Fatal("Bucket should have refilled one token")
	}
	if d := l.Admit("10.0.0.1"); d.Allowed {
		t.Fatal("Only one token should have refilled")
	}
}

func TestIPLimiter_BurstCapped(t *testing.T) {
	l, clock := testLimiter(60, time.Minute, 3)

	// Idle for a long time: tokens must not accumulate past the burst.
	clock.Advance(time.Hour)

	admitted := 0
	for i := 0; i < 10; i++ {
		if l.Admit("10.0.0.1").Allowed {
			admitted++
		}
	}
	if admitted != 3 {
		t.Errorf("Expected burst of 3 admitted, got %d", admitted)
	}
}

// Two concurrent requests near the quota boundary must not both observe the
// last remaining slot. Run many rounds of N+1 concurrent requests against a
// quota of N and require exactly N admissions each round.
func TestIPLimiter_AtomicAdmission(t *testing.T) {
	const quota = 8

	for round := 0; round < 20; round++ {
		l, _ := testLimiter(quota, time.Hour, quota)

		var wg sync.WaitGroup
		var mu sync.Mutex
		admitted := 0

		for i := 0; i < quota+1; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if l.Admit("10.0.0.1").Allowed {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if admitted != quota {
			t.Fatalf("Round %d: admitted %d of %d concurrent requests, want exactly %d",
				round, admitted, quota+1, quota)
		}
	}
}

func TestIPLimiter_SweepEvictsIdle(t *testing.T) {
	l, clock := testLimiter(10, time.Minute, 10)

	l.Admit("10.0.0.1")
	l.Admit("10.0.0.2")
	if l.Len() != 2 {
		t.Fatalf("Expected 2 buckets, got %d", l.Len())
	}

	// Keep one client active past the TTL cutoff.
	clock.Advance(10 * time.Minute)
	l.Admit("10.0.0.2")
	clock.Advance(10 * time.Minute)

	evicted := l.sweep()
	if evicted != 1 {
		t.Errorf("Expected 1 eviction, got %d", evicted)
	}
	if l.Len() != 1 {
		t.Errorf("Expected 1 bucket to survive, got %d", l.Len())
	}

	// The surviving client keeps its state; the evicted one starts fresh.
	if d := l.Admit("10.0.0.1"); !d.Allowed {
		t.Error("Evicted client should get a fresh bucket")
	}
}
