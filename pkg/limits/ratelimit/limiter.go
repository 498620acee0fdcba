package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"zeno-hq/gateway/pkg/config"
)

// Decision is the result of an admission check.
type Decision struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// Remaining is the number of requests left in the client's burst.
	Remaining int64

	// RetryAfter suggests how long to wait before retrying (when denied).
	RetryAfter time.Duration
}

// IPLimiter admits or denies requests per client IP.
//
// Each IP gets its own token bucket, created on first sight. The admission
// decision for a given IP is atomic: the bucket's own lock covers the
// refill-and-consume sequence, and the table lock only guards the map.
type IPLimiter struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket

	burst         float64
	refillRate    float64 // tokens per second
	idleTTL       time.Duration
	sweepInterval time.Duration

	logger *slog.Logger

	// now is replaceable in tests to drive window and eviction logic.
	now func() time.Time
}

// NewIPLimiter creates a limiter from configuration. The sweep loop is not
// started until Run is called.
func NewIPLimiter(cfg config.RateLimitConfig) *IPLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.Requests
	}

	return &IPLimiter{
		buckets:       make(map[string]*tokenBucket),
		burst:         float64(burst),
		refillRate:    float64(cfg.Requests) / cfg.Window.Seconds(),
		idleTTL:       cfg.IdleTTL,
		sweepInterval: cfg.SweepInterval,
		logger:        slog.Default().With("component", "ratelimit"),
		now:           time.Now,
	}
}

// Admit checks whether a request from ip may proceed, consuming one token
// when it may.
func (l *IPLimiter) Admit(ip string) Decision {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[ip]
	if !ok {
		b = newTokenBucket(l.burst, l.refillRate, now)
		l.buckets[ip] = b
	}
	l.mu.Unlock()

	allowed, remaining, retryAfter := b.take(now)
	return Decision{Allowed: allowed, Remaining: remaining, RetryAfter: retryAfter}
}

// Run sweeps idle buckets until the context is cancelled.
func (l *IPLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			evicted := l.sweep()
			if evicted > 0 {
				l.logger.Debug("evicted idle rate limit buckets",
					"evicted", evicted,
					"remaining", l.Len(),
				)
			}
		case <-ctx.Done():
			return
		}
	}
}

// sweep evicts buckets idle longer than the TTL and returns how many went.
func (l *IPLimiter) sweep() int {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	evicted := 0
	for ip, b := range l.buckets {
		if b.idleSince().Before(cutoff) {
			delete(l.buckets, ip)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of tracked client IPs.
func (l *IPLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
