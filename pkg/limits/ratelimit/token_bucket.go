package ratelimit

import (
	"sync"
	"time"
)

// tokenBucket is the admission state for a single client.
//
// Tokens refill continuously at refillRate per second up to capacity, based
// on elapsed monotonic time. Each admitted request consumes one token. The
// mutex makes the refill-then-take sequence atomic, so two concurrent
// requests from the same client can never both consume the last token.
type tokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	lastSeen   time.Time
}

func newTokenBucket(capacity float64, refillRate float64, now time.Time) *tokenBucket {
	return &tokenBucket{
		capacity:   capacity,
		tokens:     capacity, // a new client starts with a full burst
		refillRate: refillRate,
		lastRefill: now,
		lastSeen:   now,
	}
}

// take consumes one token if available. It returns whether the request is
// admitted, how many whole tokens remain, and, when denied, how long until
// the next token arrives.
func (b *tokenBucket) take(now time.Time) (ok bool, remaining int64, retryAfter time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(now)
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, int64(b.tokens), 0
	}

	need := 1 - b.tokens
	retryAfter = time.Duration(need / b.refillRate * float64(time.Second))
	return false, 0, retryAfter
}

// idleSince reports the last time this client was seen.
func (b *tokenBucket) idleSince() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSeen
}

func (b *tokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}

	b.tokens += elapsed.Seconds() * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}
