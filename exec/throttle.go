package exec

import (
	"sync"
	"time"
)

// tokenBucket is a lock-free-ish (short-mutex) rate limiter for
// throttle_count tokens per throttle_per_ms window (§3.3, §5).
type tokenBucket struct {
	mu         sync.Mutex
	count      uint32
	perMs      uint64
	tokens     float64
	lastRefill time.Time
}

func newTokenBucket(count uint32, perMs uint64) *tokenBucket {
	return &tokenBucket{count: count, perMs: perMs, tokens: float64(count), lastRefill: time.Now()}
}

// acquire blocks until a token is available or cancelled reports true; it
// re-checks every millisecond to stay cooperative with cancellation (§5).
// On cancellation it returns without taking a token.
func (b *tokenBucket) acquire(cancelled func() bool) {
	if b == nil {
		return
	}
	for {
		b.mu.Lock()
		now := time.Now()
		elapsedMs := now.Sub(b.lastRefill).Milliseconds()
		if elapsedMs > 0 && b.perMs > 0 {
			refill := float64(elapsedMs) / float64(b.perMs) * float64(b.count)
			b.tokens += refill
			if b.tokens > float64(b.count) {
				b.tokens = float64(b.count)
			}
			b.lastRefill = now
		}
		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()
		if cancelled != nil && cancelled() {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// concurrencyLimiter is a per-module semaphore bounding in-flight
// invocations (§3.3 concurrency). Permits are held across retries and
// released on every exit path (§5 resource scoping).
type concurrencyLimiter struct {
	sem chan struct{}
}

func newConcurrencyLimiter(n uint32) *concurrencyLimiter {
	if n == 0 {
		return nil
	}
	return &concurrencyLimiter{sem: make(chan struct{}, n)}
}

func (c *concurrencyLimiter) acquire() {
	if c == nil {
		return
	}
	c.sem <- struct{}{}
}

func (c *concurrencyLimiter) release() {
	if c == nil {
		return
	}
	<-c.sem
}
