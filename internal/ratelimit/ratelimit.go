// Package ratelimit implements the token-bucket half of the Rate
// Limiter & Ownership Prover (spec §4.10), built on golang.org/x/time/rate
// (enriched from the pack rather than hand-rolled, since the teacher
// itself never needed rate limiting).
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Error struct {
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// KeyedLimiter holds one token bucket per key (e.g. per phone number),
// created lazily on first use. A single shared key ("") gives a global
// bucket.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

// New creates a limiter allowing burst immediately and refilling at
// perInterval events per interval (e.g. perInterval=30, interval=time.Minute).
func New(perInterval int, interval time.Duration) *KeyedLimiter {
	burst := max(perInterval, 1)
	r := rate.Every(interval / time.Duration(burst))
	return &KeyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		burst:    burst,
	}
}

func (k *KeyedLimiter) limiterFor(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.limiters[key]
	if !ok {
		l = rate.NewLimiter(k.r, k.burst)
		k.limiters[key] = l
	}
	return l
}

// Check permits immediately (consuming a token) or returns a
// *Error carrying a suggested retry-after (spec §4.10).
func (k *KeyedLimiter) Check(key string) error {
	l := k.limiterFor(key)
	r := l.Reserve()
	if !r.OK() {
		return &Error{RetryAfter: time.Second}
	}
	delay := r.Delay()
	if delay > 0 {
		r.Cancel()
		return &Error{RetryAfter: delay}
	}
	return nil
}
