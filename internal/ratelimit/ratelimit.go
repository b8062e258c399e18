// Package ratelimit implements the C9 rate limiter: a process-local
// token-bucket keyed by (endpoint, caller), reset on a fixed window.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Limiter holds one counter per composite key. Buckets are process-local
// and reset independently on their own window.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	window  time.Duration
}

// New constructs a Limiter with the given default window.
func New(window time.Duration) *Limiter {
	if window <= 0 {
		window = 60 * time.Second
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		window:  window,
	}
}

// Allow increments the counter for key and reports whether the call is
// within max for the current window. After max accepted calls within the
// window, subsequent calls are rejected until the window elapses, at which
// point the counter resets to 1.
func (l *Limiter) Allow(key string, max int) Decision {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || now.After(b.resetAt) {
		b = &bucket{count: 0, resetAt: now.Add(l.window)}
		l.buckets[key] = b
	}

	b.count++

	remaining := max - b.count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   b.count <= max,
		Count:     b.count,
		Limit:     max,
		Remaining: remaining,
		ResetAt:   b.resetAt,
	}
}

// RetryAfterSeconds computes the ceil((resetAt-now)/1s) value the HTTP
// layer surfaces on a 429 response.
func RetryAfterSeconds(d Decision, now time.Time) int {
	remaining := d.ResetAt.Sub(now)
	if remaining <= 0 {
		return 1
	}
	secs := int(remaining / time.Second)
	if remaining%time.Second > 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}
