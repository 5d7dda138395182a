// Package ratelimit implements the fixed-window per-client limiter
// gating the upstream passthrough. The limiter is an explicit state
// object with an injectable clock, not a package-level map: constructed
// once per process, reset per key by window expiry.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	count   int
	resetAt time.Time
}

// Limiter allows at most max requests per key per window.
type Limiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	buckets map[string]*bucket

	// Now is the clock; tests override it.
	Now func() time.Time
}

// NewLimiter creates a limiter allowing max requests per window per key.
func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{
		max:     max,
		window:  window,
		buckets: make(map[string]*bucket),
		Now:     time.Now,
	}
}

// Allow reports whether a request under key fits in the current window,
// counting it if so. An expired bucket starts a fresh window.
func (l *Limiter) Allow(key string) bool {
	now := l.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || now.After(b.resetAt) {
		l.buckets[key] = &bucket{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	if b.count >= l.max {
		return false
	}
	b.count++
	return true
}

// Prune drops expired buckets. Called opportunistically so the map does
// not grow with one entry per client forever.
func (l *Limiter) Prune() {
	now := l.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.After(b.resetAt) {
			delete(l.buckets, key)
		}
	}
}
