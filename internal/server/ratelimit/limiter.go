// Package ratelimit counts login attempts per key over a fixed window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter reports whether another attempt for key is allowed. A non-nil
// error comes with allowed=true: callers log it and let the request through.
//
// Reset clears the counter for key after a successful attempt.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

type window struct {
	count   int
	expires time.Time
}

// MemoryLimiter is a process-local Limiter used when no redis address is
// configured.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	entries map[string]*window
	now     func() time.Time
}

func NewMemoryLimiter(limit int, w time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  w,
		entries: make(map[string]*window),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || !now.Before(e.expires) {
		e = &window{expires: now.Add(l.window)}
		l.entries[key] = e
		l.sweep(now)
	}
	e.count++
	return e.count <= l.limit, nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
	return nil
}

// sweep drops expired windows so abandoned keys do not accumulate.
func (l *MemoryLimiter) sweep(now time.Time) {
	for k, e := range l.entries {
		if !now.Before(e.expires) {
			delete(l.entries, k)
		}
	}
}
