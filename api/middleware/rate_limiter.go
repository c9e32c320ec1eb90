package middleware

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int64
	expires time.Time
}

// MemoryRateLimiter is the single-process RateLimiter used when the store
// backend is not Redis.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
}

func NewMemoryRateLimiter(now func() time.Time) *MemoryRateLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryRateLimiter{windows: map[string]window{}, now: now}
}

func (m *MemoryRateLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, ttl time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, w := range m.windows {
		if !now.Before(w.expires) {
			delete(m.windows, key)
		}
	}
	w, ok := m.windows[scope]
	if !ok {
		w = window{expires: now.Add(ttl)}
	}
	w.count++
	m.windows[scope] = w
	return w.count <= limit, w.count, nil
}
