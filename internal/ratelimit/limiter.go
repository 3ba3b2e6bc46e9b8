// Package ratelimit admits or rejects compile requests per client key.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"typstapi/internal/pkg/middleware"
)

// MemoryLimiter keeps one token bucket per key in process memory.
// It is suitable for a single instance.
type MemoryLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	sweeps  int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// sweepEvery is the number of Allow calls between idle-bucket sweeps.
const sweepEvery = 1024

// NewMemoryLimiter creates a limiter granting rps requests per second per key
// with the given burst. Buckets unused for idleTTL are dropped.
func NewMemoryLimiter(rps float64, burst int, idleTTL time.Duration) *MemoryLimiter {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &MemoryLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow reports whether key has a token available, consuming it if so.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.buckets[key] = b
	}
	b.lastSeen = now

	m.sweeps++
	if m.sweeps >= sweepEvery {
		m.sweeps = 0
		m.sweepLocked(now)
	}

	return b.limiter.AllowN(now, 1), nil
}

// Len returns the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

func (m *MemoryLimiter) sweepLocked(now time.Time) {
	for key, b := range m.buckets {
		if now.Sub(b.lastSeen) > m.idleTTL {
			delete(m.buckets, key)
		}
	}
}

var _ middleware.Limiter = (*MemoryLimiter)(nil)
