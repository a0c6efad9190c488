package ratelimiter

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	tokens   int
	refilled time.Time
	idleTTL  time.Duration
}

// MemoryStore keeps buckets in process. Idle buckets are swept on every
// sweepEvery-th Take.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	calls   int
}

const sweepEvery = 256

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*bucket)}
}

func (m *MemoryStore) Take(_ context.Context, key string, n int, cfg Config, now time.Time) (int, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.calls%sweepEvery == 0 {
		m.sweep(now)
	}

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{tokens: cfg.Capacity, refilled: now}
		m.buckets[key] = b
	}
	b.idleTTL = cfg.idleTTL()

	if elapsed := now.Sub(b.refilled); elapsed >= cfg.RefillInterval {
		intervals := int(min(int64(elapsed/cfg.RefillInterval), int64(cfg.Capacity/cfg.RefillRate+1)))
		b.tokens = min(b.tokens+intervals*cfg.RefillRate, cfg.Capacity)
		b.refilled = b.refilled.Add(time.Duration(intervals) * cfg.RefillInterval)
		if now.Sub(b.refilled) >= cfg.RefillInterval {
			b.refilled = now
		}
	}

	remaining := b.tokens - n
	if remaining >= 0 {
		b.tokens = remaining
	}
	return remaining, b.refilled.Add(cfg.RefillInterval), nil
}

func (m *MemoryStore) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.buckets, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

func (m *MemoryStore) sweep(now time.Time) {
	for k, b := range m.buckets {
		if now.Sub(b.refilled) > b.idleTTL {
			delete(m.buckets, k)
		}
	}
}
