package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	mu    sync.Mutex
	count int
	start time.Time
	// dead is set by Sweep once the bucket is unlinked from the map.
	dead bool
}

// MemoryStore keeps windows in process memory.
type MemoryStore struct {
	buckets sync.Map
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Hit implements Store.
func (m *MemoryStore) Hit(_ context.Context, key string, now time.Time, window time.Duration) (Window, error) {
	for {
		b := m.load(key, now)
		b.mu.Lock()
		if b.dead {
			b.mu.Unlock()
			continue
		}
		if now.Sub(b.start) > window {
			b.start = now
			b.count = 0
		}
		b.count++
		w := Window{Count: b.count, Start: b.start}
		b.mu.Unlock()
		return w, nil
	}
}

func (m *MemoryStore) load(key string, now time.Time) *bucket {
	if v, ok := m.buckets.Load(key); ok {
		return v.(*bucket)
	}
	v, _ := m.buckets.LoadOrStore(key, &bucket{start: now})
	return v.(*bucket)
}

// Sweep evicts buckets whose window started more than idle ago and returns
// how many were removed.
func (m *MemoryStore) Sweep(now time.Time, idle time.Duration) int {
	removed := 0
	m.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		if now.Sub(b.start) > idle {
			b.dead = true
			m.buckets.Delete(key)
			removed++
		}
		b.mu.Unlock()
		return true
	})
	return removed
}

// Len reports the number of tracked keys.
func (m *MemoryStore) Len() int {
	n := 0
	m.buckets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// RunSweeper calls Sweep every interval until ctx is done. Buckets idle for
// longer than two windows are dropped.
func (m *MemoryStore) RunSweeper(ctx context.Context, interval, window time.Duration, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = window
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep(now(), 2*window)
		}
	}
}
