package ratelimit

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count         int64
	windowResetAt time.Time
}

// MemoryStore keeps counters in process memory. Counters are lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

type MemoryOption func(*MemoryStore)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Take(_ context.Context, limiter, client string, maxAttempts int, window time.Duration) (Decision, error) {
	key := limiter + ":" + client
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !now.Before(e.windowResetAt) {
		s.entries[key] = &entry{count: 1, windowResetAt: now.Add(window)}
		return Decision{Allowed: true, Count: 1}, nil
	}
	if e.count < int64(maxAttempts) {
		e.count++
		return Decision{Allowed: true, Count: e.count}, nil
	}
	return Decision{Allowed: false, Count: e.count, RetryAfter: e.windowResetAt.Sub(now)}, nil
}

// Sweep drops entries whose window has passed and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, e := range s.entries {
		if !now.Before(e.windowResetAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of live buckets.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
