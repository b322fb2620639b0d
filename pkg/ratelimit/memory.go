package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often stale windows are evicted.
const DefaultSweepInterval = 15 * time.Minute

// MemoryStore is the in-process counter store. Counters are strictly
// per-instance: under multiple server instances each instance counts
// independently and the effective quota is multiplied, so shared
// deployments should use the Redis store instead.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	// now is swappable for tests
	now func() time.Time
}

type window struct {
	count int
	reset time.Time
}

// NewMemoryStore creates an in-memory counter store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Increment advances the counter for key, starting a fresh window when
// the previous one has elapsed. The map mutex makes the
// read-modify-write atomic per store.
func (s *MemoryStore) Increment(ctx context.Context, key string, windowLen time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || now.After(w.reset) {
		w = &window{reset: now.Add(windowLen)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.reset, nil
}

// Decrement undoes one increment within the current window
func (s *MemoryStore) Decrement(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.windows[key]; ok && w.count > 0 {
		w.count--
	}
	return nil
}

// Reset clears the counter for key
func (s *MemoryStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.windows, key)
	return nil
}

// Sweep evicts windows whose reset time has passed
func (s *MemoryStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, w := range s.windows {
		if now.After(w.reset) {
			delete(s.windows, key)
		}
	}
}

// StartSweeper runs Sweep every interval until ctx is cancelled
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()
}
