package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store using in-memory counters.
// This is suitable for single-node deployments.
// Counters are NOT shared across process restarts or multiple instances.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*windowEntry
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// windowEntry is one fixed window.
type windowEntry struct {
	count   int64
	resetAt time.Time
}

// NewMemoryStore creates a new in-memory store.
// Call Stop to end the background cleanup.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		windows: make(map[string]*windowEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	// Start a background goroutine to drop expired windows.
	go s.cleanupLoop(time.Minute)

	return s
}

// cleanupLoop periodically removes expired windows.
func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

// cleanup removes expired windows.
func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, entry := range s.windows {
		if !now.Before(entry.resetAt) {
			delete(s.windows, key)
		}
	}
}

// Stop ends the background cleanup. It is safe to call more than once.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Increment adds one hit to key.
func (s *MemoryStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	if ctx.Err() != nil {
		return 0, time.Time{}, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, exists := s.windows[key]
	if !exists || !now.Before(entry.resetAt) {
		// Window expired or never opened.
		entry = &windowEntry{resetAt: now.Add(window)}
		s.windows[key] = entry
	}
	entry.count++

	return entry.count, entry.resetAt, nil
}

// Reset clears the counter for key.
func (s *MemoryStore) Reset(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.windows, key)
	return nil
}

// Len returns the number of open windows.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
