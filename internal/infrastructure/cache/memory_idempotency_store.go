package cache

import (
	"context"
	"sync"
	"time"

	"github.com/shop/backend/internal/domain/shared"
)

// MemoryIdempotencyStore implements IdempotencyStore in process memory
// Suitable for single-instance deployments and tests
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	done    chan struct{}
	once    sync.Once
}

// NewMemoryIdempotencyStore creates a new in-memory idempotency store
// A background goroutine evicts expired entries every minute
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	s := &MemoryIdempotencyStore{
		entries: make(map[string]time.Time),
		done:    make(chan struct{}),
	}
	go s.evictLoop()
	return s
}

// MarkProcessed marks an event as processed with a TTL
func (s *MemoryIdempotencyStore) MarkProcessed(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.entries[eventID]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	s.entries[eventID] = time.Now().Add(ttl)
	return true, nil
}

// IsProcessed checks if an event has already been processed
func (s *MemoryIdempotencyStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.entries[eventID]
	return ok && time.Now().Before(expiry), nil
}

// Release removes a processed mark so a failed event can be redelivered
func (s *MemoryIdempotencyStore) Release(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, eventID)
	return nil
}

// Close stops the eviction goroutine
func (s *MemoryIdempotencyStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryIdempotencyStore) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for id, expiry := range s.entries {
				if now.After(expiry) {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Ensure MemoryIdempotencyStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*MemoryIdempotencyStore)(nil)
